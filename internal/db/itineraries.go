package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tripdesk/backend/internal/models"
)

const itineraryColumns = `id, lead_id, days, notes, metadata, version, created_by, created_at, updated_at`

func scanItinerary(row pgx.Row) (models.ManualItinerary, error) {
	var (
		it       models.ManualItinerary
		days     []byte
		metadata []byte
	)
	if err := row.Scan(&it.ID, &it.LeadID, &days, &it.Notes, &metadata, &it.Version, &it.CreatedBy,
		&it.CreatedAt, &it.UpdatedAt); err != nil {
		return models.ManualItinerary{}, err
	}
	if len(days) > 0 {
		if err := json.Unmarshal(days, &it.Days); err != nil {
			return models.ManualItinerary{}, fmt.Errorf("decode itinerary days: %w", err)
		}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &it.Metadata); err != nil {
			return models.ManualItinerary{}, fmt.Errorf("decode itinerary metadata: %w", err)
		}
	}
	if it.Days == nil {
		it.Days = []models.Day{}
	}
	return it, nil
}

func itineraryJSON(it models.ManualItinerary) (days, metadata []byte, err error) {
	d := it.Days
	if d == nil {
		d = []models.Day{}
	}
	if days, err = json.Marshal(d); err != nil {
		return nil, nil, err
	}
	if metadata, err = json.Marshal(it.Metadata); err != nil {
		return nil, nil, err
	}
	return days, metadata, nil
}

func (s *Store) CreateItinerary(ctx context.Context, it models.ManualItinerary) error {
	days, metadata, err := itineraryJSON(it)
	if err != nil {
		return err
	}
	_, err = s.q(ctx).Exec(ctx, `
		INSERT INTO manual_itineraries (`+itineraryColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, it.ID, it.LeadID, days, it.Notes, metadata, it.Version, it.CreatedBy, it.CreatedAt, it.UpdatedAt)
	return translate(err, "Manual itinerary")
}

func (s *Store) GetItinerary(ctx context.Context, id string) (models.ManualItinerary, error) {
	it, err := scanItinerary(s.q(ctx).QueryRow(ctx, `SELECT `+itineraryColumns+` FROM manual_itineraries WHERE id = $1`, id))
	if err != nil {
		return models.ManualItinerary{}, translate(err, "Manual itinerary")
	}
	return it, nil
}

func (s *Store) GetItineraryByLead(ctx context.Context, leadID string) (models.ManualItinerary, error) {
	it, err := scanItinerary(s.q(ctx).QueryRow(ctx, `SELECT `+itineraryColumns+` FROM manual_itineraries WHERE lead_id = $1`, leadID))
	if err != nil {
		return models.ManualItinerary{}, translate(err, "Manual itinerary")
	}
	return it, nil
}

func (s *Store) UpdateItinerary(ctx context.Context, it models.ManualItinerary) error {
	days, metadata, err := itineraryJSON(it)
	if err != nil {
		return err
	}
	tag, err := s.q(ctx).Exec(ctx, `
		UPDATE manual_itineraries
		SET days = $2, notes = $3, metadata = $4, version = $5, updated_at = $6
		WHERE id = $1
	`, it.ID, days, it.Notes, metadata, it.Version, it.UpdatedAt)
	if err != nil {
		return translate(err, "Manual itinerary")
	}
	if tag.RowsAffected() == 0 {
		return translate(pgx.ErrNoRows, "Manual itinerary")
	}
	return nil
}

func (s *Store) DeleteItinerary(ctx context.Context, id string) error {
	tag, err := s.q(ctx).Exec(ctx, `DELETE FROM manual_itineraries WHERE id = $1`, id)
	if err != nil {
		return translate(err, "Manual itinerary")
	}
	if tag.RowsAffected() == 0 {
		return translate(pgx.ErrNoRows, "Manual itinerary")
	}
	return nil
}
