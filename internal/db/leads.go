package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/tripdesk/backend/internal/models"
)

const leadColumns = `id, user_id, name, email, phone, destination, travel_date, end_date, number_of_travelers,
	status, assigned_to, source_kind, source_id, package_name, remarks, origin, created_at, updated_at`

func scanLead(row pgx.Row) (models.Lead, error) {
	var (
		l          models.Lead
		status     string
		sourceKind string
		sourceID   *string
		remarks    []byte
	)
	if err := row.Scan(&l.ID, &l.UserID, &l.Name, &l.Email, &l.Phone, &l.Destination, &l.TravelDate, &l.EndDate,
		&l.NumberOfTravelers, &status, &l.AssignedTo, &sourceKind, &sourceID, &l.PackageName, &remarks, &l.Origin,
		&l.CreatedAt, &l.UpdatedAt); err != nil {
		return models.Lead{}, err
	}
	l.Status = models.LeadStatus(status)
	src, err := models.ParseSource(sourceKind, sourceID)
	if err != nil {
		return models.Lead{}, err
	}
	l.Source = src
	if len(remarks) > 0 {
		if err := json.Unmarshal(remarks, &l.Remarks); err != nil {
			return models.Lead{}, fmt.Errorf("decode remarks: %w", err)
		}
	}
	if l.Remarks == nil {
		l.Remarks = []models.Remark{}
	}
	return l, nil
}

func leadArgs(l models.Lead) ([]any, error) {
	remarks := l.Remarks
	if remarks == nil {
		remarks = []models.Remark{}
	}
	b, err := json.Marshal(remarks)
	if err != nil {
		return nil, err
	}
	kind, sourceID := l.Source.Columns()
	return []any{l.ID, l.UserID, l.Name, l.Email, l.Phone, l.Destination, l.TravelDate, l.EndDate,
		l.NumberOfTravelers, string(l.Status), l.AssignedTo, kind, sourceID, l.PackageName, b, l.Origin,
		l.CreatedAt, l.UpdatedAt}, nil
}

func (s *Store) CreateLead(ctx context.Context, l models.Lead) error {
	args, err := leadArgs(l)
	if err != nil {
		return err
	}
	_, err = s.q(ctx).Exec(ctx, `
		INSERT INTO leads (`+leadColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
	`, args...)
	return translate(err, "Lead")
}

func (s *Store) GetLead(ctx context.Context, id string) (models.Lead, error) {
	l, err := scanLead(s.q(ctx).QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id))
	if err != nil {
		return models.Lead{}, translate(err, "Lead")
	}
	return l, nil
}

func (s *Store) UpdateLead(ctx context.Context, l models.Lead) error {
	args, err := leadArgs(l)
	if err != nil {
		return err
	}
	tag, err := s.q(ctx).Exec(ctx, `
		UPDATE leads SET
			user_id = $2, name = $3, email = $4, phone = $5, destination = $6, travel_date = $7, end_date = $8,
			number_of_travelers = $9, status = $10, assigned_to = $11, source_kind = $12, source_id = $13,
			package_name = $14, remarks = $15, origin = $16, updated_at = $18
		WHERE id = $1
	`, args...)
	if err != nil {
		return translate(err, "Lead")
	}
	if tag.RowsAffected() == 0 {
		return translate(pgx.ErrNoRows, "Lead")
	}
	return nil
}

func (s *Store) DeleteLead(ctx context.Context, id string) error {
	tag, err := s.q(ctx).Exec(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return translate(err, "Lead")
	}
	if tag.RowsAffected() == 0 {
		return translate(pgx.ErrNoRows, "Lead")
	}
	return nil
}

func (s *Store) ListLeads(ctx context.Context, f models.LeadFilter) ([]models.Lead, int, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	var args []any
	var wheres []string
	if f.Status != "" {
		args = append(args, f.Status)
		wheres = append(wheres, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.AssignedTo != "" {
		args = append(args, f.AssignedTo)
		wheres = append(wheres, fmt.Sprintf("assigned_to::text = $%d", len(args)))
	}
	if f.Q != "" {
		args = append(args, containsPattern(f.Q))
		n := len(args)
		wheres = append(wheres, fmt.Sprintf(`(name ILIKE $%d ESCAPE '\' OR email ILIKE $%d ESCAPE '\' OR destination ILIKE $%d ESCAPE '\')`, n, n, n))
	}
	where := ""
	if len(wheres) > 0 {
		where = " WHERE " + strings.Join(wheres, " AND ")
	}

	var total int
	if err := s.q(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM leads`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + leadColumns + ` FROM leads` + where +
		" ORDER BY created_at DESC LIMIT $" + fmt.Sprint(len(args)+1) + " OFFSET $" + fmt.Sprint(len(args)+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := s.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []models.Lead{}
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, l)
	}
	return out, total, rows.Err()
}

// CountOpenLeadsByRep returns the number of open leads per rep id. Reps with no
// open leads are present with a zero count.
func (s *Store) CountOpenLeadsByRep(ctx context.Context, repIDs []string) (map[string]int, error) {
	out := make(map[string]int, len(repIDs))
	for _, id := range repIDs {
		out[id] = 0
	}
	if len(repIDs) == 0 {
		return out, nil
	}
	rows, err := s.q(ctx).Query(ctx, `
		SELECT assigned_to::text, COUNT(*)
		FROM leads
		WHERE assigned_to::text = ANY($1) AND status NOT IN ($2, $3)
		GROUP BY assigned_to
	`, repIDs, string(models.LeadStatusConverted), string(models.LeadStatusLost))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id    string
			count int
		)
		if err := rows.Scan(&id, &count); err != nil {
			return nil, err
		}
		out[id] = count
	}
	return out, rows.Err()
}
