package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/tripdesk/backend/internal/models"
)

const packageColumns = `id, name, base_name, category, destination, description, duration_days, price, currency,
	inclusions, exclusions, days, images, is_customized, original_package_id, customized_for_lead_id,
	customization_sequence, superseded_at, version, created_at, updated_at`

func scanPackage(row pgx.Row) (models.Package, error) {
	var (
		p                                  models.Package
		inclusions, exclusions, days, imgs []byte
	)
	if err := row.Scan(&p.ID, &p.Name, &p.BaseName, &p.Category, &p.Destination, &p.Description, &p.DurationDays,
		&p.Price, &p.Currency, &inclusions, &exclusions, &days, &imgs, &p.IsCustomized, &p.OriginalPackageID,
		&p.CustomizedForLeadID, &p.CustomizationSequence, &p.SupersededAt, &p.Version, &p.CreatedAt,
		&p.UpdatedAt); err != nil {
		return models.Package{}, err
	}
	for _, f := range []struct {
		raw []byte
		dst any
	}{
		{inclusions, &p.Inclusions},
		{exclusions, &p.Exclusions},
		{days, &p.Days},
		{imgs, &p.Images},
	} {
		if len(f.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return models.Package{}, fmt.Errorf("decode package %s: %w", p.ID, err)
		}
	}
	return p, nil
}

func packageArgs(p models.Package) ([]any, error) {
	enc := func(v any, empty string) ([]byte, error) {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		if string(b) == "null" {
			return []byte(empty), nil
		}
		return b, nil
	}
	inclusions, err := enc(p.Inclusions, "[]")
	if err != nil {
		return nil, err
	}
	exclusions, err := enc(p.Exclusions, "[]")
	if err != nil {
		return nil, err
	}
	days, err := enc(p.Days, "[]")
	if err != nil {
		return nil, err
	}
	imgs, err := enc(p.Images, "[]")
	if err != nil {
		return nil, err
	}
	return []any{p.ID, p.Name, p.BaseName, p.Category, p.Destination, p.Description, p.DurationDays, p.Price,
		p.Currency, inclusions, exclusions, days, imgs, p.IsCustomized, p.OriginalPackageID,
		p.CustomizedForLeadID, p.CustomizationSequence, p.SupersededAt, p.Version, p.CreatedAt,
		p.UpdatedAt}, nil
}

func (s *Store) CreatePackage(ctx context.Context, p models.Package) error {
	args, err := packageArgs(p)
	if err != nil {
		return err
	}
	_, err = s.q(ctx).Exec(ctx, `
		INSERT INTO packages (`+packageColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
	`, args...)
	return translate(err, "Package")
}

func (s *Store) GetPackage(ctx context.Context, id string) (models.Package, error) {
	p, err := scanPackage(s.q(ctx).QueryRow(ctx, `SELECT `+packageColumns+` FROM packages WHERE id = $1`, id))
	if err != nil {
		return models.Package{}, translate(err, "Package")
	}
	return p, nil
}

// UpdatePackage writes every mutable column. created_at is left untouched.
func (s *Store) UpdatePackage(ctx context.Context, p models.Package) error {
	args, err := packageArgs(p)
	if err != nil {
		return err
	}
	tag, err := s.q(ctx).Exec(ctx, `
		UPDATE packages SET
			name = $2, base_name = $3, category = $4, destination = $5, description = $6, duration_days = $7,
			price = $8, currency = $9, inclusions = $10, exclusions = $11, days = $12, images = $13,
			is_customized = $14, original_package_id = $15, customized_for_lead_id = $16,
			customization_sequence = $17, superseded_at = $18, version = $19, updated_at = $21
		WHERE id = $1
	`, args...)
	if err != nil {
		return translate(err, "Package")
	}
	if tag.RowsAffected() == 0 {
		return translate(pgx.ErrNoRows, "Package")
	}
	return nil
}

func (s *Store) ListPackages(ctx context.Context, f models.PackageFilter) ([]models.Package, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	var args []any
	var wheres []string
	if f.Customized != nil {
		args = append(args, *f.Customized)
		wheres = append(wheres, fmt.Sprintf("is_customized = $%d", len(args)))
	}
	if f.Destination != "" {
		args = append(args, f.Destination)
		wheres = append(wheres, fmt.Sprintf("lower(destination) = lower($%d)", len(args)))
	}
	if f.Category != "" {
		args = append(args, f.Category)
		wheres = append(wheres, fmt.Sprintf("category = $%d", len(args)))
	}
	if f.LeadID != "" {
		args = append(args, f.LeadID)
		wheres = append(wheres, fmt.Sprintf("customized_for_lead_id::text = $%d", len(args)))
	}
	query := `SELECT ` + packageColumns + ` FROM packages`
	if len(wheres) > 0 {
		query += " WHERE " + strings.Join(wheres, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := s.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Package{}
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
