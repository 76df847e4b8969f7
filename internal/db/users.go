package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/tripdesk/backend/internal/models"
)

const userColumns = `id, email, name, phone, role, password_hash, is_temp_password, must_change_password,
	is_active, last_login_at, last_activity_at, created_at`

func scanUser(row pgx.Row) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Phone, &u.Role, &u.PasswordHash, &u.IsTempPassword,
		&u.MustChangePassword, &u.IsActive, &u.LastLoginAt, &u.LastActivityAt, &u.CreatedAt)
	return u, err
}

func (s *Store) GetUser(ctx context.Context, id string) (models.User, error) {
	u, err := scanUser(s.q(ctx).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return models.User{}, translate(err, "User")
	}
	return u, nil
}

// FindUserByEmail returns nil without an error when no user has that email.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(s.q(ctx).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err, "User")
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, u models.User) error {
	_, err := s.q(ctx).Exec(ctx, `
		INSERT INTO users (id, email, name, phone, role, password_hash, is_temp_password, must_change_password,
			is_active, last_login_at, last_activity_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, u.ID, u.Email, u.Name, u.Phone, u.Role, u.PasswordHash, u.IsTempPassword, u.MustChangePassword,
		u.IsActive, u.LastLoginAt, u.LastActivityAt, u.CreatedAt)
	return translate(err, "User")
}

func (s *Store) UpdateUserContact(ctx context.Context, id, name, phone string) error {
	tag, err := s.q(ctx).Exec(ctx, `UPDATE users SET name = $2, phone = $3 WHERE id = $1`, id, name, phone)
	if err != nil {
		return translate(err, "User")
	}
	if tag.RowsAffected() == 0 {
		return translate(pgx.ErrNoRows, "User")
	}
	return nil
}

func (s *Store) ListSalesReps(ctx context.Context) ([]models.User, error) {
	rows, err := s.q(ctx).Query(ctx, `SELECT `+userColumns+` FROM users WHERE role = $1 ORDER BY id ASC`, models.RoleSalesRep)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
