package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tripdesk/backend/internal/models"
)

// GetAssignmentSettings reads the singleton settings row, falling back to the
// defaults when it has not been seeded.
func (s *Store) GetAssignmentSettings(ctx context.Context) (models.AssignmentSettings, error) {
	var st models.AssignmentSettings
	err := s.q(ctx).QueryRow(ctx, `
		SELECT assignment_mode, auto_strategy, enabled_sales_reps, round_robin_index, max_open_leads_per_rep,
			skip_inactive, require_active_login_48h, updated_at
		FROM assignment_settings WHERE id = 1
	`).Scan(&st.AssignmentMode, &st.AutoStrategy, &st.EnabledSalesReps, &st.RoundRobinIndex,
		&st.MaxOpenLeadsPerRep, &st.SkipInactive, &st.RequireActiveLogin48h, &st.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.DefaultAssignmentSettings(), nil
	}
	if err != nil {
		return models.AssignmentSettings{}, translate(err, "Assignment settings")
	}
	if st.EnabledSalesReps == nil {
		st.EnabledSalesReps = []string{}
	}
	return st, nil
}

// SaveAssignmentSettings upserts the admin-editable fields. The round-robin
// cursor is only moved through TrySwapRoundRobinIndex.
func (s *Store) SaveAssignmentSettings(ctx context.Context, st models.AssignmentSettings) error {
	reps := st.EnabledSalesReps
	if reps == nil {
		reps = []string{}
	}
	_, err := s.q(ctx).Exec(ctx, `
		INSERT INTO assignment_settings (id, assignment_mode, auto_strategy, enabled_sales_reps,
			max_open_leads_per_rep, skip_inactive, require_active_login_48h, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			assignment_mode = EXCLUDED.assignment_mode,
			auto_strategy = EXCLUDED.auto_strategy,
			enabled_sales_reps = EXCLUDED.enabled_sales_reps,
			max_open_leads_per_rep = EXCLUDED.max_open_leads_per_rep,
			skip_inactive = EXCLUDED.skip_inactive,
			require_active_login_48h = EXCLUDED.require_active_login_48h,
			updated_at = EXCLUDED.updated_at
	`, st.AssignmentMode, st.AutoStrategy, reps, st.MaxOpenLeadsPerRep, st.SkipInactive,
		st.RequireActiveLogin48h, st.UpdatedAt)
	return translate(err, "Assignment settings")
}

// TrySwapRoundRobinIndex advances the cursor only if nobody moved it since it
// was read. It reports whether the swap happened.
func (s *Store) TrySwapRoundRobinIndex(ctx context.Context, old, next int) (bool, error) {
	tag, err := s.q(ctx).Exec(ctx, `
		UPDATE assignment_settings SET round_robin_index = $2, updated_at = $3
		WHERE id = 1 AND round_robin_index = $1
	`, old, next, time.Now().UTC())
	if err != nil {
		return false, translate(err, "Assignment settings")
	}
	return tag.RowsAffected() == 1, nil
}
