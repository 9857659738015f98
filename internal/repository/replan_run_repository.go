package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/study-replan-api/internal/models"
)

const replanRunColumns = `id, plan_id, user_id, rescheduled, failed, total, outcome, strategy, distribution, executed_at, duration_ms`

// ReplanRunRepository persists the history of executed runs.
type ReplanRunRepository struct {
	db *sqlx.DB
}

// NewReplanRunRepository constructs repository.
func NewReplanRunRepository(db *sqlx.DB) *ReplanRunRepository {
	return &ReplanRunRepository{db: db}
}

// Create inserts a run, assigning an id when missing.
func (r *ReplanRunRepository) Create(ctx context.Context, run *models.ReplanRun) error {
	if run == nil {
		return fmt.Errorf("replan run payload is nil")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if len(run.Distribution) == 0 {
		run.Distribution = types.JSONText(`[]`)
	}
	const query = `
INSERT INTO replan_runs (` + replanRunColumns + `)
VALUES (:id, :plan_id, :user_id, :rescheduled, :failed, :total, :outcome, :strategy, :distribution, :executed_at, :duration_ms)
ON CONFLICT (id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("insert replan run: %w", err)
	}
	return nil
}

// ListByPlan returns a page of runs for a plan, newest first, and the total.
func (r *ReplanRunRepository) ListByPlan(ctx context.Context, filter models.ReplanRunFilter) ([]models.ReplanRun, int, error) {
	page, size := filter.Page, filter.PageSize
	if page <= 0 {
		page = 1
	}
	if page > models.MaxRunPage {
		page = models.MaxRunPage
	}
	if size <= 0 || size > 100 {
		size = 20
	}

	const countQuery = `SELECT COUNT(*) FROM replan_runs WHERE plan_id = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, filter.PlanID); err != nil {
		return nil, 0, fmt.Errorf("count replan runs: %w", err)
	}

	const query = `SELECT ` + replanRunColumns + ` FROM replan_runs WHERE plan_id = $1 ORDER BY executed_at DESC LIMIT $2 OFFSET $3`
	var runs []models.ReplanRun
	if err := r.db.SelectContext(ctx, &runs, query, filter.PlanID, size, (page-1)*size); err != nil {
		return nil, 0, fmt.Errorf("list replan runs: %w", err)
	}
	return runs, total, nil
}

// FindByID loads one run of planID.
func (r *ReplanRunRepository) FindByID(ctx context.Context, planID int64, id string) (*models.ReplanRun, error) {
	const query = `SELECT ` + replanRunColumns + ` FROM replan_runs WHERE id = $1 AND plan_id = $2`
	var run models.ReplanRun
	if err := r.db.GetContext(ctx, &run, query, id, planID); err != nil {
		return nil, err
	}
	return &run, nil
}
