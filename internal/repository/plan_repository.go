package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/study-replan-api/internal/models"
)

const planColumns = `id, user_id, name, exam_date, session_duration_minutes, weekly_hours, postponement_count, created_at, updated_at`

// PlanRepository reads study plans and maintains their counters.
type PlanRepository struct {
	db *sqlx.DB
}

// NewPlanRepository constructs repository.
func NewPlanRepository(db *sqlx.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

func (r *PlanRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByIDAndUser loads a plan owned by userID.
func (r *PlanRepository) FindByIDAndUser(ctx context.Context, id, userID int64) (*models.StudyPlan, error) {
	const query = `SELECT ` + planColumns + ` FROM study_plans WHERE id = $1 AND user_id = $2`
	var plan models.StudyPlan
	if err := r.db.GetContext(ctx, &plan, query, id, userID); err != nil {
		return nil, err
	}
	return &plan, nil
}

// FindByIDAndUserForUpdate loads a plan owned by userID and row-locks it for
// the rest of the surrounding transaction.
func (r *PlanRepository) FindByIDAndUserForUpdate(ctx context.Context, exec sqlx.ExtContext, id, userID int64) (*models.StudyPlan, error) {
	const query = `SELECT ` + planColumns + ` FROM study_plans WHERE id = $1 AND user_id = $2 FOR UPDATE`
	var plan models.StudyPlan
	if err := sqlx.GetContext(ctx, r.exec(exec), &plan, query, id, userID); err != nil {
		return nil, err
	}
	return &plan, nil
}

// IncrementPostponement adds one to the plan's postponement counter.
func (r *PlanRepository) IncrementPostponement(ctx context.Context, exec sqlx.ExtContext, id int64) error {
	const query = `UPDATE study_plans SET postponement_count = postponement_count + 1, updated_at = NOW() WHERE id = $1`
	result, err := r.exec(exec).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("increment plan postponement: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("plan postponement rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
