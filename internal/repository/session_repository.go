package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/study-replan-api/internal/models"
)

const sessionColumns = `id, study_plan_id, topic_id, subject_name, topic_description, session_date, session_type, status, time_studied_seconds, questions_solved, postpone_count, notes`

// SessionRepository reads a plan's study sessions and moves their dates.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ListOverdue returns pending sessions dated before today, oldest first.
func (r *SessionRepository) ListOverdue(ctx context.Context, exec sqlx.ExtContext, planID int64, today time.Time) ([]models.StudySession, error) {
	const query = `SELECT ` + sessionColumns + ` FROM study_sessions WHERE study_plan_id = $1 AND status = 'pending' AND session_date < $2 ORDER BY session_date, id`
	var sessions []models.StudySession
	if err := sqlx.SelectContext(ctx, r.exec(exec), &sessions, query, planID, today.Format("2006-01-02")); err != nil {
		return nil, fmt.Errorf("list overdue sessions: %w", err)
	}
	return sessions, nil
}

// ListFuture returns pending sessions dated today or later, earliest first.
func (r *SessionRepository) ListFuture(ctx context.Context, exec sqlx.ExtContext, planID int64, today time.Time) ([]models.StudySession, error) {
	const query = `SELECT ` + sessionColumns + ` FROM study_sessions WHERE study_plan_id = $1 AND status = 'pending' AND session_date >= $2 ORDER BY session_date, id`
	var sessions []models.StudySession
	if err := sqlx.SelectContext(ctx, r.exec(exec), &sessions, query, planID, today.Format("2006-01-02")); err != nil {
		return nil, fmt.Errorf("list future sessions: %w", err)
	}
	return sessions, nil
}

// UpdateDates moves each session to its new date. Only pending sessions of
// planID are touched and only session_date and updated_at change. An update
// that matches no row fails the whole call so the caller can roll back.
func (r *SessionRepository) UpdateDates(ctx context.Context, exec sqlx.ExtContext, planID int64, updates []models.SessionDateUpdate) error {
	const query = `UPDATE study_sessions SET session_date = $1, updated_at = NOW() WHERE id = $2 AND study_plan_id = $3 AND status = 'pending'`
	target := r.exec(exec)
	for _, u := range updates {
		result, err := target.ExecContext(ctx, query, u.NewDate.Format("2006-01-02"), u.SessionID, planID)
		if err != nil {
			return fmt.Errorf("update session %d date: %w", u.SessionID, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("session %d rows affected: %w", u.SessionID, err)
		}
		if affected == 0 {
			return fmt.Errorf("session %d not pending in plan %d: %w", u.SessionID, planID, sql.ErrNoRows)
		}
	}
	return nil
}
