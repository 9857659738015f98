package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// StudyPlan is a user's preparation plan for one exam.
type StudyPlan struct {
	ID                     int64          `db:"id" json:"id"`
	UserID                 int64          `db:"user_id" json:"user_id"`
	Name                   string         `db:"name" json:"name"`
	ExamDate               time.Time      `db:"exam_date" json:"exam_date"`
	SessionDurationMinutes int            `db:"session_duration_minutes" json:"session_duration_minutes"`
	WeeklyHours            types.JSONText `db:"weekly_hours" json:"weekly_hours"`
	PostponementCount      int            `db:"postponement_count" json:"postponement_count"`
	CreatedAt              time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time      `db:"updated_at" json:"updated_at"`
}
