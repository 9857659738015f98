package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// ReplanRun is the persisted record of one executed rescheduling run.
type ReplanRun struct {
	ID           string         `db:"id" json:"id"`
	PlanID       int64          `db:"plan_id" json:"plan_id"`
	UserID       int64          `db:"user_id" json:"user_id"`
	Rescheduled  int            `db:"rescheduled" json:"rescheduled"`
	Failed       int            `db:"failed" json:"failed"`
	Total        int            `db:"total" json:"total"`
	Outcome      string         `db:"outcome" json:"outcome"`
	Strategy     string         `db:"strategy" json:"strategy"`
	Distribution types.JSONText `db:"distribution" json:"distribution"`
	ExecutedAt   time.Time      `db:"executed_at" json:"executed_at"`
	DurationMS   int64          `db:"duration_ms" json:"duration_ms"`
}

// RunPlacement is one entry of a run's stored distribution.
type RunPlacement struct {
	SessionID int64  `json:"session_id"`
	Subject   string `json:"subject"`
	OldDate   string `json:"old_date"`
	NewDate   string `json:"new_date"`
	Strategy  string `json:"strategy"`
}

// MaxRunPage bounds run history paging so offsets stay representable.
const MaxRunPage = 10000

// ReplanRunFilter narrows run history listings.
type ReplanRunFilter struct {
	PlanID   int64
	Page     int
	PageSize int
}
