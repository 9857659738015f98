package models

import "time"

// Stored session statuses.
const (
	SessionStatusPending   = "pending"
	SessionStatusCompleted = "completed"
)

// StudySession is a single scheduled unit of study within a plan.
type StudySession struct {
	ID                 int64     `db:"id" json:"id"`
	StudyPlanID        int64     `db:"study_plan_id" json:"study_plan_id"`
	TopicID            *int64    `db:"topic_id" json:"topic_id,omitempty"`
	SubjectName        string    `db:"subject_name" json:"subject_name"`
	TopicDescription   string    `db:"topic_description" json:"topic_description"`
	SessionDate        time.Time `db:"session_date" json:"session_date"`
	SessionType        string    `db:"session_type" json:"session_type"`
	Status             string    `db:"status" json:"status"`
	TimeStudiedSeconds int       `db:"time_studied_seconds" json:"time_studied_seconds"`
	QuestionsSolved    int       `db:"questions_solved" json:"questions_solved"`
	PostponeCount      int       `db:"postpone_count" json:"postpone_count"`
	Notes              *string   `db:"notes" json:"notes,omitempty"`
}

// SessionDateUpdate moves one session to a new date.
type SessionDateUpdate struct {
	SessionID int64
	NewDate   time.Time
}
