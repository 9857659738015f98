package replan

import (
	"strings"
	"time"
)

// SessionType tags the role a session plays in a topic's repetition sequence.
// The order first pass → review → deepening must never be inverted.
type SessionType string

const (
	SessionFirstPass SessionType = "first_pass"
	SessionReview    SessionType = "review"
	SessionDeepening SessionType = "deepening"
)

// SessionStatus is the completion state of a session.
type SessionStatus string

const (
	StatusPending   SessionStatus = "pending"
	StatusCompleted SessionStatus = "completed"
)

// Session is the engine's view of a study session. Only Date is ever moved.
type Session struct {
	ID               int64
	PlanID           int64
	TopicID          *int64
	SubjectName      string
	TopicDescription string
	Type             SessionType
	Status           SessionStatus
	Date             time.Time
	QuestionsSolved  int
	SecondsStudied   int
	PostponeCount    int
}

// Plan carries the configuration the engine needs from a study plan.
type Plan struct {
	ID                     int64
	UserID                 int64
	ExamDate               time.Time
	SessionDurationMinutes int
	WeeklyHours            WeeklyHours
}

// Date truncates t to its civil date, expressed as midnight UTC so that
// dates compare and hash consistently regardless of the source location.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the civil date of now in loc.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return Date(now.In(loc))
}

// Partition splits sessions into the overdue set (pending, before today) and
// the future set (pending, today or later). Completed sessions land in neither.
func Partition(sessions []Session, today time.Time) (overdue, future []Session) {
	today = Date(today)
	for _, s := range sessions {
		if s.Status != StatusPending {
			continue
		}
		if Date(s.Date).Before(today) {
			overdue = append(overdue, s)
		} else {
			future = append(future, s)
		}
	}
	return overdue, future
}

var sessionTypeLabels = map[string]SessionType{
	"first_pass":     SessionFirstPass,
	"novo tópico":    SessionFirstPass,
	"novo topico":    SessionFirstPass,
	"review":         SessionReview,
	"revisão":        SessionReview,
	"revisao":        SessionReview,
	"revisão 7d":     SessionReview,
	"revisão 14d":    SessionReview,
	"revisão 28d":    SessionReview,
	"deepening":      SessionDeepening,
	"aprofundamento": SessionDeepening,
}

// NormalizeSessionType maps stored labels, including the legacy Portuguese
// ones, onto a SessionType. Unknown labels are treated as first pass.
func NormalizeSessionType(raw string) SessionType {
	key := strings.ToLower(strings.TrimSpace(raw))
	if t, ok := sessionTypeLabels[key]; ok {
		return t
	}
	if strings.HasPrefix(key, "revis") {
		return SessionReview
	}
	return SessionFirstPass
}

// NormalizeStatus maps stored status labels onto a SessionStatus.
func NormalizeStatus(raw string) SessionStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "completed", "concluído", "concluido":
		return StatusCompleted
	default:
		return StatusPending
	}
}
