package replan

import (
	"math"
	"time"
)

// maxDailyHours bounds a misconfigured weekday so capacity stays finite.
const maxDailyHours = 24

// CapacityModel answers how many sessions fit on a calendar date. Dates
// outside [tomorrow, examDate] have no capacity.
type CapacityModel struct {
	hours          WeeklyHours
	sessionMinutes int
	first          time.Time
	last           time.Time
}

// NewCapacityModel builds the capacity window for plan as seen on today.
func NewCapacityModel(plan Plan, today time.Time, policy Policy) *CapacityModel {
	policy = policy.normalized()
	minutes := plan.SessionDurationMinutes
	if minutes <= 0 {
		minutes = policy.DefaultSessionMinutes
	}
	hours := plan.WeeklyHours
	if len(hours) == 0 {
		hours = DefaultWeeklyHours()
	}
	return &CapacityModel{
		hours:          hours,
		sessionMinutes: minutes,
		first:          Date(today).AddDate(0, 0, 1),
		last:           Date(plan.ExamDate),
	}
}

// First is tomorrow, the earliest schedulable date.
func (m *CapacityModel) First() time.Time { return m.first }

// Last is the exam date.
func (m *CapacityModel) Last() time.Time { return m.last }

// Schedulable reports whether at least one date lies in the window.
func (m *CapacityModel) Schedulable() bool {
	return !m.last.Before(m.first)
}

// Contains reports whether date lies in [tomorrow, examDate].
func (m *CapacityModel) Contains(date time.Time) bool {
	date = Date(date)
	return !date.Before(m.first) && !date.After(m.last)
}

// Capacity returns floor(hours / sessionHours) for date, or zero when the
// date is outside the window or the weekday has no positive budget.
func (m *CapacityModel) Capacity(date time.Time) int {
	if !m.Contains(date) {
		return 0
	}
	h := m.hours[Date(date).Weekday()]
	if h <= 0 || math.IsNaN(h) {
		return 0
	}
	if h > maxDailyHours {
		h = maxDailyHours
	}
	// epsilon absorbs float error in values like 2.5h / 30min
	return int(math.Floor(h*60/float64(m.sessionMinutes) + 1e-9))
}

// SessionMinutes is the effective session duration after defaulting.
func (m *CapacityModel) SessionMinutes() int { return m.sessionMinutes }
