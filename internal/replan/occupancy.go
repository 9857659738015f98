package replan

import "time"

type subjectDay struct {
	day     int64
	subject string
}

// Occupancy tracks how many sessions sit on each date, overall and per
// subject, during a single run.
type Occupancy struct {
	capacity      *CapacityModel
	maxPerSubject int
	perDate       map[int64]int
	perSubjectDay map[subjectDay]int
}

// NewOccupancy seeds the tracker from the future set. Sessions outside the
// capacity window cannot affect any placement and are skipped.
func NewOccupancy(capacity *CapacityModel, maxPerSubject int, future []Session) *Occupancy {
	if maxPerSubject <= 0 {
		maxPerSubject = DefaultMaxPerSubjectPerDay
	}
	o := &Occupancy{
		capacity:      capacity,
		maxPerSubject: maxPerSubject,
		perDate:       make(map[int64]int),
		perSubjectDay: make(map[subjectDay]int),
	}
	for _, s := range future {
		if !capacity.Contains(s.Date) {
			continue
		}
		o.Commit(s.Date, s.SubjectName)
	}
	return o
}

// CanPlace reports whether one more session of subject fits on date.
func (o *Occupancy) CanPlace(date time.Time, subject string) bool {
	day := dayNumber(date)
	if o.perDate[day] >= o.capacity.Capacity(date) {
		return false
	}
	return o.perSubjectDay[subjectDay{day: day, subject: subject}] < o.maxPerSubject
}

// Commit records a session of subject on date.
func (o *Occupancy) Commit(date time.Time, subject string) {
	day := dayNumber(date)
	o.perDate[day]++
	o.perSubjectDay[subjectDay{day: day, subject: subject}]++
}

// Used returns the number of sessions recorded on date.
func (o *Occupancy) Used(date time.Time) int {
	return o.perDate[dayNumber(date)]
}

// UsedBySubject returns the number of subject sessions recorded on date.
func (o *Occupancy) UsedBySubject(date time.Time, subject string) int {
	return o.perSubjectDay[subjectDay{day: dayNumber(date), subject: subject}]
}

func dayNumber(t time.Time) int64 {
	return Date(t).Unix() / 86400
}
