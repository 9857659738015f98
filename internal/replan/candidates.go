package replan

import "time"

// Strategy records which phase of the search produced a placement.
type Strategy string

const (
	StrategyPreferred Strategy = "preferred"
	StrategyFallback  Strategy = "fallback"
)

// Candidate is one date offered to the committer.
type Candidate struct {
	Date     time.Time
	Strategy Strategy
}

// CandidateIterator lazily yields candidate dates for a single session: the
// preferred window first, then the fallback sweep through the exam date.
//
// The preferred window always starts tomorrow, so it is a prefix of the
// sweep. Walking [tomorrow, examDate] once and labelling the prefix yields
// exactly the preferred dates followed by the remaining dates, without ever
// offering a date twice.
type CandidateIterator struct {
	first        time.Time
	preferredEnd time.Time // exclusive
	last         time.Time
	cursor       time.Time
}

// NewCandidateIterator builds an iterator over capacity's window. anchor is
// the subject's earliest future date; nil means the subject has none and the
// preferred window spans windowDays days from tomorrow.
func NewCandidateIterator(capacity *CapacityModel, anchor *time.Time, windowDays int) *CandidateIterator {
	if windowDays <= 0 {
		windowDays = DefaultPreferredWindowDays
	}
	first, last := capacity.First(), capacity.Last()

	end := first.AddDate(0, 0, windowDays)
	if anchor != nil {
		end = Date(*anchor)
	}
	if end.Before(first) {
		end = first
	}
	if limit := last.AddDate(0, 0, 1); end.After(limit) {
		end = limit
	}

	it := &CandidateIterator{first: first, preferredEnd: end, last: last}
	it.Reset()
	return it
}

// Reset rewinds the iterator to tomorrow.
func (it *CandidateIterator) Reset() {
	it.cursor = it.first
}

// Next returns the next candidate, or false once the exam date has passed.
func (it *CandidateIterator) Next() (Candidate, bool) {
	if it.cursor.After(it.last) {
		return Candidate{}, false
	}
	c := Candidate{Date: it.cursor, Strategy: StrategyFallback}
	if it.cursor.Before(it.preferredEnd) {
		c.Strategy = StrategyPreferred
	}
	it.cursor = it.cursor.AddDate(0, 0, 1)
	return c, true
}

// PreferredDays is the number of dates the iterator labels preferred.
func (it *CandidateIterator) PreferredDays() int {
	if !it.preferredEnd.After(it.first) {
		return 0
	}
	return int(dayNumber(it.preferredEnd) - dayNumber(it.first))
}
