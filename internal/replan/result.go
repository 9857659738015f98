package replan

import (
	"sort"
	"time"
)

// FailureReason explains why a session kept its overdue date.
type FailureReason string

const (
	ReasonNoCapacity FailureReason = "no_capacity"
	ReasonExamPassed FailureReason = "exam_passed"
	ReasonNotPending FailureReason = "not_pending"
)

// Outcome classifies a run for messaging and metrics.
type Outcome string

const (
	OutcomeNothingToDo Outcome = "nothing_to_do"
	OutcomeComplete    Outcome = "complete"
	OutcomePartial     Outcome = "partial"
	OutcomeNone        Outcome = "none"
)

// AlgorithmName identifies the placement algorithm in responses and history.
const AlgorithmName = "subject-aware-intelligent"

// Placement is an accepted move of one session.
type Placement struct {
	SessionID int64
	Subject   string
	OldDate   time.Time
	NewDate   time.Time
	Strategy  Strategy
}

// Failure is a session the run could not place.
type Failure struct {
	SessionID int64
	Subject   string
	Reason    FailureReason
}

// SubjectTally summarises a run for one subject.
type SubjectTally struct {
	Subject     string
	Rescheduled int
	Failed      int
}

// Result is the outcome of a rescheduling run. Rescheduled + Failed == Total.
type Result struct {
	Rescheduled  int
	Failed       int
	Total        int
	Distribution []Placement
	Failures     []Failure
	Subjects     []SubjectTally
}

// Outcome classifies the result.
func (r Result) Outcome() Outcome {
	switch {
	case r.Total == 0:
		return OutcomeNothingToDo
	case r.Rescheduled == r.Total:
		return OutcomeComplete
	case r.Rescheduled > 0:
		return OutcomePartial
	default:
		return OutcomeNone
	}
}

// Success mirrors the client contract: true when anything moved or there was
// nothing to move.
func (r Result) Success() bool {
	return r.Total == 0 || r.Rescheduled > 0
}

type aggregator struct {
	result   Result
	subjects map[string]*SubjectTally
}

func newAggregator(total int) *aggregator {
	return &aggregator{
		result: Result{
			Total:        total,
			Distribution: make([]Placement, 0, total),
		},
		subjects: make(map[string]*SubjectTally),
	}
}

func (a *aggregator) tally(subject string) *SubjectTally {
	t, ok := a.subjects[subject]
	if !ok {
		t = &SubjectTally{Subject: subject}
		a.subjects[subject] = t
	}
	return t
}

func (a *aggregator) placed(s Session, c Candidate) {
	a.result.Rescheduled++
	a.result.Distribution = append(a.result.Distribution, Placement{
		SessionID: s.ID,
		Subject:   s.SubjectName,
		OldDate:   Date(s.Date),
		NewDate:   c.Date,
		Strategy:  c.Strategy,
	})
	a.tally(s.SubjectName).Rescheduled++
}

func (a *aggregator) failed(s Session, reason FailureReason) {
	a.result.Failed++
	a.result.Failures = append(a.result.Failures, Failure{
		SessionID: s.ID,
		Subject:   s.SubjectName,
		Reason:    reason,
	})
	a.tally(s.SubjectName).Failed++
}

func (a *aggregator) build() Result {
	subjects := make([]SubjectTally, 0, len(a.subjects))
	for _, t := range a.subjects {
		subjects = append(subjects, *t)
	}
	sort.Slice(subjects, func(i, j int) bool { return subjects[i].Subject < subjects[j].Subject })
	a.result.Subjects = subjects
	return a.result
}
