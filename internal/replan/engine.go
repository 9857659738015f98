// Package replan moves overdue study sessions onto future dates. It is a
// greedy single pass: each session takes the first date that satisfies the
// daily capacity and per-subject quota, and earlier placements are never
// revisited. The package performs no I/O and never reads the clock.
package replan

import "time"

type runState int

const (
	stateNotStarted runState = iota
	stateCollecting
	statePlacing
	stateDone
)

// Engine computes rescheduling runs under a fixed policy. An Engine holds no
// per-run state and may be shared between goroutines.
type Engine struct {
	policy Policy
}

// NewEngine constructs an engine; zero policy fields fall back to defaults.
func NewEngine(policy Policy) *Engine {
	return &Engine{policy: policy.normalized()}
}

// Policy returns the effective policy.
func (e *Engine) Policy() Policy { return e.policy }

// Reschedule computes new dates for overdue sessions of plan. future is the
// plan's pending sessions dated today or later; it is read, never modified.
func (e *Engine) Reschedule(plan Plan, overdue, future []Session, today time.Time) Result {
	r := &run{policy: e.policy}
	r.collect(plan, overdue, future, today)
	r.place()
	return r.finish()
}

type run struct {
	policy    Policy
	state     runState
	capacity  *CapacityModel
	occupancy *Occupancy
	groups    []SubjectGroup
	anchors   map[string]time.Time
	agg       *aggregator
}

func (r *run) collect(plan Plan, overdue, future []Session, today time.Time) {
	r.state = stateCollecting
	r.capacity = NewCapacityModel(plan, today, r.policy)
	r.agg = newAggregator(len(overdue))
	r.groups = GroupBySubject(overdue)
	if !r.capacity.Schedulable() {
		return
	}
	r.occupancy = NewOccupancy(r.capacity, r.policy.MaxPerSubjectPerDay, future)
	r.anchors = EarliestFuture(future)
}

func (r *run) place() {
	r.state = statePlacing
	for _, group := range r.groups {
		for _, s := range group.Sessions {
			r.placeOne(s)
		}
	}
}

func (r *run) placeOne(s Session) {
	if s.Status != StatusPending {
		r.agg.failed(s, ReasonNotPending)
		return
	}
	if !r.capacity.Schedulable() {
		r.agg.failed(s, ReasonExamPassed)
		return
	}

	var anchor *time.Time
	if d, ok := r.anchors[s.SubjectName]; ok {
		anchor = &d
	}
	it := NewCandidateIterator(r.capacity, anchor, r.policy.PreferredWindowDays)
	for {
		c, ok := it.Next()
		if !ok {
			r.agg.failed(s, ReasonNoCapacity)
			return
		}
		if r.occupancy.CanPlace(c.Date, s.SubjectName) {
			r.occupancy.Commit(c.Date, s.SubjectName)
			r.agg.placed(s, c)
			return
		}
	}
}

func (r *run) finish() Result {
	r.state = stateDone
	return r.agg.build()
}
