package replan

const (
	// DefaultMaxPerSubjectPerDay caps same-subject sessions on one date.
	DefaultMaxPerSubjectPerDay = 2
	// DefaultPreferredWindowDays is the preferred window length used when a
	// subject has no future session to anchor on.
	DefaultPreferredWindowDays = 7
	// DefaultSessionMinutes replaces a missing or non-positive session duration.
	DefaultSessionMinutes = 50
)

// Policy holds the tunable constants of a rescheduling run.
type Policy struct {
	MaxPerSubjectPerDay   int
	PreferredWindowDays   int
	DefaultSessionMinutes int
}

// DefaultPolicy returns the policy the engine uses when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{
		MaxPerSubjectPerDay:   DefaultMaxPerSubjectPerDay,
		PreferredWindowDays:   DefaultPreferredWindowDays,
		DefaultSessionMinutes: DefaultSessionMinutes,
	}
}

func (p Policy) normalized() Policy {
	if p.MaxPerSubjectPerDay <= 0 {
		p.MaxPerSubjectPerDay = DefaultMaxPerSubjectPerDay
	}
	if p.PreferredWindowDays <= 0 {
		p.PreferredWindowDays = DefaultPreferredWindowDays
	}
	if p.DefaultSessionMinutes <= 0 {
		p.DefaultSessionMinutes = DefaultSessionMinutes
	}
	return p
}
