package dto

// ReplanRequest identifies the plan to replan and the user acting on it.
type ReplanRequest struct {
	PlanID int64 `json:"planId" validate:"required,gt=0"`
	UserID int64 `json:"userId" validate:"required,gt=0"`
}

// ReplanResponse is the client contract for an executed run.
type ReplanResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Details ReplanDetails `json:"details"`
}

// ReplanDetails carries the run totals and, when anything was considered,
// where each session went.
type ReplanDetails struct {
	Rescheduled  int                  `json:"rescheduled"`
	Failed       int                  `json:"failed"`
	Total        int                  `json:"total"`
	Strategy     string               `json:"strategy,omitempty"`
	Distribution []SessionPlacement   `json:"distribution,omitempty"`
	Failures     []SessionFailure     `json:"failures,omitempty"`
	Subjects     []SubjectReplanTally `json:"subjects,omitempty"`
}

// SessionPlacement reports the new date of one session.
type SessionPlacement struct {
	SessionID int64  `json:"sessionId"`
	Subject   string `json:"subject"`
	OldDate   string `json:"oldDate"`
	NewDate   string `json:"newDate"`
	Strategy  string `json:"strategy"`
}

// SessionFailure reports a session that kept its overdue date.
type SessionFailure struct {
	SessionID int64  `json:"sessionId"`
	Subject   string `json:"subject"`
	Reason    string `json:"reason"`
}

// SubjectReplanTally summarises a run per subject.
type SubjectReplanTally struct {
	Subject     string `json:"subject"`
	Rescheduled int    `json:"rescheduled"`
	Failed      int    `json:"failed"`
}

// ReplanExecution wraps the response with execution metadata.
type ReplanExecution struct {
	Response        ReplanResponse
	RunID           string
	ExamDate        string
	ExecutionTimeMs int64
	Algorithm       string
}

// PlanContext describes the plan a preview was computed against.
type PlanContext struct {
	ExamDate               string             `json:"examDate"`
	DaysUntilExam          int                `json:"daysUntilExam"`
	SessionDurationMinutes int                `json:"sessionDurationMinutes"`
	WeeklyHours            map[string]float64 `json:"weeklyHours"`
	DefaultWeeklyHours     bool               `json:"defaultWeeklyHours"`
}

// ReplanPreview is a dry run: what Execute would do right now.
type ReplanPreview struct {
	Message     string        `json:"message"`
	Details     ReplanDetails `json:"details"`
	PlanContext PlanContext   `json:"planContext"`
	Algorithm   string        `json:"algorithm"`
}

// OverdueSession is the summary shown in an overdue check.
type OverdueSession struct {
	ID               int64  `json:"id"`
	SubjectName      string `json:"subjectName"`
	TopicDescription string `json:"topicDescription"`
	SessionDate      string `json:"sessionDate"`
	SessionType      string `json:"sessionType"`
}

// OverdueCheck reports whether a plan needs replanning.
type OverdueCheck struct {
	Count           int              `json:"count"`
	NeedsReplanning bool             `json:"needsReplanning"`
	Sessions        []OverdueSession `json:"sessions"`
}

// ReplanRunListRequest pages through a plan's run history.
type ReplanRunListRequest struct {
	PlanID   int64 `validate:"required,gt=0"`
	UserID   int64 `validate:"required,gt=0"`
	Page     int   `validate:"omitempty,min=1,max=10000"`
	PageSize int   `validate:"omitempty,min=1,max=100"`
}

// ReplanRunExportRequest selects a stored run and an output format.
type ReplanRunExportRequest struct {
	PlanID int64  `validate:"required,gt=0"`
	UserID int64  `validate:"required,gt=0"`
	RunID  string `validate:"required,uuid"`
	Format string
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}
