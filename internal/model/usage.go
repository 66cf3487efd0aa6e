package model

import "time"

// Run status values stored in the usage record.
const (
	RunStatusSuccess  = "success"
	RunStatusCanceled = "canceled"
	RunStatusError    = "error"
)

// UsageRecord describes one invocation: what was asked, what ran and where
// the output went. It is persisted to the history database after the run.
type UsageRecord struct {
	// ID is the run identifier (a UUID string).
	ID string `json:"id"`

	// StartedAt is the time the run started.
	StartedAt time.Time `json:"startedAt"`

	// FinishedAt is the time the run ended.
	FinishedAt time.Time `json:"finishedAt"`

	// Arguments is the raw command line of the invocation.
	Arguments []string `json:"arguments,omitempty"`

	// Sections lists the report sections that were requested.
	Sections []string `json:"sections,omitempty"`

	// Compress reports whether the archiving Sink was used.
	Compress bool `json:"compress"`

	// Output is the file the report was written to, if any.
	Output string `json:"output,omitempty"`

	// Digest is the hex sha3-256 digest of the archive, if any.
	Digest string `json:"digest,omitempty"`

	// Status is one of RunStatusSuccess, RunStatusCanceled or RunStatusError.
	Status string `json:"status"`

	// Canceled reports whether the run stopped early.
	Canceled bool `json:"canceled"`

	// ErrorMsg holds the error of a failed invocation.
	ErrorMsg string `json:"errorMsg,omitempty"`

	// Stages holds per-position counters, in pipeline order.
	Stages []StageStat `json:"stages,omitempty"`
}

// StageStat counts the lifecycle outcomes of one pipeline position.
type StageStat struct {
	Position  int    `json:"position"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Section   string `json:"section,omitempty"`
	Visits    int    `json:"visits"`
	PreFails  int    `json:"preFails"`
	ExecFails int    `json:"execFails"`
	Completed int    `json:"completed"`
	MoreData  int    `json:"moreData"`
}

// NewUsageRecord creates a UsageRecord stamped with the current time.
func NewUsageRecord(id string) *UsageRecord {
	return &UsageRecord{
		ID:        id,
		StartedAt: time.Now(),
		Status:    RunStatusSuccess,
		Stages:    make([]StageStat, 0),
	}
}

// StageFailures returns the number of failed PreExecute and Execute calls.
func (u *UsageRecord) StageFailures() int {
	total := 0
	for _, s := range u.Stages {
		total += s.PreFails + s.ExecFails
	}
	return total
}

// FailedSections returns the distinct sections that had at least one failure.
func (u *UsageRecord) FailedSections() []string {
	seen := make(map[string]bool)
	sections := make([]string, 0)
	for _, s := range u.Stages {
		if s.PreFails+s.ExecFails == 0 || s.Section == "" || seen[s.Section] {
			continue
		}
		seen[s.Section] = true
		sections = append(sections, s.Section)
	}
	return sections
}

// Duration returns how long the run took, or zero if it has not finished.
func (u *UsageRecord) Duration() time.Duration {
	if u.FinishedAt.IsZero() {
		return 0
	}
	return u.FinishedAt.Sub(u.StartedAt)
}

// Finish stamps the finish time and final status.
func (u *UsageRecord) Finish(canceled bool, err error) {
	u.FinishedAt = time.Now()
	u.Canceled = canceled
	switch {
	case err != nil:
		u.Status = RunStatusError
		u.ErrorMsg = err.Error()
	case canceled:
		u.Status = RunStatusCanceled
	default:
		u.Status = RunStatusSuccess
	}
}
