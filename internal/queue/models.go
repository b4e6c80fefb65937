package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a translation job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var allStatuses = []Status{
	StatusQueued,
	StatusActive,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// GlossaryEntry is a user-supplied term/translation pair. User entries are
// sacrosanct: the pipeline must never let a model override them.
type GlossaryEntry struct {
	Term        string `json:"term"`
	Translation string `json:"translation"`
}

// Payload is the submitted work for one job.
type Payload struct {
	SubtitleContent string
	Tone            string
	ThinkingMode    bool
	Glossary        []GlossaryEntry
}

// Job is one queue entry persisted in SQLite. A job is exclusively owned by
// the worker processing it; once completed or failed it never changes again.
type Job struct {
	ID            string
	Payload       Payload
	Status        Status
	Attempts      int
	LastError     string
	ProgressStage string
	Result        string
	NextAttemptAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsTerminal reports whether the job has reached a final state.
func (j *Job) IsTerminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// HealthSummary describes aggregated queue counts per lifecycle state.
type HealthSummary struct {
	Total     int
	Queued    int
	Active    int
	Completed int
	Failed    int
}
