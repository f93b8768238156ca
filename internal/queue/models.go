package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a pack within a pipeline run.
type Status string

const (
	StatusPending     Status = "pending"
	StatusDownloading Status = "downloading"
	StatusExtracting  Status = "extracting"
	StatusLocating    Status = "locating"
	StatusConverting  Status = "converting"
	StatusCataloged   Status = "cataloged"
	StatusFailed      Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusDownloading,
	StatusExtracting,
	StatusLocating,
	StatusConverting,
	StatusCataloged,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// statusRank orders the forward progression of the state machine. failed is
// reachable from any non-terminal state and is not ranked.
var statusRank = map[Status]int{
	StatusPending:     0,
	StatusDownloading: 1,
	StatusExtracting:  2,
	StatusLocating:    3,
	StatusConverting:  4,
	StatusCataloged:   5,
}

// Record is a pack's persisted pipeline state.
type Record struct {
	PackID         string
	Category       string
	RunID          string
	Status         Status
	StageMessage   string
	ErrorMessage   string
	ArchiveSize    int64
	LocatedCount   int
	ConvertedCount int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HealthSummary describes aggregated pack counts per key lifecycle states.
type HealthSummary struct {
	Total     int
	Pending   int
	InFlight  int
	Cataloged int
	Failed    int
}

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

// IsTerminal reports whether a status ends a pack's processing for the run.
func (s Status) IsTerminal() bool {
	return s == StatusCataloged || s == StatusFailed
}

// CanTransition reports whether moving from s to next is a legal state
// machine step: one forward step at a time, or failed from any non-terminal
// state.
func (s Status) CanTransition(next Status) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StatusFailed {
		return true
	}
	from, okFrom := statusRank[s]
	to, okTo := statusRank[next]
	if !okFrom || !okTo {
		return false
	}
	return to == from+1
}
