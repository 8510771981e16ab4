package queue

import (
	"strings"
	"time"
)

// ItemStatus represents the lifecycle of a content item.
type ItemStatus string

const (
	ItemDiscovered  ItemStatus = "discovered"
	ItemFetching    ItemStatus = "fetching"
	ItemClassifying ItemStatus = "classifying"
	ItemAccepted    ItemStatus = "accepted"
	ItemDuplicate   ItemStatus = "duplicate"
	ItemRejected    ItemStatus = "rejected"
	ItemDeadLetter  ItemStatus = "dead_letter"
)

// TaskStatus represents the lifecycle of a schedulable task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
	TaskDeadLetter TaskStatus = "dead_letter"
)

// TaskTypeIngest is the task type for a full pipeline pass over one item.
const TaskTypeIngest = "ingest"

var itemStatuses = []ItemStatus{
	ItemDiscovered,
	ItemFetching,
	ItemClassifying,
	ItemAccepted,
	ItemDuplicate,
	ItemRejected,
	ItemDeadLetter,
}

var taskStatuses = []TaskStatus{
	TaskPending,
	TaskProcessing,
	TaskCompleted,
	TaskFailed,
	TaskDeadLetter,
}

// Item is one unit of content to acquire, persisted in SQLite.
type Item struct {
	ID           string
	SourceURL    string
	Domain       string
	SourceKind   string
	Pathway      []string
	Status       ItemStatus
	AttemptCount int
	ContentHash  string
	QualityScore float64
	QualityTier  string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Task is a schedulable unit wrapping one pipeline pass over a content item.
type Task struct {
	ID            string
	Type          string
	ItemID        string
	WorkerClass   string
	Priority      int
	Status        TaskStatus
	RetryCount    int
	ErrorCategory string
	ErrorMessage  string
	NextRetryAt   *time.Time
	LastHeartbeat *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Attempt is one immutable fetch attempt log entry, ordered per item by start
// time.
type Attempt struct {
	ID           int64
	ItemID       string
	Method       string
	StartedAt    time.Time
	Duration     time.Duration
	Outcome      string
	ErrorSummary string
}

// Attempt outcomes.
const (
	AttemptSuccess = "success"
	AttemptFailure = "failure"
)

// BreakerStateValue enumerates circuit breaker states.
type BreakerStateValue string

const (
	BreakerClosed   BreakerStateValue = "closed"
	BreakerOpen     BreakerStateValue = "open"
	BreakerHalfOpen BreakerStateValue = "half_open"
)

// BreakerState is per-worker-class circuit breaker bookkeeping, created lazily
// on first failure.
type BreakerState struct {
	WorkerClass   string
	State         BreakerStateValue
	FailureCount  int
	LastFailureAt *time.Time
	NextRetryAt   *time.Time
	UpdatedAt     time.Time
}

// Status aggregates queue state for operator inspection.
type Status struct {
	TasksByStatus   map[TaskStatus]int
	ItemsByStatus   map[ItemStatus]int
	FailedCount     int
	RetryReadyCount int
	Breakers        []BreakerState
}

// ParseItemStatus converts a string into a known ItemStatus.
func ParseItemStatus(value string) (ItemStatus, bool) {
	normalized := ItemStatus(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range itemStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// ParseTaskStatus converts a string into a known TaskStatus.
func ParseTaskStatus(value string) (TaskStatus, bool) {
	normalized := TaskStatus(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range taskStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// ItemStatuses returns the ordered list of known item statuses.
func ItemStatuses() []ItemStatus {
	cp := make([]ItemStatus, len(itemStatuses))
	copy(cp, itemStatuses)
	return cp
}

// TaskStatuses returns the ordered list of known task statuses.
func TaskStatuses() []TaskStatus {
	cp := make([]TaskStatus, len(taskStatuses))
	copy(cp, taskStatuses)
	return cp
}

// IsTerminal reports whether an item status is a final outcome.
func (s ItemStatus) IsTerminal() bool {
	switch s {
	case ItemAccepted, ItemDuplicate, ItemRejected, ItemDeadLetter:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether a task status is a final outcome.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskDeadLetter
}
