package model

// Status is the lifecycle state of a pipeline execution or a single step.
// Transitions are monotonic: pending -> running -> terminal. The only
// exception is cancellation, which force-moves a running record to
// StatusCancelled.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is final. A record in a terminal
// state never transitions again.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusSkipped, StatusCancelled:
		return true
	}
	return false
}
