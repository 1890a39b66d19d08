package storage

import (
	"time"

	"github.com/pkg/errors"
)

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("not found")

// Lifecycle event kinds recorded per task.
const (
	EventStarted  = "started"
	EventProduced = "produced"
	EventFinished = "finished"
)

// TaskEvent is one audit row: a single lifecycle notification of a single
// task. The trail is append-only; nothing reads it back to resume tasks.
type TaskEvent struct {
	ID         int64     `json:"id" db:"id"`
	TaskName   string    `json:"task_name" db:"task_name"`
	Event      string    `json:"event" db:"event"`
	Failed     bool      `json:"failed" db:"failed"`
	Detail     string    `json:"detail,omitempty" db:"detail"`
	RecordedAt time.Time `json:"recorded_at" db:"recorded_at"`
}

// Store defines the persistence operations for the task event audit trail.
type Store interface {
	Begin() (Store, error)
	Commit() error
	Rollback() error
	Close() error

	SaveTaskEvent(e TaskEvent) error
	ListTaskEvents(taskName string) ([]TaskEvent, error)
	ListRecentTaskEvents(limit int) ([]TaskEvent, error)
}
