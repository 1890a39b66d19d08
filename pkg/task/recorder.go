package task

import (
	"time"

	"github.com/doubleencore/MPA-Horatio/pkg/storage"
)

// EventRecorder mirrors a task's lifecycle into a storage.Store as an
// append-only audit trail. Rows are never read back to rebuild task state.
// Writes happen inline on the notifying goroutine, so keep the store fast
// or front it with your own buffering.
type EventRecorder struct {
	store  storage.Store
	logger Logger
}

func NewEventRecorder(store storage.Store, logger Logger) *EventRecorder {
	if logger == nil {
		logger = nopLogger{}
	}
	return &EventRecorder{store: store, logger: logger}
}

func (r *EventRecorder) TaskDidStart(t *Task) {
	r.record(storage.TaskEvent{
		TaskName:   t.Name(),
		Event:      storage.EventStarted,
		RecordedAt: time.Now(),
	})
}

func (r *EventRecorder) TaskDidProduce(t *Task, produced *Task) {
	r.record(storage.TaskEvent{
		TaskName:   t.Name(),
		Event:      storage.EventProduced,
		Detail:     produced.Name(),
		RecordedAt: time.Now(),
	})
}

func (r *EventRecorder) TaskDidFinish(t *Task, errs []error) {
	r.record(storage.TaskEvent{
		TaskName:   t.Name(),
		Event:      storage.EventFinished,
		Failed:     len(errs) > 0,
		Detail:     joinErrors(errs),
		RecordedAt: time.Now(),
	})
}

func (r *EventRecorder) record(e storage.TaskEvent) {
	txStore, err := r.store.Begin()
	if err != nil {
		r.logger.Errorf("Failed to begin transaction for task event %q/%s: %v", e.TaskName, e.Event, err)
		return
	}
	if err := txStore.SaveTaskEvent(e); err != nil {
		r.logger.Errorf("Failed to save task event %q/%s: %v", e.TaskName, e.Event, err)
		if rollbackErr := txStore.Rollback(); rollbackErr != nil {
			r.logger.Errorf("Failed to rollback: %v", rollbackErr)
		}
		return
	}
	if err := txStore.Commit(); err != nil {
		r.logger.Errorf("Failed to commit task event %q/%s: %v", e.TaskName, e.Event, err)
	}
}
