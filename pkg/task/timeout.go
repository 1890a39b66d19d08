package task

import (
	"sync"
	"time"
)

// TimeoutObserver cancels its task with a TimeoutError when the task is
// still running past the configured duration. The timer arms on the start
// notification and fires at most once; re-arming is not supported, so build
// a new observer per task.
type TimeoutObserver struct {
	task     *Task
	duration time.Duration

	mu       sync.Mutex
	timer    *time.Timer
	deadline time.Time
	armed    bool
	fired    bool
	disarmed bool
}

func NewTimeoutObserver(t *Task, duration time.Duration) *TimeoutObserver {
	return &TimeoutObserver{task: t, duration: duration}
}

// TaskDidStart arms the one-shot timer. Later starts are ignored.
func (o *TimeoutObserver) TaskDidStart(*Task) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.armed || o.disarmed {
		return
	}
	o.armed = true
	o.deadline = time.Now().Add(o.duration)
	o.timer = time.AfterFunc(o.duration, o.fire)
}

func (o *TimeoutObserver) TaskDidProduce(*Task, *Task) {}

// TaskDidFinish disarms the timer so a task that finished in time can never
// be cancelled late.
func (o *TimeoutObserver) TaskDidFinish(*Task, []error) {
	o.Cancel()
}

func (o *TimeoutObserver) fire() {
	o.mu.Lock()
	if o.disarmed {
		o.mu.Unlock()
		return
	}
	o.fired = true
	o.mu.Unlock()

	if o.task.State() == StateFinished || o.task.Cancelled() {
		return
	}
	o.task.CancelWithError(&TimeoutError{Duration: o.duration})
}

// Remaining reports the time left before the timer fires: nil once it has
// fired or been disarmed, the full duration while the task has not started.
func (o *TimeoutObserver) Remaining() *time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fired || o.disarmed {
		return nil
	}
	if !o.armed {
		d := o.duration
		return &d
	}
	d := time.Until(o.deadline)
	if d < 0 {
		d = 0
	}
	return &d
}

// Cancel disarms the timer early if it has not fired yet.
func (o *TimeoutObserver) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fired || o.disarmed {
		return
	}
	o.disarmed = true
	if o.timer != nil {
		o.timer.Stop()
	}
}
