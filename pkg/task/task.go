package task

import (
	"fmt"
	"sync"
)

// Execution is a task body. Execute runs on one of the queue's workers and
// must eventually call Finish on the task, directly or through work it kicks
// off; a body that never finishes stalls every task depending on it.
// Cancellation is cooperative: bodies observe it through t.Cancelled().
type Execution interface {
	Execute(t *Task)
}

// ExecFunc adapts a plain function to the Execution interface.
type ExecFunc func(t *Task)

func (f ExecFunc) Execute(t *Task) { f(t) }

// Finisher is implemented by bodies that want the combined error sequence
// once, right before observers are told the task finished.
type Finisher interface {
	Finished(errs []error)
}

// Task is a single schedulable unit of work with its own lifecycle state,
// readiness conditions, observers and dependencies. Conditions, observers,
// dependencies and the logger are configuration: adding them after the task
// has left its configuration states is a programmer error and panics.
//
// There is deliberately no way to block on a task's completion. Callers
// coordinate through dependencies, observers, or whatever completion signal
// the body itself provides; a synchronous wait on a queue the caller
// occupies is a deadlock waiting to happen.
type Task struct {
	name string
	exec Execution

	mu           sync.Mutex
	state        State
	conditions   []Condition
	observers    []Observer
	dependencies []*Task
	errs         []error
	cancelled    bool
	failed       bool
	evaluated    bool
	finishing    bool
	logger       Logger
	notify       func()
}

// New creates a task in the initialized state. A nil exec is allowed and
// behaves as a body that finishes immediately.
func New(name string, exec Execution) *Task {
	return &Task{
		name:   name,
		exec:   exec,
		logger: nopLogger{},
	}
}

// NewBlock wraps a synchronous closure; the returned task finishes itself
// with whatever the closure returns.
func NewBlock(name string, fn func() error) *Task {
	return New(name, ExecFunc(func(t *Task) {
		if err := fn(); err != nil {
			t.Finish(&ExecutionError{Reason: err})
			return
		}
		t.Finish()
	}))
}

// Name returns the task's label. Names are for logging and correlation and
// are not required to be unique.
func (t *Task) Name() string {
	return t.name
}

func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// AddCondition attaches a readiness condition. Configuration-time only.
func (t *Task) AddCondition(c Condition) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.assertConfigurableLocked("AddCondition")
	t.conditions = append(t.conditions, c)
}

// AddObserver registers a lifecycle observer. Configuration-time only.
func (t *Task) AddObserver(o Observer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.assertConfigurableLocked("AddObserver")
	t.observers = append(t.observers, o)
}

// AddDependency declares that dep must finish before this task becomes
// ready. Edges are acyclic by contract; cycles are not detected here.
// Configuration-time only.
func (t *Task) AddDependency(dep *Task) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.assertConfigurableLocked("AddDependency")
	t.dependencies = append(t.dependencies, dep)
}

// SetLogger replaces the task's logger. Configuration-time only.
func (t *Task) SetLogger(l Logger) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.assertConfigurableLocked("SetLogger")
	if l == nil {
		l = nopLogger{}
	}
	t.logger = l
}

func (t *Task) assertConfigurableLocked(op string) {
	if t.state > StatePending {
		panic(fmt.Sprintf("task %q: %s called in state %s; configuration is only allowed before execution setup completes", t.name, op, t.state))
	}
}

// Conditions returns a copy of the attached conditions.
func (t *Task) Conditions() []Condition {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Condition(nil), t.conditions...)
}

// Dependencies returns a copy of the declared dependencies.
func (t *Task) Dependencies() []*Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*Task(nil), t.dependencies...)
}

// Errors returns a copy of the accumulated error sequence.
func (t *Task) Errors() []error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]error(nil), t.errs...)
}

func (t *Task) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// Failed reports whether the combined error sequence was non-empty at
// finish time. Meaningful once the task is finished.
func (t *Task) Failed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failed
}

// Cancel marks the task cancelled. It never interrupts a running body; it
// sets the flag, makes a still-pending task immediately runnable so it can
// finish, and leaves an in-flight body to notice on its own.
func (t *Task) Cancel() {
	t.CancelWithError(nil)
}

// CancelWithError cancels and attaches err to the error sequence. Once the
// first Finish has claimed the task this is a no-op: the combined errors
// are already frozen.
func (t *Task) CancelWithError(err error) {
	t.mu.Lock()
	if t.finishing || t.state == StateFinished {
		t.mu.Unlock()
		return
	}
	t.cancelled = true
	if err != nil {
		t.errs = append(t.errs, err)
	}
	notify := t.notify
	t.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// WillEnqueue moves the task into pending. A queue calls this exactly once,
// before inserting the task.
func (t *Task) WillEnqueue() {
	t.willEnqueue()
}

func (t *Task) willEnqueue() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.transitionLocked(StatePending)
}

// Ready reports whether a queue may act on the task: cancellation always
// makes a task runnable so it can finish, otherwise every dependency must
// have finished and condition evaluation must have completed. Readiness
// does not mean success; recorded condition failures ride along.
func (t *Task) Ready() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled {
		return true
	}
	if !t.dependenciesFinishedLocked() {
		return false
	}
	return t.evaluated
}

func (t *Task) dependenciesFinished() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dependenciesFinishedLocked()
}

// Dependency edges are acyclic by contract, so taking dependency locks
// while holding our own cannot cycle.
func (t *Task) dependenciesFinishedLocked() bool {
	for _, dep := range t.dependencies {
		if dep.State() != StateFinished {
			return false
		}
	}
	return true
}

func (t *Task) hasErrors() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.errs) > 0
}

// setNotify installs the queue's wakeup hook. Called once at submission.
func (t *Task) setNotify(fn func()) {
	t.mu.Lock()
	t.notify = fn
	t.mu.Unlock()
}

// transitionLocked applies a state change, refusing and logging anything
// outside the transition table. State never moves backward.
func (t *Task) transitionLocked(to State) bool {
	if !canTransition(t.state, to) {
		t.logger.Errorf("task %q: refusing state transition %s -> %s", t.name, t.state, to)
		return false
	}
	t.state = to
	return true
}

// beginEvaluation moves pending -> evaluatingConditions.
func (t *Task) beginEvaluation() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.transitionLocked(StateEvaluatingConditions)
}

// finishEvaluation records condition failures and promotes the task to
// ready. Failures do not block readiness; the queue skips execution for a
// task carrying errors so they surface through Finish instead.
func (t *Task) finishEvaluation(failures []error) {
	t.mu.Lock()
	t.errs = append(t.errs, failures...)
	t.evaluated = true
	t.transitionLocked(StateReady)
	notify := t.notify
	t.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// run is the single entry a queue worker uses once the task leaves the
// dispatch queue. A clean task enters executing and gets its body invoked;
// a cancelled task or one carrying errors skips straight to finishing.
func (t *Task) run() {
	t.mu.Lock()
	runnable := t.state == StateReady && len(t.errs) == 0 && !t.cancelled
	if !runnable {
		t.mu.Unlock()
		t.Finish()
		return
	}
	t.transitionLocked(StateExecuting)
	observers := append([]Observer(nil), t.observers...)
	t.mu.Unlock()

	for _, o := range observers {
		o.TaskDidStart(t)
	}
	if t.exec == nil {
		t.Finish()
		return
	}
	t.exec.Execute(t)
}

// ProduceTask hands a newly spawned task to the observers; a hosting queue
// picks it up and submits it alongside this one.
func (t *Task) ProduceTask(produced *Task) {
	t.mu.Lock()
	observers := append([]Observer(nil), t.observers...)
	t.mu.Unlock()

	for _, o := range observers {
		o.TaskDidProduce(t, produced)
	}
}

// Finish completes the task with errs appended to everything accumulated so
// far. Only the first call takes effect. The combined sequence drives
// Failed, reaches the body's Finished hook if it implements Finisher, and
// is then delivered to every observer in registration order.
func (t *Task) Finish(errs ...error) {
	t.mu.Lock()
	if t.finishing || t.state == StateFinished {
		t.mu.Unlock()
		return
	}
	if !canTransition(t.state, StateFinishing) {
		t.logger.Errorf("task %q: finish called in state %s; ignoring", t.name, t.state)
		t.mu.Unlock()
		return
	}
	t.finishing = true
	t.transitionLocked(StateFinishing)
	for _, err := range errs {
		if err != nil {
			t.errs = append(t.errs, err)
		}
	}
	combined := append([]error(nil), t.errs...)
	t.failed = len(combined) > 0
	observers := append([]Observer(nil), t.observers...)
	t.mu.Unlock()

	if f, ok := t.exec.(Finisher); ok {
		f.Finished(combined)
	}
	for _, o := range observers {
		o.TaskDidFinish(t, combined)
	}

	t.mu.Lock()
	t.transitionLocked(StateFinished)
	notify := t.notify
	t.mu.Unlock()

	if notify != nil {
		notify()
	}
}
