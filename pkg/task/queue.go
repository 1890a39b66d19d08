package task

import (
	"runtime"
	"sync"
)

const maxRetainedFinished = 128

// Stats is a point-in-time snapshot of queue occupancy.
type Stats struct {
	Pending          int      `json:"pending"`
	Executing        int      `json:"executing"`
	Finished         int      `json:"finished"`
	RecentlyFinished []string `json:"recently_finished,omitempty"`
}

// Queue runs submitted tasks on a fixed pool of workers once their
// dependencies have finished and their readiness conditions have been
// evaluated. Gating is event-driven: every task completion, cancellation
// and evaluation result wakes a single dispatcher goroutine that re-checks
// the pending set, so there is no busy re-queueing.
//
// The queue is the only place cross-task mutual exclusion is enforced, and
// it picks up tasks produced mid-execution and submits them to itself.
type Queue struct {
	logger Logger

	mu        sync.Mutex
	pending   []*Task
	executing map[*Task]struct{}
	acquired  map[*Task][]string
	finished  int
	recent    []string
	closed    bool

	exclusivity *exclusivityController
	taskCh      chan *Task
	wakeCh      chan struct{}
	done        chan struct{}
	wg          sync.WaitGroup
}

// NewQueue starts a queue with the given number of workers; workers <= 0
// means one per CPU.
func NewQueue(workers int, logger Logger) *Queue {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = nopLogger{}
	}
	q := &Queue{
		logger:      logger,
		executing:   make(map[*Task]struct{}),
		acquired:    make(map[*Task][]string),
		exclusivity: newExclusivityController(),
		taskCh:      make(chan *Task, workers),
		wakeCh:      make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
	q.wg.Add(1)
	go q.dispatch()
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

// Submit accepts a task: it moves the task to pending, wires the queue's
// bookkeeping observer, pulls in condition-injected dependency tasks, and
// starts dependency and condition gating. Declared dependencies still in
// their initialized state are submitted too. Tasks already submitted
// elsewhere are refused with a log line.
func (q *Queue) Submit(t *Task) {
	if t == nil {
		return
	}
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		q.logger.Errorf("queue closed; dropping task %q", t.Name())
		return
	}

	if !t.willEnqueue() {
		q.logger.Errorf("task %q already submitted (state %s); ignoring", t.Name(), t.State())
		return
	}

	for _, c := range t.Conditions() {
		if dep := c.DependencyTask(t); dep != nil {
			t.AddDependency(dep)
		}
	}
	t.AddObserver(&queueObserver{queue: q})
	t.setNotify(q.wake)

	for _, dep := range t.Dependencies() {
		if dep.State() == StateInitialized {
			q.Submit(dep)
		}
	}

	q.mu.Lock()
	q.pending = append(q.pending, t)
	q.mu.Unlock()

	q.logger.Infof("queued task %q", t.Name())
	q.wake()
}

// SubmitAll submits the tasks in order.
func (q *Queue) SubmitAll(ts []*Task) {
	for _, t := range ts {
		q.Submit(t)
	}
}

// Stats returns a snapshot of the queue's occupancy counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Pending:          len(q.pending),
		Executing:        len(q.executing),
		Finished:         q.finished,
		RecentlyFinished: append([]string(nil), q.recent...),
	}
}

// Close stops dispatching and waits for the workers to drain. Pending tasks
// are left un-run; in-flight bodies keep going until they finish on their
// own.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	close(q.done)
	q.wg.Wait()
}

func (q *Queue) wake() {
	select {
	case q.wakeCh <- struct{}{}:
	default:
	}
}

func (q *Queue) dispatch() {
	defer q.wg.Done()
	defer close(q.taskCh)
	for {
		select {
		case <-q.done:
			return
		case <-q.wakeCh:
			q.scan()
		}
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for t := range q.taskCh {
		t.run()
	}
}

// scan walks the pending set once and moves every task as far forward as
// its state allows: cancelled pending tasks short-circuit to finishing,
// tasks with finished dependencies start condition evaluation, and ready
// tasks go to a worker once their exclusivity categories are free.
func (q *Queue) scan() {
	q.mu.Lock()
	var toFinish []*Task
	var toRun []*Task
	remaining := q.pending[:0]
	for _, t := range q.pending {
		switch t.State() {
		case StatePending:
			if t.Cancelled() {
				toFinish = append(toFinish, t)
				continue
			}
			if t.dependenciesFinished() && t.beginEvaluation() {
				go q.evaluate(t)
			}
			remaining = append(remaining, t)
		case StateEvaluatingConditions:
			remaining = append(remaining, t)
		case StateReady:
			if runnable := !t.Cancelled() && !t.hasErrors(); runnable {
				cats := exclusiveCategories(t)
				if !q.exclusivity.tryAcquire(cats) {
					remaining = append(remaining, t)
					continue
				}
				if len(cats) > 0 {
					q.acquired[t] = cats
				}
			}
			q.executing[t] = struct{}{}
			toRun = append(toRun, t)
		default:
			// Finished out of band; the bookkeeping observer already ran.
		}
	}
	q.pending = remaining
	q.mu.Unlock()

	for _, t := range toFinish {
		t.Finish()
	}
	for _, t := range toRun {
		q.taskCh <- t
	}
}

func (q *Queue) evaluate(t *Task) {
	evaluateConditions(t, func(failures []error) {
		t.finishEvaluation(failures)
	})
}

// taskFinished is the completion side of the bookkeeping: release any
// exclusivity categories, update counters, and wake the dispatcher so
// dependents get re-checked.
func (q *Queue) taskFinished(t *Task) {
	q.mu.Lock()
	if cats, ok := q.acquired[t]; ok {
		q.exclusivity.release(cats)
		delete(q.acquired, t)
	}
	delete(q.executing, t)
	q.finished++
	q.recent = append(q.recent, t.Name())
	if len(q.recent) > maxRetainedFinished {
		q.recent = q.recent[len(q.recent)-maxRetainedFinished:]
	}
	q.mu.Unlock()

	q.wake()
}

func exclusiveCategories(t *Task) []string {
	var cats []string
	for _, c := range t.Conditions() {
		if c.MutuallyExclusive() {
			cats = append(cats, c.Name())
		}
	}
	return cats
}

// queueObserver is the queue's own registration on every submitted task.
type queueObserver struct {
	queue *Queue
}

func (o *queueObserver) TaskDidStart(*Task) {}

func (o *queueObserver) TaskDidProduce(t *Task, produced *Task) {
	o.queue.logger.Infof("task %q produced task %q", t.Name(), produced.Name())
	o.queue.Submit(produced)
}

func (o *queueObserver) TaskDidFinish(t *Task, errs []error) {
	if len(errs) > 0 {
		o.queue.logger.Infof("task %q finished with %d error(s): %s", t.Name(), len(errs), joinErrors(errs))
	} else {
		o.queue.logger.Infof("task %q finished", t.Name())
	}
	o.queue.taskFinished(t)
}
