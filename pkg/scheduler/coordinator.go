package scheduler

import (
	"sync"
	"time"

	"github.com/doubleencore/MPA-Horatio/pkg/task"
)

// DefaultInterval is the tick interval used when none is configured.
const DefaultInterval = 10 * time.Second

// Provider hands the coordinator a fresh batch of tasks each tick.
// Identifiers are unique by caller contract.
type Provider interface {
	Identifier() string
	MakeScheduledTasks() []*task.Task
}

// TaskQueue is the submission surface the coordinator drives.
type TaskQueue interface {
	Submit(t *task.Task)
}

// QueueAccessor resolves the queue at tick time. Returning nil skips the
// tick without surfacing an error, so the coordinator degrades gracefully
// while no queue is available.
type QueueAccessor func() TaskQueue

// Coordinator periodically asks every registered provider for a batch of
// tasks and submits them to the queue, in provider registration order. It
// starts resumed; Close releases the timer.
type Coordinator struct {
	queueFor QueueAccessor
	interval time.Duration
	logger   task.Logger

	mu        sync.Mutex
	providers []Provider
	active    bool
	ticker    *time.Ticker
	stop      chan struct{}
}

// NewCoordinator builds a coordinator and immediately resumes it.
// An interval <= 0 falls back to DefaultInterval.
func NewCoordinator(queueFor QueueAccessor, interval time.Duration, logger task.Logger) *Coordinator {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = task.NopLogger()
	}
	c := &Coordinator{
		queueFor: queueFor,
		interval: interval,
		logger:   logger,
	}
	c.Resume()
	return c
}

// Resume arms the recurring timer if it is not armed already and fires one
// tick right away. Idempotent.
func (c *Coordinator) Resume() {
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return
	}
	c.active = true
	c.ticker = time.NewTicker(c.interval)
	c.stop = make(chan struct{})
	go c.loop(c.ticker, c.stop)
	c.mu.Unlock()

	c.ScheduleTasks()
}

// Pause disarms the timer; ticks produce nothing until Resume. Idempotent.
func (c *Coordinator) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return
	}
	c.active = false
	c.ticker.Stop()
	close(c.stop)
}

// Active reports whether the coordinator is currently delivering ticks.
func (c *Coordinator) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Close releases the timer. The coordinator can be resumed again afterward.
func (c *Coordinator) Close() {
	c.Pause()
}

func (c *Coordinator) loop(ticker *time.Ticker, stop chan struct{}) {
	for {
		select {
		case <-ticker.C:
			c.ScheduleTasks()
		case <-stop:
			return
		}
	}
}

// ScheduleTasks runs one tick: every registered provider, in registration
// order, is asked for its batch and each task is submitted to the queue.
// A paused coordinator or an unresolvable queue makes this a no-op.
// Per-task failures never propagate up; a failing task stops neither its
// siblings nor future ticks.
func (c *Coordinator) ScheduleTasks() {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	providers := append([]Provider(nil), c.providers...)
	c.mu.Unlock()

	if c.queueFor == nil {
		c.logger.Infof("no task queue accessor configured; skipping tick")
		return
	}
	q := c.queueFor()
	if q == nil {
		c.logger.Infof("no task queue resolvable; skipping tick")
		return
	}

	for _, p := range providers {
		tasks := p.MakeScheduledTasks()
		for _, t := range tasks {
			q.Submit(t)
		}
		c.logger.Infof("scheduled %d task(s) from provider %q", len(tasks), p.Identifier())
	}
}

// AddTaskProvider registers a provider at the end of the tick order.
func (c *Coordinator) AddTaskProvider(p Provider) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.providers = append(c.providers, p)
}

// RemoveTaskProvider removes the first provider whose identifier matches.
// Removing an unregistered provider is a no-op.
func (c *Coordinator) RemoveTaskProvider(p Provider) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, registered := range c.providers {
		if registered.Identifier() == p.Identifier() {
			c.providers = append(c.providers[:i], c.providers[i+1:]...)
			return
		}
	}
}

// ProviderIdentifiers lists registered providers in tick order.
func (c *Coordinator) ProviderIdentifiers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, len(c.providers))
	for i, p := range c.providers {
		ids[i] = p.Identifier()
	}
	return ids
}
