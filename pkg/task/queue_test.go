package task_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/doubleencore/MPA-Horatio/pkg/task"
)

func TestQueueRunsSubmittedTask(t *testing.T) {
	queue := task.NewQueue(2, task.NopLogger())
	defer queue.Close()

	var ran int32
	tk := task.NewBlock("simple", func() error {
		atomic.AddInt32(&ran, 1)
		return nil
	})
	queue.Submit(tk)

	waitForState(t, tk, task.StateFinished, time.Second)
	if atomic.LoadInt32(&ran) != 1 {
		t.Errorf("body ran %d times, want 1", ran)
	}
	if tk.Failed() {
		t.Error("clean task reported failed")
	}
}

func TestQueueRespectsDependencies(t *testing.T) {
	queue := task.NewQueue(4, task.NopLogger())
	defer queue.Close()

	var mu sync.Mutex
	var order []string
	record := func(name string) func() error {
		return func() error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}

	first := task.NewBlock("first", record("first"))
	second := task.NewBlock("second", record("second"))
	second.AddDependency(first)
	third := task.NewBlock("third", record("third"))
	third.AddDependency(second)

	// Submit in reverse; dependencies still in their initialized state are
	// pulled in by the queue.
	queue.Submit(third)

	waitForState(t, third, task.StateFinished, time.Second)
	mu.Lock()
	defer mu.Unlock()
	want := []string{"first", "second", "third"}
	if len(order) != 3 || order[0] != want[0] || order[1] != want[1] || order[2] != want[2] {
		t.Errorf("execution order = %v, want %v", order, want)
	}
}

func TestCancelledPendingTaskNeverExecutes(t *testing.T) {
	queue := task.NewQueue(2, task.NopLogger())
	defer queue.Close()

	// The blocker never finishes, so the dependent stays pending.
	blocker := task.New("blocker", task.ExecFunc(func(*task.Task) {}))

	var executed int32
	dependent := task.NewBlock("dependent", func() error {
		atomic.AddInt32(&executed, 1)
		return nil
	})
	dependent.AddDependency(blocker)

	queue.Submit(dependent)
	waitForState(t, blocker, task.StateExecuting, time.Second)

	dependent.Cancel()
	waitForState(t, dependent, task.StateFinished, time.Second)

	if atomic.LoadInt32(&executed) != 0 {
		t.Error("cancelled pending task still executed")
	}
	if !dependent.Cancelled() {
		t.Error("cancellation flag lost")
	}
	if dependent.Failed() {
		t.Error("cancellation without error should not mark the task failed")
	}
}

// stubCondition drives the evaluator from tests.
type stubCondition struct {
	name      string
	exclusive bool
	dep       *task.Task
	result    task.ConditionResult
	delay     time.Duration
}

func (c *stubCondition) Name() string                         { return c.name }
func (c *stubCondition) DependencyTask(*task.Task) *task.Task { return c.dep }
func (c *stubCondition) MutuallyExclusive() bool              { return c.exclusive }

func (c *stubCondition) Evaluate(_ *task.Task, completion func(task.ConditionResult)) {
	if c.delay > 0 {
		time.AfterFunc(c.delay, func() { completion(c.result) })
		return
	}
	completion(c.result)
}

func TestFailingConditionSkipsExecution(t *testing.T) {
	queue := task.NewQueue(2, task.NopLogger())
	defer queue.Close()

	var executed int32
	tk := task.NewBlock("gated", func() error {
		atomic.AddInt32(&executed, 1)
		return nil
	})
	tk.AddCondition(&stubCondition{
		name:   "X",
		result: task.ConditionResult{Status: task.ConditionFailed, Err: errors.New("denied")},
	})

	queue.Submit(tk)
	waitForState(t, tk, task.StateFinished, time.Second)

	if atomic.LoadInt32(&executed) != 0 {
		t.Error("body executed despite a failed condition")
	}
	if !tk.Failed() {
		t.Error("failed condition did not mark the task failed")
	}
	got := tk.Errors()
	if len(got) != 1 || !task.IsConditionFailed(got[0]) {
		t.Errorf("errors = %v, want one condition failure", got)
	}
}

func TestNotSatisfiedConditionIsSuppressed(t *testing.T) {
	queue := task.NewQueue(2, task.NopLogger())
	defer queue.Close()

	tk := task.NewBlock("suppressed", func() error { return nil })
	tk.AddCondition(&stubCondition{
		name:   "quiet",
		result: task.ConditionResult{Status: task.ConditionNotSatisfied},
	})

	queue.Submit(tk)
	waitForState(t, tk, task.StateFinished, time.Second)

	if tk.Failed() {
		t.Errorf("notSatisfied recorded as failure: %v", tk.Errors())
	}
}

func TestConditionInjectedDependencyRunsFirst(t *testing.T) {
	queue := task.NewQueue(2, task.NopLogger())
	defer queue.Close()

	var mu sync.Mutex
	var order []string

	permission := task.NewBlock("request-permission", func() error {
		mu.Lock()
		order = append(order, "permission")
		mu.Unlock()
		return nil
	})

	guarded := task.NewBlock("guarded", func() error {
		mu.Lock()
		order = append(order, "guarded")
		mu.Unlock()
		return nil
	})
	guarded.AddCondition(&stubCondition{
		name:   "Permission",
		dep:    permission,
		result: task.ConditionResult{Status: task.ConditionSatisfied},
	})

	queue.Submit(guarded)
	waitForState(t, guarded, task.StateFinished, time.Second)

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "permission" || order[1] != "guarded" {
		t.Errorf("execution order = %v, want [permission guarded]", order)
	}
}

func TestMutualExclusivitySerializesCategory(t *testing.T) {
	queue := task.NewQueue(4, task.NopLogger())
	defer queue.Close()

	var current, peak int32
	body := func() error {
		n := atomic.AddInt32(&current, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&current, -1)
		return nil
	}

	tasks := make([]*task.Task, 4)
	for i := range tasks {
		tk := task.NewBlock("exclusive", body)
		tk.AddCondition(&stubCondition{
			name:      "singleton",
			exclusive: true,
			result:    task.ConditionResult{Status: task.ConditionSatisfied},
		})
		tasks[i] = tk
	}
	queue.SubmitAll(tasks)

	for _, tk := range tasks {
		waitForState(t, tk, task.StateFinished, 2*time.Second)
	}
	if got := atomic.LoadInt32(&peak); got != 1 {
		t.Errorf("peak concurrency for the exclusive category = %d, want 1", got)
	}
}

func TestProducedTaskIsSubmitted(t *testing.T) {
	queue := task.NewQueue(2, task.NopLogger())
	defer queue.Close()

	child := task.NewBlock("child", func() error { return nil })
	parent := task.New("parent", task.ExecFunc(func(tk *task.Task) {
		tk.ProduceTask(child)
		tk.Finish()
	}))

	var producedSeen int32
	parent.AddObserver(task.ObserverFuncs{
		DidProduce: func(_, produced *task.Task) {
			if produced == child {
				atomic.AddInt32(&producedSeen, 1)
			}
		},
	})

	queue.Submit(parent)
	waitForState(t, parent, task.StateFinished, time.Second)
	waitForState(t, child, task.StateFinished, time.Second)

	if atomic.LoadInt32(&producedSeen) != 1 {
		t.Error("observer did not see the produced task")
	}
}

func TestDoubleSubmitIsRefused(t *testing.T) {
	queue := task.NewQueue(2, task.NopLogger())
	defer queue.Close()

	gate := make(chan struct{})
	tk := task.New("once", task.ExecFunc(func(tk *task.Task) {
		<-gate
		tk.Finish()
	}))

	queue.Submit(tk)
	queue.Submit(tk) // refused, not an error
	close(gate)

	waitForState(t, tk, task.StateFinished, time.Second)
	stats := queue.Stats()
	if stats.Finished != 1 {
		t.Errorf("finished count = %d, want 1", stats.Finished)
	}
}

func TestGroupAggregatesChildErrors(t *testing.T) {
	queue := task.NewQueue(4, task.NopLogger())
	defer queue.Close()

	ok := task.NewBlock("ok", func() error { return nil })
	bad := task.NewBlock("bad", func() error { return errors.New("child failed") })

	group := task.NewGroup("group", ok, bad)
	queue.Submit(group)

	waitForState(t, group, task.StateFinished, time.Second)
	if !group.Failed() {
		t.Error("group with a failing child should report failed")
	}
	if len(group.Errors()) != 1 {
		t.Errorf("group errors = %v, want the one child error", group.Errors())
	}
}

func TestQueueStats(t *testing.T) {
	queue := task.NewQueue(1, task.NopLogger())
	defer queue.Close()

	for i := 0; i < 3; i++ {
		queue.Submit(task.NewBlock("counted", func() error { return nil }))
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if queue.Stats().Finished == 3 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	stats := queue.Stats()
	if stats.Finished != 3 {
		t.Fatalf("finished = %d, want 3", stats.Finished)
	}
	if stats.Pending != 0 || stats.Executing != 0 {
		t.Errorf("stats = %+v, want drained queue", stats)
	}
	if len(stats.RecentlyFinished) != 3 {
		t.Errorf("recently finished = %v, want 3 entries", stats.RecentlyFinished)
	}
}
