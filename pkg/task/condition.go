package task

import (
	"sync"

	"github.com/pkg/errors"
)

// ConditionStatus classifies the outcome of a single condition evaluation.
type ConditionStatus int

const (
	// ConditionSatisfied means the check passed.
	ConditionSatisfied ConditionStatus = iota
	// ConditionFailed means the check did not pass; the failure is recorded
	// on the task but does not stop it from reaching finished.
	ConditionFailed
	// ConditionNotSatisfied suppresses the result entirely, typically
	// because a dependency task injected by the condition should run first.
	ConditionNotSatisfied
)

// ConditionResult is what a condition hands to its completion callback.
type ConditionResult struct {
	Status ConditionStatus
	Err    error
}

// Condition gates a task's promotion to executable. Evaluation is
// asynchronous: implementations call completion exactly once, from any
// goroutine.
type Condition interface {
	// Name identifies the condition. Mutually exclusive conditions with the
	// same name share one exclusivity category.
	Name() string
	// DependencyTask may supply a task that has to run before evaluation
	// makes sense, e.g. requesting a permission. Nil when none is needed.
	DependencyTask(t *Task) *Task
	// MutuallyExclusive marks the condition's category as process-wide
	// exclusive: at most one task carrying it executes at a time.
	MutuallyExclusive() bool
	Evaluate(t *Task, completion func(ConditionResult))
}

// evaluateConditions runs every attached condition concurrently and calls
// completion once with the collected failures. NotSatisfied results are
// suppressed rather than recorded.
func evaluateConditions(t *Task, completion func(failures []error)) {
	conditions := t.Conditions()
	if len(conditions) == 0 {
		completion(nil)
		return
	}

	var (
		mu        sync.Mutex
		failures  []error
		remaining = len(conditions)
	)
	for _, c := range conditions {
		c := c
		reported := false
		go c.Evaluate(t, func(result ConditionResult) {
			mu.Lock()
			if reported {
				mu.Unlock()
				return
			}
			reported = true
			if result.Status == ConditionFailed {
				reason := result.Err
				if reason == nil {
					reason = errors.New("no reason given")
				}
				failures = append(failures, &ConditionError{Condition: c.Name(), Reason: reason})
			}
			remaining--
			done := remaining == 0
			collected := failures
			mu.Unlock()

			if done {
				completion(collected)
			}
		})
	}
}

// NoCancelledDependencies fails when any of the task's dependencies was
// cancelled before finishing. Attach it to tasks that must not run on
// partial upstream results.
type NoCancelledDependencies struct{}

func (NoCancelledDependencies) Name() string               { return "NoCancelledDependencies" }
func (NoCancelledDependencies) DependencyTask(*Task) *Task { return nil }
func (NoCancelledDependencies) MutuallyExclusive() bool    { return false }

func (NoCancelledDependencies) Evaluate(t *Task, completion func(ConditionResult)) {
	for _, dep := range t.Dependencies() {
		if dep.Cancelled() {
			completion(ConditionResult{
				Status: ConditionFailed,
				Err:    errors.Errorf("dependency %q was cancelled", dep.Name()),
			})
			return
		}
	}
	completion(ConditionResult{Status: ConditionSatisfied})
}
