package task

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ConditionError records a readiness condition whose check did not pass.
// Condition failures are soft: the task still reaches finished carrying
// them, but its body is never executed.
type ConditionError struct {
	Condition string
	Reason    error
}

func (e *ConditionError) Error() string {
	if e.Reason != nil {
		return fmt.Sprintf("condition %q failed: %v", e.Condition, e.Reason)
	}
	return fmt.Sprintf("condition %q failed", e.Condition)
}

func (e *ConditionError) Cause() error  { return e.Reason }
func (e *ConditionError) Unwrap() error { return e.Reason }

// ExecutionError marks a failure reported from inside a running task body.
type ExecutionError struct {
	Reason error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution failed: %v", e.Reason)
}

func (e *ExecutionError) Cause() error  { return e.Reason }
func (e *ExecutionError) Unwrap() error { return e.Reason }

// TimeoutError is the execution failure a TimeoutObserver cancels a task
// with. The configured duration travels with the error.
type TimeoutError struct {
	Duration time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("task timed out after %s", e.Duration)
}

// IsConditionFailed reports whether err, anywhere in its chain, came from a
// readiness condition check.
func IsConditionFailed(err error) bool {
	var ce *ConditionError
	return errors.As(err, &ce)
}

// IsExecutionFailed reports whether err, anywhere in its chain, came from a
// failed or timed-out task body.
func IsExecutionFailed(err error) bool {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return true
	}
	var te *TimeoutError
	return errors.As(err, &te)
}

// joinErrors renders an error sequence for logging and audit detail.
func joinErrors(errs []error) string {
	if len(errs) == 0 {
		return ""
	}
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}
