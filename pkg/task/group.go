package task

// NewGroup returns a task that depends on every child and folds the
// children's error sequences into its own finish. Submitting the group to a
// queue submits any child that has not been submitted yet; the group's body
// only runs after all children have finished.
func NewGroup(name string, children ...*Task) *Task {
	deps := append([]*Task(nil), children...)
	g := New(name, ExecFunc(func(t *Task) {
		var errs []error
		for _, child := range deps {
			errs = append(errs, child.Errors()...)
		}
		t.Finish(errs...)
	}))
	for _, child := range deps {
		g.AddDependency(child)
	}
	return g
}
