package task

// Observer receives lifecycle notifications for the one task it was
// registered on. Observers are registrations, not owners: notifications run
// synchronously on whichever goroutine reaches the transition, so observers
// must not block.
type Observer interface {
	TaskDidStart(t *Task)
	TaskDidProduce(t *Task, produced *Task)
	TaskDidFinish(t *Task, errs []error)
}

// ObserverFuncs adapts plain functions to the Observer interface. Nil
// fields are skipped.
type ObserverFuncs struct {
	DidStart   func(t *Task)
	DidProduce func(t *Task, produced *Task)
	DidFinish  func(t *Task, errs []error)
}

func (o ObserverFuncs) TaskDidStart(t *Task) {
	if o.DidStart != nil {
		o.DidStart(t)
	}
}

func (o ObserverFuncs) TaskDidProduce(t *Task, produced *Task) {
	if o.DidProduce != nil {
		o.DidProduce(t, produced)
	}
}

func (o ObserverFuncs) TaskDidFinish(t *Task, errs []error) {
	if o.DidFinish != nil {
		o.DidFinish(t, errs)
	}
}
