package task

import "sync"

// exclusivityController serializes tasks whose conditions share a mutually
// exclusive category: at most one holder per category across the process.
// Categories are claimed before a task is promoted out of condition
// evaluation and released on its finished transition.
type exclusivityController struct {
	mu   sync.Mutex
	held map[string]bool
}

func newExclusivityController() *exclusivityController {
	return &exclusivityController{held: make(map[string]bool)}
}

// tryAcquire claims every category or none of them.
func (c *exclusivityController) tryAcquire(categories []string) bool {
	if len(categories) == 0 {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cat := range categories {
		if c.held[cat] {
			return false
		}
	}
	for _, cat := range categories {
		c.held[cat] = true
	}
	return true
}

func (c *exclusivityController) release(categories []string) {
	if len(categories) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cat := range categories {
		delete(c.held, cat)
	}
}
