package processor

import (
	"sync"
)

// ConcLimiter bounds the number of goroutines started through it.
type ConcLimiter struct {
	*sync.WaitGroup
	Pool chan struct{}
}

func (c *ConcLimiter) Increase() {
	c.Add(1)
	c.Pool <- struct{}{}
}

func (c *ConcLimiter) Decrease() {
	select {
	case <-c.Pool:
		c.Done()
	default:
	}
}

// Go runs fn on its own goroutine once a slot is free.
func (c *ConcLimiter) Go(fn func()) {
	c.Increase()
	go func() {
		defer c.Decrease()
		fn()
	}()
}

func NewConcLimiter(cLevel int) *ConcLimiter {
	if cLevel < 1 {
		cLevel = 1
	}
	var wg sync.WaitGroup
	return &ConcLimiter{&wg, make(chan struct{}, cLevel)}
}
