package wg86

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Pool is a LIFO free-list of execution units sharing one module's
// memory and callback table, amortizing the allocation spec.md §4.H
// asks for. Checking out a unit when the pool is empty allocates a
// fresh one; a unit taken from the free list is reset at checkout so it
// starts clean.
type Pool struct {
	mu        sync.Mutex
	memory    *SegmentedMemory
	callbacks CallbackTable
	logger    logrus.FieldLogger
	free      []*ExecutionUnit
}

// NewPool creates an empty pool bound to one module's shared memory and
// callback table.
func NewPool(memory *SegmentedMemory, callbacks CallbackTable, logger logrus.FieldLogger) *Pool {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Pool{memory: memory, callbacks: callbacks, logger: logger}
}

// Checkout returns a free unit, allocating one if the pool is empty.
func (p *Pool) Checkout() *ExecutionUnit {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := len(p.free); n > 0 {
		eu := p.free[n-1]
		p.free = p.free[:n-1]
		eu.reset()
		return eu
	}
	eu := NewExecutionUnit(p.memory, p.callbacks, p.logger)
	eu.pool = p
	return eu
}

// Return puts a unit back on the free list. A unit must not be used
// again by its caller after Return.
func (p *Pool) Return(eu *ExecutionUnit) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.free = append(p.free, eu)
}
