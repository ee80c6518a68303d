// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package pie models the Peripheral Interrupt Expansion block of the C28x:
// a typed table of interrupt handlers, per source enable bits and per group
// acknowledge bits.
//
// Raise is the hardware side. It only latches the source as pending and is
// safe to call from any goroutine. Service is the CPU side: it runs the
// handlers of the pending sources one at a time, in priority order. Run calls
// Service every time a source is raised or a group acknowledged.
//
// Once a handler of a group runs, the group is blocked until the handler
// acknowledges it with Ack. A handler that returns without acknowledging
// starves every other source of its group; the controller logs it and
// counts it in Stats.Unacked.
package pie

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrUnknownSource is returned for a Source that cannot be routed.
	ErrUnknownSource = errors.New("pie: unknown interrupt source")
	// ErrRegistered is returned when a handler is already registered for a
	// source.
	ErrRegistered = errors.New("pie: handler already registered")
)

// Handler is an interrupt service routine.
type Handler func()

// Logger is the logging sink of the controller. *log.Logger implements it.
type Logger interface {
	Printf(format string, v ...interface{})
}

// Opts holds the controller options.
type Opts struct {
	// Logger receives warnings about unacknowledged groups. nil discards them.
	Logger Logger
}

// Stats are the controller counters.
type Stats struct {
	Raised    uint64
	Delivered uint64
	Acks      uint64
	Unacked   uint64 // handlers that returned with their group still blocked
}

// Controller is the interrupt controller.
type Controller struct {
	cpu  sync.Mutex // held while Service runs handlers
	wake chan struct{}
	log  Logger

	mu       sync.Mutex
	handlers [numSources]Handler
	enabled  [numSources]bool
	pending  [numSources]bool
	blocked  [NumGroups + 1]bool
	acks     [cpuINT14 + 1]uint64
	stats    Stats
}

// New returns an interrupt controller with every source disabled.
func New(opts *Opts) *Controller {
	c := &Controller{wake: make(chan struct{}, 1)}
	if opts != nil {
		c.log = opts.Logger
	}
	return c
}

// Register routes src to h.
func (c *Controller) Register(src Source, h Handler) error {
	if !src.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownSource, src)
	}
	if h == nil {
		return fmt.Errorf("pie: nil handler for %s", src)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handlers[src] != nil {
		return fmt.Errorf("%w: %s", ErrRegistered, src)
	}
	c.handlers[src] = h
	return nil
}

// Unregister removes the handler of src and disables it.
func (c *Controller) Unregister(src Source) {
	if !src.Valid() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[src] = nil
	c.enabled[src] = false
}

// Enable sets the enable bit of src.
func (c *Controller) Enable(src Source) error {
	return c.setEnabled(src, true)
}

// Disable clears the enable bit of src. A pending request stays latched.
func (c *Controller) Disable(src Source) error {
	return c.setEnabled(src, false)
}

// Raise latches src as pending, like the peripheral interrupt line going
// active. It never blocks.
func (c *Controller) Raise(src Source) error {
	if !src.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownSource, src)
	}
	c.mu.Lock()
	c.pending[src] = true
	c.stats.Raised++
	c.mu.Unlock()
	c.signal()
	return nil
}

// Ack acknowledges group, letting the next interrupt of the group through.
// Acknowledging the CPU lines 13 and 14 has no effect beyond the counter.
func (c *Controller) Ack(group int) {
	if group < 1 || group > cpuINT14 {
		return
	}
	c.mu.Lock()
	if group <= NumGroups {
		c.blocked[group] = false
	}
	c.acks[group]++
	c.stats.Acks++
	c.mu.Unlock()
	c.signal()
}

// Acks returns how many times group was acknowledged.
func (c *Controller) Acks(group int) uint64 {
	if group < 1 || group > cpuINT14 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acks[group]
}

// Pending returns true if src is latched and not serviced yet.
func (c *Controller) Pending(src Source) bool {
	if !src.Valid() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending[src]
}

// Blocked returns true if group waits for an acknowledge.
func (c *Controller) Blocked(group int) bool {
	if group < 1 || group > NumGroups {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blocked[group]
}

// Stats returns a snapshot of the counters.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Service runs the handlers of every deliverable pending source, highest
// priority first, and returns the number of handlers run.
//
// Handlers never run concurrently.
func (c *Controller) Service() int {
	c.cpu.Lock()
	defer c.cpu.Unlock()
	n := 0
	for {
		src, h := c.next()
		if h == nil {
			return n
		}
		h()
		n++
		if src.Grouped() && c.Blocked(src.Group()) {
			c.mu.Lock()
			c.stats.Unacked++
			c.mu.Unlock()
			if c.log != nil {
				c.log.Printf("pie: %s returned without acknowledging group %d", src, src.Group())
			}
		}
	}
}

// Run services interrupts until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	c.Service()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.wake:
			c.Service()
		}
	}
}

// next picks the highest priority deliverable source, clears its pending
// latch and blocks its group.
func (c *Controller) next() (Source, Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range priority {
		if !c.pending[s] || !c.enabled[s] || c.handlers[s] == nil {
			continue
		}
		g := s.Group()
		if s.Grouped() && c.blocked[g] {
			continue
		}
		c.pending[s] = false
		if s.Grouped() {
			c.blocked[g] = true
		}
		c.stats.Delivered++
		return s, c.handlers[s]
	}
	return None, nil
}

func (c *Controller) setEnabled(src Source, on bool) error {
	if !src.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownSource, src)
	}
	c.mu.Lock()
	c.enabled[src] = on
	c.mu.Unlock()
	if on {
		c.signal()
	}
	return nil
}

func (c *Controller) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Controller) String() string {
	return "pie"
}
