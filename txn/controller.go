// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package txn

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/GermanBionicSystems/piccolo/pie"
)

// State is the state of a Controller.
type State int32

const (
	// Idle means no operation is pending.
	Idle State = iota
	// Armed means the start condition was written and the completion
	// interrupt is awaited.
	Armed
	// Servicing means the interrupt handler is reading the result.
	Servicing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Armed:
		return "Armed"
	case Servicing:
		return "Servicing"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Opts holds the Controller options.
type Opts struct {
	// OnResult is called from the interrupt handler with every result, once
	// the controller is Armed again (periodic) or Idle. It must be short. It
	// may call Disarm or Arm.
	OnResult func(Result)
	// Logger receives ignored interrupts and read errors. nil discards them.
	Logger Logger
}

// Stats are the Controller counters.
type Stats struct {
	Serviced   uint64 // results delivered
	Spurious   uint64 // interrupts without a pending completion
	Unexpected uint64 // interrupts with an unhandled interrupt code
	Failed     uint64 // result reads that failed
	Clears     uint64 // flag clears performed
	Acks       uint64 // group acknowledges performed
}

// Controller runs interrupt driven transactions on one Handle.
type Controller struct {
	h        *Handle
	ic       *pie.Controller
	onResult func(Result)
	log      Logger

	state atomic.Int32
	seen  atomic.Uint64 // last mailbox sequence handed to Await
	box   mailbox

	serviced, spurious, unexpected, failed, clears, acks atomic.Uint64
}

// New registers a Controller for h.Source on ic and enables the source.
func New(h *Handle, ic *pie.Controller, opts *Opts) (*Controller, error) {
	if err := h.validate(); err != nil {
		return nil, err
	}
	if ic == nil {
		return nil, errors.New("txn: nil interrupt controller")
	}
	c := &Controller{h: h, ic: ic}
	if opts != nil {
		c.onResult = opts.OnResult
		c.log = opts.Logger
	}
	if err := ic.Register(h.Source, c.OnInterrupt); err != nil {
		return nil, fmt.Errorf("%s: %w", h, err)
	}
	if err := ic.Enable(h.Source); err != nil {
		ic.Unregister(h.Source)
		return nil, fmt.Errorf("%s: %w", h, err)
	}
	return c, nil
}

// Close disables and unregisters the interrupt source.
func (c *Controller) Close() error {
	c.ic.Unregister(c.h.Source)
	return nil
}

// State returns the current state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Arm writes the start condition of req.
//
// It returns ErrAlreadyArmed unless the controller is Idle. If the start
// condition cannot be written the controller stays Idle.
func (c *Controller) Arm(req Request) error {
	seq, ok := c.box.mark(func() bool {
		return c.state.CompareAndSwap(int32(Idle), int32(Armed))
	})
	if !ok {
		return fmt.Errorf("%s: %w", c.h, ErrAlreadyArmed)
	}
	c.seen.Store(seq)
	if err := c.h.Regs.Apply(req.Start); err != nil {
		c.state.Store(int32(Idle))
		return fmt.Errorf("%s: arm %s: %w", c.h, req.Tag, err)
	}
	return nil
}

// OnInterrupt is the interrupt handler. It is registered on the interrupt
// controller by New and must not be called otherwise.
//
// The result is read only when the controller is Armed and the peripheral
// reports completion; a stale or spurious call neither changes the state nor
// delivers anything. In every case the peripheral flag is then cleared and
// the interrupt group acknowledged, once each and in that order, before the
// result is published. Opts.OnResult runs after the controller left
// Servicing and before Await returns.
func (c *Controller) OnInterrupt() {
	d := c.service()
	if err := c.h.clear(); err != nil {
		c.logf("%s: clear: %v", c.h, err)
	}
	c.clears.Add(1)
	if c.h.Source.Grouped() {
		c.ic.Ack(c.h.Source.Group())
		c.acks.Add(1)
	}
	if !d.owned {
		return
	}
	if !d.publish {
		c.state.Store(int32(d.next))
		return
	}
	publish := c.box.stage(d.r, d.err, func() { c.state.Store(int32(d.next)) })
	// The state is final here so OnResult may Disarm or Arm again.
	if d.err == nil && c.onResult != nil {
		c.onResult(d.r)
	}
	publish()
}

// Await blocks until the next result of the armed transaction.
//
// If ctx is done first the transaction is abandoned and the controller goes
// back to Idle.
func (c *Controller) Await(ctx context.Context) (Result, error) {
	for {
		r, seq, ch, err := c.box.get()
		if seen := c.seen.Load(); seq > seen {
			c.seen.CompareAndSwap(seen, seq)
			return r, err
		}
		select {
		case <-ctx.Done():
			_ = c.Disarm()
			return Result{}, fmt.Errorf("%s: %w", c.h, ctx.Err())
		case <-ch:
		}
	}
}

// Do arms req and waits for its result.
func (c *Controller) Do(ctx context.Context, req Request) (Result, error) {
	if err := c.Arm(req); err != nil {
		return Result{}, err
	}
	return c.Await(ctx)
}

// Disarm abandons the outstanding transaction, if any, and writes the abort
// table of the handle.
func (c *Controller) Disarm() error {
	for {
		switch State(c.state.Load()) {
		case Idle:
			return nil
		case Armed:
			if c.state.CompareAndSwap(int32(Armed), int32(Idle)) {
				return c.h.abort()
			}
		default:
			// The handler owns the state until the result is staged.
			runtime.Gosched()
		}
	}
}

// Latest returns the last delivered result and its sequence number. ok is
// false until the first result.
func (c *Controller) Latest() (r Result, seq uint64, ok bool) {
	r, seq, _, _ = c.box.get()
	return r, seq, seq > 0
}

// Stats returns a snapshot of the counters.
func (c *Controller) Stats() Stats {
	return Stats{
		Serviced:   c.serviced.Load(),
		Spurious:   c.spurious.Load(),
		Unexpected: c.unexpected.Load(),
		Failed:     c.failed.Load(),
		Clears:     c.clears.Load(),
		Acks:       c.acks.Load(),
	}
}

func (c *Controller) String() string {
	return c.h.String()
}

// delivery is the outcome of the servicing part of OnInterrupt.
type delivery struct {
	owned   bool // the handler moved the state to Servicing
	publish bool
	next    State
	r       Result
	err     error
}

func (c *Controller) service() delivery {
	ready, err := c.h.ready()
	if err != nil {
		c.logf("%s: status: %v", c.h, err)
		c.spurious.Add(1)
		return delivery{}
	}
	if !ready || !c.state.CompareAndSwap(int32(Armed), int32(Servicing)) {
		c.spurious.Add(1)
		return delivery{}
	}
	r, err := c.h.read()
	if err != nil {
		if errors.Is(err, ErrUnexpectedInterruptCode) {
			c.unexpected.Add(1)
			c.logf("%s: ignored: %v", c.h, err)
			return delivery{owned: true, next: Armed}
		}
		c.failed.Add(1)
		c.logf("%s: read: %v", c.h, err)
		return delivery{owned: true, publish: true, next: Idle, err: fmt.Errorf("%s: %w", c.h, err)}
	}
	r.Status = OK
	c.serviced.Add(1)
	d := delivery{owned: true, publish: true, next: Idle, r: r}
	if c.h.Periodic {
		d.next = Armed
	}
	return d
}

func (c *Controller) logf(format string, v ...interface{}) {
	if c.log != nil {
		c.log.Printf(format, v...)
	}
}
