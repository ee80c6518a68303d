// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package txn

import (
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/GermanBionicSystems/piccolo/regs"
	"github.com/jonboulle/clockwork"
)

// PollOpts holds the Poller options.
type PollOpts struct {
	// Clock measures the timeout. Defaults to the real clock.
	Clock clockwork.Clock
	// Interval is the delay between two status reads. 0 only yields the
	// processor between reads.
	Interval time.Duration
}

// Poller runs transactions by spinning on the completion condition.
type Poller struct {
	h        *Handle
	clock    clockwork.Clock
	interval time.Duration
	state    atomic.Int32
}

// NewPoller returns a Poller for h.
func NewPoller(h *Handle, opts *PollOpts) (*Poller, error) {
	if err := h.validate(); err != nil {
		return nil, err
	}
	if h.Done.Field.Width == 0 {
		return nil, fmt.Errorf("%s: polled handle needs a completion condition", h)
	}
	p := &Poller{h: h, clock: clockwork.NewRealClock()}
	if opts != nil {
		if opts.Clock != nil {
			p.clock = opts.Clock
		}
		p.interval = opts.Interval
	}
	return p, nil
}

// State returns Armed while Execute runs and Idle otherwise.
func (p *Poller) State() State {
	return State(p.state.Load())
}

// Execute writes the start condition of req and waits up to timeout for the
// peripheral to complete.
//
// On completion the result is read once and the completion flag cleared,
// also when the read fails. On
// expiry the abort table of the handle is written and the returned error
// wraps ErrTimeout. The poller is Idle when Execute returns.
func (p *Poller) Execute(req Request, timeout time.Duration) (Result, error) {
	if !p.state.CompareAndSwap(int32(Idle), int32(Armed)) {
		return Result{}, fmt.Errorf("%s: %w", p.h, ErrAlreadyArmed)
	}
	defer p.state.Store(int32(Idle))
	if err := p.h.Regs.Apply(req.Start); err != nil {
		return Result{}, fmt.Errorf("%s: start %s: %w", p.h, req.Tag, err)
	}
	if err := p.wait(p.h.Done, timeout); err != nil {
		r := Result{}
		if errors.Is(err, ErrTimeout) {
			r.Status = TimedOut
		}
		if err2 := p.h.abort(); err2 != nil {
			return r, fmt.Errorf("%s: %s: %w (abort: %v)", p.h, req.Tag, err, err2)
		}
		return r, fmt.Errorf("%s: %s: %w", p.h, req.Tag, err)
	}
	r, err := p.h.read()
	if err != nil {
		// The completion flag is cleared anyway so the next Execute does not
		// see this one.
		if err2 := p.h.clear(); err2 != nil {
			return Result{}, fmt.Errorf("%s: %w (clear: %v)", p.h, err, err2)
		}
		return Result{}, fmt.Errorf("%s: %w", p.h, err)
	}
	if err := p.h.clear(); err != nil {
		return Result{}, fmt.Errorf("%s: clear: %w", p.h, err)
	}
	r.Status = OK
	return r, nil
}

// Wait spins until c holds on the handle registers or timeout elapses.
//
// It is meant for configuration handshakes that are not transactions.
func (p *Poller) Wait(c regs.Cond, timeout time.Duration) error {
	if err := p.wait(c, timeout); err != nil {
		return fmt.Errorf("%s: %w", p.h, err)
	}
	return nil
}

func (p *Poller) wait(c regs.Cond, timeout time.Duration) error {
	return WaitFor(p.clock, p.interval, timeout, func() (bool, error) {
		return p.h.Regs.Met(c)
	})
}

// WaitFor calls done until it returns true or timeout elapses on clock.
//
// The condition is checked at least once, so a zero timeout is a single
// probe. The returned error wraps ErrTimeout on expiry.
func WaitFor(clock clockwork.Clock, interval, timeout time.Duration, done func() (bool, error)) error {
	start := clock.Now()
	for {
		ok, err := done()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if clock.Since(start) >= timeout {
			return fmt.Errorf("%w after %s", ErrTimeout, timeout)
		}
		if interval > 0 {
			clock.Sleep(interval)
		} else {
			runtime.Gosched()
		}
	}
}
