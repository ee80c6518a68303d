// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package eqep reads a quadrature encoder with eQEP1.
//
// The position counter runs free over the full 32 bits. The unit timer
// latches it every unit period, so the difference between two latched
// positions is the speed.
package eqep

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/GermanBionicSystems/piccolo/pie"
	"github.com/GermanBionicSystems/piccolo/regs"
	"github.com/GermanBionicSystems/piccolo/txn"
	"github.com/jonboulle/clockwork"
	"periph.io/x/conn/v3/physic"
)

// Opts holds the module configuration.
type Opts struct {
	// SysClk clocks the unit timer.
	SysClk physic.Frequency
	// UnitPeriod is QUPRD, in SysClk cycles.
	UnitPeriod uint32
	// Timeout bounds WaitUnitTimeout.
	Timeout time.Duration
	Clock   clockwork.Clock
}

// DefaultOpts latches the position every 2000000 cycles of 60 MHz.
var DefaultOpts = Opts{
	SysClk:     60 * physic.MegaHertz,
	UnitPeriod: 2000000,
	Timeout:    100 * time.Millisecond,
}

// ConfigTable returns the writes configuring quadrature counting with the
// position latched on unit time out.
func ConfigTable(quprd uint32) regs.Table {
	return regs.Table{
		QUPRD.Set(quprd),
		QSRC.Set(0),
		FREESOFT.Set(2),
		PCRM.Set(0),
		UTE.Set(1),
		QCLM.Set(1),
		QPOSMAX.Set(0xFFFFFFFF),
		QPEN.Set(1),
		UPPS.Set(5),
		CCPS.Set(7),
		CEN.Set(1),
	}
}

// Dev is eQEP1.
type Dev struct {
	f    *regs.File
	opts Opts
	p    *txn.Poller

	mu   sync.Mutex
	last uint32
	init bool
}

// New configures and enables the position counter.
func New(f *regs.File, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	o := *opts
	if o.SysClk == 0 {
		o.SysClk = DefaultOpts.SysClk
	}
	if o.UnitPeriod == 0 {
		o.UnitPeriod = DefaultOpts.UnitPeriod
	}
	if o.Timeout == 0 {
		o.Timeout = DefaultOpts.Timeout
	}
	if err := f.Apply(ConfigTable(o.UnitPeriod)); err != nil {
		return nil, fmt.Errorf("eqep: %w", err)
	}
	d := &Dev{f: f, opts: o}
	p, err := txn.NewPoller(d.handle("eqep1"), &txn.PollOpts{Clock: o.Clock})
	if err != nil {
		return nil, fmt.Errorf("eqep: %w", err)
	}
	d.p = p
	return d, nil
}

func (d *Dev) String() string {
	return d.f.Name()
}

func (d *Dev) handle(name string) *txn.Handle {
	return &txn.Handle{
		Name:   name,
		Regs:   d.f,
		Done:   UTOFlag.Is(1),
		Result: QPOSLAT.All(),
		Clear:  regs.Table{QCLR.Set(UTO | INT)},
	}
}

// UnitPeriod returns the time between two latches.
func (d *Dev) UnitPeriod() time.Duration {
	return time.Duration(int64(d.opts.UnitPeriod) * int64(time.Second) / int64(d.opts.SysClk/physic.Hertz))
}

// Position returns the position counter.
func (d *Dev) Position() (uint32, error) {
	v, err := d.f.Read(QPOSCNT)
	if err != nil {
		return 0, fmt.Errorf("eqep: %w", err)
	}
	return v, nil
}

// SetPosition loads the position counter.
func (d *Dev) SetPosition(v uint32) error {
	if err := d.f.Write(QPOSCNT, v); err != nil {
		return fmt.Errorf("eqep: %w", err)
	}
	return nil
}

// WaitUnitTimeout waits for the next unit time out and returns the latched
// position.
func (d *Dev) WaitUnitTimeout() (uint32, error) {
	r, err := d.p.Execute(txn.Request{Tag: "UTO"}, d.opts.Timeout)
	if err != nil {
		return 0, fmt.Errorf("eqep: %w", err)
	}
	return r.Value, nil
}

// Speed waits for the next unit time out and returns the number of counts
// since the previous one. The first call only takes the reference and returns
// 0.
func (d *Dev) Speed() (int32, error) {
	pos, err := d.WaitUnitTimeout()
	if err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.delta(pos), nil
}

func (d *Dev) delta(pos uint32) int32 {
	if !d.init {
		d.last, d.init = pos, true
		return 0
	}
	// The counter wraps over 32 bits.
	delta := int32(pos - d.last)
	d.last = pos
	return delta
}

// Rate converts a Speed into counts per second.
func (d *Dev) Rate(delta int32) physic.Frequency {
	return d.opts.SysClk / physic.Frequency(d.opts.UnitPeriod) * physic.Frequency(delta)
}

// IntOpts holds the UnitTimer configuration.
type IntOpts struct {
	// OnLatch is called from the interrupt handler with every latched
	// position.
	OnLatch func(pos uint32)
	Logger  txn.Logger
}

// UnitTimer delivers the latched position on every unit time out through
// EQEP1_INT.
type UnitTimer struct {
	c *txn.Controller
}

// NewUnitTimer registers the EQEP1_INT handler on ic.
func (d *Dev) NewUnitTimer(ic *pie.Controller, opts *IntOpts) (*UnitTimer, error) {
	if opts == nil {
		opts = &IntOpts{}
	}
	h := d.handle("eqep1/" + pie.EQEP1INT.String())
	h.Source = pie.EQEP1INT
	h.Abort = regs.Table{QEINT.Set(0)}
	h.Periodic = true
	to := &txn.Opts{Logger: opts.Logger}
	if cb := opts.OnLatch; cb != nil {
		to.OnResult = func(r txn.Result) { cb(r.Value) }
	}
	c, err := txn.New(h, ic, to)
	if err != nil {
		return nil, fmt.Errorf("eqep: %w", err)
	}
	return &UnitTimer{c: c}, nil
}

// Start enables the unit time out interrupt.
func (u *UnitTimer) Start() error {
	return u.c.Arm(txn.Request{
		Tag:   "UTO",
		Start: regs.Table{QCLR.Set(0xFFFF), QEINT.Set(UTO)},
	})
}

// Next waits for the next latched position.
func (u *UnitTimer) Next(ctx context.Context) (uint32, error) {
	r, err := u.c.Await(ctx)
	if err != nil {
		return 0, err
	}
	return r.Value, nil
}

// Stats returns the interrupt handler counters.
func (u *UnitTimer) Stats() txn.Stats {
	return u.c.Stats()
}

// Close disables the interrupt and unregisters the handler.
func (u *UnitTimer) Close() error {
	if err := u.c.Disarm(); err != nil {
		return err
	}
	return u.c.Close()
}
