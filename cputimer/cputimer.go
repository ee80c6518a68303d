// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package cputimer drives the three 32 bits CPU timers.
//
// A timer counts SYSCLKOUT cycles down from PRD and raises its interrupt on
// every underflow. A Ticker turns those interrupts into ticks, optionally
// toggling an output pin once per period.
package cputimer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GermanBionicSystems/piccolo/pie"
	"github.com/GermanBionicSystems/piccolo/regs"
	"github.com/GermanBionicSystems/piccolo/txn"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// Opts holds the timer configuration.
type Opts struct {
	// Timer is the timer number, 0 to 2.
	Timer int
	// CPUFreq is the SYSCLKOUT frequency.
	CPUFreq physic.Frequency
	// Period is the interrupt period.
	Period time.Duration
}

// DefaultOpts is timer 0 interrupting every second at 60 MHz.
var DefaultOpts = Opts{
	CPUFreq: 60 * physic.MegaHertz,
	Period:  time.Second,
}

// Dev is one CPU timer.
type Dev struct {
	f    *regs.File
	opts Opts
	prd  uint32
}

// New configures the timer stopped, with its interrupt enabled.
func New(f *regs.File, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	o := *opts
	if o.Timer < 0 || o.Timer > 2 {
		return nil, fmt.Errorf("cputimer: invalid timer %d", o.Timer)
	}
	if o.CPUFreq == 0 {
		o.CPUFreq = DefaultOpts.CPUFreq
	}
	if o.Period == 0 {
		o.Period = DefaultOpts.Period
	}
	prd, err := Period(o.CPUFreq, o.Period)
	if err != nil {
		return nil, err
	}
	d := &Dev{f: f, opts: o, prd: prd}
	if err := f.Apply(ConfigTable(prd)); err != nil {
		return nil, fmt.Errorf("cputimer: %w", err)
	}
	return d, nil
}

// Period returns the PRD value for an interrupt every period at freq. As
// ConfigCpuTimer, it is the number of whole microseconds times the frequency
// in MHz, minus one.
func Period(freq physic.Frequency, period time.Duration) (uint32, error) {
	mhz := int64(freq / physic.MegaHertz)
	us := period.Microseconds()
	if mhz <= 0 || us <= 0 {
		return 0, fmt.Errorf("cputimer: invalid period %s at %s", period, freq)
	}
	n := mhz * us
	if n-1 > 0xFFFFFFFF {
		return 0, fmt.Errorf("cputimer: period %s too long at %s", period, freq)
	}
	return uint32(n - 1), nil
}

// ConfigTable loads prd with no prescaler and leaves the timer stopped with
// its interrupt enabled.
func ConfigTable(prd uint32) regs.Table {
	return regs.Table{
		PRD.Set(prd),
		TPR.Set(0),
		TPRH.Set(0),
		TSS.Set(1),
		TRB.Set(1),
		SOFT.Set(0),
		FREE.Set(0),
		TIE.Set(1),
	}
}

var (
	startTable = regs.Table{TSS.Set(0)}
	stopTable  = regs.Table{TSS.Set(1)}
)

func (d *Dev) String() string {
	return fmt.Sprintf("cputimer%d", d.opts.Timer)
}

// PRD returns the period register value.
func (d *Dev) PRD() uint32 {
	return d.prd
}

// Start starts counting.
func (d *Dev) Start() error {
	return d.f.Apply(startTable)
}

// Stop stops counting.
func (d *Dev) Stop() error {
	return d.f.Apply(stopTable)
}

// Reload copies PRD into the counter.
func (d *Dev) Reload() error {
	return d.f.WriteField(TRB, 1)
}

// Counter returns the current counter value.
func (d *Dev) Counter() (uint32, error) {
	return d.f.Read(TIM)
}

// TickOpts holds the Ticker configuration.
type TickOpts struct {
	// Pin, if set, is toggled once per period from the interrupt handler.
	Pin gpio.PinOut
	// OnTick is called from the interrupt handler once per period.
	OnTick func()
	Logger txn.Logger
}

// toggler is implemented by output pins with a hardware toggle register.
type toggler interface {
	Toggle() error
}

// Ticker delivers the periodic interrupt of a Dev.
type Ticker struct {
	d   *Dev
	c   *txn.Controller
	log txn.Logger

	mu    sync.Mutex
	pin   gpio.PinOut
	level gpio.Level
}

// NewTicker registers the timer interrupt handler on ic.
func (d *Dev) NewTicker(ic *pie.Controller, opts *TickOpts) (*Ticker, error) {
	if opts == nil {
		opts = &TickOpts{}
	}
	t := &Ticker{d: d, log: opts.Logger, pin: opts.Pin}
	h := &txn.Handle{
		Name:     d.String() + "/" + Source(d.opts.Timer).String(),
		Regs:     d.f,
		Source:   Source(d.opts.Timer),
		Done:     TIF.Is(1),
		Clear:    regs.Table{TIF.Set(1)},
		Result:   TIM.All(),
		Abort:    stopTable,
		Periodic: true,
	}
	cb := opts.OnTick
	c, err := txn.New(h, ic, &txn.Opts{
		Logger: opts.Logger,
		OnResult: func(txn.Result) {
			t.toggle()
			if cb != nil {
				cb()
			}
		},
	})
	if err != nil {
		return nil, fmt.Errorf("cputimer: %w", err)
	}
	t.c = c
	return t, nil
}

// Start reloads and starts the timer.
func (t *Ticker) Start() error {
	if err := t.d.Reload(); err != nil {
		return fmt.Errorf("cputimer: %w", err)
	}
	return t.c.Arm(txn.Request{Tag: "start", Start: startTable})
}

// Stop stops the timer. Pending interrupts are then ignored.
func (t *Ticker) Stop() error {
	return t.c.Disarm()
}

// Next waits for the next tick and returns the tick count.
func (t *Ticker) Next(ctx context.Context) (uint64, error) {
	if _, err := t.c.Await(ctx); err != nil {
		return 0, err
	}
	_, seq, _ := t.c.Latest()
	return seq, nil
}

// Ticks returns the number of periods elapsed since the Ticker was created.
func (t *Ticker) Ticks() uint64 {
	_, seq, _ := t.c.Latest()
	return seq
}

// Stats returns the interrupt handler counters.
func (t *Ticker) Stats() txn.Stats {
	return t.c.Stats()
}

// Close stops the timer and unregisters the interrupt handler.
func (t *Ticker) Close() error {
	return errors.Join(t.Stop(), t.c.Close())
}

func (t *Ticker) toggle() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pin == nil {
		return
	}
	var err error
	if p, ok := t.pin.(toggler); ok {
		err = p.Toggle()
	} else {
		t.level = !t.level
		err = t.pin.Out(t.level)
	}
	if err != nil && t.log != nil {
		t.log.Printf("%s: toggle %s: %v", t.d, t.pin, err)
	}
}
