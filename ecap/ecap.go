// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ecap measures an external signal with eCAP1.
//
// The module captures four edges, alternately falling and rising, and resets
// its counter on each of them. CAP1 and CAP3 then hold the high times and
// CAP2 and CAP4 the low times, in SYSCLKOUT cycles.
//
// The interrupt handler only copies the capture registers. The frequency is
// computed by the caller from the delivered Capture.
package ecap

import (
	"context"
	"fmt"
	"time"

	"github.com/GermanBionicSystems/piccolo/pie"
	"github.com/GermanBionicSystems/piccolo/regs"
	"github.com/GermanBionicSystems/piccolo/txn"
	"github.com/jonboulle/clockwork"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// Opts holds the module configuration.
type Opts struct {
	// SysClk is the counter clock.
	SysClk physic.Frequency
	// Timeout bounds Measure.
	Timeout time.Duration
	Clock   clockwork.Clock
}

// DefaultOpts counts at 60 MHz.
var DefaultOpts = Opts{
	SysClk:  60 * physic.MegaHertz,
	Timeout: 100 * time.Millisecond,
}

// Capture is one set of four captured intervals, in counter cycles.
type Capture [4]uint32

// Period returns the number of cycles of one period.
func (c Capture) Period() uint32 {
	return c[0] + c[1]
}

// Frequency returns the signal frequency for a counter running at clk.
func (c Capture) Frequency(clk physic.Frequency) physic.Frequency {
	p := c.Period()
	if p == 0 {
		return 0
	}
	return clk / physic.Frequency(p)
}

// Duty returns the high time over the period.
func (c Capture) Duty() gpio.Duty {
	p := c.Period()
	if p == 0 {
		return 0
	}
	return gpio.Duty(int64(c[0]) * int64(gpio.DutyMax) / int64(p))
}

// ConfigTable returns the writes configuring continuous four events capture
// in difference mode with the interrupts disabled.
func ConfigTable() regs.Table {
	t := regs.Table{
		ECEINT.Set(0),
		ECCLR.Set(0xFFFF),
		CAPLDEN.Set(0),
		TSCTRSTOP.Set(0),
		CONTONESHT.Set(0),
		STOPWRAP.Set(3),
	}
	for n := 1; n <= 4; n++ {
		t = append(t, CAPPOL(n).Set(uint32(n%2)), CTRRST(n).Set(1))
	}
	return append(t,
		SYNCIEN.Set(0),
		SYNCOSEL.Set(2),
		CAPLDEN.Set(1),
		TSCTRSTOP.Set(1),
	)
}

// Dev is eCAP1.
type Dev struct {
	f    *regs.File
	opts Opts
	p    *txn.Poller
}

// New configures and starts the capture.
func New(f *regs.File, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	o := *opts
	if o.SysClk == 0 {
		o.SysClk = DefaultOpts.SysClk
	}
	if o.Timeout == 0 {
		o.Timeout = DefaultOpts.Timeout
	}
	if err := f.Apply(ConfigTable()); err != nil {
		return nil, fmt.Errorf("ecap: %w", err)
	}
	d := &Dev{f: f, opts: o}
	p, err := txn.NewPoller(d.handle("ecap1"), &txn.PollOpts{Clock: o.Clock})
	if err != nil {
		return nil, fmt.Errorf("ecap: %w", err)
	}
	d.p = p
	return d, nil
}

func (d *Dev) String() string {
	return d.f.Name()
}

func (d *Dev) handle(name string) *txn.Handle {
	return &txn.Handle{
		Name:  name,
		Regs:  d.f,
		Done:  ECFLG.Bit(4).Is(1),
		Read:  readCaptures,
		Clear: regs.Table{ECCLR.Set(0xFFFF)},
	}
}

// Measure waits for the next four events.
func (d *Dev) Measure() (Capture, error) {
	if err := d.f.Write(ECCLR, 0xFFFF); err != nil {
		return Capture{}, fmt.Errorf("ecap: %w", err)
	}
	r, err := d.p.Execute(txn.Request{Tag: "CEVT4"}, d.opts.Timeout)
	if err != nil {
		return Capture{}, fmt.Errorf("ecap: %w", err)
	}
	return toCapture(r), nil
}

// Frequency measures the signal frequency.
func (d *Dev) Frequency() (physic.Frequency, error) {
	c, err := d.Measure()
	if err != nil {
		return 0, err
	}
	return c.Frequency(d.opts.SysClk), nil
}

func readCaptures(f *regs.File) (txn.Result, error) {
	r := txn.Result{Values: make([]uint32, 4)}
	for i := range r.Values {
		v, err := f.Read(CAP(i + 1))
		if err != nil {
			return txn.Result{}, err
		}
		r.Values[i] = v
	}
	r.Value = r.Values[0] + r.Values[1]
	return r, nil
}

func toCapture(r txn.Result) Capture {
	var c Capture
	copy(c[:], r.Values)
	return c
}

// IntOpts holds the Capturer configuration.
type IntOpts struct {
	// OnCapture is called from the interrupt handler with every capture.
	OnCapture func(Capture)
	Logger    txn.Logger
}

// Capturer delivers a Capture on every fourth event through ECAP1_INT.
type Capturer struct {
	d *Dev
	c *txn.Controller
}

// NewCapturer registers the ECAP1_INT handler on ic.
func (d *Dev) NewCapturer(ic *pie.Controller, opts *IntOpts) (*Capturer, error) {
	if opts == nil {
		opts = &IntOpts{}
	}
	h := d.handle("ecap1/" + pie.ECAP1INT.String())
	h.Source = pie.ECAP1INT
	h.Abort = regs.Table{ECEINT.Set(0)}
	h.Periodic = true
	to := &txn.Opts{Logger: opts.Logger}
	if cb := opts.OnCapture; cb != nil {
		to.OnResult = func(r txn.Result) { cb(toCapture(r)) }
	}
	c, err := txn.New(h, ic, to)
	if err != nil {
		return nil, fmt.Errorf("ecap: %w", err)
	}
	return &Capturer{d: d, c: c}, nil
}

// Start enables the interrupt on the fourth event.
func (c *Capturer) Start() error {
	return c.c.Arm(txn.Request{
		Tag:   "CEVT4",
		Start: regs.Table{ECCLR.Set(0xFFFF), ECEINT.Set(CEVT(4))},
	})
}

// Next waits for the next capture.
func (c *Capturer) Next(ctx context.Context) (Capture, error) {
	r, err := c.c.Await(ctx)
	if err != nil {
		return Capture{}, err
	}
	return toCapture(r), nil
}

// Latest returns the last capture and its sequence number.
func (c *Capturer) Latest() (Capture, uint64, bool) {
	r, seq, ok := c.c.Latest()
	return toCapture(r), seq, ok
}

// Frequency returns the frequency of the last capture, 0 before the first.
func (c *Capturer) Frequency() physic.Frequency {
	capt, _, _ := c.Latest()
	return capt.Frequency(c.d.opts.SysClk)
}

// Stop disables the interrupt.
func (c *Capturer) Stop() error {
	return c.c.Disarm()
}

// Stats returns the interrupt handler counters.
func (c *Capturer) Stats() txn.Stats {
	return c.c.Stats()
}

// Close disables the interrupt and unregisters the handler.
func (c *Capturer) Close() error {
	if err := c.Stop(); err != nil {
		return err
	}
	return c.c.Close()
}
