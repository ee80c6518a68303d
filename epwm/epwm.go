// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package epwm drives an ePWM module in up-count mode.
//
// Dev is the EPWMxA output as a periph gpio.PinOut: PWM derives the period
// and compare values from the requested frequency and duty cycle. The event
// trigger can start ADC conversions on SOCA or interrupt once per period.
package epwm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/GermanBionicSystems/piccolo/pie"
	"github.com/GermanBionicSystems/piccolo/regs"
	"github.com/GermanBionicSystems/piccolo/txn"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// Opts holds the module configuration.
type Opts struct {
	// Module is the ePWM number, 1 to 4.
	Module int
	// TBCLK is the time base clock before the dividers, SYSCLKOUT.
	TBCLK physic.Frequency
}

// DefaultOpts is ePWM1 at 60 MHz.
var DefaultOpts = Opts{Module: 1, TBCLK: 60 * physic.MegaHertz}

// Dev is one ePWM module.
type Dev struct {
	f    *regs.File
	opts Opts

	mu   sync.Mutex
	freq physic.Frequency
	duty gpio.Duty
}

// New returns the module with its output forced low.
func New(f *regs.File, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	o := *opts
	if o.Module == 0 {
		o.Module = DefaultOpts.Module
	}
	if o.Module < 1 || o.Module > 4 {
		return nil, fmt.Errorf("epwm: invalid module %d", o.Module)
	}
	if o.TBCLK == 0 {
		o.TBCLK = DefaultOpts.TBCLK
	}
	d := &Dev{f: f, opts: o}
	if err := f.WriteField(CSFA, 1); err != nil {
		return nil, fmt.Errorf("epwm: %w", err)
	}
	return d, nil
}

// Timing is a time base setting.
type Timing struct {
	CLKDIV uint16 // the time base clock is divided by 1<<CLKDIV
	TBPRD  uint16
	CMPA   uint16
}

// Frequency returns the PWM frequency for tbclk.
func (t Timing) Frequency(tbclk physic.Frequency) physic.Frequency {
	return tbclk / physic.Frequency((int64(t.TBPRD)+1)<<t.CLKDIV)
}

// Duty returns the duty cycle.
func (t Timing) Duty() gpio.Duty {
	return gpio.Duty(int64(t.CMPA) * int64(gpio.DutyMax) / (int64(t.TBPRD) + 1))
}

// NewTiming returns the setting of the lowest clock divider reaching f.
// In up-count mode the period is TBPRD+1 time base clocks and the output is
// high from zero to CMPA.
func NewTiming(tbclk physic.Frequency, duty gpio.Duty, f physic.Frequency) (Timing, error) {
	if !duty.Valid() {
		return Timing{}, fmt.Errorf("epwm: invalid duty %s", duty)
	}
	if f <= 0 || f > tbclk/2 {
		return Timing{}, fmt.Errorf("epwm: invalid frequency %s", f)
	}
	for div := uint16(0); div < 8; div++ {
		n := int64(tbclk/f) >> div
		if n < 2 || n > 0xFFFF {
			continue
		}
		t := Timing{CLKDIV: div, TBPRD: uint16(n - 1)}
		t.CMPA = uint16((int64(duty)*n + int64(gpio.DutyMax)/2) / int64(gpio.DutyMax))
		return t, nil
	}
	return Timing{}, fmt.Errorf("epwm: %s out of range from %s", f, tbclk)
}

// Table returns the writes running the time base in up-count mode with a
// shadowed CMPA loaded on zero.
func (t Timing) Table() regs.Table {
	return regs.Table{
		TBCTL.Set(uint32(t.CLKDIV)<<CLKDIV.Shift | Frozen),
		TBPHS.Set(0),
		TBCTR.Set(0),
		TBPRD.Set(uint32(t.TBPRD)),
		CMPCTL.Set(0),
		CMPA.Set(uint32(t.CMPA)),
		AQCTLA.Set(AQSet<<ZRO.Shift | AQClear<<CAU.Shift),
		CTRMODE.Set(CountUp),
	}
}

func (d *Dev) String() string {
	return fmt.Sprintf("EPWM%dA", d.opts.Module)
}

// Halt implements conn.Resource. It forces the output low.
func (d *Dev) Halt() error {
	return d.Out(gpio.Low)
}

// Name implements pin.Pin.
func (d *Dev) Name() string {
	return d.String()
}

// Number implements pin.Pin. EPWMnA is on GPIO 2(n-1).
func (d *Dev) Number() int {
	return 2 * (d.opts.Module - 1)
}

// Function implements pin.Pin.
func (d *Dev) Function() string {
	return "PWM"
}

// Out implements gpio.PinOut by forcing the output.
func (d *Dev) Out(l gpio.Level) error {
	v := uint32(1)
	if l {
		v = 2
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.f.WriteField(CSFA, v); err != nil {
		return fmt.Errorf("epwm: %w", err)
	}
	d.freq, d.duty = 0, 0
	return nil
}

// PWM implements gpio.PinOut.
func (d *Dev) PWM(duty gpio.Duty, f physic.Frequency) error {
	t, err := NewTiming(d.opts.TBCLK, duty, f)
	if err != nil {
		return err
	}
	return d.Apply(t)
}

// Apply runs the time base with t and releases the output.
func (d *Dev) Apply(t Timing) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.f.Apply(append(t.Table(), CSFA.Set(0))); err != nil {
		return fmt.Errorf("epwm: %w", err)
	}
	d.freq, d.duty = t.Frequency(d.opts.TBCLK), t.Duty()
	return nil
}

// Setting returns the current frequency and duty cycle, zero while the output
// is forced.
func (d *Dev) Setting() (physic.Frequency, gpio.Duty) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.freq, d.duty
}

// ADCTriggerTable starts an ADC conversion on SOCA every time the counter
// crosses cmpa counting up, once per period of prd+1 clocks.
func ADCTriggerTable(prd, cmpa uint16) regs.Table {
	return regs.Table{
		SOCAEN.Set(1),
		SOCASEL.Set(EventCMPAUp),
		SOCAPRD.Set(1),
		CMPA.Set(uint32(cmpa)),
		TBPRD.Set(uint32(prd)),
		CTRMODE.Set(CountUp),
	}
}

// TriggerADC configures SOCA with the slowest period and a compare value of
// 0x80.
func (d *Dev) TriggerADC() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.f.Apply(ADCTriggerTable(0xFFFF, 0x80)); err != nil {
		return fmt.Errorf("epwm: %w", err)
	}
	return nil
}

// Source returns the interrupt line of the module, None when it is not
// routed.
func (d *Dev) Source() pie.Source {
	if d.opts.Module == 1 {
		return pie.EPWM1INT
	}
	return pie.None
}

// PeriodOpts holds the Periods configuration.
type PeriodOpts struct {
	// OnPeriod is called from the interrupt handler once per period.
	OnPeriod func()
	Logger   txn.Logger
}

// Periods delivers the interrupt raised when the counter reaches zero.
type Periods struct {
	c *txn.Controller
}

// NewPeriods registers the module interrupt handler on ic.
func (d *Dev) NewPeriods(ic *pie.Controller, opts *PeriodOpts) (*Periods, error) {
	if opts == nil {
		opts = &PeriodOpts{}
	}
	if d.Source() == pie.None {
		return nil, fmt.Errorf("epwm: %s interrupt is not routed", d)
	}
	h := &txn.Handle{
		Name:     d.String() + "/" + d.Source().String(),
		Regs:     d.f,
		Source:   d.Source(),
		Done:     INT.Is(1),
		Clear:    regs.Table{ETCLR.Set(INTCLR.Mask())},
		Result:   TBCTR.All(),
		Abort:    regs.Table{INTEN.Set(0)},
		Periodic: true,
	}
	to := &txn.Opts{Logger: opts.Logger}
	if cb := opts.OnPeriod; cb != nil {
		to.OnResult = func(txn.Result) { cb() }
	}
	c, err := txn.New(h, ic, to)
	if err != nil {
		return nil, fmt.Errorf("epwm: %w", err)
	}
	return &Periods{c: c}, nil
}

// Start enables the interrupt on every zero of the counter.
func (p *Periods) Start() error {
	return p.c.Arm(txn.Request{
		Tag:   "start",
		Start: regs.Table{ETCLR.Set(INTCLR.Mask()), INTSEL.Set(EventZero), INTPRD.Set(1), INTEN.Set(1)},
	})
}

// Next waits for the next period and returns the period count.
func (p *Periods) Next(ctx context.Context) (uint64, error) {
	if _, err := p.c.Await(ctx); err != nil {
		return 0, err
	}
	_, seq, _ := p.c.Latest()
	return seq, nil
}

// Stats returns the interrupt handler counters.
func (p *Periods) Stats() txn.Stats {
	return p.c.Stats()
}

// Close disables the interrupt and unregisters the handler.
func (p *Periods) Close() error {
	return errors.Join(p.c.Disarm(), p.c.Close())
}

var _ gpio.PinOut = &Dev{}
