// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package watchdog drives the watchdog timer.
//
// WDCR is always written as a whole with the WDCHK bits set to 101, any
// other pattern resets the device. With Opts.Interrupt the counter overflow
// raises WAKEINT instead of resetting the device.
package watchdog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/GermanBionicSystems/piccolo/pie"
	"github.com/GermanBionicSystems/piccolo/regs"
	"github.com/GermanBionicSystems/piccolo/txn"
	"periph.io/x/conn/v3/gpio"
)

// Opts holds the watchdog configuration.
type Opts struct {
	// Prescale is WDPS: WDCLK is OSCCLK/512 divided by 2^(Prescale-1), 0
	// and 1 both dividing by one.
	Prescale uint32
	// Interrupt routes the overflow to WAKEINT instead of the reset.
	Interrupt bool
}

// DefaultOpts raises WAKEINT with no prescaler.
var DefaultOpts = Opts{Interrupt: true}

// Dev is the watchdog.
type Dev struct {
	f    *regs.File
	opts Opts
}

// New disables the watchdog and selects where its overflow goes.
func New(f *regs.File, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	if opts.Prescale > 7 {
		return nil, fmt.Errorf("watchdog: invalid prescale %d", opts.Prescale)
	}
	d := &Dev{f: f, opts: *opts}
	scsr := uint32(0)
	if d.opts.Interrupt {
		scsr = WDENINT.Mask()
	}
	err := f.Protected(func() error {
		if err := f.Write(WDCR, d.wdcr(true)); err != nil {
			return err
		}
		return f.Write(SCSR, scsr)
	})
	if err != nil {
		return nil, fmt.Errorf("watchdog: %w", err)
	}
	return d, nil
}

// Control returns the WDCR value: 0x68 disabled, 0x28 enabled, with the
// prescaler in the low bits.
func Control(disabled bool, prescale uint32) uint32 {
	v := uint32(Check)<<WDCHK.Shift | prescale&WDPS.Mask()
	if disabled {
		v |= WDDIS.Mask()
	}
	return v
}

func (d *Dev) String() string {
	return "watchdog"
}

// Enable starts the counter.
func (d *Dev) Enable() error {
	return d.write(WDCR, d.wdcr(false))
}

// Disable stops the counter.
func (d *Dev) Disable() error {
	return d.write(WDCR, d.wdcr(true))
}

// Service resets the counter.
func (d *Dev) Service() error {
	if err := d.write(WDKEY, Key1); err != nil {
		return err
	}
	return d.write(WDKEY, Key2)
}

// Counter returns the 8 bits counter.
func (d *Dev) Counter() (uint8, error) {
	v, err := d.f.Read(WDCNTR)
	return uint8(v), err
}

// ResetFlag returns true if the last reset was caused by the watchdog, and
// clears the flag.
func (d *Dev) ResetFlag() (bool, error) {
	v, err := d.f.Read(WDCR)
	if err != nil {
		return false, err
	}
	if v&WDFLAG.Mask() == 0 {
		return false, nil
	}
	return true, d.write(WDCR, v&WDDIS.Mask()|d.wdcr(false)|WDFLAG.Mask())
}

func (d *Dev) wdcr(disabled bool) uint32 {
	return Control(disabled, d.opts.Prescale)
}

func (d *Dev) write(r regs.Reg, v uint32) error {
	if err := d.f.Protected(func() error { return d.f.Write(r, v) }); err != nil {
		return fmt.Errorf("watchdog: %w", err)
	}
	return nil
}

// WakeOpts holds the WAKEINT handler configuration.
type WakeOpts struct {
	// Pin, if set, is toggled on every overflow.
	Pin gpio.PinOut
	// OnWake is called from the interrupt handler on every overflow.
	OnWake func()
	Logger txn.Logger
}

// Wake delivers the watchdog overflows.
type Wake struct {
	d   *Dev
	c   *txn.Controller
	log txn.Logger

	mu    sync.Mutex
	pin   gpio.PinOut
	level gpio.Level
}

// NewWake registers the WAKEINT handler on ic. The watchdog must have been
// created with Opts.Interrupt.
func (d *Dev) NewWake(ic *pie.Controller, opts *WakeOpts) (*Wake, error) {
	if !d.opts.Interrupt {
		return nil, errors.New("watchdog: overflow resets the device, WAKEINT unused")
	}
	if opts == nil {
		opts = &WakeOpts{}
	}
	w := &Wake{d: d, log: opts.Logger, pin: opts.Pin}
	h := &txn.Handle{
		Name:     "watchdog/WAKEINT",
		Regs:     d.f,
		Source:   pie.WAKEINT,
		Periodic: true,
	}
	cb := opts.OnWake
	c, err := txn.New(h, ic, &txn.Opts{
		Logger: opts.Logger,
		OnResult: func(txn.Result) {
			w.toggle()
			if cb != nil {
				cb()
			}
		},
	})
	if err != nil {
		return nil, fmt.Errorf("watchdog: %w", err)
	}
	w.c = c
	return w, nil
}

// Start enables the watchdog and arms the handler.
func (w *Wake) Start() error {
	if err := w.c.Arm(txn.Request{Tag: "enable"}); err != nil {
		return err
	}
	if err := w.d.Enable(); err != nil {
		_ = w.c.Disarm()
		return err
	}
	return nil
}

// Next waits for the next overflow and returns the overflow count.
func (w *Wake) Next(ctx context.Context) (uint64, error) {
	if _, err := w.c.Await(ctx); err != nil {
		return 0, err
	}
	return w.Count(), nil
}

// Count returns the number of overflows handled.
func (w *Wake) Count() uint64 {
	_, seq, _ := w.c.Latest()
	return seq
}

// Stop disables the watchdog and disarms the handler.
func (w *Wake) Stop() error {
	return errors.Join(w.c.Disarm(), w.d.Disable())
}

// Close stops the watchdog and unregisters the handler.
func (w *Wake) Close() error {
	return errors.Join(w.Stop(), w.c.Close())
}

func (w *Wake) toggle() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pin == nil {
		return
	}
	var err error
	if p, ok := w.pin.(interface{ Toggle() error }); ok {
		err = p.Toggle()
	} else {
		w.level = !w.level
		err = w.pin.Out(w.level)
	}
	if err != nil && w.log != nil {
		w.log.Printf("watchdog: toggle %s: %v", w.pin, err)
	}
}
