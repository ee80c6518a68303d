// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package gpioa drives the 32 pins of GPIO port A.
//
// Each pin implements gpio.PinIO and pin.PinFunc. Selecting a peripheral
// function through SetFunc programs the pin mux; the peripheral packages do
// it for their own pins.
package gpioa

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/GermanBionicSystems/piccolo/regs"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/pin"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/uart"
)

// Peripheral functions without a periph.io name.
const (
	EPWM1A pin.Func = "EPWM1A"
	EPWM1B pin.Func = "EPWM1B"
	CANRX  pin.Func = "CANRXA"
	CANTX  pin.Func = "CANTXA"
	ECAP1  pin.Func = "ECAP1"
	EQEP1A pin.Func = "EQEP1A"
	EQEP1B pin.Func = "EQEP1B"
	EQEP1I pin.Func = "EQEP1I"
)

// muxFuncs lists the peripheral function of each mux value 1 to 3, per pin.
var muxFuncs = map[int][3]pin.Func{
	0:  {EPWM1A},
	1:  {EPWM1B},
	16: {spi.MOSI},
	17: {spi.MISO},
	18: {spi.CLK},
	19: {spi.CS, "", ECAP1},
	20: {EQEP1A},
	21: {EQEP1B},
	23: {EQEP1I},
	24: {"", "", ECAP1},
	28: {uart.RX, i2c.SDA},
	29: {uart.TX, i2c.SCL},
	30: {CANRX},
	31: {CANTX},
}

// Opts holds the port configuration.
type Opts struct {
	// Prefix is prepended to the pin number to form the pin names.
	Prefix string
	// Register registers the pins in gpioreg.
	Register bool
}

// DefaultOpts names the pins GPIO0 to GPIO31 without registering them.
var DefaultOpts = Opts{Prefix: "GPIO"}

// Port is GPIO port A.
type Port struct {
	f    *regs.File
	opts Opts
	Pins []*Pin
}

// New returns port A over the register file f.
func New(f *regs.File, opts *Opts) (*Port, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	p := &Port{f: f, opts: *opts}
	if p.opts.Prefix == "" {
		p.opts.Prefix = DefaultOpts.Prefix
	}
	p.Pins = make([]*Pin, NumPins)
	for i := range p.Pins {
		p.Pins[i] = &Pin{port: p, n: i}
	}
	if p.opts.Register {
		for i, pp := range p.Pins {
			if err := gpioreg.Register(pp); err != nil {
				p.unregister(i)
				return nil, fmt.Errorf("gpioa: %w", err)
			}
		}
	}
	return p, nil
}

// Pin returns pin n, or nil.
func (p *Port) Pin(n int) *Pin {
	if n < 0 || n >= len(p.Pins) {
		return nil
	}
	return p.Pins[n]
}

// Close unregisters the pins.
func (p *Port) Close() error {
	if p.opts.Register {
		p.unregister(len(p.Pins))
	}
	return nil
}

func (p *Port) String() string {
	return "gpioa"
}

func (p *Port) unregister(n int) {
	for _, pp := range p.Pins[:n] {
		_ = gpioreg.Unregister(pp.Name())
	}
}

// Pin is one pin of port A.
type Pin struct {
	port *Port
	n    int
}

func (p *Pin) String() string {
	return p.Name()
}

// Halt implements conn.Resource. The pin becomes a floating input.
func (p *Pin) Halt() error {
	return p.In(gpio.Float, gpio.NoEdge)
}

// Name implements pin.Pin.
func (p *Pin) Name() string {
	return p.port.opts.Prefix + strconv.Itoa(p.n)
}

// Number implements pin.Pin.
func (p *Pin) Number() int {
	return p.n
}

// Function implements pin.Pin.
func (p *Pin) Function() string {
	return string(p.Func())
}

// In implements gpio.PinIn. The pin must be in GPIO mode.
func (p *Pin) In(pull gpio.Pull, edge gpio.Edge) error {
	if edge != gpio.NoEdge {
		return errors.New("gpioa: edge detection not supported")
	}
	return p.protected(func(f *regs.File) error {
		switch pull {
		case gpio.PullDown:
			return errors.New("gpioa: PullDown is not supported")
		case gpio.PullUp:
			if err := f.ClearBits(GPAPUD, p.mask()); err != nil {
				return err
			}
		case gpio.Float:
			if err := f.SetBits(GPAPUD, p.mask()); err != nil {
				return err
			}
		case gpio.PullNoChange:
		}
		if err := f.WriteField(Mux(p.n), 0); err != nil {
			return err
		}
		return f.ClearBits(GPADIR, p.mask())
	})
}

// Read implements gpio.PinIn.
func (p *Pin) Read() gpio.Level {
	v, _ := p.port.f.Read(GPADAT)
	return gpio.Level(v&p.mask() != 0)
}

// WaitForEdge implements gpio.PinIn. Edges are not reported.
func (p *Pin) WaitForEdge(timeout time.Duration) bool {
	return false
}

// Pull implements gpio.PinIn.
func (p *Pin) Pull() gpio.Pull {
	v, err := p.port.f.Read(GPAPUD)
	if err != nil {
		return gpio.PullNoChange
	}
	if v&p.mask() != 0 {
		return gpio.Float
	}
	return gpio.PullUp
}

// DefaultPull implements gpio.PinIn. Pins 0 to 11 reset with the pull-up
// disabled.
func (p *Pin) DefaultPull() gpio.Pull {
	if p.n < 12 {
		return gpio.Float
	}
	return gpio.PullUp
}

// Out implements gpio.PinOut. The latch is written before the direction so
// the pin never glitches.
func (p *Pin) Out(l gpio.Level) error {
	if err := p.set(l); err != nil {
		return err
	}
	return p.protected(func(f *regs.File) error {
		if err := f.WriteField(Mux(p.n), 0); err != nil {
			return err
		}
		return f.SetBits(GPADIR, p.mask())
	})
}

// Toggle inverts the output latch.
func (p *Pin) Toggle() error {
	return p.port.f.Write(GPATOGGLE, p.mask())
}

// PWM implements gpio.PinOut. Use the epwm package on the EPWM pins.
func (p *Pin) PWM(duty gpio.Duty, f physic.Frequency) error {
	return errors.New("gpioa: PWM is not supported, use epwm")
}

// Func implements pin.PinFunc.
func (p *Pin) Func() pin.Func {
	mux, err := p.port.f.ReadField(Mux(p.n))
	if err != nil {
		return pin.FuncNone
	}
	if mux != 0 {
		if f := muxFuncs[p.n][mux-1]; f != "" {
			return f
		}
		return pin.Func("MUX" + strconv.Itoa(int(mux)))
	}
	dir, err := p.port.f.Read(GPADIR)
	if err != nil {
		return pin.FuncNone
	}
	if dir&p.mask() != 0 {
		return gpio.OUT
	}
	return gpio.IN
}

// SupportedFuncs implements pin.PinFunc.
func (p *Pin) SupportedFuncs() []pin.Func {
	out := []pin.Func{gpio.IN, gpio.OUT}
	for _, f := range muxFuncs[p.n] {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// SetFunc implements pin.PinFunc.
//
// Selecting a receive function also makes the input asynchronous, as the
// peripheral does its own sampling.
func (p *Pin) SetFunc(f pin.Func) error {
	switch f {
	case gpio.IN:
		return p.In(gpio.PullNoChange, gpio.NoEdge)
	case gpio.OUT:
		return p.Out(p.Read())
	}
	for i, g := range muxFuncs[p.n] {
		if g != f || g == "" {
			continue
		}
		return p.protected(func(r *regs.File) error {
			if isReceive(f) {
				if err := r.WriteField(QSel(p.n), Async); err != nil {
					return err
				}
			}
			return r.WriteField(Mux(p.n), uint32(i+1))
		})
	}
	return fmt.Errorf("gpioa: %s does not support %s", p, f)
}

func isReceive(f pin.Func) bool {
	switch f {
	case uart.RX, spi.MISO, CANRX, ECAP1, EQEP1A, EQEP1B, EQEP1I, i2c.SDA, i2c.SCL:
		return true
	}
	return false
}

func (p *Pin) set(l gpio.Level) error {
	if l {
		return p.port.f.Write(GPASET, p.mask())
	}
	return p.port.f.Write(GPACLEAR, p.mask())
}

func (p *Pin) mask() uint32 {
	return 1 << uint(p.n)
}

func (p *Pin) protected(fn func(f *regs.File) error) error {
	if err := p.port.f.Protected(func() error { return fn(p.port.f) }); err != nil {
		return fmt.Errorf("gpioa: %s: %w", p, err)
	}
	return nil
}

var (
	_ gpio.PinIO  = &Pin{}
	_ pin.PinFunc = &Pin{}
)
