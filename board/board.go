// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package board assembles the peripherals of an F2802x device.
//
// A Board owns the register address space and the interrupt controller
// shared by every peripheral. Each Open function enables the peripheral clock
// in PCLKCR0 or PCLKCR1 and returns the driver with the board clocks filled
// in.
package board

import (
	"context"
	"fmt"

	"github.com/GermanBionicSystems/piccolo/adc"
	"github.com/GermanBionicSystems/piccolo/cputimer"
	"github.com/GermanBionicSystems/piccolo/ecan"
	"github.com/GermanBionicSystems/piccolo/ecap"
	"github.com/GermanBionicSystems/piccolo/epwm"
	"github.com/GermanBionicSystems/piccolo/eqep"
	"github.com/GermanBionicSystems/piccolo/gpioa"
	"github.com/GermanBionicSystems/piccolo/i2ca"
	"github.com/GermanBionicSystems/piccolo/pie"
	"github.com/GermanBionicSystems/piccolo/regs"
	"github.com/GermanBionicSystems/piccolo/scia"
	"github.com/GermanBionicSystems/piccolo/spia"
	"github.com/GermanBionicSystems/piccolo/watchdog"
	"github.com/jonboulle/clockwork"
	"periph.io/x/conn/v3/physic"
)

// Opts holds the board clocks.
type Opts struct {
	// SysClk is SYSCLKOUT.
	SysClk physic.Frequency
	// LSPCLK is the low speed peripheral clock of SCI-A and SPI-A.
	LSPCLK physic.Frequency
	// Clock measures every timeout.
	Clock clockwork.Clock
	// Logger receives the interrupt controller warnings.
	Logger pie.Logger
}

// DefaultOpts is the LaunchPad running at 60 MHz.
var DefaultOpts = Opts{
	SysClk: 60 * physic.MegaHertz,
	LSPCLK: 37500 * physic.KiloHertz,
}

// Board is one device.
type Board struct {
	// IC is the interrupt controller shared by all the peripherals.
	IC *pie.Controller

	s    *regs.Space
	sys  *regs.File
	opts Opts
}

// New returns a Board whose registers are accessed through bus.
func New(bus regs.Bus, opts *Opts) *Board {
	if opts == nil {
		opts = &DefaultOpts
	}
	o := *opts
	if o.SysClk == 0 {
		o.SysClk = DefaultOpts.SysClk
	}
	if o.LSPCLK == 0 {
		o.LSPCLK = DefaultOpts.LSPCLK
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	s := regs.NewSpace(bus)
	return &Board{
		IC:   pie.New(&pie.Opts{Logger: o.Logger}),
		s:    s,
		sys:  s.File(SysCtrlBase, "SysCtrlRegs"),
		opts: o,
	}
}

// Space returns the register address space.
func (b *Board) Space() *regs.Space {
	return b.s
}

// Run services the interrupts until ctx is done.
func (b *Board) Run(ctx context.Context) error {
	return b.IC.Run(ctx)
}

// EnableClocks sets the given clock enables.
func (b *Board) EnableClocks(fds ...regs.Field) error {
	err := b.sys.Protected(func() error {
		for _, fd := range fds {
			if err := b.sys.SetBits(fd.Reg, fd.Mask()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("board: %w", err)
	}
	return nil
}

// OpenGPIO returns port A.
func (b *Board) OpenGPIO(opts *gpioa.Opts) (*gpioa.Port, error) {
	return gpioa.New(b.s.File(gpioa.Base, "GpioCtrlRegs"), opts)
}

// OpenADC enables the ADC clock and powers the ADC up.
func (b *Board) OpenADC(opts *adc.Opts) (*adc.Dev, error) {
	if err := b.EnableClocks(ADCENCLK); err != nil {
		return nil, err
	}
	o := adc.DefaultOpts
	if opts != nil {
		o = *opts
	}
	if o.Clock == nil {
		o.Clock = b.opts.Clock
	}
	return adc.New(b.s.File(adc.Base, "AdcRegs"), &o)
}

// OpenSCI enables the SCI-A clock and configures the port.
func (b *Board) OpenSCI(opts *scia.Opts) (*scia.Dev, error) {
	if err := b.EnableClocks(SCIAENCLK); err != nil {
		return nil, err
	}
	o := scia.DefaultOpts
	o.LSPCLK = b.opts.LSPCLK
	if opts != nil {
		o = *opts
	}
	if o.LSPCLK == 0 {
		o.LSPCLK = b.opts.LSPCLK
	}
	if o.Clock == nil {
		o.Clock = b.opts.Clock
	}
	return scia.New(b.s.File(scia.Base, "SciaRegs"), &o)
}

// OpenSPI enables the SPI-A clock and configures the port.
func (b *Board) OpenSPI(opts *spia.Opts) (*spia.Dev, error) {
	if err := b.EnableClocks(SPIAENCLK); err != nil {
		return nil, err
	}
	o := spia.DefaultOpts
	o.LSPCLK = b.opts.LSPCLK
	if opts != nil {
		o = *opts
	}
	if o.LSPCLK == 0 {
		o.LSPCLK = b.opts.LSPCLK
	}
	if o.Clock == nil {
		o.Clock = b.opts.Clock
	}
	return spia.New(b.s.File(spia.Base, "SpiaRegs"), &o)
}

// OpenI2C enables the I2C-A clock and configures the bus master.
func (b *Board) OpenI2C(opts *i2ca.Opts) (*i2ca.Dev, error) {
	if err := b.EnableClocks(I2CAENCLK); err != nil {
		return nil, err
	}
	o := i2ca.DefaultOpts
	o.SysClk = b.opts.SysClk
	if opts != nil {
		o = *opts
	}
	if o.SysClk == 0 {
		o.SysClk = b.opts.SysClk
	}
	if o.Clock == nil {
		o.Clock = b.opts.Clock
	}
	return i2ca.New(b.s.File(i2ca.Base, "I2caRegs"), &o)
}

// OpenCAN enables the eCAN-A clock and runs the configuration handshake.
func (b *Board) OpenCAN(opts *ecan.Opts) (*ecan.Dev, error) {
	if err := b.EnableClocks(ECANAENCLK); err != nil {
		return nil, err
	}
	o := ecan.DefaultOpts
	o.CANClk = b.opts.SysClk / 2
	if opts != nil {
		o = *opts
	}
	if o.CANClk == 0 {
		o.CANClk = b.opts.SysClk / 2
	}
	if o.Clock == nil {
		o.Clock = b.opts.Clock
	}
	return ecan.New(b.s.File(ecan.Base, "ECanaRegs"), &o)
}

// OpenTimer configures CPU timer opts.Timer. The CPU timers are always
// clocked.
func (b *Board) OpenTimer(opts *cputimer.Opts) (*cputimer.Dev, error) {
	o := cputimer.DefaultOpts
	o.CPUFreq = b.opts.SysClk
	if opts != nil {
		o = *opts
	}
	if o.CPUFreq == 0 {
		o.CPUFreq = b.opts.SysClk
	}
	if o.Timer < 0 || o.Timer > 2 {
		return nil, fmt.Errorf("board: invalid timer %d", o.Timer)
	}
	name := fmt.Sprintf("CpuTimer%dRegs", o.Timer)
	return cputimer.New(b.s.File(cputimer.Base(o.Timer), name), &o)
}

// OpenWatchdog configures the watchdog, disabled.
func (b *Board) OpenWatchdog(opts *watchdog.Opts) (*watchdog.Dev, error) {
	return watchdog.New(b.sys, opts)
}

// OpenPWM enables the clock of ePWM opts.Module and its time base, then
// returns the module with its output forced low.
func (b *Board) OpenPWM(opts *epwm.Opts) (*epwm.Dev, error) {
	o := epwm.DefaultOpts
	o.TBCLK = b.opts.SysClk
	if opts != nil {
		o = *opts
	}
	if o.Module == 0 {
		o.Module = epwm.DefaultOpts.Module
	}
	if o.Module < 1 || o.Module > 4 {
		return nil, fmt.Errorf("board: invalid ePWM %d", o.Module)
	}
	if o.TBCLK == 0 {
		o.TBCLK = b.opts.SysClk
	}
	if err := b.EnableClocks(EPWMENCLK(o.Module), TBCLKSYNC); err != nil {
		return nil, err
	}
	name := fmt.Sprintf("EPwm%dRegs", o.Module)
	return epwm.New(b.s.File(epwm.Base(o.Module), name), &o)
}

// OpenECAP enables the eCAP1 clock and starts the capture.
func (b *Board) OpenECAP(opts *ecap.Opts) (*ecap.Dev, error) {
	if err := b.EnableClocks(ECAP1ENCLK); err != nil {
		return nil, err
	}
	o := ecap.DefaultOpts
	o.SysClk = b.opts.SysClk
	if opts != nil {
		o = *opts
	}
	if o.SysClk == 0 {
		o.SysClk = b.opts.SysClk
	}
	if o.Clock == nil {
		o.Clock = b.opts.Clock
	}
	return ecap.New(b.s.File(ecap.Base, "ECap1Regs"), &o)
}

// OpenEQEP enables the eQEP1 clock and starts the position counter.
func (b *Board) OpenEQEP(opts *eqep.Opts) (*eqep.Dev, error) {
	if err := b.EnableClocks(EQEP1ENCLK); err != nil {
		return nil, err
	}
	o := eqep.DefaultOpts
	o.SysClk = b.opts.SysClk
	if opts != nil {
		o = *opts
	}
	if o.SysClk == 0 {
		o.SysClk = b.opts.SysClk
	}
	if o.Clock == nil {
		o.Clock = b.opts.Clock
	}
	return eqep.New(b.s.File(eqep.Base, "EQep1Regs"), &o)
}
