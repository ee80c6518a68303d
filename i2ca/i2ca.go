// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package i2ca drives the I2C-A controller.
//
// As a master, Dev implements the periph i2c.Bus and the tinygo drivers.I2C
// interfaces, with every status wait bounded by Opts.Timeout. As a slave, the
// controller is serviced from the I2CINT1A interrupt, see NewSlave.
package i2ca

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GermanBionicSystems/piccolo/regs"
	"github.com/GermanBionicSystems/piccolo/txn"
	"github.com/jonboulle/clockwork"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"tinygo.org/x/drivers"
)

var (
	// ErrNACK is returned when the addressed device did not acknowledge.
	ErrNACK = errors.New("i2ca: no acknowledge")
	// ErrArbitrationLost is returned when another master took the bus.
	ErrArbitrationLost = errors.New("i2ca: arbitration lost")
)

// Opts holds the controller configuration.
type Opts struct {
	// SysClk is the clock feeding the prescaler.
	SysClk physic.Frequency
	// Speed is the bus clock.
	Speed physic.Frequency
	// Timeout bounds every status wait.
	Timeout time.Duration
	// Clock measures the timeouts.
	Clock clockwork.Clock
}

// DefaultOpts is a 100 kHz bus from a 60 MHz SYSCLKOUT.
var DefaultOpts = Opts{
	SysClk:  60 * physic.MegaHertz,
	Speed:   100 * physic.KiloHertz,
	Timeout: 10 * time.Millisecond,
}

// Dev is the I2C-A controller.
type Dev struct {
	f     *regs.File
	opts  Opts
	clock clockwork.Clock
	stop  *txn.Poller

	mu    sync.Mutex
	speed physic.Frequency
	slave bool
}

// New configures the controller as a master, with interrupts disabled, and
// takes it out of reset.
func New(f *regs.File, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	o := *opts
	if o.SysClk == 0 {
		o.SysClk = DefaultOpts.SysClk
	}
	if o.Speed == 0 {
		o.Speed = DefaultOpts.Speed
	}
	if o.Timeout == 0 {
		o.Timeout = DefaultOpts.Timeout
	}
	d := &Dev{f: f, opts: o, clock: o.Clock}
	if d.clock == nil {
		d.clock = clockwork.NewRealClock()
	}
	// The stop condition completes every master transfer.
	h := &txn.Handle{
		Name:  "i2ca/stop",
		Regs:  f,
		Done:  SCD.Is(1),
		Clear: regs.Table{I2CSTR.Set(SCD.Mask())},
		Abort: regs.Table{IRS.Set(0), IRS.Set(1)},
	}
	p, err := txn.NewPoller(h, &txn.PollOpts{Clock: d.clock})
	if err != nil {
		return nil, err
	}
	d.stop = p
	t, speed, err := ConfigTable(o.SysClk, o.Speed)
	if err != nil {
		return nil, err
	}
	t = append(t, I2CIER.Set(0), I2CMDR.Set(IRS.Mask()))
	if err := f.Apply(t); err != nil {
		return nil, fmt.Errorf("i2ca: %w", err)
	}
	d.speed = speed
	return d, nil
}

// Divider returns the prescaler and the clock low and high times for the bus
// speed f. The module clock is kept at or below 10 MHz.
func Divider(sysclk, f physic.Frequency) (psc, clkl, clkh uint16, err error) {
	if sysclk <= 0 || f <= 0 {
		return 0, 0, 0, fmt.Errorf("i2ca: invalid speed %s", f)
	}
	n := int64((sysclk + 10*physic.MegaHertz - 1) / (10 * physic.MegaHertz))
	if n < 1 {
		n = 1
	}
	if n > 256 {
		return 0, 0, 0, fmt.Errorf("i2ca: %s too fast for the prescaler", sysclk)
	}
	psc = uint16(n - 1)
	mod := sysclk / physic.Frequency(n)
	total := int64(mod/f) - 2*int64(delay(psc))
	if total < 2 || total > 2*0xFFFF {
		return 0, 0, 0, fmt.Errorf("i2ca: %s out of range from %s", f, mod)
	}
	clkh = uint16(total / 2)
	clkl = uint16(total - total/2)
	return psc, clkl, clkh, nil
}

// Speed returns the bus clock for the divider values.
func Speed(sysclk physic.Frequency, psc, clkl, clkh uint16) physic.Frequency {
	mod := sysclk / physic.Frequency(psc+1)
	return mod / physic.Frequency(int64(clkl)+int64(clkh)+2*int64(delay(psc)))
}

// delay is the fixed part of each clock half period, in module clocks.
func delay(psc uint16) uint16 {
	switch psc {
	case 0:
		return 7
	case 1:
		return 6
	default:
		return 5
	}
}

// ConfigTable returns the writes setting the bus speed. The controller is
// held in reset while the dividers change.
func ConfigTable(sysclk, f physic.Frequency) (regs.Table, physic.Frequency, error) {
	psc, clkl, clkh, err := Divider(sysclk, f)
	if err != nil {
		return nil, 0, err
	}
	return regs.Table{
		IRS.Set(0),
		I2CPSC.Set(uint32(psc)),
		I2CCLKL.Set(uint32(clkl)),
		I2CCLKH.Set(uint32(clkh)),
	}, Speed(sysclk, psc, clkl, clkh), nil
}

func (d *Dev) String() string {
	return "i2ca"
}

// SetSpeed implements i2c.Bus.
func (d *Dev) SetSpeed(f physic.Frequency) error {
	t, speed, err := ConfigTable(d.opts.SysClk, f)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.f.Apply(append(t, IRS.Set(1))); err != nil {
		return fmt.Errorf("i2ca: %w", err)
	}
	d.speed = speed
	return nil
}

// Speed returns the actual bus clock.
func (d *Dev) Speed() physic.Frequency {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.speed
}

// Tx implements i2c.Bus and drivers.I2C.
//
// w is sent first. If r is not empty a repeated start follows and len(r)
// bytes are read. Only 7 bits addresses are supported.
func (d *Dev) Tx(addr uint16, w, r []byte) error {
	if addr > 0x7F {
		return fmt.Errorf("i2ca: invalid address %#x", addr)
	}
	if len(w) == 0 && len(r) == 0 {
		return errors.New("i2ca: empty transaction")
	}
	if len(w) > 0xFFFF || len(r) > 0xFFFF {
		return errors.New("i2ca: transfer too long")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.slave {
		return errors.New("i2ca: controller is in slave mode")
	}
	if err := d.stop.Wait(STP.Is(0), d.opts.Timeout); err != nil {
		return fmt.Errorf("i2ca: previous stop: %w", err)
	}
	if err := d.stop.Wait(BB.Is(0), d.opts.Timeout); err != nil {
		return fmt.Errorf("i2ca: bus busy: %w", err)
	}
	if err := d.tx(addr, w, r); err != nil {
		d.recover()
		return fmt.Errorf("i2ca: %#x: %w", addr, err)
	}
	return nil
}

func (d *Dev) tx(addr uint16, w, r []byte) error {
	if len(w) != 0 {
		if err := d.start(addr, len(w), true, len(r) == 0); err != nil {
			return err
		}
		for _, b := range w {
			if err := d.await(XRDY); err != nil {
				return err
			}
			if err := d.f.Write(I2CDXR, uint32(b)); err != nil {
				return err
			}
		}
		if len(r) != 0 {
			if err := d.await(ARDY); err != nil {
				return err
			}
			if err := d.f.Write(I2CSTR, ARDY.Mask()); err != nil {
				return err
			}
		}
	}
	if len(r) != 0 {
		if err := d.start(addr, len(r), false, true); err != nil {
			return err
		}
		for i := range r {
			if err := d.await(RRDY); err != nil {
				return err
			}
			v, err := d.f.Read(I2CDRR)
			if err != nil {
				return err
			}
			r[i] = byte(v)
		}
	}
	if _, err := d.stop.Execute(txn.Request{Tag: "stop"}, d.opts.Timeout); err != nil {
		return err
	}
	if nack, err := d.f.Met(NACK.Is(1)); err != nil || nack {
		if err == nil {
			err = ErrNACK
		}
		return err
	}
	return nil
}

// start addresses the device for n bytes, in transmit mode when trx is set.
// With stop the controller generates a stop condition after the last byte.
func (d *Dev) start(addr uint16, n int, trx, stop bool) error {
	mdr := IRS.Mask() | MST.Mask() | STT.Mask() | FREE.Mask()
	if trx {
		mdr |= TRX.Mask()
	}
	if stop {
		mdr |= STP.Mask()
	}
	return d.f.Apply(regs.Table{
		I2CSAR.Set(uint32(addr)),
		I2CCNT.Set(uint32(n)),
		I2CMDR.Set(mdr),
	})
}

// await waits for the status bit fd, failing early on a missing acknowledge
// or a lost arbitration.
func (d *Dev) await(fd regs.Field) error {
	return txn.WaitFor(d.clock, 0, d.opts.Timeout, func() (bool, error) {
		st, err := d.f.Read(I2CSTR)
		if err != nil {
			return false, err
		}
		switch {
		case st&NACK.Mask() != 0:
			return false, ErrNACK
		case st&AL.Mask() != 0:
			return false, ErrArbitrationLost
		}
		return st&fd.Mask() != 0, nil
	})
}

// recover releases the bus after a failed transfer and clears the error
// flags.
func (d *Dev) recover() {
	if mst, _ := d.f.Met(MST.Is(1)); mst {
		_ = d.f.WriteField(STP, 1)
		_, _ = d.stop.Execute(txn.Request{Tag: "recover"}, d.opts.Timeout)
	}
	_ = d.f.Write(I2CSTR, clearable)
}

var (
	_ i2c.Bus     = &Dev{}
	_ drivers.I2C = &Dev{}
)
