// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package i2ca

import (
	"context"
	"errors"
	"fmt"

	"github.com/GermanBionicSystems/piccolo/pie"
	"github.com/GermanBionicSystems/piccolo/regs"
	"github.com/GermanBionicSystems/piccolo/txn"
)

// SlaveOpts holds the slave configuration.
type SlaveOpts struct {
	// Addr is the own address of the controller.
	Addr uint16
	// Reply returns the byte sent when the master reads. nil sends 0xA5.
	Reply func() byte
	// OnEvent is called from the interrupt handler with every event.
	OnEvent func(Event)
	Logger  txn.Logger
}

// DefaultSlaveOpts answers at 0x50.
var DefaultSlaveOpts = SlaveOpts{Addr: 0x50}

// Event is one serviced slave interrupt.
type Event struct {
	Code uint32 // CodeRRDY, CodeXRDY or CodeSCD
	Data byte   // received or sent byte
}

func (e Event) String() string {
	switch e.Code {
	case CodeRRDY:
		return fmt.Sprintf("received %#02x", e.Data)
	case CodeXRDY:
		return fmt.Sprintf("sent %#02x", e.Data)
	case CodeSCD:
		return "stop"
	default:
		return fmt.Sprintf("code %d", e.Code)
	}
}

// Slave services the controller as a slave from I2CINT1A.
type Slave struct {
	d     *Dev
	c     *txn.Controller
	reply func() byte
}

// NewSlave switches the controller to slave mode at opts.Addr and registers
// its interrupt handler on ic. Tx fails until the Slave is closed.
//
// The handler dispatches on INTCODE: receive ready reads I2CDRR, transmit
// ready writes the reply to I2CDXR and a stop condition ends the transfer.
// Other codes are counted as unexpected. SCD is cleared on every interrupt.
func (d *Dev) NewSlave(ic *pie.Controller, opts *SlaveOpts) (*Slave, error) {
	if opts == nil {
		opts = &DefaultSlaveOpts
	}
	if opts.Addr == 0 || opts.Addr > 0x7F {
		return nil, fmt.Errorf("i2ca: invalid own address %#x", opts.Addr)
	}
	s := &Slave{d: d, reply: opts.Reply}
	if s.reply == nil {
		s.reply = func() byte { return 0xA5 }
	}
	h := &txn.Handle{
		Name:     "i2ca/I2CINT1A",
		Regs:     d.f,
		Source:   pie.I2CINT1A,
		Clear:    regs.Table{I2CSTR.Set(SCD.Mask())},
		Read:     s.service,
		Abort:    regs.Table{I2CIER.Set(0)},
		Periodic: true,
	}
	to := &txn.Opts{Logger: opts.Logger}
	if cb := opts.OnEvent; cb != nil {
		to.OnResult = func(r txn.Result) { cb(Event{Code: r.Code, Data: byte(r.Value)}) }
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.slave {
		return nil, errors.New("i2ca: slave already running")
	}
	c, err := txn.New(h, ic, to)
	if err != nil {
		return nil, fmt.Errorf("i2ca: %w", err)
	}
	err = d.f.Apply(regs.Table{
		IRS.Set(0),
		I2COAR.Set(uint32(opts.Addr)),
		I2CSTR.Set(clearable),
		I2CMDR.Set(IRS.Mask()),
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("i2ca: %w", err)
	}
	s.c = c
	d.slave = true
	return s, nil
}

func (s *Slave) service(f *regs.File) (txn.Result, error) {
	code, err := f.ReadField(INTCODE)
	if err != nil {
		return txn.Result{}, err
	}
	r := txn.Result{Code: code}
	switch code {
	case CodeRRDY:
		v, err := f.Read(I2CDRR)
		r.Value = v & 0xFF
		return r, err
	case CodeXRDY:
		b := s.reply()
		r.Value = uint32(b)
		return r, f.Write(I2CDXR, uint32(b))
	case CodeSCD:
		return r, nil
	default:
		return r, &txn.CodeError{Code: code}
	}
}

// Start enables the receive ready, transmit ready and stop interrupts.
func (s *Slave) Start() error {
	return s.c.Arm(txn.Request{
		Tag:   "slave",
		Start: regs.Table{I2CIER.Set(RRDY.Mask() | XRDY.Mask() | SCD.Mask())},
	})
}

// Next waits for the next event.
func (s *Slave) Next(ctx context.Context) (Event, error) {
	r, err := s.c.Await(ctx)
	return Event{Code: r.Code, Data: byte(r.Value)}, err
}

// Stats returns the interrupt handler counters.
func (s *Slave) Stats() txn.Stats {
	return s.c.Stats()
}

// Close disables the interrupts, unregisters the handler and returns the
// controller to master mode.
func (s *Slave) Close() error {
	err := errors.Join(s.c.Disarm(), s.c.Close())
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	s.d.slave = false
	return errors.Join(err, s.d.f.Apply(regs.Table{I2CIER.Set(0), I2CMDR.Set(IRS.Mask())}))
}
