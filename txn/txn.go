// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package txn runs single shot peripheral transactions.
//
// A transaction writes a start condition to a peripheral, waits for the
// peripheral to report completion, reads the result once and clears the
// completion flag. Controller waits through the interrupt controller and
// Poller spins on the status register with a bounded timeout.
//
// At most one transaction may be outstanding per Handle. Starting a second
// one returns ErrAlreadyArmed and leaves the first one untouched.
package txn

import (
	"errors"
	"fmt"

	"github.com/GermanBionicSystems/piccolo/pie"
	"github.com/GermanBionicSystems/piccolo/regs"
)

var (
	// ErrAlreadyArmed is returned when a transaction is started while another
	// one is outstanding on the same handle.
	ErrAlreadyArmed = errors.New("txn: transaction already outstanding")
	// ErrTimeout is returned when the peripheral did not report completion in
	// time.
	ErrTimeout = errors.New("txn: timed out waiting for the peripheral")
	// ErrUnexpectedInterruptCode is returned by a Handle reader for an
	// interrupt cause it does not handle. The interrupt is still cleared and
	// acknowledged.
	ErrUnexpectedInterruptCode = errors.New("txn: unexpected interrupt code")
)

// CodeError carries the hardware interrupt code behind
// ErrUnexpectedInterruptCode.
type CodeError struct {
	Code uint32
}

func (e *CodeError) Error() string {
	return fmt.Sprintf("txn: unexpected interrupt code %#x", e.Code)
}

// Unwrap returns ErrUnexpectedInterruptCode.
func (e *CodeError) Unwrap() error {
	return ErrUnexpectedInterruptCode
}

// Logger is the logging sink. *log.Logger implements it.
type Logger = pie.Logger

// Status is the completion status of a Result.
type Status uint8

const (
	// Unset is the status of a Result that was never produced.
	Unset Status = iota
	// OK means the peripheral completed the transaction.
	OK
	// TimedOut means the peripheral never reported completion.
	TimedOut
)

func (s Status) String() string {
	switch s {
	case OK:
		return "OK"
	case TimedOut:
		return "TimedOut"
	default:
		return "Unset"
	}
}

// Result is the outcome of one transaction.
type Result struct {
	Value  uint32   // main data register, after Handle.Shift
	Values []uint32 // multi register reads, when the handle reader returns them
	Code   uint32   // interrupt cause, when the peripheral reports one
	Status Status
}

// Request starts one transaction.
type Request struct {
	Tag   string     // used in errors and logs
	Start regs.Table // writes that start the operation
}

// Handle describes one configured peripheral instance.
type Handle struct {
	Name string
	Regs *regs.File
	// Source is the interrupt line; None for polled peripherals.
	Source pie.Source
	// Done is the completion condition. A zero Done means the interrupt
	// itself is the only completion signal.
	Done regs.Cond
	// Clear is written after the result is read, to clear the peripheral
	// completion flag.
	Clear regs.Table
	// Result is the data register and Shift the right shift applied to it.
	Result regs.Field
	Shift  uint
	// Read replaces Result when the data is not a single field.
	Read func(f *regs.File) (Result, error)
	// Abort is written when a transaction is abandoned.
	Abort regs.Table
	// Periodic handles stay armed after each completion.
	Periodic bool
}

func (h *Handle) String() string {
	if h.Name != "" {
		return h.Name
	}
	return h.Regs.String()
}

func (h *Handle) ready() (bool, error) {
	if h.Done.Field.Width == 0 {
		return true, nil
	}
	return h.Regs.Met(h.Done)
}

func (h *Handle) read() (Result, error) {
	if h.Read != nil {
		return h.Read(h.Regs)
	}
	if h.Result.Width == 0 {
		return Result{}, nil
	}
	v, err := h.Regs.ReadField(h.Result)
	if err != nil {
		return Result{}, err
	}
	return Result{Value: v >> h.Shift}, nil
}

func (h *Handle) clear() error {
	if len(h.Clear) == 0 {
		return nil
	}
	return h.Regs.Apply(h.Clear)
}

func (h *Handle) abort() error {
	if len(h.Abort) == 0 {
		return nil
	}
	return h.Regs.Apply(h.Abort)
}

func (h *Handle) validate() error {
	if h == nil || h.Regs == nil {
		return errors.New("txn: handle without register file")
	}
	return nil
}
