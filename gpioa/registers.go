// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package gpioa

import "github.com/GermanBionicSystems/piccolo/regs"

// Base is the word address of the GPIO control frame. The data registers
// follow at Base+0x40.
const Base = 0x6F80

// Port A control registers, all EALLOW protected.
var (
	GPACTRL  = regs.R32("GPACTRL", 0x00).Prot()
	GPAQSEL1 = regs.R32("GPAQSEL1", 0x02).Prot()
	GPAQSEL2 = regs.R32("GPAQSEL2", 0x04).Prot()
	GPAMUX1  = regs.R32("GPAMUX1", 0x06).Prot()
	GPAMUX2  = regs.R32("GPAMUX2", 0x08).Prot()
	GPADIR   = regs.R32("GPADIR", 0x0A).Prot()
	GPAPUD   = regs.R32("GPAPUD", 0x0C).Prot()
)

// Port A data registers. Writing ones to GPASET, GPACLEAR or GPATOGGLE acts
// on the output latch; they read as zero.
var (
	GPADAT    = regs.R32("GPADAT", 0x40)
	GPASET    = regs.R32("GPASET", 0x42)
	GPACLEAR  = regs.R32("GPACLEAR", 0x44)
	GPATOGGLE = regs.R32("GPATOGGLE", 0x46)
)

// NumPins is the number of pins of port A.
const NumPins = 32

// Mux returns the 2 bits function select field of pin n.
func Mux(n int) regs.Field {
	if n < 16 {
		return GPAMUX1.Field(uint(n)*2, 2)
	}
	return GPAMUX2.Field(uint(n-16)*2, 2)
}

// QSel returns the 2 bits input qualification field of pin n.
func QSel(n int) regs.Field {
	if n < 16 {
		return GPAQSEL1.Field(uint(n)*2, 2)
	}
	return GPAQSEL2.Field(uint(n-16)*2, 2)
}

// Async is the QSel value for asynchronous inputs, used by the peripheral
// receive pins.
const Async = 3
