// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ecap

import (
	"strconv"

	"github.com/GermanBionicSystems/piccolo/regs"
)

// Base is the word address of the eCAP1 register frame.
const Base = 0x6A00

// eCAP registers.
var (
	TSCTR  = regs.R32("TSCTR", 0x00)
	CTRPHS = regs.R32("CTRPHS", 0x02)
	ECCTL1 = regs.R16("ECCTL1", 0x14)
	ECCTL2 = regs.R16("ECCTL2", 0x15)
	ECEINT = regs.R16("ECEINT", 0x16)
	ECFLG  = regs.R16("ECFLG", 0x17)
	ECCLR  = regs.R16("ECCLR", 0x18)
)

// CAP returns the capture register n, 1 to 4.
func CAP(n int) regs.Reg {
	return regs.R32("CAP"+strconv.Itoa(n), 0x04+2*uint32(n-1))
}

// ECCTL1 fields.
var (
	CAPLDEN  = ECCTL1.Bit(8)
	PRESCALE = ECCTL1.Field(9, 5)
	FREESOFT = ECCTL1.Field(14, 2)
)

// CAPPOL returns the edge polarity of event n, 1 to 4: 0 rising, 1 falling.
func CAPPOL(n int) regs.Field {
	return ECCTL1.Bit(2 * uint(n-1))
}

// CTRRST returns the counter reset on event n, 1 to 4.
func CTRRST(n int) regs.Field {
	return ECCTL1.Bit(2*uint(n-1) + 1)
}

// ECCTL2 fields.
var (
	CONTONESHT = ECCTL2.Bit(0)
	STOPWRAP   = ECCTL2.Field(1, 2)
	REARM      = ECCTL2.Bit(3)
	TSCTRSTOP  = ECCTL2.Bit(4)
	SYNCIEN    = ECCTL2.Bit(5)
	SYNCOSEL   = ECCTL2.Field(6, 2)
	CAPAPWM    = ECCTL2.Bit(9)
)

// Event bits, the same in ECEINT, ECFLG and ECCLR. ECFLG bit 0 is the global
// interrupt flag.
const (
	INT    = 1 << 0
	CTROVF = 1 << 5
)

// CEVT returns the mask of capture event n, 1 to 4.
func CEVT(n int) uint32 {
	return 1 << uint(n)
}
