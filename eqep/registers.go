// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package eqep

import "github.com/GermanBionicSystems/piccolo/regs"

// Base is the word address of the eQEP1 register frame.
const Base = 0x6B00

// eQEP registers.
var (
	QPOSCNT  = regs.R32("QPOSCNT", 0x00)
	QPOSINIT = regs.R32("QPOSINIT", 0x02)
	QPOSMAX  = regs.R32("QPOSMAX", 0x04)
	QPOSLAT  = regs.R32("QPOSLAT", 0x0C)
	QUTMR    = regs.R32("QUTMR", 0x0E)
	QUPRD    = regs.R32("QUPRD", 0x10)
	QDECCTL  = regs.R16("QDECCTL", 0x14)
	QEPCTL   = regs.R16("QEPCTL", 0x15)
	QCAPCTL  = regs.R16("QCAPCTL", 0x16)
	QEINT    = regs.R16("QEINT", 0x18)
	QFLG     = regs.R16("QFLG", 0x19)
	QCLR     = regs.R16("QCLR", 0x1A)
	QEPSTS   = regs.R16("QEPSTS", 0x1C)
)

// QDECCTL fields.
var (
	QSRC = QDECCTL.Field(14, 2)
	SWAP = QDECCTL.Bit(10)
)

// QEPCTL fields.
var (
	FREESOFT = QEPCTL.Field(14, 2)
	PCRM     = QEPCTL.Field(12, 2)
	SWI      = QEPCTL.Bit(7)
	QPEN     = QEPCTL.Bit(3)
	QCLM     = QEPCTL.Bit(2)
	UTE      = QEPCTL.Bit(1)
	WDE      = QEPCTL.Bit(0)
)

// QCAPCTL fields.
var (
	CEN  = QCAPCTL.Bit(15)
	CCPS = QCAPCTL.Field(4, 3)
	UPPS = QCAPCTL.Field(0, 4)
)

// Interrupt bits, the same in QEINT, QFLG and QCLR. QFLG bit 0 is the global
// interrupt flag.
const (
	INT = 1 << 0
	PCE = 1 << 1
	PCO = 1 << 6
	PCU = 1 << 5
	UTO = 1 << 11
)

// UTOFlag is the unit time out flag.
var UTOFlag = QFLG.Bit(11)
