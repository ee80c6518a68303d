// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package i2ca

import "github.com/GermanBionicSystems/piccolo/regs"

// Base is the word address of the I2C-A frame.
const Base = 0x7900

// I2C-A registers.
var (
	I2COAR  = regs.R16("I2COAR", 0x0)
	I2CIER  = regs.R16("I2CIER", 0x1)
	I2CSTR  = regs.R16("I2CSTR", 0x2)
	I2CCLKL = regs.R16("I2CCLKL", 0x3)
	I2CCLKH = regs.R16("I2CCLKH", 0x4)
	I2CCNT  = regs.R16("I2CCNT", 0x5)
	I2CDRR  = regs.R16("I2CDRR", 0x6)
	I2CSAR  = regs.R16("I2CSAR", 0x7)
	I2CDXR  = regs.R16("I2CDXR", 0x8)
	I2CMDR  = regs.R16("I2CMDR", 0x9)
	I2CISRC = regs.R16("I2CISRC", 0xA)
	I2CPSC  = regs.R16("I2CPSC", 0xC)
)

// I2CIER and I2CSTR share the layout of the event bits. AL, NACK, ARDY and
// SCD are cleared by writing 1. RRDY is cleared by reading I2CDRR and XRDY by
// writing I2CDXR.
var (
	AL   = I2CSTR.Bit(0)
	NACK = I2CSTR.Bit(1)
	ARDY = I2CSTR.Bit(2)
	RRDY = I2CSTR.Bit(3)
	XRDY = I2CSTR.Bit(4)
	SCD  = I2CSTR.Bit(5)
	AAS  = I2CSTR.Bit(9)
	BB   = I2CSTR.Bit(12)
)

// I2CMDR fields.
var (
	IRS  = I2CMDR.Bit(5)
	TRX  = I2CMDR.Bit(9)
	MST  = I2CMDR.Bit(10)
	STP  = I2CMDR.Bit(11)
	STT  = I2CMDR.Bit(13)
	FREE = I2CMDR.Bit(14)
)

// INTCODE is the source of the pending interrupt.
var INTCODE = I2CISRC.Field(0, 3)

// Interrupt codes read from INTCODE.
const (
	CodeNone = 0
	CodeAL   = 1
	CodeNACK = 2
	CodeARDY = 3
	CodeRRDY = 4
	CodeXRDY = 5
	CodeSCD  = 6
	CodeAAS  = 7
)

// clearable is the mask of the I2CSTR bits cleared by writing 1.
var clearable = AL.Mask() | NACK.Mask() | ARDY.Mask() | SCD.Mask()
