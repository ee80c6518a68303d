// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package spia

import "github.com/GermanBionicSystems/piccolo/regs"

// Base is the word address of the SPI-A frame.
const Base = 0x7040

// SPI-A registers.
var (
	SPICCR   = regs.R16("SPICCR", 0x0)
	SPICTL   = regs.R16("SPICTL", 0x1)
	SPISTS   = regs.R16("SPISTS", 0x2)
	SPIBRR   = regs.R16("SPIBRR", 0x4)
	SPIRXEMU = regs.R16("SPIRXEMU", 0x6)
	SPIRXBUF = regs.R16("SPIRXBUF", 0x7)
	SPITXBUF = regs.R16("SPITXBUF", 0x8)
	SPIDAT   = regs.R16("SPIDAT", 0x9)
	SPIPRI   = regs.R16("SPIPRI", 0xF)
)

// SPICCR fields.
var (
	SPICHAR     = SPICCR.Field(0, 4)
	SPILBK      = SPICCR.Bit(4)
	CLKPOLARITY = SPICCR.Bit(6)
	SPISWRESET  = SPICCR.Bit(7)
)

// SPICTL fields.
var (
	SPIINTENA     = SPICTL.Bit(0)
	TALK          = SPICTL.Bit(1)
	MASTERSLAVE   = SPICTL.Bit(2)
	CLKPHASE      = SPICTL.Bit(3)
	OVERRUNINTENA = SPICTL.Bit(4)
)

// SPISTS fields. OVERRUNFLAG is cleared by writing 1, INTFLAG by reading
// SPIRXBUF.
var (
	BUFFULL     = SPISTS.Bit(5)
	INTFLAG     = SPISTS.Bit(6)
	OVERRUNFLAG = SPISTS.Bit(7)
)

// SPIPRI fields.
var (
	FREE = SPIPRI.Bit(4)
	SOFT = SPIPRI.Bit(5)
)
