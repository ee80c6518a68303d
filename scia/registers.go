// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package scia

import "github.com/GermanBionicSystems/piccolo/regs"

// Base is the word address of the SCI-A frame.
const Base = 0x7050

// SCI-A registers.
var (
	SCICCR   = regs.R16("SCICCR", 0x0)
	SCICTL1  = regs.R16("SCICTL1", 0x1)
	SCIHBAUD = regs.R16("SCIHBAUD", 0x2)
	SCILBAUD = regs.R16("SCILBAUD", 0x3)
	SCICTL2  = regs.R16("SCICTL2", 0x4)
	SCIRXST  = regs.R16("SCIRXST", 0x5)
	SCIRXBUF = regs.R16("SCIRXBUF", 0x7)
	SCITXBUF = regs.R16("SCITXBUF", 0x9)
	SCIFFTX  = regs.R16("SCIFFTX", 0xA)
	SCIFFRX  = regs.R16("SCIFFRX", 0xB)
	SCIFFCT  = regs.R16("SCIFFCT", 0xC)
	SCIPRI   = regs.R16("SCIPRI", 0xF)
)

// SCICCR fields.
var (
	SCICHAR   = SCICCR.Field(0, 3)
	LOOPBKENA = SCICCR.Bit(4)
	PARITYENA = SCICCR.Bit(5)
	PARITY    = SCICCR.Bit(6)
	STOPBITS  = SCICCR.Bit(7)
)

// SCICTL1 fields.
var (
	RXENA       = SCICTL1.Bit(0)
	TXENA       = SCICTL1.Bit(1)
	SWRESET     = SCICTL1.Bit(5)
	RXERRINTENA = SCICTL1.Bit(6)
)

// SCICTL2 fields.
var (
	TXINTENA   = SCICTL2.Bit(0)
	RXBKINTENA = SCICTL2.Bit(1)
	TXEMPTY    = SCICTL2.Bit(6)
	TXRDY      = SCICTL2.Bit(7)
)

// SCIRXST fields.
var (
	PE      = SCIRXST.Bit(2)
	OE      = SCIRXST.Bit(3)
	FE      = SCIRXST.Bit(4)
	BRKDT   = SCIRXST.Bit(5)
	RXRDY   = SCIRXST.Bit(6)
	RXERROR = SCIRXST.Bit(7)
)

// RXDT is the received character.
var RXDT = SCIRXBUF.Field(0, 8)

// SCIFFTX fields.
var (
	TXFFIL      = SCIFFTX.Field(0, 5)
	TXFFIENA    = SCIFFTX.Bit(5)
	TXFFINTCLR  = SCIFFTX.Bit(6)
	TXFFINT     = SCIFFTX.Bit(7)
	TXFFST      = SCIFFTX.Field(8, 5)
	TXFIFORESET = SCIFFTX.Bit(13)
	SCIFFENA    = SCIFFTX.Bit(14)
	SCIRST      = SCIFFTX.Bit(15)
)

// SCIFFRX fields.
var (
	RXFFIL      = SCIFFRX.Field(0, 5)
	RXFFIENA    = SCIFFRX.Bit(5)
	RXFFINTCLR  = SCIFFRX.Bit(6)
	RXFFINT     = SCIFFRX.Bit(7)
	RXFFST      = SCIFFRX.Field(8, 5)
	RXFIFORESET = SCIFFRX.Bit(13)
	RXFFOVRCLR  = SCIFFRX.Bit(14)
	RXFFOVF     = SCIFFRX.Bit(15)
)

// FIFODepth is the depth of both FIFOs.
const FIFODepth = 4

// SCIPRI fields.
var FREESOFT = SCIPRI.Field(3, 2)
