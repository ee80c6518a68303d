// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package epwm

import "github.com/GermanBionicSystems/piccolo/regs"

// Base returns the word address of the ePWMn frame, n from 1 to 4.
func Base(n int) uint32 {
	return 0x6800 + uint32(n-1)*0x40
}

// ePWM registers.
var (
	TBCTL   = regs.R16("TBCTL", 0x00)
	TBSTS   = regs.R16("TBSTS", 0x01)
	TBPHS   = regs.R16("TBPHS", 0x03)
	TBCTR   = regs.R16("TBCTR", 0x04)
	TBPRD   = regs.R16("TBPRD", 0x05)
	CMPCTL  = regs.R16("CMPCTL", 0x07)
	CMPA    = regs.R16("CMPA", 0x09)
	CMPB    = regs.R16("CMPB", 0x0A)
	AQCTLA  = regs.R16("AQCTLA", 0x0B)
	AQCSFRC = regs.R16("AQCSFRC", 0x0F)
	ETSEL   = regs.R16("ETSEL", 0x19)
	ETPS    = regs.R16("ETPS", 0x1A)
	ETFLG   = regs.R16("ETFLG", 0x1B)
	ETCLR   = regs.R16("ETCLR", 0x1C)
)

// TBCTL fields.
var (
	CTRMODE   = TBCTL.Field(0, 2)
	PHSEN     = TBCTL.Bit(2)
	PRDLD     = TBCTL.Bit(3)
	HSPCLKDIV = TBCTL.Field(7, 3)
	CLKDIV    = TBCTL.Field(10, 3)
	FREESOFT  = TBCTL.Field(14, 2)
)

// CTRMODE values.
const (
	CountUp     = 0
	CountDown   = 1
	CountUpDown = 2
	Frozen      = 3
)

// CMPCTL fields.
var (
	LOADAMODE = CMPCTL.Field(0, 2)
	SHDWAMODE = CMPCTL.Bit(4)
)

// AQCTLA fields.
var (
	ZRO = AQCTLA.Field(0, 2)
	PRD = AQCTLA.Field(2, 2)
	CAU = AQCTLA.Field(4, 2)
	CAD = AQCTLA.Field(6, 2)
)

// Action qualifier actions.
const (
	AQNone   = 0
	AQClear  = 1
	AQSet    = 2
	AQToggle = 3
)

// CSFA is the continuous software force of output A: 0 disabled, 1 low, 2
// high.
var CSFA = AQCSFRC.Field(0, 2)

// ETSEL fields.
var (
	INTSEL  = ETSEL.Field(0, 3)
	INTEN   = ETSEL.Bit(3)
	SOCASEL = ETSEL.Field(8, 3)
	SOCAEN  = ETSEL.Bit(11)
)

// Event selections for INTSEL and SOCASEL.
const (
	EventZero    = 1
	EventPeriod  = 2
	EventCMPAUp  = 4
	EventCMPADwn = 5
)

// ETPS fields.
var (
	INTPRD  = ETPS.Field(0, 2)
	SOCAPRD = ETPS.Field(8, 2)
)

// ETFLG and ETCLR fields.
var (
	INT     = ETFLG.Bit(0)
	SOCA    = ETFLG.Bit(2)
	INTCLR  = ETCLR.Bit(0)
	SOCACLR = ETCLR.Bit(2)
)
