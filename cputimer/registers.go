// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package cputimer

import (
	"github.com/GermanBionicSystems/piccolo/pie"
	"github.com/GermanBionicSystems/piccolo/regs"
)

// Word addresses of the three CPU timer frames.
const (
	Base0 = 0x0C00
	Base1 = 0x0C08
	Base2 = 0x0C10
)

// CPU timer registers, identical in the three frames.
var (
	TIM  = regs.R32("TIM", 0x00)
	PRD  = regs.R32("PRD", 0x02)
	TCR  = regs.R16("TCR", 0x04)
	TPR  = regs.R16("TPR", 0x06)
	TPRH = regs.R16("TPRH", 0x07)
)

// TCR fields. TIF is cleared by writing 1.
var (
	TSS  = TCR.Bit(4)
	TRB  = TCR.Bit(5)
	SOFT = TCR.Bit(10)
	FREE = TCR.Bit(11)
	TIE  = TCR.Bit(14)
	TIF  = TCR.Bit(15)
)

// Prescaler fields.
var (
	TDDR  = TPR.Field(0, 8)
	PSC   = TPR.Field(8, 8)
	TDDRH = TPRH.Field(0, 8)
)

// Base returns the frame address of timer n.
func Base(n int) uint32 {
	return [...]uint32{Base0, Base1, Base2}[n]
}

// Source returns the interrupt line of timer n. Timer 0 goes through PIE
// group 1, timers 1 and 2 use the CPU lines INT13 and INT14.
func Source(n int) pie.Source {
	return [...]pie.Source{pie.TINT0, pie.TINT1, pie.TINT2}[n]
}
