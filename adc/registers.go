// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package adc

import (
	"strconv"

	"github.com/GermanBionicSystems/piccolo/regs"
)

// Base is the word address of the ADC register frame.
const Base = 0x7100

// ADC registers. ADCTRL1 and ADCTRL3 are EALLOW protected.
var (
	ADCTRL1      = regs.R16("ADCTRL1", 0x00).Prot()
	ADCTRL2      = regs.R16("ADCTRL2", 0x01)
	ADCMAXCONV   = regs.R16("ADCMAXCONV", 0x02)
	ADCCHSELSEQ1 = regs.R16("ADCCHSELSEQ1", 0x03)
	ADCCHSELSEQ2 = regs.R16("ADCCHSELSEQ2", 0x04)
	ADCCHSELSEQ3 = regs.R16("ADCCHSELSEQ3", 0x05)
	ADCCHSELSEQ4 = regs.R16("ADCCHSELSEQ4", 0x06)
	ADCTRL3      = regs.R16("ADCTRL3", 0x18).Prot()
	ADCST        = regs.R16("ADCST", 0x19)
	ADCINTFLG    = regs.R16("ADCINTFLG", 0x1E)
	ADCINTFLGCLR = regs.R16("ADCINTFLGCLR", 0x1F)
)

// Fields.
var (
	SEQCASC = ADCTRL1.Bit(4)

	EPWMSOCASEQ1 = ADCTRL2.Bit(8)
	INTENASEQ1   = ADCTRL2.Bit(11)
	SOCSEQ1      = ADCTRL2.Bit(13)
	RSTSEQ1      = ADCTRL2.Bit(14)

	MAXCONV1 = ADCMAXCONV.Field(0, 4)

	ADCCLKPS  = ADCTRL3.Field(1, 4)
	ADCPWDN   = ADCTRL3.Bit(5)
	ADCBGRFDN = ADCTRL3.Field(6, 2)

	INTSEQ1    = ADCST.Bit(0)
	SEQ1BSY    = ADCST.Bit(2)
	INTSEQ1CLR = ADCST.Bit(4)

	ADCINT1    = ADCINTFLG.Bit(0)
	ADCINT1CLR = ADCINTFLGCLR.Bit(0)
)

// NumResults is the number of result registers and the longest cascaded
// sequence.
const NumResults = 16

// ADCRESULT returns the result register n, 0 to 15.
func ADCRESULT(n int) regs.Reg {
	return regs.R16("ADCRESULT"+strconv.Itoa(n), 0x08+uint32(n))
}

// CONV returns the channel select field of conversion n of the cascaded
// sequencer, 0 to 15.
func CONV(n int) regs.Field {
	sel := [...]regs.Reg{ADCCHSELSEQ1, ADCCHSELSEQ2, ADCCHSELSEQ3, ADCCHSELSEQ4}[n/4]
	return sel.Field(uint(n%4)*4, 4)
}
