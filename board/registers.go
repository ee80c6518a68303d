// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package board

import "github.com/GermanBionicSystems/piccolo/regs"

// SysCtrlBase is the word address of the system control frame. The
// watchdog registers are part of it.
const SysCtrlBase = 0x7010

// Peripheral clock control registers. Both are EALLOW protected.
var (
	PCLKCR0 = regs.R16("PCLKCR0", 0x0C).Prot()
	PCLKCR1 = regs.R16("PCLKCR1", 0x0D).Prot()
)

// Clock enables.
var (
	TBCLKSYNC  = PCLKCR0.Bit(2)
	ADCENCLK   = PCLKCR0.Bit(3)
	I2CAENCLK  = PCLKCR0.Bit(4)
	SPIAENCLK  = PCLKCR0.Bit(8)
	SCIAENCLK  = PCLKCR0.Bit(10)
	ECANAENCLK = PCLKCR0.Bit(14)

	ECAP1ENCLK = PCLKCR1.Bit(8)
	EQEP1ENCLK = PCLKCR1.Bit(14)
)

// EPWMENCLK returns the clock enable of ePWMn, n from 1 to 4.
func EPWMENCLK(n int) regs.Field {
	return PCLKCR1.Bit(uint(n - 1))
}
