// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package watchdog

import "github.com/GermanBionicSystems/piccolo/regs"

// Base is the word address of the system control frame holding the
// watchdog registers.
const Base = 0x7010

// Watchdog registers, all EALLOW protected.
var (
	SCSR   = regs.R16("SCSR", 0x12).Prot()
	WDCNTR = regs.R16("WDCNTR", 0x13).Prot()
	WDKEY  = regs.R16("WDKEY", 0x15).Prot()
	WDCR   = regs.R16("WDCR", 0x19).Prot()
)

// Fields.
var (
	WDOVERRIDE = SCSR.Bit(0)
	WDENINT    = SCSR.Bit(1)
	WDINTS     = SCSR.Bit(2)

	WDPS   = WDCR.Field(0, 3)
	WDCHK  = WDCR.Field(3, 3)
	WDDIS  = WDCR.Bit(6)
	WDFLAG = WDCR.Bit(7)
)

// Check is the value WDCHK must be written with. Any other value resets the
// device.
const Check = 5

// Keys written in sequence to WDKEY to reset the counter.
const (
	Key1 = 0x55
	Key2 = 0xAA
)
