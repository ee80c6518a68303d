// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ecan

import "github.com/GermanBionicSystems/piccolo/regs"

const (
	// Base is the word address of the eCAN-A control registers.
	Base = 0x6000
	// MailboxBase is the word address of mailbox 0.
	MailboxBase = 0x6100
	// Mailboxes is the number of mailboxes.
	Mailboxes = 32
	// mailboxWords is the size of one mailbox.
	mailboxWords = 8
)

// eCAN-A control registers. They are 32 bits wide and must be accessed as
// such.
var (
	CANME  = regs.R32("CANME", 0x00)
	CANMD  = regs.R32("CANMD", 0x02)
	CANTRS = regs.R32("CANTRS", 0x04)
	CANTRR = regs.R32("CANTRR", 0x06)
	CANTA  = regs.R32("CANTA", 0x08)
	CANRMP = regs.R32("CANRMP", 0x0C)
	CANMC  = regs.R32("CANMC", 0x14).Prot()
	CANBTC = regs.R32("CANBTC", 0x16).Prot()
	CANES  = regs.R32("CANES", 0x18)
	CANGIM = regs.R32("CANGIM", 0x20).Prot()
	CANMIM = regs.R32("CANMIM", 0x24).Prot()
	CANGIF = regs.R32("CANGIF0", 0x1E)
)

// CANMC fields.
var (
	SCB = CANMC.Bit(13)
	CCR = CANMC.Bit(12)
	STM = CANMC.Bit(6)
)

// CANBTC fields.
var (
	BRPREG   = CANBTC.Field(16, 8)
	SJWREG   = CANBTC.Field(8, 2)
	SAM      = CANBTC.Bit(7)
	TSEG1REG = CANBTC.Field(3, 4)
	TSEG2REG = CANBTC.Field(0, 3)
)

// CANES fields.
var CCE = CANES.Bit(4)

// CANGIM fields.
var I0EN = CANGIM.Bit(0)

// Mailbox registers, as offsets from the mailbox.
var (
	MSGID   = regs.R32("MSGID", 0x0)
	MSGCTRL = regs.R32("MSGCTRL", 0x2)
	MDL     = regs.R32("MDL", 0x4)
	MDH     = regs.R32("MDH", 0x6)
)

// MSGID fields.
var (
	IDE      = MSGID.Bit(31)
	AME      = MSGID.Bit(30)
	STDMSGID = MSGID.Field(18, 11)
)

// MSGCTRL fields.
var (
	DLC = MSGCTRL.Field(0, 4)
	RTR = MSGCTRL.Bit(4)
)

// MailboxAddr returns the word address of mailbox n.
func MailboxAddr(n int) uint32 {
	return MailboxBase + uint32(n)*mailboxWords
}
