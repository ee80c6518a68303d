// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sim

import (
	"sync"

	"github.com/GermanBionicSystems/piccolo/ecan"
	"github.com/GermanBionicSystems/piccolo/pie"
	"github.com/GermanBionicSystems/piccolo/regs"
)

// CAN models eCAN-A with standard identifiers.
//
// A transmission request completes at once. In self test mode the frame is
// delivered to the own receive mailboxes, otherwise to OnTransmit.
type CAN struct {
	fr frame

	mu   sync.Mutex
	sent []ecan.Frame
	lost int
	// NoAck leaves every transmission unacknowledged.
	NoAck bool
	// OnTransmit, if set, is called with every frame put on the bus, without
	// any lock held.
	OnTransmit func(ecan.Frame)
}

// NewCAN attaches an eCAN-A model to m at ecan.Base.
func NewCAN(m *regs.Mem, ic *pie.Controller) *CAN {
	c := &CAN{fr: frame{m: m, ic: ic, base: ecan.Base}}
	c.fr.onWrite(ecan.CANMC, c.onMC)
	c.fr.onWrite(ecan.CANTRS, c.onTRS)
	c.fr.onWrite(ecan.CANTRR, c.onTRR)
	c.fr.onWrite(ecan.CANTA, w1c(0xFFFFFFFF))
	c.fr.onWrite(ecan.CANRMP, w1c(0xFFFFFFFF))
	return c
}

// Sent returns and forgets the frames put on the bus.
func (c *CAN) Sent() []ecan.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.sent
	c.sent = nil
	return out
}

// Lost returns the number of frames that overwrote an unread one.
func (c *CAN) Lost() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lost
}

// Deliver puts fr in the highest numbered enabled receive mailbox accepting
// its identifier. It returns false when no mailbox accepts it.
func (c *CAN) Deliver(fr ecan.Frame) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deliver(fr)
}

func (c *CAN) deliver(fr ecan.Frame) bool {
	me := c.fr.peek(ecan.CANME)
	md := c.fr.peek(ecan.CANMD)
	for n := ecan.Mailboxes - 1; n >= 0; n-- {
		bit := uint32(1) << uint(n)
		if me&bit == 0 || md&bit == 0 {
			continue
		}
		base := ecan.MailboxAddr(n)
		msgid := c.fr.m.Peek(base + ecan.MSGID.Off)
		if msgid&ecan.AME.Mask() == 0 && regs.Extract(msgid, ecan.STDMSGID.Shift, ecan.STDMSGID.Width) != uint32(fr.ID) {
			continue
		}
		_, ctrl, mdl, mdh := fr.Pack()
		c.fr.m.Poke(base+ecan.MSGCTRL.Off, ctrl)
		c.fr.m.Poke(base+ecan.MDL.Off, mdl)
		c.fr.m.Poke(base+ecan.MDH.Off, mdh)
		if c.fr.peek(ecan.CANRMP)&bit != 0 {
			c.lost++
		}
		c.fr.m.Update(c.fr.addr(ecan.CANRMP), func(v uint32) uint32 { return v | bit })
		if c.fr.peek(ecan.CANMIM)&bit != 0 && has(c.fr.peek(ecan.CANGIM), ecan.I0EN) {
			c.fr.raise(pie.ECAN0INTA)
		}
		return true
	}
	return false
}

// The configuration change is acknowledged at once.
func (c *CAN) onMC(old, v uint32) uint32 {
	c.fr.set(ecan.CCE, regs.Extract(v, ecan.CCR.Shift, 1))
	return v
}

func (c *CAN) onTRS(old, v uint32) uint32 {
	c.mu.Lock()
	me := c.fr.peek(ecan.CANME)
	md := c.fr.peek(ecan.CANMD)
	self := has(c.fr.peek(ecan.CANMC), ecan.STM)
	var out []ecan.Frame
	for n := 0; n < ecan.Mailboxes; n++ {
		bit := uint32(1) << uint(n)
		if v&bit == 0 || me&bit == 0 || md&bit != 0 {
			continue
		}
		base := ecan.MailboxAddr(n)
		fr := ecan.Unpack(c.fr.m.Peek(base+ecan.MSGID.Off), c.fr.m.Peek(base+ecan.MSGCTRL.Off),
			c.fr.m.Peek(base+ecan.MDL.Off), c.fr.m.Peek(base+ecan.MDH.Off))
		if c.NoAck {
			continue
		}
		c.sent = append(c.sent, fr)
		if self {
			c.deliver(fr)
		} else {
			out = append(out, fr)
		}
		c.fr.m.Update(c.fr.addr(ecan.CANTA), func(ta uint32) uint32 { return ta | bit })
		v &^= bit
	}
	cb := c.OnTransmit
	c.mu.Unlock()
	if cb != nil {
		for _, fr := range out {
			cb(fr)
		}
	}
	// Unacknowledged requests stay pending.
	return old | v
}

// A transmission reset request cancels the pending requests.
func (c *CAN) onTRR(old, v uint32) uint32 {
	c.fr.m.Update(c.fr.addr(ecan.CANTRS), func(trs uint32) uint32 { return trs &^ v })
	return 0
}
