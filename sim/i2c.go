// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sim

import (
	"errors"
	"sync"

	"github.com/GermanBionicSystems/piccolo/i2ca"
	"github.com/GermanBionicSystems/piccolo/pie"
	"github.com/GermanBionicSystems/piccolo/regs"
	"periph.io/x/conn/v3/i2c"
)

const (
	i2cIdle = iota
	i2cTransmit
	i2cReceive
)

// I2C models I2C-A.
//
// As a master the port talks to Peer: the bytes of a write are collected and
// handed to Peer.Tx at the stop condition, or at the repeated start of the
// read that follows. A failing Peer.Tx is a missing acknowledge. As a slave
// the port is driven by MasterWrite, MasterRead and MasterStop.
type I2C struct {
	fr frame

	mu     sync.Mutex
	Peer   i2c.Bus
	phase  int
	addr   uint16
	cnt    int
	stop   bool
	w      []byte
	rx     []byte
	slaveW []byte
}

// NewI2C attaches an I2C-A model to m at i2ca.Base.
func NewI2C(m *regs.Mem, ic *pie.Controller) *I2C {
	s := &I2C{fr: frame{m: m, ic: ic, base: i2ca.Base}}
	s.fr.onWrite(i2ca.I2CMDR, s.onMDR)
	s.fr.onWrite(i2ca.I2CDXR, s.onDXR)
	s.fr.onRead(i2ca.I2CDRR, s.onDRR)
	s.fr.onWrite(i2ca.I2CSTR, s.onSTR)
	s.fr.onRead(i2ca.I2CISRC, s.onISRC)
	return s
}

// MasterWrite sends b to the slave at addr as a remote master. It returns
// false if the port does not answer at addr.
func (s *I2C) MasterWrite(addr uint16, b byte) bool {
	if !s.addressed(addr) {
		return false
	}
	s.fr.poke(i2ca.I2CDRR, uint32(b))
	s.fr.set(i2ca.AAS, 1)
	s.fr.set(i2ca.RRDY, 1)
	s.event(i2ca.CodeRRDY)
	return true
}

// MasterRead requests one byte from the slave at addr as a remote master.
// The byte written by the port is returned by SlaveSent.
func (s *I2C) MasterRead(addr uint16) bool {
	if !s.addressed(addr) {
		return false
	}
	s.fr.set(i2ca.AAS, 1)
	s.fr.set(i2ca.XRDY, 1)
	s.event(i2ca.CodeXRDY)
	return true
}

// MasterStop ends the transfer with a stop condition.
func (s *I2C) MasterStop() {
	s.fr.set(i2ca.AAS, 0)
	s.fr.set(i2ca.SCD, 1)
	s.event(i2ca.CodeSCD)
}

// SlaveSent returns and forgets the bytes sent by the port as a slave.
func (s *I2C) SlaveSent() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.slaveW
	s.slaveW = nil
	return out
}

func (s *I2C) addressed(addr uint16) bool {
	mdr := s.fr.peek(i2ca.I2CMDR)
	return has(mdr, i2ca.IRS) && !has(mdr, i2ca.MST) && uint32(addr) == s.fr.get(i2ca.I2COAR.All())
}

// event latches code in I2CISRC and raises I2CINT1A if the matching I2CIER
// bit is set.
func (s *I2C) event(code uint32) {
	s.fr.poke(i2ca.I2CISRC, code)
	if s.fr.peek(i2ca.I2CIER)&(1<<(code-1)) != 0 {
		s.fr.raise(pie.I2CINT1A)
	}
}

func (s *I2C) transfer(w []byte, n int) ([]byte, error) {
	if s.Peer == nil {
		return nil, errors.New("no device")
	}
	var r []byte
	if n != 0 {
		r = make([]byte, n)
	}
	return r, s.Peer.Tx(s.addr, w, r)
}

// finish generates the stop condition. The caller clears STP and MST.
func (s *I2C) finish() {
	s.phase = i2cIdle
	s.w = nil
	s.rx = nil
	s.fr.m.Update(s.fr.addr(i2ca.I2CSTR), func(v uint32) uint32 {
		return v&^(i2ca.BB.Mask()|i2ca.XRDY.Mask()|i2ca.RRDY.Mask()) | i2ca.SCD.Mask()
	})
}

func (s *I2C) onMDR(old, v uint32) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !has(v, i2ca.IRS) {
		s.phase = i2cIdle
		s.w = nil
		s.rx = nil
		s.fr.poke(i2ca.I2CSTR, 0)
		return v &^ (i2ca.STT.Mask() | i2ca.STP.Mask())
	}
	if !has(v, i2ca.STT) || !has(v, i2ca.MST) {
		return v &^ i2ca.STT.Mask()
	}
	v &^= i2ca.STT.Mask()
	s.addr = uint16(s.fr.get(i2ca.I2CSAR.All()))
	s.cnt = int(s.fr.get(i2ca.I2CCNT.All()))
	s.stop = has(v, i2ca.STP)
	s.fr.set(i2ca.BB, 1)
	if has(v, i2ca.TRX) {
		s.phase = i2cTransmit
		s.w = nil
		s.fr.set(i2ca.XRDY, 1)
		return v
	}
	data, err := s.transfer(s.w, s.cnt)
	s.w = nil
	if err != nil || len(data) == 0 {
		s.fr.set(i2ca.NACK, 1)
		if s.stop {
			s.finish()
			return v &^ (i2ca.STP.Mask() | i2ca.MST.Mask())
		}
		s.phase = i2cIdle
		return v
	}
	s.phase = i2cReceive
	s.rx = data
	s.fr.poke(i2ca.I2CDRR, uint32(data[0]))
	s.fr.set(i2ca.RRDY, 1)
	return v
}

func (s *I2C) onDXR(old, v uint32) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !has(s.fr.peek(i2ca.I2CMDR), i2ca.MST) {
		s.slaveW = append(s.slaveW, byte(v))
		s.fr.set(i2ca.XRDY, 0)
		return v
	}
	if s.phase != i2cTransmit {
		return v
	}
	s.w = append(s.w, byte(v))
	if s.cnt--; s.cnt > 0 {
		return v
	}
	s.phase = i2cIdle
	if !s.stop {
		s.fr.set(i2ca.ARDY, 1)
		return v
	}
	if _, err := s.transfer(s.w, 0); err != nil {
		s.fr.set(i2ca.NACK, 1)
	}
	s.finish()
	s.fr.m.Update(s.fr.addr(i2ca.I2CMDR), func(m uint32) uint32 {
		return m &^ (i2ca.STP.Mask() | i2ca.MST.Mask())
	})
	return v
}

func (s *I2C) onDRR(v uint32) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != i2cReceive {
		s.fr.set(i2ca.RRDY, 0)
		return v
	}
	s.rx = s.rx[1:]
	if len(s.rx) != 0 {
		s.fr.poke(i2ca.I2CDRR, uint32(s.rx[0]))
		return v
	}
	if s.stop {
		s.finish()
		s.fr.m.Update(s.fr.addr(i2ca.I2CMDR), func(m uint32) uint32 {
			return m &^ (i2ca.STP.Mask() | i2ca.MST.Mask())
		})
	} else {
		s.phase = i2cIdle
		s.fr.set(i2ca.RRDY, 0)
		s.fr.set(i2ca.ARDY, 1)
	}
	return v
}

// Only the clearable flags are written by the CPU.
func (s *I2C) onSTR(old, v uint32) uint32 {
	mask := i2ca.AL.Mask() | i2ca.NACK.Mask() | i2ca.ARDY.Mask() | i2ca.SCD.Mask()
	return old &^ (v & mask)
}

// Reading I2CISRC consumes the interrupt code.
func (s *I2C) onISRC(v uint32) uint32 {
	s.fr.poke(i2ca.I2CISRC, 0)
	return v
}
