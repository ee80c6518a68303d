// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sim

import (
	"sync"

	"github.com/GermanBionicSystems/piccolo/regs"
	"github.com/GermanBionicSystems/piccolo/spia"
)

// SPI models SPI-A without its FIFOs.
//
// As a master, a word written to SPITXBUF is shifted out at once and the word
// returned by Peer, or the same word in loopback mode, is shifted in. As a
// slave, the word is shifted out on the next Exchange.
type SPI struct {
	fr frame

	mu      sync.Mutex
	sent    []uint16
	pending uint16
	// Peer returns the word shifted in for the word shifted out. nil shifts
	// in zeros.
	Peer func(out uint16) uint16
}

// NewSPI attaches an SPI-A model to m at spia.Base.
func NewSPI(m *regs.Mem) *SPI {
	s := &SPI{fr: frame{m: m, base: spia.Base}}
	s.fr.onWrite(spia.SPITXBUF, s.onTXBUF)
	s.fr.onRead(spia.SPIRXBUF, s.onRXBUF)
	s.fr.onWrite(spia.SPISTS, s.onSTS)
	return s
}

// Sent returns and forgets the words shifted out as a master.
func (s *SPI) Sent() []uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.sent
	s.sent = nil
	return out
}

// Exchange clocks one word as the remote master: in is shifted in and the
// word queued by the slave is returned.
func (s *SPI) Exchange(in uint16) uint16 {
	s.mu.Lock()
	out := s.pending
	s.pending = 0
	s.mu.Unlock()
	s.shiftIn(in)
	return out
}

func (s *SPI) bits() uint {
	return uint(s.fr.get(spia.SPICHAR)) + 1
}

func (s *SPI) onTXBUF(old, v uint32) uint32 {
	if !has(s.fr.peek(spia.SPICCR), spia.SPISWRESET) {
		return v
	}
	n := s.bits()
	out := uint16(v>>(16-n)) & uint16(regs.Mask[uint32](n))
	if !has(s.fr.peek(spia.SPICTL), spia.MASTERSLAVE) {
		s.mu.Lock()
		s.pending = out
		s.mu.Unlock()
		return v
	}
	s.mu.Lock()
	s.sent = append(s.sent, out)
	peer := s.Peer
	s.mu.Unlock()
	in := uint16(0)
	switch {
	case has(s.fr.peek(spia.SPICCR), spia.SPILBK):
		in = out
	case peer != nil:
		in = peer(out)
	}
	s.shiftIn(in)
	return v
}

// shiftIn latches a received word. A word received while INT_FLAG is still
// set overruns the previous one.
func (s *SPI) shiftIn(in uint16) {
	n := s.bits()
	s.fr.poke(spia.SPIRXBUF, uint32(in)&regs.Mask[uint32](n))
	s.fr.m.Update(s.fr.addr(spia.SPISTS), func(v uint32) uint32 {
		if has(v, spia.INTFLAG) {
			v |= spia.OVERRUNFLAG.Mask()
		}
		return v | spia.INTFLAG.Mask()
	})
}

func (s *SPI) onRXBUF(v uint32) uint32 {
	s.fr.set(spia.INTFLAG, 0)
	return v
}

// The CPU only clears OVERRUN_FLAG.
func (s *SPI) onSTS(old, v uint32) uint32 {
	owned := spia.INTFLAG.Mask() | spia.BUFFULL.Mask() | spia.OVERRUNFLAG.Mask()
	clr := v & spia.OVERRUNFLAG.Mask()
	kept := old & owned
	return kept &^ clr
}
