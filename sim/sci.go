// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sim

import (
	"sync"

	"github.com/GermanBionicSystems/piccolo/pie"
	"github.com/GermanBionicSystems/piccolo/regs"
	"github.com/GermanBionicSystems/piccolo/scia"
)

// SCI models SCI-A with its FIFOs enabled.
//
// Transmitted characters leave the transmit FIFO immediately. In loopback
// mode (SCICCR.LOOPBKENA) they are received back.
type SCI struct {
	fr frame

	mu       sync.Mutex
	rx       []byte
	wire     []byte
	overruns int
	// OnTransmit, if set, is called with every transmitted character, without
	// any lock held.
	OnTransmit func(b byte)
}

// NewSCI attaches an SCI-A model to m at scia.Base.
func NewSCI(m *regs.Mem, ic *pie.Controller) *SCI {
	s := &SCI{fr: frame{m: m, ic: ic, base: scia.Base}}
	s.fr.onWrite(scia.SCITXBUF, s.onTXBUF)
	s.fr.onRead(scia.SCIRXBUF, s.onRXBUF)
	s.fr.onWrite(scia.SCIFFTX, s.onFFTX)
	s.fr.onWrite(scia.SCIFFRX, s.onFFRX)
	return s
}

// Receive puts b on the receive line. A full receive FIFO sets RXFFOVF and
// drops b.
func (s *SCI) Receive(b ...byte) {
	for _, c := range b {
		s.mu.Lock()
		s.push(c)
		s.mu.Unlock()
	}
}

// Transmitted returns and forgets the characters transmitted so far.
func (s *SCI) Transmitted() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.wire
	s.wire = nil
	return out
}

// Overruns returns the number of characters dropped on a full receive FIFO.
func (s *SCI) Overruns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overruns
}

func (s *SCI) push(c byte) {
	if len(s.rx) >= scia.FIFODepth {
		s.overruns++
		s.fr.set(scia.RXFFOVF, 1)
		return
	}
	s.rx = append(s.rx, c)
	s.fr.set(scia.RXFFST, uint32(len(s.rx)))
	s.fr.m.Update(s.fr.addr(scia.SCIFFRX), s.rxLevel)
}

// rxLevel sets RXFFINT when the FIFO reaches its level, raising SCIRXINTA
// on the rising edge of the flag when enabled.
func (s *SCI) rxLevel(v uint32) uint32 {
	st := regs.Extract(v, scia.RXFFST.Shift, scia.RXFFST.Width)
	il := regs.Extract(v, scia.RXFFIL.Shift, scia.RXFFIL.Width)
	if st == 0 || st < il || has(v, scia.RXFFINT) {
		return v
	}
	if has(v, scia.RXFFIENA) {
		s.fr.raise(pie.SCIRXINTA)
	}
	return v | scia.RXFFINT.Mask()
}

// txLevel sets TXFFINT when the transmit FIFO is at or below its level.
func (s *SCI) txLevel(v uint32) uint32 {
	st := regs.Extract(v, scia.TXFFST.Shift, scia.TXFFST.Width)
	il := regs.Extract(v, scia.TXFFIL.Shift, scia.TXFFIL.Width)
	if st > il || has(v, scia.TXFFINT) {
		return v
	}
	if has(v, scia.TXFFIENA) {
		s.fr.raise(pie.SCITXINTA)
	}
	return v | scia.TXFFINT.Mask()
}

func (s *SCI) onTXBUF(old, v uint32) uint32 {
	c := byte(v)
	s.mu.Lock()
	s.wire = append(s.wire, c)
	loop := has(s.fr.peek(scia.SCICCR), scia.LOOPBKENA)
	if loop {
		s.push(c)
	}
	cb := s.OnTransmit
	s.mu.Unlock()
	if cb != nil {
		cb(c)
	}
	return v
}

func (s *SCI) onRXBUF(v uint32) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.rx) == 0 {
		return v
	}
	c := s.rx[0]
	s.rx = s.rx[1:]
	s.fr.set(scia.RXFFST, uint32(len(s.rx)))
	s.fr.poke(scia.SCIRXBUF, uint32(c))
	return uint32(c)
}

// Status bits are owned by the hardware; the clear bits read as zero.
func (s *SCI) onFFTX(old, v uint32) uint32 {
	status := scia.TXFFST.Mask() | scia.TXFFINT.Mask()
	n := v&^(status|scia.TXFFINTCLR.Mask()) | old&status
	if has(v, scia.TXFFINTCLR) {
		n &^= scia.TXFFINT.Mask()
	}
	if !has(n, scia.TXFIFORESET) {
		n &^= scia.TXFFST.Mask()
	}
	if !has(old, scia.TXFFIENA) && has(n, scia.TXFFIENA) && has(n, scia.TXFFINT) {
		s.fr.raise(pie.SCITXINTA)
	}
	return s.txLevel(n)
}

func (s *SCI) onFFRX(old, v uint32) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	status := scia.RXFFST.Mask() | scia.RXFFINT.Mask() | scia.RXFFOVF.Mask()
	n := v&^(status|scia.RXFFINTCLR.Mask()|scia.RXFFOVRCLR.Mask()) | old&status
	if has(v, scia.RXFFINTCLR) {
		n &^= scia.RXFFINT.Mask()
	}
	if has(v, scia.RXFFOVRCLR) {
		n &^= scia.RXFFOVF.Mask()
	}
	if !has(n, scia.RXFIFORESET) {
		s.rx = nil
		n &^= scia.RXFFST.Mask()
	}
	if !has(old, scia.RXFFIENA) && has(n, scia.RXFFIENA) && has(n, scia.RXFFINT) {
		s.fr.raise(pie.SCIRXINTA)
	}
	return s.rxLevel(n)
}
