// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package regs

import (
	"fmt"
	"sync"
)

// WriteHook is called when the CPU writes v to a register whose current
// content is old. It returns the value to store.
//
// Hooks run without any lock held. They must only touch the Mem through
// Peek and Poke, never through a File.
type WriteHook func(old, v uint32) uint32

// ReadHook is called when the CPU reads a register holding v. It returns the
// value seen by the CPU.
type ReadHook func(v uint32) uint32

// Mem is an in-memory Bus.
//
// The zero value is ready to use. Registers read as zero until written.
type Mem struct {
	mu      sync.Mutex
	words   map[uint32]uint32
	onWrite map[uint32]WriteHook
	onRead  map[uint32]ReadHook
	writes  map[uint32]int
	reads   map[uint32]int
}

// ReadReg implements Bus.
func (m *Mem) ReadReg(addr uint32, bits int) (uint32, error) {
	if bits != 16 && bits != 32 {
		return 0, ErrWidth
	}
	m.mu.Lock()
	m.init()
	v := m.words[addr]
	h := m.onRead[addr]
	m.reads[addr]++
	m.mu.Unlock()
	if h != nil {
		v = h(v)
	}
	return v & Mask[uint32](uint(bits)), nil
}

// WriteReg implements Bus.
func (m *Mem) WriteReg(addr uint32, bits int, v uint32) error {
	if bits != 16 && bits != 32 {
		return ErrWidth
	}
	v &= Mask[uint32](uint(bits))
	m.mu.Lock()
	m.init()
	old := m.words[addr]
	h := m.onWrite[addr]
	m.writes[addr]++
	m.mu.Unlock()
	if h != nil {
		v = h(old, v)
	}
	m.Poke(addr, v)
	return nil
}

// OnWrite installs a hook for CPU writes to addr. A nil hook removes it.
func (m *Mem) OnWrite(addr uint32, h WriteHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	if h == nil {
		delete(m.onWrite, addr)
		return
	}
	m.onWrite[addr] = h
}

// OnRead installs a hook for CPU reads of addr. A nil hook removes it.
func (m *Mem) OnRead(addr uint32, h ReadHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	if h == nil {
		delete(m.onRead, addr)
		return
	}
	m.onRead[addr] = h
}

// Peek returns the stored value at addr without side effect.
func (m *Mem) Peek(addr uint32) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	return m.words[addr]
}

// Poke stores v at addr without side effect. This is the hardware side of a
// register.
func (m *Mem) Poke(addr uint32, v uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	m.words[addr] = v
}

// Update atomically replaces the value at addr with fn(old), without side
// effect.
func (m *Mem) Update(addr uint32, fn func(uint32) uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	m.words[addr] = fn(m.words[addr])
}

// Writes returns the number of CPU writes to addr so far.
func (m *Mem) Writes(addr uint32) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	return m.writes[addr]
}

// Reads returns the number of CPU reads of addr so far.
func (m *Mem) Reads(addr uint32) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	return m.reads[addr]
}

func (m *Mem) String() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fmt.Sprintf("mem(%d registers)", len(m.words))
}

func (m *Mem) init() {
	if m.words == nil {
		m.words = map[uint32]uint32{}
		m.onWrite = map[uint32]WriteHook{}
		m.onRead = map[uint32]ReadHook{}
		m.writes = map[uint32]int{}
		m.reads = map[uint32]int{}
	}
}

var _ Bus = &Mem{}
