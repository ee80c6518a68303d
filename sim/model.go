// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sim

import (
	"github.com/GermanBionicSystems/piccolo/pie"
	"github.com/GermanBionicSystems/piccolo/regs"
)

// frame is the hardware side of one peripheral frame. It only touches the
// memory through Peek, Poke and Update so it can be used from hooks.
type frame struct {
	m    *regs.Mem
	ic   *pie.Controller
	base uint32
}

func (f frame) addr(r regs.Reg) uint32 {
	return f.base + r.Off
}

func (f frame) peek(r regs.Reg) uint32 {
	return f.m.Peek(f.addr(r))
}

func (f frame) poke(r regs.Reg, v uint32) {
	f.m.Poke(f.addr(r), v)
}

func (f frame) get(fd regs.Field) uint32 {
	return regs.Extract(f.peek(fd.Reg), fd.Shift, fd.Width)
}

func (f frame) set(fd regs.Field, v uint32) {
	f.m.Update(f.addr(fd.Reg), func(old uint32) uint32 {
		return regs.Insert(old, fd.Shift, fd.Width, v)
	})
}

// onWrite installs h for CPU writes to r.
func (f frame) onWrite(r regs.Reg, h regs.WriteHook) {
	f.m.OnWrite(f.addr(r), h)
}

// onRead installs h for CPU reads of r.
func (f frame) onRead(r regs.Reg, h regs.ReadHook) {
	f.m.OnRead(f.addr(r), h)
}

// raise latches src on the interrupt controller, if any.
func (f frame) raise(src pie.Source) {
	if f.ic != nil {
		_ = f.ic.Raise(src)
	}
}

// w1c returns the write hook of a register whose mask bits are cleared by
// writing 1 and otherwise kept by the hardware.
func w1c(mask uint32) regs.WriteHook {
	return func(old, v uint32) uint32 {
		return v&^mask | old&mask&^v
	}
}

// has returns true if every bit of fd is set in v.
func has(v uint32, fd regs.Field) bool {
	return v&fd.Mask() == fd.Mask()
}
