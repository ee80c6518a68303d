// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package regs

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrProtected is returned when a protected register is written outside
	// of Space.Protected.
	ErrProtected = errors.New("regs: write to protected register without EALLOW")
	// ErrWidth is returned for a register that is neither 16 nor 32 bits wide.
	ErrWidth = errors.New("regs: register must be 16 or 32 bits wide")
)

// Bus is the raw access to a word addressed register space.
//
// addr is an absolute word address and bits is either 16 or 32.
type Bus interface {
	ReadReg(addr uint32, bits int) (uint32, error)
	WriteReg(addr uint32, bits int, v uint32) error
}

// Reg describes one register of a peripheral frame.
type Reg struct {
	Name      string
	Off       uint32 // word offset from the frame base
	Bits      int    // 16 or 32
	Protected bool   // needs EALLOW to be written
}

// R16 returns a 16 bits register.
func R16(name string, off uint32) Reg {
	return Reg{Name: name, Off: off, Bits: 16}
}

// R32 returns a 32 bits register.
func R32(name string, off uint32) Reg {
	return Reg{Name: name, Off: off, Bits: 32}
}

// Prot returns a copy of r marked as EALLOW protected.
func (r Reg) Prot() Reg {
	r.Protected = true
	return r
}

// Field returns the width bits of r starting at shift.
func (r Reg) Field(shift, width uint) Field {
	return Field{Reg: r, Shift: shift, Width: width}
}

// Bit returns the single bit n of r.
func (r Reg) Bit(n uint) Field {
	return Field{Reg: r, Shift: n, Width: 1}
}

// All returns a Field covering the whole register.
func (r Reg) All() Field {
	return Field{Reg: r, Width: uint(r.Bits)}
}

// Set returns the write of v to the whole register.
func (r Reg) Set(v uint32) Write {
	return r.All().Set(v)
}

func (r Reg) String() string {
	return r.Name
}

// Field is a bit range within a Reg.
type Field struct {
	Reg   Reg
	Shift uint
	Width uint
}

// Mask returns the in-register mask of the field.
func (f Field) Mask() uint32 {
	return Mask[uint32](f.Width) << f.Shift
}

// Whole returns true if the field covers the entire register.
func (f Field) Whole() bool {
	return f.Shift == 0 && f.Width >= uint(f.Reg.Bits)
}

// Set returns the write of v into the field.
func (f Field) Set(v uint32) Write {
	return Write{Field: f, Value: v}
}

// Is returns the condition "field equals v".
func (f Field) Is(v uint32) Cond {
	return Cond{Field: f, Want: v}
}

func (f Field) String() string {
	if f.Whole() {
		return f.Reg.Name
	}
	if f.Width == 1 {
		return fmt.Sprintf("%s[%d]", f.Reg.Name, f.Shift)
	}
	return fmt.Sprintf("%s[%d:%d]", f.Reg.Name, f.Shift+f.Width-1, f.Shift)
}

// Write is one entry of a configuration table.
type Write struct {
	Field Field
	Value uint32
}

func (w Write) String() string {
	return fmt.Sprintf("%s=%#x", w.Field, w.Value)
}

// Table is an ordered list of register writes, the way the peripheral
// initialization sequences are expressed.
type Table []Write

// Cond is a field value to wait for.
type Cond struct {
	Field Field
	Want  uint32
}

func (c Cond) String() string {
	return fmt.Sprintf("%s==%#x", c.Field, c.Want)
}

// Space is one register address space shared by a set of Files.
//
// It serializes accesses so read-modify-write sequences are atomic and keeps
// the EALLOW state.
type Space struct {
	bus    Bus
	mu     sync.Mutex
	eallow int
}

// NewSpace returns a Space over bus.
func NewSpace(bus Bus) *Space {
	return &Space{bus: bus}
}

// File returns the register file of the peripheral frame at base.
func (s *Space) File(base uint32, name string) *File {
	return &File{s: s, base: base, name: name}
}

// Protected runs fn with protected register writes enabled, like an
// EALLOW/EDIS bracket. Brackets nest.
func (s *Space) Protected(fn func() error) error {
	s.mu.Lock()
	s.eallow++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.eallow--
		s.mu.Unlock()
	}()
	return fn()
}

// File is the register file of one peripheral frame.
type File struct {
	s    *Space
	base uint32
	name string
}

// NewFile is a shortcut for a File in its own Space.
func NewFile(bus Bus, base uint32, name string) *File {
	return NewSpace(bus).File(base, name)
}

func (f *File) String() string {
	return fmt.Sprintf("%s@%#04x", f.name, f.base)
}

// Name returns the name of the peripheral frame.
func (f *File) Name() string {
	return f.name
}

// Space returns the address space of the file.
func (f *File) Space() *Space {
	return f.s
}

// Protected is a shortcut for f.Space().Protected(fn).
func (f *File) Protected(fn func() error) error {
	return f.s.Protected(fn)
}

// Read reads the register r.
func (f *File) Read(r Reg) (uint32, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	return f.read(r)
}

// Write writes v to the register r.
func (f *File) Write(r Reg, v uint32) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	return f.write(r, v)
}

// ReadField reads the register and returns the field value.
func (f *File) ReadField(fd Field) (uint32, error) {
	v, err := f.Read(fd.Reg)
	if err != nil {
		return 0, err
	}
	return Extract(v, fd.Shift, fd.Width), nil
}

// WriteField writes v into the field.
//
// A field covering the whole register is a plain write. Otherwise the
// register is read, modified and written back without any other access to
// the space in between.
func (f *File) WriteField(fd Field, v uint32) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if fd.Whole() {
		return f.write(fd.Reg, v)
	}
	old, err := f.read(fd.Reg)
	if err != nil {
		return err
	}
	return f.write(fd.Reg, Insert(old, fd.Shift, fd.Width, v))
}

// SetBits sets the bits of mask in r.
func (f *File) SetBits(r Reg, mask uint32) error {
	return f.modify(r, func(v uint32) uint32 { return v | mask })
}

// ClearBits clears the bits of mask in r.
func (f *File) ClearBits(r Reg, mask uint32) error {
	return f.modify(r, func(v uint32) uint32 { return v &^ mask })
}

// Met returns true if the condition holds.
func (f *File) Met(c Cond) (bool, error) {
	v, err := f.ReadField(c.Field)
	if err != nil {
		return false, err
	}
	return v == c.Want, nil
}

// Apply writes the table in order and stops at the first error.
func (f *File) Apply(t Table) error {
	for _, w := range t {
		if err := f.WriteField(w.Field, w.Value); err != nil {
			return fmt.Errorf("%s: %s: %w", f.name, w, err)
		}
	}
	return nil
}

func (f *File) modify(r Reg, fn func(uint32) uint32) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	v, err := f.read(r)
	if err != nil {
		return err
	}
	return f.write(r, fn(v))
}

func (f *File) read(r Reg) (uint32, error) {
	if r.Bits != 16 && r.Bits != 32 {
		return 0, ErrWidth
	}
	v, err := f.s.bus.ReadReg(f.base+r.Off, r.Bits)
	if err != nil {
		return 0, fmt.Errorf("%s: read %s: %w", f.name, r.Name, err)
	}
	return v & Mask[uint32](uint(r.Bits)), nil
}

func (f *File) write(r Reg, v uint32) error {
	if r.Bits != 16 && r.Bits != 32 {
		return ErrWidth
	}
	if r.Protected && f.s.eallow == 0 {
		return fmt.Errorf("%s: %s: %w", f.name, r.Name, ErrProtected)
	}
	if err := f.s.bus.WriteReg(f.base+r.Off, r.Bits, v&Mask[uint32](uint(r.Bits))); err != nil {
		return fmt.Errorf("%s: write %s: %w", f.name, r.Name, err)
	}
	return nil
}
