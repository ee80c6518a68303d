// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package regs

import (
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// DevMem is a Bus over a window of physical memory mapped through /dev/mem.
//
// Word addresses are relative to the start of the window and each word is 16
// bits wide, as on the C28x data bus.
type DevMem struct {
	mem []byte
}

// OpenDevMem maps words 16 bits words of physical memory starting at the
// byte address phys.
func OpenDevMem(phys int64, words int) (*DevMem, error) {
	f, err := os.OpenFile("/dev/mem", os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	mem, err := unix.Mmap(int(f.Fd()), phys, words*2, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("regs: mmap %#x: %w", phys, err)
	}
	return &DevMem{mem: mem}, nil
}

// Close unmaps the window.
func (d *DevMem) Close() error {
	if d.mem == nil {
		return nil
	}
	err := unix.Munmap(d.mem)
	d.mem = nil
	return err
}

// ReadReg implements Bus.
func (d *DevMem) ReadReg(addr uint32, bits int) (uint32, error) {
	p, err := d.ptr(addr, bits)
	if err != nil {
		return 0, err
	}
	if bits == 16 {
		return uint32(*(*uint16)(p)), nil
	}
	return atomic.LoadUint32((*uint32)(p)), nil
}

// WriteReg implements Bus.
func (d *DevMem) WriteReg(addr uint32, bits int, v uint32) error {
	p, err := d.ptr(addr, bits)
	if err != nil {
		return err
	}
	if bits == 16 {
		*(*uint16)(p) = uint16(v)
		return nil
	}
	atomic.StoreUint32((*uint32)(p), v)
	return nil
}

func (d *DevMem) ptr(addr uint32, bits int) (unsafe.Pointer, error) {
	if bits != 16 && bits != 32 {
		return nil, ErrWidth
	}
	o := int(addr) * 2
	if o+bits/8 > len(d.mem) {
		return nil, fmt.Errorf("regs: address %#x outside of mapped window", addr)
	}
	if bits == 32 && o%4 != 0 {
		return nil, fmt.Errorf("regs: 32 bits register at odd word %#x", addr)
	}
	return unsafe.Pointer(&d.mem[o]), nil
}

func (d *DevMem) String() string {
	return fmt.Sprintf("devmem(%d words)", len(d.mem)/2)
}

var _ Bus = &DevMem{}
