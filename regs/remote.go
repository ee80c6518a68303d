// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package regs

import (
	"encoding/binary"
	"fmt"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/mmr"
)

// Remote is a Bus reaching the registers through a register bridge: the word
// address is sent as a big endian 16 bits value followed by the data.
type Remote struct {
	d mmr.Dev16
}

// NewRemote returns a Bus over the half-duplex connection c.
func NewRemote(c conn.Conn) *Remote {
	return &Remote{d: mmr.Dev16{Conn: c, Order: binary.BigEndian}}
}

// NewRemoteI2C returns a Bus over the bridge at addr on the I²C bus b.
func NewRemoteI2C(b i2c.Bus, addr uint16) *Remote {
	return NewRemote(&i2c.Dev{Bus: b, Addr: addr})
}

// ReadReg implements Bus.
func (r *Remote) ReadReg(addr uint32, bits int) (uint32, error) {
	if addr > 0xFFFF {
		return 0, fmt.Errorf("regs: address %#x out of bridge range", addr)
	}
	switch bits {
	case 16:
		v, err := r.d.ReadUint16(uint16(addr))
		return uint32(v), err
	case 32:
		return r.d.ReadUint32(uint16(addr))
	default:
		return 0, ErrWidth
	}
}

// WriteReg implements Bus.
func (r *Remote) WriteReg(addr uint32, bits int, v uint32) error {
	if addr > 0xFFFF {
		return fmt.Errorf("regs: address %#x out of bridge range", addr)
	}
	switch bits {
	case 16:
		return r.d.WriteUint16(uint16(addr), uint16(v))
	case 32:
		return r.d.WriteUint32(uint16(addr), v)
	default:
		return ErrWidth
	}
}

func (r *Remote) String() string {
	return "remote(" + r.d.String() + ")"
}

var _ Bus = &Remote{}
