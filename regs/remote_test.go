// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package regs

import (
	"testing"

	"periph.io/x/conn/v3/i2c/i2ctest"
)

func TestRemote(t *testing.T) {
	const addr uint16 = 0x28
	bus := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			// ADCTRL2 read, then SOC_SEQ1 set.
			{Addr: addr, W: []byte{0x71, 0x01}, R: []byte{0x08, 0x00}},
			{Addr: addr, W: []byte{0x71, 0x01, 0x28, 0x00}},
			// 32 bits timer period.
			{Addr: addr, W: []byte{0x0C, 0x02, 0x00, 0x1E, 0x84, 0x80}},
			{Addr: addr, W: []byte{0x0C, 0x02}, R: []byte{0x00, 0x1E, 0x84, 0x7F}},
		},
	}
	defer func() {
		if err := bus.Close(); err != nil {
			t.Fatal(err)
		}
	}()
	r := NewRemoteI2C(bus, addr)
	adc := NewFile(r, 0x7100, "ADC")
	if err := adc.WriteField(R16("ADCTRL2", 1).Bit(13), 1); err != nil {
		t.Fatal(err)
	}
	tmr := NewFile(r, 0x0C00, "CpuTimer0")
	if err := tmr.Write(R32("PRD", 2), 0x1E8480); err != nil {
		t.Fatal(err)
	}
	v, err := tmr.Read(R32("PRD", 2))
	if err != nil {
		t.Fatal(err)
	}
	if v != 0x1E847F {
		t.Fatalf("PRD = %#x", v)
	}
	if s := r.String(); s == "" {
		t.Fatal("empty String()")
	}
}

func TestRemote_outOfRange(t *testing.T) {
	r := NewRemoteI2C(&i2ctest.Playback{}, 0x28)
	if _, err := r.ReadReg(0x10000, 16); err == nil {
		t.Fatal("expected error")
	}
	if err := r.WriteReg(0, 8, 0); err == nil {
		t.Fatal("expected error")
	}
}
