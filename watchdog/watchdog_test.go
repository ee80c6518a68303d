// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package watchdog

import (
	"errors"
	"testing"

	"github.com/GermanBionicSystems/piccolo/pie"
	"github.com/GermanBionicSystems/piccolo/regs"
	"github.com/google/go-cmp/cmp"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

func TestControl(t *testing.T) {
	if v := Control(true, 0); v != 0x68 {
		t.Fatalf("disabled = %#x", v)
	}
	if v := Control(false, 0); v != 0x28 {
		t.Fatalf("enabled = %#x", v)
	}
	if v := Control(false, 7); v != 0x2F {
		t.Fatalf("enabled /64 = %#x", v)
	}
}

func TestDev(t *testing.T) {
	m := &regs.Mem{}
	var keys []uint32
	m.OnWrite(Base+WDKEY.Off, func(old, v uint32) uint32 {
		keys = append(keys, v)
		return v
	})
	f := regs.NewFile(m, Base, "SysCtrl")
	d, err := New(f, nil)
	if err != nil {
		t.Fatal(err)
	}
	if m.Peek(Base+WDCR.Off) != 0x68 || m.Peek(Base+SCSR.Off) != 0x02 {
		t.Fatalf("WDCR=%#x SCSR=%#x", m.Peek(Base+WDCR.Off), m.Peek(Base+SCSR.Off))
	}
	if err := d.Enable(); err != nil {
		t.Fatal(err)
	}
	if m.Peek(Base+WDCR.Off) != 0x28 {
		t.Fatalf("WDCR=%#x", m.Peek(Base+WDCR.Off))
	}
	for i := 0; i < 2; i++ {
		if err := d.Service(); err != nil {
			t.Fatal(err)
		}
	}
	if diff := cmp.Diff([]uint32{0x55, 0xAA, 0x55, 0xAA}, keys); diff != "" {
		t.Fatalf("WDKEY (-want +got):\n%s", diff)
	}
	// Outside of the driver the registers stay protected.
	if err := f.Write(WDCR, 0x68); !errors.Is(err, regs.ErrProtected) {
		t.Fatalf("unprotected write: %v", err)
	}
	if _, err := New(f, &Opts{Prescale: 8}); err == nil {
		t.Fatal("prescale 8 accepted")
	}
}

func TestDev_ResetFlag(t *testing.T) {
	m := &regs.Mem{}
	d, err := New(regs.NewFile(m, Base, "SysCtrl"), &Opts{})
	if err != nil {
		t.Fatal(err)
	}
	if m.Peek(Base+SCSR.Off) != 0 {
		t.Fatal("WDENINT set for reset mode")
	}
	m.Update(Base+WDCR.Off, func(v uint32) uint32 { return v | WDFLAG.Mask() })
	if ok, err := d.ResetFlag(); !ok || err != nil {
		t.Fatalf("ResetFlag() = %t, %v", ok, err)
	}
	if v := m.Peek(Base + WDCR.Off); v != 0xE8 {
		t.Fatalf("WDCR=%#x", v)
	}
	m.Poke(Base+WDCR.Off, 0x68)
	if ok, _ := d.ResetFlag(); ok {
		t.Fatal("flag reported twice")
	}
	if _, err := d.NewWake(pie.New(nil), nil); err == nil {
		t.Fatal("WAKEINT accepted in reset mode")
	}
}

func TestWake(t *testing.T) {
	m := &regs.Mem{}
	d, err := New(regs.NewFile(m, Base, "SysCtrl"), nil)
	if err != nil {
		t.Fatal(err)
	}
	ic := pie.New(nil)
	p := &gpiotest.Pin{N: "GPIO0"}
	w, err := d.NewWake(ic, &WakeOpts{Pin: p})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	levels := []gpio.Level{}
	for i := 0; i < 4; i++ {
		_ = ic.Raise(pie.WAKEINT)
		ic.Service()
		levels = append(levels, p.Read())
	}
	if diff := cmp.Diff([]gpio.Level{gpio.High, gpio.Low, gpio.High, gpio.Low}, levels); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	if w.Count() != 4 || ic.Acks(1) != 4 {
		t.Fatalf("Count() = %d, %d acknowledges", w.Count(), ic.Acks(1))
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if m.Peek(Base+WDCR.Off) != 0x68 {
		t.Fatal("watchdog left enabled")
	}
}
