// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package eqep_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/GermanBionicSystems/piccolo/eqep"
	"github.com/GermanBionicSystems/piccolo/pie"
	"github.com/GermanBionicSystems/piccolo/regs"
	"github.com/GermanBionicSystems/piccolo/sim"
	"github.com/GermanBionicSystems/piccolo/txn"
	"github.com/google/go-cmp/cmp"
	"periph.io/x/conn/v3/physic"
)

func newQEP(t *testing.T) (*eqep.Dev, *sim.QEP, *pie.Controller, *regs.Mem) {
	m := &regs.Mem{}
	ic := pie.New(nil)
	q := sim.NewQEP(m, ic)
	d, err := eqep.New(regs.NewFile(m, eqep.Base, "EQep1"), nil)
	if err != nil {
		t.Fatal(err)
	}
	return d, q, ic, m
}

func TestNew(t *testing.T) {
	d, _, _, m := newQEP(t)
	got := map[string]uint32{}
	for _, r := range []regs.Reg{eqep.QUPRD, eqep.QDECCTL, eqep.QEPCTL, eqep.QCAPCTL, eqep.QPOSMAX} {
		got[r.Name] = m.Peek(eqep.Base + r.Off)
	}
	want := map[string]uint32{
		"QUPRD":   2000000,
		"QDECCTL": 0,
		"QEPCTL":  0x800E,
		"QCAPCTL": 0x8075,
		"QPOSMAX": 0xFFFFFFFF,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	if p := d.UnitPeriod(); p != 33333333*time.Nanosecond {
		t.Fatal(p)
	}
}

func TestDev_Position(t *testing.T) {
	d, q, _, _ := newQEP(t)
	q.Rotate(100)
	if p, err := d.Position(); err != nil || p != 100 {
		t.Fatal(p, err)
	}
	q.Rotate(-150)
	if p, err := d.Position(); err != nil || p != 0xFFFFFFCE {
		t.Fatal(p, err)
	}
	if err := d.SetPosition(7); err != nil {
		t.Fatal(err)
	}
	if p, err := d.Position(); err != nil || p != 7 {
		t.Fatal(p, err)
	}
}

func TestDev_Speed(t *testing.T) {
	d, q, _, m := newQEP(t)
	q.Rotate(1000)
	pos, err := d.WaitUnitTimeout()
	if err != nil {
		t.Fatal(err)
	}
	if pos != 1000 {
		t.Fatal(pos)
	}
	if v := m.Peek(eqep.Base + eqep.QFLG.Off); v != 0 {
		t.Fatalf("QFLG = %#x", v)
	}
	if s, err := d.Speed(); err != nil || s != 0 {
		t.Fatal(s, err)
	}
	q.Rotate(500)
	s, err := d.Speed()
	if err != nil || s != 500 {
		t.Fatal(s, err)
	}
	if r := d.Rate(s); r != 15*physic.KiloHertz {
		t.Fatal(r)
	}
	q.Rotate(-20)
	if s, err := d.Speed(); err != nil || s != -20 {
		t.Fatal(s, err)
	}
}

func TestDev_Speed_wrap(t *testing.T) {
	d, q, _, _ := newQEP(t)
	if err := d.SetPosition(0xFFFFFFF0); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Speed(); err != nil {
		t.Fatal(err)
	}
	q.Rotate(32)
	if s, err := d.Speed(); err != nil || s != 32 {
		t.Fatal(s, err)
	}
}

func TestDev_WaitUnitTimeout_timeout(t *testing.T) {
	m := &regs.Mem{}
	d, err := eqep.New(regs.NewFile(m, eqep.Base, "EQep1"), &eqep.Opts{Timeout: 5 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.WaitUnitTimeout(); !errors.Is(err, txn.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestUnitTimer(t *testing.T) {
	d, q, ic, m := newQEP(t)
	var got []uint32
	u, err := d.NewUnitTimer(ic, &eqep.IntOpts{OnLatch: func(pos uint32) { got = append(got, pos) }})
	if err != nil {
		t.Fatal(err)
	}
	defer u.Close()
	if err := u.Start(); err != nil {
		t.Fatal(err)
	}
	if v := m.Peek(eqep.Base + eqep.QEINT.Off); v != eqep.UTO {
		t.Fatalf("QEINT = %#x", v)
	}
	for _, n := range []int32{10, 20} {
		q.Rotate(n)
		if !q.UnitTimeout() {
			t.Fatal("unit timer disabled")
		}
		if n := ic.Service(); n != 1 {
			t.Fatalf("%d handlers run", n)
		}
	}
	if diff := cmp.Diff([]uint32{10, 30}, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if pos, err := u.Next(ctx); err != nil || pos != 30 {
		t.Fatal(pos, err)
	}
	if s := u.Stats(); s.Serviced != 2 || ic.Acks(5) != 2 {
		t.Fatalf("%+v", s)
	}
}
