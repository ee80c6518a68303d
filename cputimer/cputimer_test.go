// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package cputimer

import (
	"context"
	"testing"
	"time"

	"github.com/GermanBionicSystems/piccolo/pie"
	"github.com/GermanBionicSystems/piccolo/regs"
	"github.com/google/go-cmp/cmp"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/physic"
)

// timerModel makes TIF write-one-to-clear and TRB self clearing.
func timerModel(m *regs.Mem, base uint32) {
	m.OnWrite(base+TCR.Off, func(old, v uint32) uint32 {
		tif := TIF.Mask()
		if v&tif != 0 {
			old &^= tif
		}
		return v&^(tif|TRB.Mask()) | old&tif
	})
}

// underflow is the hardware side of a period elapsing.
func underflow(m *regs.Mem, ic *pie.Controller, n int) {
	m.Update(Base(n)+TCR.Off, func(v uint32) uint32 { return v | TIF.Mask() })
	_ = ic.Raise(Source(n))
}

type countingPin struct {
	gpiotest.Pin
	outs int
}

func (p *countingPin) Out(l gpio.Level) error {
	p.outs++
	return p.Pin.Out(l)
}

type hwToggle struct {
	gpiotest.Pin
	toggles int
}

func (p *hwToggle) Toggle() error {
	p.toggles++
	return nil
}

func newTimer(t *testing.T, m *regs.Mem, n int) *Dev {
	timerModel(m, Base(n))
	d, err := New(regs.NewFile(m, Base(n), d2s(n)), &Opts{Timer: n, Period: 500 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func d2s(n int) string {
	return [...]string{"CpuTimer0", "CpuTimer1", "CpuTimer2"}[n]
}

func TestPeriod(t *testing.T) {
	data := []struct {
		f    physic.Frequency
		p    time.Duration
		want uint32
	}{
		{60 * physic.MegaHertz, time.Second, 59999999},
		{60 * physic.MegaHertz, 500 * time.Millisecond, 29999999},
		{50 * physic.MegaHertz, time.Microsecond, 49},
	}
	for i, line := range data {
		got, err := Period(line.f, line.p)
		if err != nil || got != line.want {
			t.Errorf("#%d: Period(%s, %s) = %d, %v; want %d", i, line.f, line.p, got, err, line.want)
		}
	}
	if _, err := Period(60*physic.MegaHertz, 100*time.Second); err == nil {
		t.Error("PRD overflow accepted")
	}
	if _, err := Period(60*physic.MegaHertz, time.Nanosecond); err == nil {
		t.Error("sub microsecond period accepted")
	}
}

func TestNew(t *testing.T) {
	m := &regs.Mem{}
	d := newTimer(t, m, 0)
	want := map[string]uint32{"PRD": 29999999, "TCR": 0x4010, "TPR": 0, "TPRH": 0}
	got := map[string]uint32{}
	for _, r := range []regs.Reg{PRD, TCR, TPR, TPRH} {
		got[r.Name] = m.Peek(Base0 + r.Off)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	if d.PRD() != 29999999 || d.String() != "cputimer0" {
		t.Fatal(d)
	}
	if _, err := New(regs.NewFile(m, Base0, ""), &Opts{Timer: 3}); err == nil {
		t.Fatal("timer 3 accepted")
	}
}

func TestTicker_toggles(t *testing.T) {
	const periods = 25
	m := &regs.Mem{}
	d := newTimer(t, m, 0)
	ic := pie.New(nil)
	p := &countingPin{Pin: gpiotest.Pin{N: "GPIO0"}}
	ticks := 0
	tk, err := d.NewTicker(ic, &TickOpts{Pin: p, OnTick: func() { ticks++ }})
	if err != nil {
		t.Fatal(err)
	}
	defer tk.Close()
	if err := tk.Start(); err != nil {
		t.Fatal(err)
	}
	if m.Peek(Base0+TCR.Off)&TSS.Mask() != 0 {
		t.Fatal("timer not started")
	}
	for i := 0; i < periods; i++ {
		underflow(m, ic, 0)
		ic.Service()
		// A second interrupt with no underflow is ignored.
		_ = ic.Raise(pie.TINT0)
		ic.Service()
	}
	if p.outs != periods || ticks != periods || tk.Ticks() != periods {
		t.Fatalf("%d periods: %d toggles, %d ticks, Ticks() = %d", periods, p.outs, ticks, tk.Ticks())
	}
	if p.L != gpio.High {
		t.Fatal("odd number of toggles must leave the pin High")
	}
	if ic.Acks(1) != 2*periods {
		t.Fatalf("%d acknowledges", ic.Acks(1))
	}
	if s := tk.Stats(); s.Spurious != periods || s.Clears != 2*periods {
		t.Fatalf("%+v", s)
	}
	if err := tk.Stop(); err != nil {
		t.Fatal(err)
	}
	if m.Peek(Base0+TCR.Off)&TSS.Mask() == 0 {
		t.Fatal("timer still running")
	}
}

func TestTicker_cpuLine(t *testing.T) {
	m := &regs.Mem{}
	d := newTimer(t, m, 2)
	ic := pie.New(nil)
	p := &hwToggle{}
	tk, err := d.NewTicker(ic, &TickOpts{Pin: p})
	if err != nil {
		t.Fatal(err)
	}
	defer tk.Close()
	if err := tk.Start(); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		underflow(m, ic, 2)
		ic.Service()
	}
	if p.toggles != 4 {
		t.Fatalf("%d toggles", p.toggles)
	}
	// INT14 has no acknowledge bit.
	if s := tk.Stats(); s.Acks != 0 || s.Serviced != 4 {
		t.Fatalf("%+v", s)
	}
}

func TestTicker_Next(t *testing.T) {
	m := &regs.Mem{}
	d := newTimer(t, m, 1)
	ic := pie.New(nil)
	tk, err := d.NewTicker(ic, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer tk.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go ic.Run(ctx)
	if err := tk.Start(); err != nil {
		t.Fatal(err)
	}
	for want := uint64(1); want <= 3; want++ {
		underflow(m, ic, 1)
		n, err := tk.Next(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if n != want {
			t.Fatalf("Next() = %d, want %d", n, want)
		}
	}
}
