// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package epwm_test

import (
	"context"
	"testing"
	"time"

	"github.com/GermanBionicSystems/piccolo/epwm"
	"github.com/GermanBionicSystems/piccolo/pie"
	"github.com/GermanBionicSystems/piccolo/regs"
	"github.com/GermanBionicSystems/piccolo/sim"
	"github.com/google/go-cmp/cmp"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

func newPWM(t *testing.T) (*epwm.Dev, *sim.PWM, *pie.Controller, *regs.Mem) {
	m := &regs.Mem{}
	ic := pie.New(nil)
	p := sim.NewPWM(m, ic, 1, 60*physic.MegaHertz)
	d, err := epwm.New(regs.NewFile(m, epwm.Base(1), "EPwm1"), nil)
	if err != nil {
		t.Fatal(err)
	}
	return d, p, ic, m
}

func peek(m *regs.Mem, r regs.Reg) uint32 {
	return m.Peek(epwm.Base(1) + r.Off)
}

func TestNewTiming(t *testing.T) {
	data := []struct {
		duty gpio.Duty
		f    physic.Frequency
		want epwm.Timing
	}{
		{gpio.DutyHalf, 40 * physic.KiloHertz, epwm.Timing{TBPRD: 1499, CMPA: 750}},
		{gpio.DutyHalf, 20 * physic.KiloHertz, epwm.Timing{TBPRD: 2999, CMPA: 1500}},
		{gpio.DutyMax / 4, 100 * physic.Hertz, epwm.Timing{CLKDIV: 4, TBPRD: 37499, CMPA: 9375}},
		{0, physic.MegaHertz, epwm.Timing{TBPRD: 59}},
		{gpio.DutyMax, physic.MegaHertz, epwm.Timing{TBPRD: 59, CMPA: 60}},
	}
	for i, line := range data {
		got, err := epwm.NewTiming(60*physic.MegaHertz, line.duty, line.f)
		if err != nil {
			t.Fatalf("#%d: %v", i, err)
		}
		if got != line.want {
			t.Errorf("#%d: NewTiming(%s, %s) = %+v; want %+v", i, line.duty, line.f, got, line.want)
		}
		if f := got.Frequency(60 * physic.MegaHertz); f != line.f {
			t.Errorf("#%d: Frequency() = %s", i, f)
		}
		if d := got.Duty(); d != line.duty {
			t.Errorf("#%d: Duty() = %s", i, d)
		}
	}
	for _, f := range []physic.Frequency{0, physic.Hertz, 40 * physic.MegaHertz} {
		if _, err := epwm.NewTiming(60*physic.MegaHertz, gpio.DutyHalf, f); err == nil {
			t.Errorf("%s accepted", f)
		}
	}
	if _, err := epwm.NewTiming(60*physic.MegaHertz, gpio.DutyMax+1, physic.KiloHertz); err == nil {
		t.Error("invalid duty accepted")
	}
}

func TestNew(t *testing.T) {
	d, p, _, m := newPWM(t)
	if v := peek(m, epwm.AQCSFRC); v != 1 {
		t.Fatalf("AQCSFRC = %#x", v)
	}
	if w := p.Output(); !w.Forced || w.Level != gpio.Low {
		t.Fatalf("%+v", w)
	}
	if d.String() != "EPWM1A" || d.Number() != 0 || d.Function() != "PWM" {
		t.Fatal(d.String(), d.Number(), d.Function())
	}
	if _, err := epwm.New(regs.NewFile(m, epwm.Base(5), "EPwm5"), &epwm.Opts{Module: 5}); err == nil {
		t.Fatal("ePWM5 accepted")
	}
}

func TestDev_PWM(t *testing.T) {
	d, p, _, m := newPWM(t)
	if err := d.PWM(gpio.DutyHalf, 40*physic.KiloHertz); err != nil {
		t.Fatal(err)
	}
	got := map[string]uint32{}
	for _, r := range []regs.Reg{epwm.TBCTL, epwm.TBPRD, epwm.CMPA, epwm.CMPCTL, epwm.AQCTLA, epwm.AQCSFRC} {
		got[r.Name] = peek(m, r)
	}
	want := map[string]uint32{
		"TBCTL":   0,
		"TBPRD":   1499,
		"CMPA":    750,
		"CMPCTL":  0,
		"AQCTLA":  0x12,
		"AQCSFRC": 0,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	wf := sim.Waveform{Freq: 40 * physic.KiloHertz, Duty: gpio.DutyHalf}
	if diff := cmp.Diff(wf, p.Output()); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	if f, duty := d.Setting(); f != 40*physic.KiloHertz || duty != gpio.DutyHalf {
		t.Fatal(f, duty)
	}

	if err := d.PWM(gpio.DutyMax/4, 100*physic.Hertz); err != nil {
		t.Fatal(err)
	}
	if v := peek(m, epwm.TBCTL); v != 0x1000 {
		t.Fatalf("TBCTL = %#x", v)
	}
	wf = sim.Waveform{Freq: 100 * physic.Hertz, Duty: gpio.DutyMax / 4}
	if diff := cmp.Diff(wf, p.Output()); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}

	if err := d.Out(gpio.High); err != nil {
		t.Fatal(err)
	}
	if w := p.Output(); !w.Forced || w.Level != gpio.High {
		t.Fatalf("%+v", w)
	}
	if f, _ := d.Setting(); f != 0 {
		t.Fatal(f)
	}
	if err := d.Halt(); err != nil {
		t.Fatal(err)
	}
	if v := peek(m, epwm.AQCSFRC); v != 1 {
		t.Fatalf("AQCSFRC = %#x", v)
	}
}

func TestDev_TriggerADC(t *testing.T) {
	d, p, _, m := newPWM(t)
	socs := 0
	p.OnSOCA = func() { socs++ }
	p.Period()
	if socs != 0 {
		t.Fatal("SOCA before configuration")
	}
	if err := d.TriggerADC(); err != nil {
		t.Fatal(err)
	}
	got := map[string]uint32{}
	for _, r := range []regs.Reg{epwm.ETSEL, epwm.ETPS, epwm.CMPA, epwm.TBPRD, epwm.TBCTL} {
		got[r.Name] = peek(m, r)
	}
	want := map[string]uint32{
		"ETSEL": 0x0C00,
		"ETPS":  0x0100,
		"CMPA":  0x80,
		"TBPRD": 0xFFFF,
		"TBCTL": 0,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	p.Period()
	p.Period()
	if socs != 2 {
		t.Fatalf("%d conversions started", socs)
	}
}

func TestPeriods(t *testing.T) {
	d, p, ic, m := newPWM(t)
	if err := d.PWM(gpio.DutyHalf, 40*physic.KiloHertz); err != nil {
		t.Fatal(err)
	}
	n := 0
	ps, err := d.NewPeriods(ic, &epwm.PeriodOpts{OnPeriod: func() { n++ }})
	if err != nil {
		t.Fatal(err)
	}
	defer ps.Close()
	if err := ps.Start(); err != nil {
		t.Fatal(err)
	}
	if v := peek(m, epwm.ETSEL); v != 0x9 {
		t.Fatalf("ETSEL = %#x", v)
	}
	for i := 0; i < 3; i++ {
		p.Period()
		if got := ic.Service(); got != 1 {
			t.Fatalf("%d handlers run", got)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	seq, err := ps.Next(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if seq != 3 || n != 3 {
		t.Fatalf("seq %d, %d callbacks", seq, n)
	}
	if v := peek(m, epwm.ETFLG); v != 0 {
		t.Fatalf("ETFLG = %#x", v)
	}
	if s := ps.Stats(); s.Serviced != 3 || s.Acks != 3 || ic.Acks(3) != 3 {
		t.Fatalf("%+v", s)
	}
}

func TestPeriods_notRouted(t *testing.T) {
	m := &regs.Mem{}
	d, err := epwm.New(regs.NewFile(m, epwm.Base(2), "EPwm2"), &epwm.Opts{Module: 2})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.NewPeriods(pie.New(nil), nil); err == nil {
		t.Fatal("ePWM2 interrupt accepted")
	}
}
