// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package scia_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/GermanBionicSystems/piccolo/pie"
	"github.com/GermanBionicSystems/piccolo/regs"
	"github.com/GermanBionicSystems/piccolo/scia"
	"github.com/GermanBionicSystems/piccolo/sim"
	"github.com/GermanBionicSystems/piccolo/txn"
	"github.com/google/go-cmp/cmp"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/uart"
)

func newPort(t *testing.T, opts *scia.Opts) (*scia.Dev, *sim.SCI, *pie.Controller, *regs.File) {
	m := &regs.Mem{}
	ic := pie.New(nil)
	line := sim.NewSCI(m, ic)
	f := regs.NewFile(m, scia.Base, "SCIA")
	d, err := scia.New(f, opts)
	if err != nil {
		t.Fatal(err)
	}
	return d, line, ic, f
}

func TestBRR(t *testing.T) {
	data := []struct {
		lspclk physic.Frequency
		baud   physic.Frequency
		want   uint16
	}{
		{37500 * physic.KiloHertz, 9600 * physic.Hertz, 0x01E7},
		{15 * physic.MegaHertz, 9600 * physic.Hertz, 194},
		{15 * physic.MegaHertz, 115200 * physic.Hertz, 15},
	}
	for i, line := range data {
		got, err := scia.BRR(line.lspclk, line.baud)
		if err != nil || got != line.want {
			t.Errorf("#%d: BRR(%s, %s) = %#x, %v; want %#x", i, line.lspclk, line.baud, got, err, line.want)
		}
	}
	if _, err := scia.BRR(15*physic.MegaHertz, 4*physic.MegaHertz); err == nil {
		t.Error("BRR 0 accepted")
	}
	if b := scia.Baud(37500*physic.KiloHertz, 0x01E7); b < 9600*physic.Hertz || b > 9610*physic.Hertz {
		t.Errorf("Baud() = %s", b)
	}
}

func TestNew(t *testing.T) {
	m := &regs.Mem{}
	if _, err := scia.New(regs.NewFile(m, scia.Base, "SCIA"), nil); err != nil {
		t.Fatal(err)
	}
	got := map[string]uint32{}
	for _, r := range []regs.Reg{scia.SCICCR, scia.SCICTL1, scia.SCIHBAUD, scia.SCILBAUD} {
		got[r.Name] = m.Peek(scia.Base + r.Off)
	}
	want := map[string]uint32{"SCICCR": 0x0007, "SCICTL1": 0x0023, "SCIHBAUD": 0x0001, "SCILBAUD": 0x00E7}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestDev_ReadWrite(t *testing.T) {
	d, line, _, _ := newPort(t, &scia.Opts{Timeout: 10 * time.Millisecond})
	if n, err := d.Write([]byte("Hello, UART!")); n != 12 || err != nil {
		t.Fatalf("Write() = %d, %v", n, err)
	}
	if got := string(line.Transmitted()); got != "Hello, UART!" {
		t.Fatalf("transmitted %q", got)
	}
	line.Receive('o', 'k')
	if d.Buffered() != 2 {
		t.Fatalf("Buffered() = %d", d.Buffered())
	}
	buf := make([]byte, 8)
	n, err := d.Read(buf)
	if err != nil || string(buf[:n]) != "ok" {
		t.Fatalf("Read() = %q, %v", buf[:n], err)
	}
	// Nothing received: bounded wait.
	if _, err := d.Read(buf); !errors.Is(err, txn.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestDev_Connect(t *testing.T) {
	d, _, _, f := newPort(t, nil)
	c, err := d.Connect(115200*physic.Hertz, uart.Two, uart.Even, uart.NoFlow, 7)
	if err != nil {
		t.Fatal(err)
	}
	// Capped to the port speed.
	if s := d.Speed(); s > 9610*physic.Hertz {
		t.Fatalf("Speed() = %s", s)
	}
	if v, _ := f.Read(scia.SCICCR); v != 0xE6 {
		t.Fatalf("SCICCR = %#x", v)
	}
	if err := f.WriteField(scia.LOOPBKENA, 1); err != nil {
		t.Fatal(err)
	}
	r := make([]byte, 3)
	if err := c.Tx([]byte{1, 2, 3}, r); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]byte{1, 2, 3}, r); diff != "" {
		t.Fatalf("loopback (-want +got):\n%s", diff)
	}
	if _, err := d.Connect(9600*physic.Hertz, uart.One, uart.NoParity, uart.RTSCTS, 8); err == nil {
		t.Fatal("flow control accepted")
	}
	if _, err := d.Connect(9600*physic.Hertz, uart.One, uart.Mark, uart.NoFlow, 8); err == nil {
		t.Fatal("mark parity accepted")
	}
	if _, err := d.Connect(9600*physic.Hertz, uart.One, uart.NoParity, uart.NoFlow, 9); err == nil {
		t.Fatal("9 bits accepted")
	}
}

// Every character received comes back unchanged.
func TestEcho_roundTrip(t *testing.T) {
	d, line, ic, _ := newPort(t, &scia.Opts{Interrupts: true})
	var seen []byte
	e, err := d.NewEcho(ic, &scia.EchoOpts{OnByte: func(b byte) { seen = append(seen, b) }})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	if err := e.Start(); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 256; i++ {
		line.Receive(byte(i))
		if n := ic.Service(); n != 1 {
			t.Fatalf("%#02x: %d handlers run", i, n)
		}
		if got := line.Transmitted(); len(got) != 1 || got[0] != byte(i) {
			t.Fatalf("%#02x echoed as %v", i, got)
		}
	}
	if len(seen) != 256 {
		t.Fatalf("%d characters seen", len(seen))
	}
	if s := e.Stats(); s.Serviced != 256 || s.Clears != 256 || s.Acks != 256 || s.Spurious != 0 {
		t.Fatalf("%+v", s)
	}
	if ic.Blocked(pie.SCIRXINTA.Group()) {
		t.Fatal("group 9 left blocked")
	}
}

// A burst is drained one character per interrupt.
func TestEcho_burst(t *testing.T) {
	d, line, ic, _ := newPort(t, &scia.Opts{Interrupts: true})
	e, err := d.NewEcho(ic, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	if err := e.Start(); err != nil {
		t.Fatal(err)
	}
	line.Receive('a', 'b', 'c', 'd', 'e')
	if n := ic.Service(); n != 4 {
		t.Fatalf("%d handlers run", n)
	}
	if got := string(line.Transmitted()); got != "abcd" {
		t.Fatalf("echoed %q", got)
	}
	if line.Overruns() != 1 {
		t.Fatalf("%d overruns", line.Overruns())
	}
	if b, n, ok := e.Last(); !ok || b != 'd' || n != 4 {
		t.Fatalf("Last() = %q, %d, %t", b, n, ok)
	}
}

func TestEcho_Next(t *testing.T) {
	d, line, ic, _ := newPort(t, &scia.Opts{Interrupts: true})
	e, err := d.NewEcho(ic, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go ic.Run(ctx)
	if err := e.Start(); err != nil {
		t.Fatal(err)
	}
	line.Receive('x')
	if b, err := e.Next(ctx); err != nil || b != 'x' {
		t.Fatalf("Next() = %q, %v", b, err)
	}
}

func TestSender(t *testing.T) {
	d, line, ic, f := newPort(t, &scia.Opts{Interrupts: true})
	s, err := d.NewSender(ic, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go ic.Run(ctx)
	for _, msg := range []string{"Hello, UART Interrupt!", "", "x"} {
		if err := s.Send(ctx, []byte(msg)); err != nil {
			t.Fatal(err)
		}
		if got := string(line.Transmitted()); got != msg {
			t.Fatalf("transmitted %q, want %q", got, msg)
		}
		if v, _ := f.ReadField(scia.TXFFIENA); v != 0 {
			t.Fatal("transmit interrupt left enabled")
		}
	}
}

func TestNewEcho_noInterrupts(t *testing.T) {
	d, _, ic, _ := newPort(t, nil)
	if _, err := d.NewEcho(ic, nil); err == nil {
		t.Fatal("echo without interrupts")
	}
	if _, err := d.NewSender(ic, nil); err == nil {
		t.Fatal("sender without interrupts")
	}
}

func TestCursor(t *testing.T) {
	var c scia.Cursor
	c.Reset([]byte("ab"))
	var got []byte
	for {
		b, ok := c.Next()
		if !ok {
			break
		}
		got = append(got, b)
	}
	if string(got) != "ab" || !c.Done() || c.Sent() != 2 {
		t.Fatalf("%q %t %d", got, c.Done(), c.Sent())
	}
}
