// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ecan_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/GermanBionicSystems/piccolo/ecan"
	"github.com/GermanBionicSystems/piccolo/pie"
	"github.com/GermanBionicSystems/piccolo/regs"
	"github.com/GermanBionicSystems/piccolo/sim"
	"github.com/GermanBionicSystems/piccolo/txn"
	"github.com/google/go-cmp/cmp"
	"periph.io/x/conn/v3/physic"
)

func newCAN(t *testing.T, opts *ecan.Opts) (*ecan.Dev, *sim.CAN, *pie.Controller, *regs.Mem) {
	m := &regs.Mem{}
	ic := pie.New(nil)
	c := sim.NewCAN(m, ic)
	d, err := ecan.New(regs.NewFile(m, ecan.Base, "ECANA"), opts)
	if err != nil {
		t.Fatal(err)
	}
	return d, c, ic, m
}

func TestTiming(t *testing.T) {
	data := []struct {
		canclk, bitrate physic.Frequency
		want            uint32
	}{
		{30 * physic.MegaHertz, 500 * physic.KiloHertz, 0x00020073},
		{30 * physic.MegaHertz, physic.MegaHertz, 0x00010052},
		{30 * physic.MegaHertz, 125 * physic.KiloHertz, 0x0009007E},
	}
	for i, line := range data {
		got, err := ecan.Timing(line.canclk, line.bitrate)
		if err != nil || got != line.want {
			t.Errorf("#%d: Timing(%s) = %#08x, %v; want %#08x", i, line.bitrate, got, err, line.want)
		}
		if b := ecan.Bitrate(line.canclk, got); b != line.bitrate {
			t.Errorf("#%d: Bitrate() = %s", i, b)
		}
	}
	if _, err := ecan.Timing(30*physic.MegaHertz, 7*physic.KiloHertz); err == nil {
		t.Fatal("7 kbps accepted")
	}
}

func TestNew(t *testing.T) {
	d, _, _, m := newCAN(t, nil)
	got := map[string]uint32{}
	for _, r := range []regs.Reg{ecan.CANME, ecan.CANMD, ecan.CANMC, ecan.CANBTC, ecan.CANES} {
		got[r.Name] = m.Peek(ecan.Base + r.Off)
	}
	want := map[string]uint32{
		"CANME":  0xFFFFFFFF,
		"CANMD":  0xFFFF0000,
		"CANMC":  ecan.SCB.Mask(),
		"CANBTC": 0x00020073,
		"CANES":  0,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	if b := d.Bitrate(); b != 500*physic.KiloHertz {
		t.Fatalf("Bitrate() = %s", b)
	}
	if err := d.SetBitrate(physic.MegaHertz); err != nil {
		t.Fatal(err)
	}
	if v := m.Peek(ecan.Base + ecan.CANBTC.Off); v != 0x00010052 {
		t.Fatalf("CANBTC = %#x", v)
	}
}

// Without the controller acknowledging CCR the handshake times out.
func TestNew_handshakeTimeout(t *testing.T) {
	m := &regs.Mem{}
	_, err := ecan.New(regs.NewFile(m, ecan.Base, "ECANA"), &ecan.Opts{Timeout: 5 * time.Millisecond})
	if !errors.Is(err, txn.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if m.Writes(ecan.Base+ecan.CANBTC.Off) != 0 {
		t.Fatal("CANBTC written without CCE")
	}
}

func TestDev_Transmit(t *testing.T) {
	d, c, _, m := newCAN(t, nil)
	var bus []ecan.Frame
	c.OnTransmit = func(fr ecan.Frame) { bus = append(bus, fr) }
	fr := ecan.Frame{ID: 0x123, Data: []byte{0xA5, 0xA5, 0xA5, 0xA5}}
	if err := d.Transmit(0, fr); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]ecan.Frame{fr}, bus); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	if v := m.Peek(ecan.MailboxAddr(0) + ecan.MDL.Off); v != 0xA5A5A5A5 {
		t.Fatalf("MDL = %#x", v)
	}
	if v := m.Peek(ecan.Base + ecan.CANTA.Off); v != 0 {
		t.Fatalf("CANTA = %#x", v)
	}
	if err := d.Transmit(16, fr); err == nil {
		t.Fatal("transmit from a receive mailbox")
	}
	if err := d.Transmit(0, ecan.Frame{ID: 0x800}); err == nil {
		t.Fatal("29 bits identifier accepted")
	}
}

func TestDev_Transmit_noAck(t *testing.T) {
	d, c, _, m := newCAN(t, &ecan.Opts{Timeout: 5 * time.Millisecond})
	c.NoAck = true
	if err := d.Transmit(3, ecan.Frame{ID: 1}); !errors.Is(err, txn.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	// The request was cancelled.
	if v := m.Peek(ecan.Base + ecan.CANTRS.Off); v != 0 {
		t.Fatalf("CANTRS = %#x", v)
	}
}

func TestNew_receiveMailboxes(t *testing.T) {
	data := []struct {
		opts *ecan.Opts
		want uint32
	}{
		{&ecan.Opts{SelfTest: true}, 0xFFFF0000},
		{&ecan.Opts{Bitrate: physic.MegaHertz}, 0xFFFF0000},
		{&ecan.Opts{Receive: 0x0000FF00}, 0x0000FF00},
	}
	for i, line := range data {
		_, _, _, m := newCAN(t, line.opts)
		if v := m.Peek(ecan.Base + ecan.CANMD.Off); v != line.want {
			t.Errorf("#%d: CANMD = %#08x; want %#08x", i, v, line.want)
		}
	}
}

func TestDev_selfTest(t *testing.T) {
	d, c, _, m := newCAN(t, &ecan.Opts{SelfTest: true})
	if err := d.Listen(16, 0x123); err != nil {
		t.Fatal(err)
	}
	fr := ecan.Frame{ID: 0x123, Data: []byte{1, 2, 3, 4, 5, 6, 7, 8}}
	if err := d.Transmit(0, fr); err != nil {
		t.Fatal(err)
	}
	got, err := d.Receive(16, 10*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(fr, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	if v := m.Peek(ecan.Base + ecan.CANRMP.Off); v != 0 {
		t.Fatalf("CANRMP = %#x", v)
	}
	// Another identifier is not accepted.
	if err := d.Transmit(0, ecan.Frame{ID: 0x124, Data: []byte{1}}); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Receive(16, time.Millisecond); !errors.Is(err, txn.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if n := len(c.Sent()); n != 2 {
		t.Fatalf("%d frames sent", n)
	}
	if _, err := d.Receive(0, time.Millisecond); err == nil {
		t.Fatal("receive from a transmit mailbox")
	}
}

func TestReceiver(t *testing.T) {
	d, c, ic, _ := newCAN(t, nil)
	if err := d.Listen(17, 0x100); err != nil {
		t.Fatal(err)
	}
	var got []ecan.Frame
	r, err := d.NewReceiver(ic, 17, &ecan.ReceiverOpts{OnFrame: func(fr ecan.Frame) { got = append(got, fr) }})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if err := r.Start(); err != nil {
		t.Fatal(err)
	}
	want := []ecan.Frame{
		{ID: 0x100, Data: []byte{1, 2}},
		{ID: 0x100, Data: []byte{3}},
	}
	for _, fr := range want {
		if !c.Deliver(fr) {
			t.Fatal("not accepted")
		}
		if n := ic.Service(); n != 1 {
			t.Fatalf("%d handlers run", n)
		}
	}
	if c.Deliver(ecan.Frame{ID: 0x101}) {
		t.Fatal("0x101 accepted")
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	if s := r.Stats(); s.Serviced != 2 || s.Acks != 2 || c.Lost() != 0 {
		t.Fatalf("%+v, %d lost", s, c.Lost())
	}
	if _, err := d.NewReceiver(ic, 18, nil); err == nil {
		t.Fatal("second receiver registered")
	}
}

func bits(s string) []byte {
	out := make([]byte, len(s))
	for i := range s {
		out[i] = s[i] - '0'
	}
	return out
}

func TestFrame_Bits(t *testing.T) {
	data := []struct {
		fr   ecan.Frame
		want string
	}{
		{
			ecan.Frame{ID: 0x123, Data: []byte{0xA5}},
			"000100100011000001011010010100001000001011001111111111",
		},
		{
			ecan.Frame{ID: 0x7FF, Data: []byte{0xA5, 0xA5, 0xA5, 0xA5}},
			"011111011111010000100101001011010010110100101101001011100111010011001111111111",
		},
		{
			ecan.Frame{ID: 0},
			"00000100000100000100000100000100000100001111111111",
		},
	}
	for i, line := range data {
		got, err := line.fr.Bits()
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(bits(line.want), got); diff != "" {
			t.Errorf("#%d: (-want +got):\n%s", i, diff)
		}
	}
	if _, err := (&ecan.Frame{Data: make([]byte, 9)}).Bits(); err == nil {
		t.Fatal("9 bytes accepted")
	}
}

func TestFrame_String(t *testing.T) {
	fr := ecan.Frame{ID: 0x1A, Data: []byte{0xA5, 1}}
	if s := fr.String(); s != "01A [2] A5 01" {
		t.Fatal(s)
	}
	fr = ecan.Frame{ID: 0x7FF, RTR: true, Data: make([]byte, 4)}
	if s := fr.String(); !strings.HasSuffix(s, "R4") {
		t.Fatal(s)
	}
}
