// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package spia_test

import (
	"errors"
	"testing"
	"time"

	"github.com/GermanBionicSystems/piccolo/regs"
	"github.com/GermanBionicSystems/piccolo/sim"
	"github.com/GermanBionicSystems/piccolo/spia"
	"github.com/GermanBionicSystems/piccolo/txn"
	"github.com/google/go-cmp/cmp"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

func newPort(t *testing.T, opts *spia.Opts) (*spia.Dev, *sim.SPI, *regs.Mem) {
	m := &regs.Mem{}
	s := sim.NewSPI(m)
	d, err := spia.New(regs.NewFile(m, spia.Base, "SPIA"), opts)
	if err != nil {
		t.Fatal(err)
	}
	return d, s, m
}

func TestBRR(t *testing.T) {
	data := []struct {
		f    physic.Frequency
		want uint16
	}{
		{0, 127},
		{physic.KiloHertz, 127},
		{physic.MegaHertz, 37},
		{20 * physic.MegaHertz, 3},
		{9375 * physic.KiloHertz, 3},
	}
	for i, line := range data {
		if got := spia.BRR(37500*physic.KiloHertz, line.f); got != line.want {
			t.Errorf("#%d: BRR(%s) = %d; want %d", i, line.f, got, line.want)
		}
	}
	if s := spia.Speed(37500*physic.KiloHertz, 37); s > physic.MegaHertz {
		t.Errorf("Speed() = %s", s)
	}
}

func TestNew(t *testing.T) {
	_, _, m := newPort(t, nil)
	got := map[string]uint32{}
	for _, r := range []regs.Reg{spia.SPICCR, spia.SPICTL, spia.SPIBRR, spia.SPIPRI} {
		got[r.Name] = m.Peek(spia.Base + r.Off)
	}
	want := map[string]uint32{"SPICCR": 0xC7, "SPICTL": 0x06, "SPIBRR": 0x7F, "SPIPRI": 0x10}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestConfigTable_modes(t *testing.T) {
	data := []struct {
		mode     spi.Mode
		pol, pha uint32
	}{
		{spi.Mode0, 0, 1},
		{spi.Mode1, 0, 0},
		{spi.Mode2, 1, 1},
		{spi.Mode3, 1, 0},
	}
	for _, line := range data {
		tbl, err := spia.ConfigTable(127, line.mode, 8, false, false)
		if err != nil {
			t.Fatal(err)
		}
		ccr, ctl := tbl[0].Value, tbl[1].Value
		if p := regs.Extract(ccr, spia.CLKPOLARITY.Shift, 1); p != line.pol {
			t.Errorf("%s: polarity %d", line.mode, p)
		}
		if p := regs.Extract(ctl, spia.CLKPHASE.Shift, 1); p != line.pha {
			t.Errorf("%s: phase %d", line.mode, p)
		}
	}
	if _, err := spia.ConfigTable(127, spi.Mode0, 17, false, false); err == nil {
		t.Fatal("17 bits accepted")
	}
}

func TestDev_loopback(t *testing.T) {
	d, s, _ := newPort(t, &spia.Opts{Loopback: true})
	r := make([]byte, 4)
	if err := d.Tx([]byte{0x00, 0x5A, 0xA5, 0xFF}, r); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]byte{0x00, 0x5A, 0xA5, 0xFF}, r); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]uint16{0x00, 0x5A, 0xA5, 0xFF}, s.Sent()); diff != "" {
		t.Fatalf("sent (-want +got):\n%s", diff)
	}
}

func TestDev_peer(t *testing.T) {
	d, s, _ := newPort(t, nil)
	s.Peer = func(out uint16) uint16 { return ^out }
	if b, err := d.Transfer(0x0F); err != nil || b != 0xF0 {
		t.Fatalf("Transfer() = %#x, %v", b, err)
	}
	// Write only.
	if err := d.Tx([]byte{1, 2}, nil); err != nil {
		t.Fatal(err)
	}
	// Read only, zeros are sent.
	r := make([]byte, 2)
	if err := d.Tx(nil, r); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]byte{0xFF, 0xFF}, r); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]uint16{0x0F, 1, 2, 0, 0}, s.Sent()); diff != "" {
		t.Fatalf("sent (-want +got):\n%s", diff)
	}
}

func TestDev_Connect(t *testing.T) {
	d, s, m := newPort(t, &spia.Opts{Speed: 2 * physic.MegaHertz})
	s.Peer = func(out uint16) uint16 { return out + 1 }
	c, err := d.Connect(10*physic.MegaHertz, spi.Mode0|spi.NoCS, 12)
	if err != nil {
		t.Fatal(err)
	}
	if sp := d.Speed(); sp > 2*physic.MegaHertz {
		t.Fatalf("Speed() = %s", sp)
	}
	if v := m.Peek(spia.Base + spia.SPICCR.Off); v != 0x8B {
		t.Fatalf("SPICCR = %#x", v)
	}
	r := make([]byte, 2)
	if err := c.Tx([]byte{0x0A, 0xBC}, r); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]byte{0x0A, 0xBD}, r); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	// 12 bits words are left justified in SPITXBUF.
	if v := m.Peek(spia.Base + spia.SPITXBUF.Off); v != 0xABC0 {
		t.Fatalf("SPITXBUF = %#x", v)
	}
	if err := c.Tx([]byte{1, 2, 3}, nil); err == nil {
		t.Fatal("odd length accepted")
	}
	p := []spi.Packet{{W: []byte{7}, R: make([]byte, 1), BitsPerWord: 8}, {W: []byte{0, 9}, R: make([]byte, 2)}}
	if err := c.TxPackets(p); err != nil {
		t.Fatal(err)
	}
	if p[0].R[0] != 8 || p[1].R[1] != 10 {
		t.Fatalf("%v %v", p[0].R, p[1].R)
	}
	if _, err := d.Connect(0, spi.Mode0|spi.HalfDuplex, 8); err == nil {
		t.Fatal("half duplex accepted")
	}
	if _, err := d.Connect(0, spi.Mode0|spi.LSBFirst, 8); err == nil {
		t.Fatal("LSB first accepted")
	}
}

func TestConn_TxPackets_bitsPerWord(t *testing.T) {
	d, s, m := newPort(t, nil)
	var chars []uint32
	s.Peer = func(out uint16) uint16 {
		chars = append(chars, m.Peek(spia.Base+spia.SPICCR.Off)&0xF)
		return out + 1
	}
	c, err := d.Connect(physic.MegaHertz, spi.Mode0|spi.NoCS, 12)
	if err != nil {
		t.Fatal(err)
	}
	r := make([]byte, 1)
	if err := c.TxPackets([]spi.Packet{{W: []byte{0x70}, R: r, BitsPerWord: 8}}); err != nil {
		t.Fatal(err)
	}
	if r[0] != 0x71 {
		t.Fatalf("R = %#x", r[0])
	}
	// The 8 bits word is left justified too.
	if v := m.Peek(spia.Base + spia.SPITXBUF.Off); v != 0x7000 {
		t.Fatalf("SPITXBUF = %#x", v)
	}
	if v := m.Peek(spia.Base + spia.SPICCR.Off); v != 0x8B {
		t.Fatalf("SPICCR = %#x, word length not restored", v)
	}
	if diff := cmp.Diff([]uint32{7}, chars); diff != "" {
		t.Fatalf("SPICHAR (-want +got):\n%s", diff)
	}
	if err := c.TxPackets([]spi.Packet{{W: []byte{1}, BitsPerWord: 17}}); err == nil {
		t.Fatal("17 bits words accepted")
	}
	if v := m.Peek(spia.Base + spia.SPICCR.Off); v != 0x8B {
		t.Fatalf("SPICCR = %#x", v)
	}
}

func TestDev_timeout(t *testing.T) {
	d, _, m := newPort(t, nil)
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	// In reset the port never completes a word.
	if _, err := d.TxWord(0x55); !errors.Is(err, txn.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if m.Writes(spia.Base+spia.SPITXBUF.Off) != 1 {
		t.Fatal("word not written")
	}
}

func TestDev_slaveEcho(t *testing.T) {
	d, s, _ := newPort(t, &spia.Opts{Slave: true})
	if _, err := d.Echo(time.Millisecond); !errors.Is(err, txn.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	s.Exchange(0x42)
	if v, err := d.Echo(time.Second); err != nil || v != 0x42 {
		t.Fatalf("Echo() = %#x, %v", v, err)
	}
	if v := s.Exchange(0); v != 0x42 {
		t.Fatalf("echoed %#x", v)
	}
}
