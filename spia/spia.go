// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package spia drives the SPI-A synchronous serial port.
//
// Every word is a polled transaction: SPITXBUF is written and SPISTS.INT_FLAG
// is awaited with a bounded timeout, then SPIRXBUF is read, which clears the
// flag. Dev is usable as a periph spi.Port and as a tinygo drivers.SPI.
package spia

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GermanBionicSystems/piccolo/regs"
	"github.com/GermanBionicSystems/piccolo/txn"
	"github.com/jonboulle/clockwork"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"tinygo.org/x/drivers"
)

// Opts holds the port configuration.
type Opts struct {
	// Speed is the maximum clock speed.
	Speed physic.Frequency
	// LSPCLK is the low speed peripheral clock feeding the baud generator.
	LSPCLK physic.Frequency
	// Mode is the clock polarity and phase.
	Mode spi.Mode
	// Bits is the word length, 1 to 16.
	Bits int
	// Slave configures the port as a slave; the master provides the clock.
	Slave bool
	// Loopback connects SPISIMO to SPISOMI internally.
	Loopback bool
	// Timeout bounds every word transfer.
	Timeout time.Duration
	// Clock measures the timeouts.
	Clock clockwork.Clock
}

// DefaultOpts is the slowest clock, mode 3 and 8 bits words.
var DefaultOpts = Opts{
	Speed:   0,
	LSPCLK:  37500 * physic.KiloHertz,
	Mode:    spi.Mode3,
	Bits:    8,
	Timeout: 10 * time.Millisecond,
}

// Dev is the SPI-A port.
type Dev struct {
	f    *regs.File
	opts Opts
	p    *txn.Poller

	mu    sync.Mutex
	bits  int
	mode  spi.Mode
	speed physic.Frequency
}

// New configures the port and releases it from reset.
func New(f *regs.File, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	o := *opts
	if o.LSPCLK == 0 {
		o.LSPCLK = DefaultOpts.LSPCLK
	}
	if o.Bits == 0 {
		o.Bits = DefaultOpts.Bits
	}
	if o.Timeout == 0 {
		o.Timeout = DefaultOpts.Timeout
	}
	d := &Dev{f: f, opts: o}
	h := &txn.Handle{
		Name: "spia",
		Regs: f,
		Done: INTFLAG.Is(1),
		Read: d.readWord,
	}
	p, err := txn.NewPoller(h, &txn.PollOpts{Clock: o.Clock})
	if err != nil {
		return nil, err
	}
	d.p = p
	if err := d.configure(o.Speed, o.Mode, o.Bits); err != nil {
		return nil, err
	}
	return d, nil
}

// BRR returns the baud rate register value for the fastest clock not above
// f: LSPCLK/(BRR+1) with BRR in 3..127. 0 selects the slowest clock.
func BRR(lspclk, f physic.Frequency) uint16 {
	if f <= 0 {
		return 127
	}
	n := int64((lspclk + f - 1) / f)
	switch {
	case n-1 < 3:
		return 3
	case n-1 > 127:
		return 127
	}
	return uint16(n - 1)
}

// Speed returns the clock speed for brr.
func Speed(lspclk physic.Frequency, brr uint16) physic.Frequency {
	return lspclk / physic.Frequency(brr+1)
}

// ConfigTable returns the writes configuring the port, holding it in reset
// until the last one.
func ConfigTable(brr uint16, mode spi.Mode, bits int, slave, loopback bool) (regs.Table, error) {
	if bits < 1 || bits > 16 {
		return nil, fmt.Errorf("spia: %d bits words not supported", bits)
	}
	pol, pha, err := clocking(mode)
	if err != nil {
		return nil, err
	}
	ccr := uint32(bits-1) | pol<<CLKPOLARITY.Shift
	if loopback {
		ccr |= SPILBK.Mask()
	}
	ctl := TALK.Mask() | pha<<CLKPHASE.Shift
	if !slave {
		ctl |= MASTERSLAVE.Mask()
	}
	return regs.Table{
		SPICCR.Set(ccr),
		SPICTL.Set(ctl),
		SPIBRR.Set(uint32(brr)),
		OVERRUNFLAG.Set(1),
		FREE.Set(1),
		SPISWRESET.Set(1),
	}, nil
}

// clocking maps a periph mode to CLKPOLARITY and CLK_PHASE. The port latches
// on the falling edge with CLK_PHASE cleared, so the phase is inverted.
func clocking(m spi.Mode) (pol, pha uint32, err error) {
	if m&^(spi.Mode3) != 0 {
		return 0, 0, fmt.Errorf("spia: mode %s not supported", m)
	}
	switch m {
	case spi.Mode0:
		return 0, 1, nil
	case spi.Mode1:
		return 0, 0, nil
	case spi.Mode2:
		return 1, 1, nil
	default:
		return 1, 0, nil
	}
}

func (d *Dev) configure(f physic.Frequency, mode spi.Mode, bits int) error {
	brr := BRR(d.opts.LSPCLK, f)
	t, err := ConfigTable(brr, mode, bits, d.opts.Slave, d.opts.Loopback)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.f.Apply(append(regs.Table{SPISWRESET.Set(0)}, t...)); err != nil {
		return fmt.Errorf("spia: %w", err)
	}
	d.bits = bits
	d.mode = mode
	d.speed = Speed(d.opts.LSPCLK, brr)
	return nil
}

func (d *Dev) String() string {
	return "spia"
}

// Speed returns the current clock speed.
func (d *Dev) Speed() physic.Frequency {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.speed
}

// Connect implements spi.Port.
//
// The clock runs at the fastest speed not above the lowest of f and
// Opts.Speed.
func (d *Dev) Connect(f physic.Frequency, mode spi.Mode, bits int) (spi.Conn, error) {
	if mode&spi.HalfDuplex != 0 {
		return nil, errors.New("spia: half duplex not supported")
	}
	if mode&spi.LSBFirst != 0 {
		return nil, errors.New("spia: LSB first not supported")
	}
	if d.opts.Speed != 0 && (f == 0 || f > d.opts.Speed) {
		f = d.opts.Speed
	}
	if err := d.configure(f, mode&^(spi.NoCS), bits); err != nil {
		return nil, err
	}
	return &spiConn{d: d}, nil
}

// LimitSpeed implements spi.Port.
func (d *Dev) LimitSpeed(f physic.Frequency) error {
	if f <= 0 {
		return errors.New("spia: invalid speed")
	}
	d.mu.Lock()
	d.opts.Speed = f
	mode, bits := d.mode, d.bits
	d.mu.Unlock()
	return d.configure(f, mode, bits)
}

// Close holds the port in reset.
func (d *Dev) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.f.WriteField(SPISWRESET, 0)
}

// Tx implements drivers.SPI and conn.Conn.
//
// Words are len(w) or len(r) long, whichever is larger. Missing write words
// are sent as zero and received words beyond len(r) are dropped. Words wider
// than 8 bits take two bytes, most significant first.
func (d *Dev) Tx(w, r []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tx(w, r, d.bits)
}

// Transfer implements drivers.SPI.
func (d *Dev) Transfer(b byte) (byte, error) {
	var r [1]byte
	if err := d.Tx([]byte{b}, r[:]); err != nil {
		return 0, err
	}
	return r[0], nil
}

// TxWord exchanges one word.
func (d *Dev) TxWord(v uint16) (uint16, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.word(v, d.bits)
}

// Echo waits up to timeout for the master to clock in a word and queues it
// to be shifted out on the next exchange. It returns the received word.
func (d *Dev) Echo(timeout time.Duration) (uint16, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.p.Wait(INTFLAG.Is(1), timeout); err != nil {
		return 0, fmt.Errorf("spia: receive: %w", err)
	}
	v, err := d.f.Read(SPIRXBUF)
	if err != nil {
		return 0, fmt.Errorf("spia: %w", err)
	}
	v &= uint32(mask(d.bits))
	if err := d.f.Write(SPITXBUF, v<<(16-uint(d.bits))); err != nil {
		return 0, fmt.Errorf("spia: %w", err)
	}
	return uint16(v), nil
}

func (d *Dev) tx(w, r []byte, bits int) error {
	if bits < 1 || bits > 16 {
		return fmt.Errorf("spia: %d bits words not supported", bits)
	}
	size := 1
	if bits > 8 {
		size = 2
	}
	n := len(w)
	if len(r) > n {
		n = len(r)
	}
	if n%size != 0 {
		return fmt.Errorf("spia: %d bytes is not a whole number of %d bits words", n, bits)
	}
	for i := 0; i < n; i += size {
		out := uint16(byteAt(w, i))
		if size == 2 {
			out = out<<8 | uint16(byteAt(w, i+1))
		}
		in, err := d.word(out, bits)
		if err != nil {
			return err
		}
		if size == 2 {
			putByte(r, i, byte(in>>8))
			putByte(r, i+1, byte(in))
		} else {
			putByte(r, i, byte(in))
		}
	}
	return nil
}

// word exchanges one word. Transmitted words are left justified in
// SPITXBUF, received ones are right justified in SPIRXBUF.
func (d *Dev) word(v uint16, bits int) (uint16, error) {
	if err := d.p.Wait(BUFFULL.Is(0), d.opts.Timeout); err != nil {
		return 0, fmt.Errorf("spia: transmit: %w", err)
	}
	out := uint32(v&mask(bits)) << (16 - uint(bits))
	res, err := d.p.Execute(txn.Request{Tag: "word", Start: regs.Table{SPITXBUF.Set(out)}}, d.opts.Timeout)
	if err != nil {
		return 0, fmt.Errorf("spia: %w", err)
	}
	return uint16(res.Value & uint32(mask(bits))), nil
}

// readWord is the handle reader. Reading SPIRXBUF clears INT_FLAG.
func (d *Dev) readWord(f *regs.File) (txn.Result, error) {
	v, err := f.Read(SPIRXBUF)
	return txn.Result{Value: v}, err
}

func mask(bits int) uint16 {
	return uint16(regs.Mask[uint32](uint(bits)))
}

func byteAt(b []byte, i int) byte {
	if i < len(b) {
		return b[i]
	}
	return 0
}

func putByte(b []byte, i int, v byte) {
	if i < len(b) {
		b[i] = v
	}
}

// spiConn is the spi.Conn returned by Connect.
type spiConn struct {
	d *Dev
}

func (c *spiConn) String() string {
	return c.d.String()
}

func (c *spiConn) Tx(w, r []byte) error {
	return c.d.Tx(w, r)
}

func (c *spiConn) Duplex() conn.Duplex {
	return conn.Full
}

// TxPackets implements spi.Conn. The chip select is driven by the port so
// KeepCS is ignored. A packet with its own BitsPerWord shifts with that
// character length; the connection's length is restored afterwards.
func (c *spiConn) TxPackets(p []spi.Packet) (err error) {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	cur := c.d.bits
	defer func() {
		if cur == c.d.bits {
			return
		}
		if err2 := c.d.f.WriteField(SPICHAR, uint32(c.d.bits-1)); err2 != nil && err == nil {
			err = fmt.Errorf("spia: %w", err2)
		}
	}()
	for i := range p {
		bits := c.d.bits
		if p[i].BitsPerWord != 0 {
			bits = int(p[i].BitsPerWord)
		}
		if bits < 1 || bits > 16 {
			return fmt.Errorf("spia: packet %d: %d bits words not supported", i, bits)
		}
		if bits != cur {
			if err := c.d.f.WriteField(SPICHAR, uint32(bits-1)); err != nil {
				return fmt.Errorf("spia: packet %d: %w", i, err)
			}
			cur = bits
		}
		if err := c.d.tx(p[i].W, p[i].R, bits); err != nil {
			return fmt.Errorf("spia: packet %d: %w", i, err)
		}
	}
	return nil
}

var (
	_ spi.PortCloser = &Dev{}
	_ drivers.SPI    = &Dev{}
	_ spi.Conn       = &spiConn{}
)
