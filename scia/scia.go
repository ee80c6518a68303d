// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package scia drives the SCI-A asynchronous serial port.
//
// Dev exposes the port as a periph uart.Port and as a tinygo drivers.UART,
// both polling the FIFO status with a bounded wait. Echo and Sender are the
// interrupt driven receive and transmit handlers.
package scia

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
	"periph.io/x/conn/v3/uart"
	"tinygo.org/x/drivers"
)

// Opts holds the port configuration.
type Opts struct {
	// Baud is the port speed.
	Baud physic.Frequency
	// LSPCLK is the low speed peripheral clock feeding the baud generator.
	LSPCLK physic.Frequency
	// Timeout bounds the wait for FIFO room on transmit and for the first
	// character on receive.
	Timeout time.Duration
	// Interrupts enables the FIFO interrupts used by Echo and Sender.
	Interrupts bool
	// Clock measures the timeouts.
	Clock clockwork.Clock
}

// DefaultOpts is 9600 bauds from a 37.5 MHz LSPCLK.
var DefaultOpts = Opts{
	Baud:    9600 * physic.Hertz,
	LSPCLK:  37500 * physic.KiloHertz,
	Timeout: 100 * time.Millisecond,
}

// Format is a character format.
type Format struct {
	Bits   int // 1 to 8
	Stop   uart.Stop
	Parity uart.Parity
}

// Format8N1 is 8 data bits, no parity, one stop bit.
var Format8N1 = Format{Bits: 8, Stop: uart.One, Parity: uart.NoParity}

// Dev is the SCI-A port.
type Dev struct {
	f     *regs.File
	opts  Opts
	clock clockwork.Clock

	mu   sync.Mutex
	baud physic.Frequency
}

// New configures the port for 8N1 at opts.Baud and releases it from reset.
func New(f *regs.File, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	o := *opts
	if o.Baud == 0 {
		o.Baud = DefaultOpts.Baud
	}
	if o.LSPCLK == 0 {
		o.LSPCLK = DefaultOpts.LSPCLK
	}
	if o.Timeout == 0 {
		o.Timeout = DefaultOpts.Timeout
	}
	d := &Dev{f: f, opts: o, clock: o.Clock}
	if d.clock == nil {
		d.clock = clockwork.NewRealClock()
	}
	brr, err := BRR(o.LSPCLK, o.Baud)
	if err != nil {
		return nil, err
	}
	t, err := ConfigTable(brr, Format8N1, o.Interrupts)
	if err != nil {
		return nil, err
	}
	if err := f.Apply(t); err != nil {
		return nil, fmt.Errorf("scia: %w", err)
	}
	d.baud = Baud(o.LSPCLK, brr)
	return d, nil
}

// BRR returns the baud rate register value for baud: LSPCLK/(baud·8) - 1.
func BRR(lspclk, baud physic.Frequency) (uint16, error) {
	if baud <= 0 || lspclk <= 0 {
		return 0, fmt.Errorf("scia: invalid baud rate %s", baud)
	}
	n := int64(lspclk/(baud*8)) - 1
	if n < 1 || n > 0xFFFF {
		return 0, fmt.Errorf("scia: %s out of range from %s", baud, lspclk)
	}
	return uint16(n), nil
}

// Baud returns the actual speed for brr.
func Baud(lspclk physic.Frequency, brr uint16) physic.Frequency {
	return lspclk / physic.Frequency((int64(brr)+1)*8)
}

// ConfigTable returns the reset, format, speed and FIFO writes, releasing the
// port from reset last.
//
// The FIFO interrupt levels are one character so every received character
// raises SCIRXINTA.
func ConfigTable(brr uint16, format Format, interrupts bool) (regs.Table, error) {
	ccr, err := format.ccr()
	if err != nil {
		return nil, err
	}
	ints := uint32(0)
	if interrupts {
		ints = 1
	}
	return regs.Table{
		SCICCR.Set(ccr),
		SCICTL1.Set(RXENA.Mask() | TXENA.Mask()),
		SCICTL2.Set(0),
		SCIHBAUD.Set(uint32(brr >> 8)),
		SCILBAUD.Set(uint32(brr & 0xFF)),
		SCIFFTX.Set(SCIRST.Mask() | SCIFFENA.Mask() | TXFFINTCLR.Mask()),
		SCIFFRX.Set(RXFFOVRCLR.Mask() | RXFFINTCLR.Mask() | 1),
		SCIFFCT.Set(0),
		TXFIFORESET.Set(1),
		RXFIFORESET.Set(1),
		RXFFIENA.Set(ints),
		FREESOFT.Set(3),
		SCICTL1.Set(RXENA.Mask() | TXENA.Mask() | SWRESET.Mask()),
	}, nil
}

func (fm Format) ccr() (uint32, error) {
	if fm.Bits < 1 || fm.Bits > 8 {
		return 0, fmt.Errorf("scia: %d data bits not supported", fm.Bits)
	}
	v := uint32(fm.Bits - 1)
	switch fm.Stop {
	case uart.One:
	case uart.Two:
		v |= STOPBITS.Mask()
	default:
		return 0, fmt.Errorf("scia: stop bits %d not supported", fm.Stop)
	}
	switch fm.Parity {
	case uart.NoParity:
	case uart.Odd:
		v |= PARITYENA.Mask()
	case uart.Even:
		v |= PARITYENA.Mask() | PARITY.Mask()
	default:
		return 0, fmt.Errorf("scia: parity %q not supported", fm.Parity)
	}
	return v, nil
}

func (d *Dev) String() string {
	return "scia"
}

// Speed returns the actual port speed.
func (d *Dev) Speed() physic.Frequency {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.baud
}

// Connect implements uart.Port.
//
// The port runs at the lowest of f and Opts.Baud. Flow control is not
// supported.
func (d *Dev) Connect(f physic.Frequency, stopBit uart.Stop, parity uart.Parity, flow uart.Flow, bits int) (conn.Conn, error) {
	if f <= 0 {
		return nil, errors.New("scia: invalid speed")
	}
	if flow != uart.NoFlow {
		return nil, errors.New("scia: flow control not supported")
	}
	if f > d.opts.Baud {
		f = d.opts.Baud
	}
	brr, err := BRR(d.opts.LSPCLK, f)
	if err != nil {
		return nil, err
	}
	t, err := ConfigTable(brr, Format{Bits: bits, Stop: stopBit, Parity: parity}, d.opts.Interrupts)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.f.Apply(t); err != nil {
		return nil, fmt.Errorf("scia: %w", err)
	}
	d.baud = Baud(d.opts.LSPCLK, brr)
	return &portConn{d: d}, nil
}

// Write implements io.Writer. Each character waits at most Opts.Timeout for
// room in the transmit FIFO.
func (d *Dev) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, b := range p {
		err := txn.WaitFor(d.clock, 0, d.opts.Timeout, func() (bool, error) {
			n, err := d.f.ReadField(TXFFST)
			return n < FIFODepth, err
		})
		if err != nil {
			return i, fmt.Errorf("scia: transmit: %w", err)
		}
		if err := d.f.Write(SCITXBUF, uint32(b)); err != nil {
			return i, fmt.Errorf("scia: %w", err)
		}
	}
	return len(p), nil
}

// Read implements io.Reader. It waits at most Opts.Timeout for the first
// character and then returns what the receive FIFO holds.
func (d *Dev) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	var avail uint32
	err := txn.WaitFor(d.clock, 0, d.opts.Timeout, func() (bool, error) {
		var err error
		avail, err = d.f.ReadField(RXFFST)
		return avail > 0, err
	})
	if err != nil {
		return 0, fmt.Errorf("scia: receive: %w", err)
	}
	n := 0
	for ; n < len(p) && uint32(n) < avail; n++ {
		v, err := d.f.Read(SCIRXBUF)
		if err != nil {
			return n, fmt.Errorf("scia: %w", err)
		}
		p[n] = byte(v)
	}
	return n, nil
}

// Buffered implements drivers.UART.
func (d *Dev) Buffered() int {
	n, err := d.f.ReadField(RXFFST)
	if err != nil {
		return 0
	}
	return int(n)
}

// portConn is the conn.Conn returned by Connect.
type portConn struct {
	d *Dev
}

func (c *portConn) String() string {
	return c.d.String()
}

// Tx writes w then reads exactly len(r) characters.
func (c *portConn) Tx(w, r []byte) error {
	if len(w) != 0 {
		if _, err := c.d.Write(w); err != nil {
			return err
		}
	}
	for got := 0; got < len(r); {
		n, err := c.d.Read(r[got:])
		if err != nil {
			return err
		}
		got += n
	}
	return nil
}

func (c *portConn) Duplex() conn.Duplex {
	return conn.Full
}

var (
	_ uart.Port    = &Dev{}
	_ drivers.UART = &Dev{}
	_ conn.Conn    = &portConn{}
)
