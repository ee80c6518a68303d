// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package scia

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/GermanBionicSystems/piccolo/pie"
	"github.com/GermanBionicSystems/piccolo/regs"
	"github.com/GermanBionicSystems/piccolo/txn"
)

// EchoOpts holds the Echo configuration.
type EchoOpts struct {
	// OnByte is called from the interrupt handler with every received
	// character.
	OnByte func(b byte)
	Logger txn.Logger
}

// Echo writes every received character back to the transmitter from the
// SCIRXINTA handler.
type Echo struct {
	c       *txn.Controller
	log     txn.Logger
	dropped atomic.Uint64
}

// NewEcho registers the receive handler on ic. The port must have been
// created with Opts.Interrupts.
func (d *Dev) NewEcho(ic *pie.Controller, opts *EchoOpts) (*Echo, error) {
	if !d.opts.Interrupts {
		return nil, errors.New("scia: receive interrupt disabled")
	}
	if opts == nil {
		opts = &EchoOpts{}
	}
	e := &Echo{log: opts.Logger}
	h := &txn.Handle{
		Name:     "scia/SCIRXINTA",
		Regs:     d.f,
		Source:   pie.SCIRXINTA,
		Done:     RXFFINT.Is(1),
		Clear:    regs.Table{RXFFOVRCLR.Set(1), RXFFINTCLR.Set(1)},
		Read:     e.echo,
		Periodic: true,
	}
	to := &txn.Opts{Logger: opts.Logger}
	if cb := opts.OnByte; cb != nil {
		to.OnResult = func(r txn.Result) { cb(byte(r.Value)) }
	}
	c, err := txn.New(h, ic, to)
	if err != nil {
		return nil, fmt.Errorf("scia: %w", err)
	}
	e.c = c
	return e, nil
}

// echo reads SCIRXBUF once and writes the character to SCITXBUF. A full
// transmit FIFO drops the echo, the handler never spins.
func (e *Echo) echo(f *regs.File) (txn.Result, error) {
	v, err := f.ReadField(RXDT)
	if err != nil {
		return txn.Result{}, err
	}
	r := txn.Result{Value: v}
	n, err := f.ReadField(TXFFST)
	if err != nil {
		return r, err
	}
	if n >= FIFODepth {
		e.dropped.Add(1)
		if e.log != nil {
			e.log.Printf("scia: transmit FIFO full, echo of %#02x dropped", v)
		}
		return r, nil
	}
	return r, f.Write(SCITXBUF, v)
}

// Start arms the handler.
func (e *Echo) Start() error {
	return e.c.Arm(txn.Request{Tag: "echo"})
}

// Next waits for the next received character.
func (e *Echo) Next(ctx context.Context) (byte, error) {
	r, err := e.c.Await(ctx)
	return byte(r.Value), err
}

// Last returns the last received character and the number of characters
// received.
func (e *Echo) Last() (b byte, n uint64, ok bool) {
	r, n, ok := e.c.Latest()
	return byte(r.Value), n, ok
}

// Dropped returns the number of echoes dropped on a full transmit FIFO.
func (e *Echo) Dropped() uint64 {
	return e.dropped.Load()
}

// Stats returns the interrupt handler counters.
func (e *Echo) Stats() txn.Stats {
	return e.c.Stats()
}

// Stop disarms the handler.
func (e *Echo) Stop() error {
	return e.c.Disarm()
}

// Close unregisters the handler.
func (e *Echo) Close() error {
	return errors.Join(e.c.Disarm(), e.c.Close())
}

// Cursor walks a message being transmitted. It is owned by one Sender and
// only touched by its interrupt handler while a message is in flight.
type Cursor struct {
	buf []byte
	i   int
}

// Reset starts over with msg.
func (c *Cursor) Reset(msg []byte) {
	c.buf = msg
	c.i = 0
}

// Next returns the next character.
func (c *Cursor) Next() (byte, bool) {
	if c.i >= len(c.buf) {
		return 0, false
	}
	b := c.buf[c.i]
	c.i++
	return b, true
}

// Done returns true once every character was handed out.
func (c *Cursor) Done() bool {
	return c.i >= len(c.buf)
}

// Sent returns the number of characters handed out.
func (c *Cursor) Sent() int {
	return c.i
}

// sentCode marks the result of the interrupt that queued the last character.
const sentCode = 1

// Sender transmits messages from the SCITXINTA handler.
type Sender struct {
	c   *txn.Controller
	mu  sync.Mutex // one Send at a time
	cur Cursor
}

// NewSender registers the transmit handler on ic.
func (d *Dev) NewSender(ic *pie.Controller, opts *txn.Opts) (*Sender, error) {
	if !d.opts.Interrupts {
		return nil, errors.New("scia: transmit interrupt disabled")
	}
	s := &Sender{}
	h := &txn.Handle{
		Name:     "scia/SCITXINTA",
		Regs:     d.f,
		Source:   pie.SCITXINTA,
		Done:     TXFFINT.Is(1),
		Clear:    regs.Table{TXFFINTCLR.Set(1)},
		Read:     s.fill,
		Abort:    regs.Table{TXFFIENA.Set(0)},
		Periodic: true,
	}
	to := &txn.Opts{}
	if opts != nil {
		to.Logger = opts.Logger
	}
	c, err := txn.New(h, ic, to)
	if err != nil {
		return nil, fmt.Errorf("scia: %w", err)
	}
	s.c = c
	return s, nil
}

// fill tops up the transmit FIFO from the cursor. Once the message is fully
// queued the transmit interrupt is disabled.
func (s *Sender) fill(f *regs.File) (txn.Result, error) {
	n, err := f.ReadField(TXFFST)
	if err != nil {
		return txn.Result{}, err
	}
	r := txn.Result{}
	for ; n < FIFODepth; n++ {
		b, ok := s.cur.Next()
		if !ok {
			break
		}
		if err := f.Write(SCITXBUF, uint32(b)); err != nil {
			return r, err
		}
		r.Value++
	}
	if s.cur.Done() {
		r.Code = sentCode
		return r, f.WriteField(TXFFIENA, 0)
	}
	return r, nil
}

// Send queues msg and waits until its last character is in the transmit
// FIFO.
func (s *Sender) Send(ctx context.Context, msg []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c.State() != txn.Idle {
		return fmt.Errorf("scia: send: %w", txn.ErrAlreadyArmed)
	}
	s.cur.Reset(msg)
	err := s.c.Arm(txn.Request{
		Tag:   "send",
		Start: regs.Table{TXFFINTCLR.Set(1), TXFFIENA.Set(1)},
	})
	if err != nil {
		return err
	}
	defer s.c.Disarm()
	for {
		r, err := s.c.Await(ctx)
		if err != nil {
			return err
		}
		if r.Code == sentCode {
			return nil
		}
	}
}

// Stats returns the interrupt handler counters.
func (s *Sender) Stats() txn.Stats {
	return s.c.Stats()
}

// Close unregisters the handler.
func (s *Sender) Close() error {
	return errors.Join(s.c.Disarm(), s.c.Close())
}
