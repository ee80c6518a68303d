// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ecan drives the eCAN-A controller with standard 11 bits
// identifiers.
//
// The bit timing can only change while the controller acknowledges a
// configuration change request, a handshake bounded by Opts.Timeout like
// every other wait of the package. Mailboxes are either transmit or receive
// mailboxes, as selected by Opts.Receive.
package ecan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GermanBionicSystems/piccolo/pie"
	"github.com/GermanBionicSystems/piccolo/regs"
	"github.com/GermanBionicSystems/piccolo/txn"
	"github.com/jonboulle/clockwork"
	"periph.io/x/conn/v3/physic"
)

// Opts holds the controller configuration.
type Opts struct {
	// CANClk is the module clock, SYSCLKOUT/2.
	CANClk physic.Frequency
	// Bitrate is the bus speed.
	Bitrate physic.Frequency
	// Receive has bit n set for each receive mailbox n. Zero means
	// DefaultOpts.Receive.
	Receive uint32
	// SelfTest loops transmitted frames back to the receive mailboxes
	// without driving the bus.
	SelfTest bool
	// Timeout bounds the configuration handshake and every transfer.
	Timeout time.Duration
	// Clock measures the timeouts.
	Clock clockwork.Clock
}

// DefaultOpts is 500 kbps from a 30 MHz module clock, with mailboxes 0 to 15
// transmitting and 16 to 31 receiving.
var DefaultOpts = Opts{
	CANClk:  30 * physic.MegaHertz,
	Bitrate: 500 * physic.KiloHertz,
	Receive: 0xFFFF0000,
	Timeout: 100 * time.Millisecond,
}

// Dev is the eCAN-A controller.
type Dev struct {
	f     *regs.File
	opts  Opts
	clock clockwork.Clock
	cfg   *txn.Poller

	mu      sync.Mutex
	mbox    [Mailboxes]*regs.File
	pollers [Mailboxes]*txn.Poller
	btc     uint32
}

// New configures the bit timing and the mailbox directions and enables every
// mailbox.
func New(f *regs.File, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	o := *opts
	if o.CANClk == 0 {
		o.CANClk = DefaultOpts.CANClk
	}
	if o.Bitrate == 0 {
		o.Bitrate = DefaultOpts.Bitrate
	}
	if o.Receive == 0 {
		o.Receive = DefaultOpts.Receive
	}
	if o.Timeout == 0 {
		o.Timeout = DefaultOpts.Timeout
	}
	d := &Dev{f: f, opts: o, clock: o.Clock}
	if d.clock == nil {
		d.clock = clockwork.NewRealClock()
	}
	for i := range d.mbox {
		d.mbox[i] = f.Space().File(MailboxAddr(i), fmt.Sprintf("MBOX%d", i))
	}
	p, err := txn.NewPoller(&txn.Handle{Name: "ecan/config", Regs: f, Done: CCE.Is(1)}, &txn.PollOpts{Clock: d.clock})
	if err != nil {
		return nil, err
	}
	d.cfg = p
	btc, err := Timing(o.CANClk, o.Bitrate)
	if err != nil {
		return nil, err
	}
	if err := d.configure(btc); err != nil {
		return nil, err
	}
	return d, nil
}

// Timing returns the CANBTC value for bitrate.
//
// The bit is split in 25 to 8 time quanta, the most that divide the bit time
// exactly, with the sample point at 80% and a one quantum jump width.
func Timing(canclk, bitrate physic.Frequency) (uint32, error) {
	if canclk <= 0 || bitrate <= 0 || canclk%bitrate != 0 {
		return 0, fmt.Errorf("ecan: %s is not a divisor of %s", bitrate, canclk)
	}
	clocks := int64(canclk / bitrate)
	for tq := int64(25); tq >= 8; tq-- {
		if clocks%tq != 0 {
			continue
		}
		brp := clocks / tq
		if brp < 1 || brp > 256 {
			continue
		}
		sample := (tq*8 + 5) / 10
		tseg1 := sample - 1
		if tseg1 > 16 {
			tseg1 = 16
		}
		tseg2 := tq - 1 - tseg1
		if tseg2 < 2 || tseg2 > 8 {
			continue
		}
		return uint32(brp-1)<<BRPREG.Shift | uint32(tseg1-1)<<TSEG1REG.Shift | uint32(tseg2-1), nil
	}
	return 0, fmt.Errorf("ecan: no bit timing for %s from %s", bitrate, canclk)
}

// Bitrate returns the bus speed of the CANBTC value btc.
func Bitrate(canclk physic.Frequency, btc uint32) physic.Frequency {
	brp := regs.Extract(btc, BRPREG.Shift, BRPREG.Width) + 1
	tq := regs.Extract(btc, TSEG1REG.Shift, TSEG1REG.Width) + regs.Extract(btc, TSEG2REG.Shift, TSEG2REG.Width) + 3
	return canclk / physic.Frequency(brp*tq)
}

// configure runs the configuration change handshake around the CANBTC
// write.
func (d *Dev) configure(btc uint32) error {
	stm := uint32(0)
	if d.opts.SelfTest {
		stm = 1
	}
	err := d.f.Protected(func() error {
		t := regs.Table{CANME.Set(0), CANMD.Set(d.opts.Receive), SCB.Set(1), STM.Set(stm), CCR.Set(1)}
		if err := d.f.Apply(t); err != nil {
			return err
		}
		if err := d.cfg.Wait(CCE.Is(1), d.opts.Timeout); err != nil {
			return fmt.Errorf("configuration change request: %w", err)
		}
		if err := d.f.Apply(regs.Table{CANBTC.Set(btc), CCR.Set(0)}); err != nil {
			return err
		}
		if err := d.cfg.Wait(CCE.Is(0), d.opts.Timeout); err != nil {
			return fmt.Errorf("configuration change release: %w", err)
		}
		return d.f.Write(CANME, 0xFFFFFFFF)
	})
	if err != nil {
		return fmt.Errorf("ecan: %w", err)
	}
	d.mu.Lock()
	d.btc = btc
	d.mu.Unlock()
	return nil
}

func (d *Dev) String() string {
	return "ecan"
}

// SetBitrate changes the bus speed.
func (d *Dev) SetBitrate(f physic.Frequency) error {
	btc, err := Timing(d.opts.CANClk, f)
	if err != nil {
		return err
	}
	return d.configure(btc)
}

// Bitrate returns the bus speed.
func (d *Dev) Bitrate() physic.Frequency {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Bitrate(d.opts.CANClk, d.btc)
}

// Listen sets the identifier accepted by the receive mailbox n.
func (d *Dev) Listen(n int, id uint16) error {
	if err := d.check(n, true); err != nil {
		return err
	}
	if id > MaxID {
		return fmt.Errorf("ecan: identifier %#x is not 11 bits", id)
	}
	bit := uint32(1) << uint(n)
	// MSGID is only writable while the mailbox is disabled.
	if err := d.f.ClearBits(CANME, bit); err != nil {
		return fmt.Errorf("ecan: %w", err)
	}
	if err := d.mbox[n].Write(MSGID, uint32(id)<<STDMSGID.Shift); err != nil {
		return fmt.Errorf("ecan: %w", err)
	}
	if err := d.f.SetBits(CANME, bit); err != nil {
		return fmt.Errorf("ecan: %w", err)
	}
	return nil
}

// Transmit sends fr from the transmit mailbox n and waits for the
// transmission acknowledge. On timeout the transmission is cancelled.
func (d *Dev) Transmit(n int, fr Frame) error {
	if err := d.check(n, false); err != nil {
		return err
	}
	if err := fr.Validate(); err != nil {
		return err
	}
	bit := uint32(1) << uint(n)
	id, ctrl, mdl, mdh := fr.Pack()
	if err := d.f.ClearBits(CANME, bit); err != nil {
		return fmt.Errorf("ecan: %w", err)
	}
	if err := d.mbox[n].Apply(regs.Table{MSGID.Set(id), MSGCTRL.Set(ctrl), MDL.Set(mdl), MDH.Set(mdh)}); err != nil {
		return fmt.Errorf("ecan: %w", err)
	}
	if err := d.f.SetBits(CANME, bit); err != nil {
		return fmt.Errorf("ecan: %w", err)
	}
	_, err := d.poller(n).Execute(txn.Request{Tag: "transmit", Start: regs.Table{CANTRS.Set(bit)}}, d.opts.Timeout)
	if err != nil {
		return fmt.Errorf("ecan: %w", err)
	}
	return nil
}

// Receive waits up to timeout for a frame in the receive mailbox n.
func (d *Dev) Receive(n int, timeout time.Duration) (Frame, error) {
	if err := d.check(n, true); err != nil {
		return Frame{}, err
	}
	r, err := d.poller(n).Execute(txn.Request{Tag: "receive"}, timeout)
	if err != nil {
		return Frame{}, fmt.Errorf("ecan: %w", err)
	}
	return frameOf(r), nil
}

func (d *Dev) check(n int, receive bool) error {
	if n < 0 || n >= Mailboxes {
		return fmt.Errorf("ecan: no mailbox %d", n)
	}
	if (d.opts.Receive&(1<<uint(n)) != 0) != receive {
		return fmt.Errorf("ecan: wrong direction for mailbox %d", n)
	}
	return nil
}

// poller returns the polled handle of mailbox n. Transmit mailboxes
// complete on CANTA and receive ones on CANRMP.
func (d *Dev) poller(n int) *txn.Poller {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p := d.pollers[n]; p != nil {
		return p
	}
	p, _ := txn.NewPoller(d.handle(n), &txn.PollOpts{Clock: d.clock})
	d.pollers[n] = p
	return p
}

func (d *Dev) handle(n int) *txn.Handle {
	bit := uint32(1) << uint(n)
	if d.opts.Receive&bit == 0 {
		return &txn.Handle{
			Name:  fmt.Sprintf("ecan/MBOX%d", n),
			Regs:  d.f,
			Done:  CANTA.Bit(uint(n)).Is(1),
			Clear: regs.Table{CANTA.Set(bit)},
			Abort: regs.Table{CANTRR.Set(bit)},
		}
	}
	return &txn.Handle{
		Name:  fmt.Sprintf("ecan/MBOX%d", n),
		Regs:  d.f,
		Done:  CANRMP.Bit(uint(n)).Is(1),
		Clear: regs.Table{CANRMP.Set(bit)},
		Read:  d.reader(n),
	}
}

// reader returns the handle reader of the receive mailbox n.
func (d *Dev) reader(n int) func(*regs.File) (txn.Result, error) {
	mb := d.mbox[n]
	return func(*regs.File) (txn.Result, error) {
		v := make([]uint32, 4)
		for i, r := range []regs.Reg{MSGID, MSGCTRL, MDL, MDH} {
			var err error
			if v[i], err = mb.Read(r); err != nil {
				return txn.Result{}, err
			}
		}
		return txn.Result{Value: v[2], Values: v, Code: uint32(n)}, nil
	}
}

func frameOf(r txn.Result) Frame {
	if len(r.Values) != 4 {
		return Frame{}
	}
	return Unpack(r.Values[0], r.Values[1], r.Values[2], r.Values[3])
}

// ReceiverOpts holds the Receiver configuration.
type ReceiverOpts struct {
	// OnFrame is called from the interrupt handler with every frame.
	OnFrame func(Frame)
	Logger  txn.Logger
}

// Receiver services a receive mailbox from ECAN0INTA.
type Receiver struct {
	d   *Dev
	n   int
	c   *txn.Controller
	bit uint32
}

// NewReceiver enables the interrupt of the receive mailbox n on line 0 and
// registers its handler on ic. The line is shared by every mailbox so only
// one Receiver can be registered at a time.
func (d *Dev) NewReceiver(ic *pie.Controller, n int, opts *ReceiverOpts) (*Receiver, error) {
	if err := d.check(n, true); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &ReceiverOpts{}
	}
	h := d.handle(n)
	h.Name = fmt.Sprintf("ecan/ECAN0INTA/MBOX%d", n)
	h.Source = pie.ECAN0INTA
	h.Periodic = true
	to := &txn.Opts{Logger: opts.Logger}
	if cb := opts.OnFrame; cb != nil {
		to.OnResult = func(r txn.Result) { cb(frameOf(r)) }
	}
	c, err := txn.New(h, ic, to)
	if err != nil {
		return nil, fmt.Errorf("ecan: %w", err)
	}
	rc := &Receiver{d: d, n: n, c: c, bit: 1 << uint(n)}
	err = d.f.Protected(func() error {
		if err := d.f.SetBits(CANMIM, rc.bit); err != nil {
			return err
		}
		return d.f.WriteField(I0EN, 1)
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("ecan: %w", err)
	}
	return rc, nil
}

// Start arms the handler.
func (r *Receiver) Start() error {
	return r.c.Arm(txn.Request{Tag: "receive"})
}

// Next waits for the next frame.
func (r *Receiver) Next(ctx context.Context) (Frame, error) {
	res, err := r.c.Await(ctx)
	if err != nil {
		return Frame{}, err
	}
	return frameOf(res), nil
}

// Stats returns the interrupt handler counters.
func (r *Receiver) Stats() txn.Stats {
	return r.c.Stats()
}

// Close masks the mailbox interrupt and unregisters the handler.
func (r *Receiver) Close() error {
	err := errors.Join(r.c.Disarm(), r.c.Close())
	return errors.Join(err, r.d.f.Protected(func() error {
		return r.d.f.ClearBits(CANMIM, r.bit)
	}))
}
