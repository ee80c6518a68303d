// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package adc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/GermanBionicSystems/piccolo/pie"
	"github.com/GermanBionicSystems/piccolo/regs"
	"github.com/GermanBionicSystems/piccolo/txn"
	"github.com/jonboulle/clockwork"
	"periph.io/x/conn/v3/physic"
	"tinygo.org/x/drivers"
)

// Opts holds the configuration of the ADC.
type Opts struct {
	// Channels is the cascaded conversion sequence, one ADCINA channel per
	// conversion. At most 16.
	Channels []int
	// ClockPrescale is ADCTRL3.ADCCLKPS.
	ClockPrescale uint32
	// PowerUp is the delay between powering up the analog core and the first
	// conversion.
	PowerUp time.Duration
	// Timeout bounds the wait for one conversion sequence.
	Timeout time.Duration
	// Vref is the full scale voltage.
	Vref physic.ElectricPotential
	// Clock is used for the power up delay and the timeouts.
	Clock clockwork.Clock
}

// DefaultOpts is the configuration of the single channel read on ADCINA0.
var DefaultOpts = Opts{
	Channels:      []int{0},
	ClockPrescale: 6,
	PowerUp:       time.Millisecond,
	Timeout:       10 * time.Millisecond,
	Vref:          3300 * physic.MilliVolt,
}

// Dev is the ADC with its cascaded sequencer.
type Dev struct {
	f     *regs.File
	opts  Opts
	clock clockwork.Clock
	p     *txn.Poller

	mu   sync.Mutex
	last []uint16
}

// New powers up the ADC and configures the cascaded sequence.
//
// The power up writes are done inside an EALLOW bracket.
func New(f *regs.File, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	o := *opts
	if len(o.Channels) == 0 {
		o.Channels = DefaultOpts.Channels
	}
	if len(o.Channels) > NumResults {
		return nil, fmt.Errorf("adc: %d conversions requested, at most %d", len(o.Channels), NumResults)
	}
	for _, ch := range o.Channels {
		if ch < 0 || ch > 15 {
			return nil, fmt.Errorf("adc: invalid channel %d", ch)
		}
	}
	if o.Vref == 0 {
		o.Vref = DefaultOpts.Vref
	}
	if o.Timeout == 0 {
		o.Timeout = DefaultOpts.Timeout
	}
	d := &Dev{f: f, opts: o, clock: o.Clock}
	if d.clock == nil {
		d.clock = clockwork.NewRealClock()
	}
	err := f.Protected(func() error {
		if err := f.Apply(PowerUpTable(o.ClockPrescale)); err != nil {
			return err
		}
		if o.PowerUp > 0 {
			d.clock.Sleep(o.PowerUp)
		}
		return f.Apply(SequenceTable(o.Channels))
	})
	if err != nil {
		return nil, fmt.Errorf("adc: %w", err)
	}
	h := &txn.Handle{
		Name:  "adc",
		Regs:  f,
		Done:  INTSEQ1.Is(1),
		Clear: regs.Table{INTSEQ1CLR.Set(1)},
		Read:  d.readSequence,
	}
	if d.p, err = txn.NewPoller(h, &txn.PollOpts{Clock: d.clock}); err != nil {
		return nil, fmt.Errorf("adc: %w", err)
	}
	return d, nil
}

// PowerUpTable powers the bandgap, the reference and the analog core.
func PowerUpTable(prescale uint32) regs.Table {
	return regs.Table{
		ADCBGRFDN.Set(3),
		ADCPWDN.Set(1),
		ADCCLKPS.Set(prescale),
	}
}

// SequenceTable configures a cascaded sequence converting channels in order.
func SequenceTable(channels []int) regs.Table {
	t := regs.Table{
		SEQCASC.Set(1),
		MAXCONV1.Set(uint32(len(channels) - 1)),
	}
	for i, ch := range channels {
		t = append(t, CONV(i).Set(uint32(ch)))
	}
	return t
}

// startTable starts the sequence from its first conversion.
var startTable = regs.Table{RSTSEQ1.Set(1), SOCSEQ1.Set(1)}

func (d *Dev) String() string {
	return "adc"
}

// Sample converts the sequence and returns the first 12 bits result.
func (d *Dev) Sample() (uint16, error) {
	v, err := d.ReadSequence()
	if err != nil {
		return 0, err
	}
	return v[0], nil
}

// ReadSequence converts the whole sequence and returns one 12 bits result
// per configured channel.
func (d *Dev) ReadSequence() ([]uint16, error) {
	r, err := d.p.Execute(txn.Request{Tag: "SOC_SEQ1", Start: startTable}, d.opts.Timeout)
	if err != nil {
		return nil, fmt.Errorf("adc: %w", err)
	}
	out := make([]uint16, len(r.Values))
	for i, v := range r.Values {
		out[i] = uint16(v)
	}
	return out, nil
}

// Voltage converts a 12 bits result to the input voltage.
func (d *Dev) Voltage(raw uint16) physic.ElectricPotential {
	return Voltage(raw, d.opts.Vref)
}

// Voltage converts a 12 bits result to a voltage for the full scale vref.
func Voltage(raw uint16, vref physic.ElectricPotential) physic.ElectricPotential {
	return physic.ElectricPotential(raw&0xFFF) * vref / 4096
}

// Update implements drivers.Sensor. It converts the sequence when Voltage is
// requested.
func (d *Dev) Update(which drivers.Measurement) error {
	if which&drivers.Voltage == 0 {
		return nil
	}
	v, err := d.ReadSequence()
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.last = v
	d.mu.Unlock()
	return nil
}

// Voltages returns the voltages measured by the last Update, in channel
// order.
func (d *Dev) Voltages() []physic.ElectricPotential {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]physic.ElectricPotential, len(d.last))
	for i, raw := range d.last {
		out[i] = d.Voltage(raw)
	}
	return out
}

func (d *Dev) readSequence(f *regs.File) (txn.Result, error) {
	r := txn.Result{Values: make([]uint32, len(d.opts.Channels))}
	for i := range d.opts.Channels {
		v, err := f.Read(ADCRESULT(i))
		if err != nil {
			return txn.Result{}, err
		}
		r.Values[i] = v >> 4
	}
	r.Value = r.Values[0]
	return r, nil
}

// IntOpts holds the configuration of the ePWM triggered conversion.
type IntOpts struct {
	// Channel is the ADCINA channel converted on every SOCA pulse.
	Channel int
	// OnSample is called from the interrupt handler with every result.
	OnSample func(raw uint16)
	Logger   txn.Logger
}

// Interrupt converts one channel on every ePWM SOCA pulse and delivers the
// results through ADCINT1.
type Interrupt struct {
	c *txn.Controller
}

// InterruptTable configures SEQ1 for one conversion of channel started by
// ePWM SOCA, with the sequence interrupt enabled.
func InterruptTable(channel int) regs.Table {
	return regs.Table{
		SEQCASC.Set(1),
		MAXCONV1.Set(0),
		CONV(0).Set(uint32(channel)),
		EPWMSOCASEQ1.Set(1),
		INTENASEQ1.Set(1),
		RSTSEQ1.Set(1),
	}
}

// NewInterrupt reconfigures the sequencer for ePWM triggered conversions and
// registers the ADCINT1 handler on ic.
func (d *Dev) NewInterrupt(ic *pie.Controller, opts *IntOpts) (*Interrupt, error) {
	if opts == nil {
		opts = &IntOpts{}
	}
	if opts.Channel < 0 || opts.Channel > 15 {
		return nil, fmt.Errorf("adc: invalid channel %d", opts.Channel)
	}
	if err := d.f.Protected(func() error { return d.f.Apply(InterruptTable(opts.Channel)) }); err != nil {
		return nil, fmt.Errorf("adc: %w", err)
	}
	h := &txn.Handle{
		Name:     "adc/ADCINT1",
		Regs:     d.f,
		Source:   pie.ADCINT1,
		Done:     ADCINT1.Is(1),
		Clear:    regs.Table{ADCINT1CLR.Set(1), INTSEQ1CLR.Set(1)},
		Result:   ADCRESULT(0).All(),
		Shift:    4,
		Periodic: true,
	}
	to := &txn.Opts{Logger: opts.Logger}
	if cb := opts.OnSample; cb != nil {
		to.OnResult = func(r txn.Result) { cb(uint16(r.Value)) }
	}
	c, err := txn.New(h, ic, to)
	if err != nil {
		return nil, fmt.Errorf("adc: %w", err)
	}
	return &Interrupt{c: c}, nil
}

// Start arms the sequencer. Conversions then follow the SOCA pulses until
// Stop.
func (i *Interrupt) Start() error {
	return i.c.Arm(txn.Request{Tag: "SOC_SEQ1", Start: regs.Table{SOCSEQ1.Set(1)}})
}

// Next waits for the next result. If ctx ends first the results stop until
// the next Start.
func (i *Interrupt) Next(ctx context.Context) (uint16, error) {
	r, err := i.c.Await(ctx)
	if err != nil {
		return 0, err
	}
	return uint16(r.Value), nil
}

// Latest returns the last result and its sequence number.
func (i *Interrupt) Latest() (raw uint16, seq uint64, ok bool) {
	r, seq, ok := i.c.Latest()
	return uint16(r.Value), seq, ok
}

// Stop stops delivering results.
func (i *Interrupt) Stop() error {
	return i.c.Disarm()
}

// Stats returns the interrupt handler counters.
func (i *Interrupt) Stats() txn.Stats {
	return i.c.Stats()
}

// Close unregisters the interrupt handler.
func (i *Interrupt) Close() error {
	return i.c.Close()
}

var _ drivers.Sensor = &Dev{}
