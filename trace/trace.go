// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package trace records the level transitions of output pins.
//
// A Recorder stamps every transition with its clock. Transitions come from
// a wrapped gpio.PinOut, or from a pin level callback such as the one of a
// hardware model. The recording can be rendered as a waveform image or shown
// live on any display.Drawer, one pixel per signal.
package trace

import (
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"periph.io/x/conn/v3/gpio"
)

// Opts holds the Recorder configuration.
type Opts struct {
	// Clock stamps the transitions. It defaults to the real clock.
	Clock clockwork.Clock
}

// Edge is one transition of a signal.
type Edge struct {
	// At is the time elapsed since the Recorder was created.
	At    time.Duration
	Level gpio.Level
}

// Signal is the recording of one pin. The level is Low before the first
// edge.
type Signal struct {
	Name  string
	Edges []Edge
}

// Level returns the level of the signal at t.
func (s *Signal) Level(t time.Duration) gpio.Level {
	i := sort.Search(len(s.Edges), func(i int) bool { return s.Edges[i].At > t })
	if i == 0 {
		return gpio.Low
	}
	return s.Edges[i-1].Level
}

// Recorder accumulates the transitions of named signals.
type Recorder struct {
	clock clockwork.Clock
	start time.Time

	mu     sync.Mutex
	sigs   []*Signal
	byName map[string]*Signal
}

// New returns a Recorder starting now.
func New(opts *Opts) *Recorder {
	c := clockwork.NewRealClock()
	if opts != nil && opts.Clock != nil {
		c = opts.Clock
	}
	return &Recorder{clock: c, start: c.Now(), byName: map[string]*Signal{}}
}

// Record notes that name is now at level l. Repeated levels are dropped.
func (r *Recorder) Record(name string, l gpio.Level) {
	at := r.clock.Since(r.start)
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.signal(name)
	if n := len(s.Edges); n != 0 && s.Edges[n-1].Level == l {
		return
	}
	s.Edges = append(s.Edges, Edge{At: at, Level: l})
}

// Declare adds the signals in order, so they are rendered in that order even
// before their first transition.
func (r *Recorder) Declare(names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range names {
		r.signal(n)
	}
}

// Elapsed returns the time since the Recorder was created.
func (r *Recorder) Elapsed() time.Duration {
	return r.clock.Since(r.start)
}

// Signals returns a copy of the recording, in declaration order.
func (r *Recorder) Signals() []Signal {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Signal, len(r.sigs))
	for i, s := range r.sigs {
		out[i] = Signal{Name: s.Name, Edges: append([]Edge(nil), s.Edges...)}
	}
	return out
}

// Levels returns the current level of every signal, in declaration order.
func (r *Recorder) Levels() []gpio.Level {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]gpio.Level, len(r.sigs))
	for i, s := range r.sigs {
		if n := len(s.Edges); n != 0 {
			out[i] = s.Edges[n-1].Level
		}
	}
	return out
}

// OnChange returns a pin level callback recording the pins listed in names,
// keyed by pin number. Other pins are ignored.
func (r *Recorder) OnChange(names map[int]string) func(n int, l gpio.Level) {
	ordered := make([]int, 0, len(names))
	for n := range names {
		ordered = append(ordered, n)
	}
	sort.Ints(ordered)
	for _, n := range ordered {
		r.Declare(names[n])
	}
	return func(n int, l gpio.Level) {
		if name, ok := names[n]; ok {
			r.Record(name, l)
		}
	}
}

// Pin returns p recording every level it is driven to under its name.
func (r *Recorder) Pin(p gpio.PinOut) gpio.PinOut {
	r.Declare(p.Name())
	return &pin{PinOut: p, r: r}
}

func (r *Recorder) signal(name string) *Signal {
	s := r.byName[name]
	if s == nil {
		s = &Signal{Name: name}
		r.byName[name] = s
		r.sigs = append(r.sigs, s)
	}
	return s
}

type pin struct {
	gpio.PinOut
	r *Recorder
}

func (p *pin) Out(l gpio.Level) error {
	if err := p.PinOut.Out(l); err != nil {
		return err
	}
	p.r.Record(p.PinOut.Name(), l)
	return nil
}

var _ gpio.PinOut = &pin{}
