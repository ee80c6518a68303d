// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package pie

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type logger struct {
	lines []string
}

func (l *logger) Printf(format string, v ...interface{}) {
	l.lines = append(l.lines, fmt.Sprintf(format, v...))
}

func TestSource(t *testing.T) {
	data := []struct {
		s      Source
		group  int
		index  int
		name   string
		groupd bool
	}{
		{ADCINT1, 1, 6, "ADCINT1", true},
		{TINT0, 1, 7, "TINT0", true},
		{I2CINT1A, 8, 1, "I2CINT1A", true},
		{SCITXINTA, 9, 2, "SCITXINTA", true},
		{TINT1, 13, 0, "TINT1", false},
		{None, 0, 0, "None", false},
		{Source(200), 0, 0, "Source(200)", false},
	}
	for i, line := range data {
		if line.s.Group() != line.group || line.s.Index() != line.index || line.s.String() != line.name || line.s.Grouped() != line.groupd {
			t.Errorf("#%d: %s: got %d.%d grouped=%t", i, line.s, line.s.Group(), line.s.Index(), line.s.Grouped())
		}
	}
}

func TestRegister(t *testing.T) {
	c := New(nil)
	if err := c.Register(None, func() {}); !errors.Is(err, ErrUnknownSource) {
		t.Fatalf("got %v", err)
	}
	if err := c.Register(Source(99), func() {}); !errors.Is(err, ErrUnknownSource) {
		t.Fatalf("got %v", err)
	}
	if err := c.Register(TINT0, nil); err == nil {
		t.Fatal("nil handler accepted")
	}
	if err := c.Register(TINT0, func() {}); err != nil {
		t.Fatal(err)
	}
	if err := c.Register(TINT0, func() {}); !errors.Is(err, ErrRegistered) {
		t.Fatalf("got %v", err)
	}
	c.Unregister(TINT0)
	if err := c.Register(TINT0, func() {}); err != nil {
		t.Fatal(err)
	}
	if err := c.Raise(None); !errors.Is(err, ErrUnknownSource) {
		t.Fatalf("got %v", err)
	}
}

func TestService_priority(t *testing.T) {
	c := New(nil)
	var order []Source
	for _, s := range []Source{SCIRXINTA, TINT0, ADCINT1, ECAP1INT, TINT1} {
		s := s
		if err := c.Register(s, func() {
			order = append(order, s)
			c.Ack(s.Group())
		}); err != nil {
			t.Fatal(err)
		}
		if err := c.Enable(s); err != nil {
			t.Fatal(err)
		}
	}
	for _, s := range []Source{TINT1, SCIRXINTA, ECAP1INT, TINT0, ADCINT1} {
		if err := c.Raise(s); err != nil {
			t.Fatal(err)
		}
	}
	if n := c.Service(); n != 5 {
		t.Fatalf("Service() = %d", n)
	}
	want := []Source{ADCINT1, TINT0, ECAP1INT, SCIRXINTA, TINT1}
	if diff := cmp.Diff(want, order); diff != "" {
		t.Fatalf("order (-want +got):\n%s", diff)
	}
}

func TestService_groupBlockedUntilAck(t *testing.T) {
	l := &logger{}
	c := New(&Opts{Logger: l})
	adc, tmr := 0, 0
	_ = c.Register(ADCINT1, func() { adc++ }) // forgets to acknowledge
	_ = c.Register(TINT0, func() { tmr++; c.Ack(1) })
	_ = c.Enable(ADCINT1)
	_ = c.Enable(TINT0)
	_ = c.Raise(ADCINT1)
	_ = c.Raise(TINT0)
	if n := c.Service(); n != 1 {
		t.Fatalf("Service() = %d", n)
	}
	if adc != 1 || tmr != 0 {
		t.Fatalf("adc=%d tmr=%d", adc, tmr)
	}
	if !c.Blocked(1) || !c.Pending(TINT0) {
		t.Fatal("group 1 must starve TINT0")
	}
	if s := c.Stats(); s.Unacked != 1 {
		t.Fatalf("Unacked = %d", s.Unacked)
	}
	if len(l.lines) != 1 {
		t.Fatalf("expected one warning, got %q", l.lines)
	}
	// Other groups are not affected.
	_ = c.Register(SCIRXINTA, func() { c.Ack(9) })
	_ = c.Enable(SCIRXINTA)
	_ = c.Raise(SCIRXINTA)
	if n := c.Service(); n != 1 {
		t.Fatalf("Service() = %d", n)
	}
	c.Ack(1)
	if n := c.Service(); n != 1 || tmr != 1 {
		t.Fatalf("Service() = %d, tmr=%d", n, tmr)
	}
	if c.Acks(1) != 2 || c.Acks(9) != 1 {
		t.Fatalf("acks: %d %d", c.Acks(1), c.Acks(9))
	}
}

func TestService_disabledStaysPending(t *testing.T) {
	c := New(nil)
	hits := 0
	_ = c.Register(ECAP1INT, func() { hits++; c.Ack(4) })
	_ = c.Raise(ECAP1INT)
	if n := c.Service(); n != 0 {
		t.Fatalf("Service() = %d", n)
	}
	if !c.Pending(ECAP1INT) {
		t.Fatal("lost the request")
	}
	_ = c.Enable(ECAP1INT)
	c.Service()
	if hits != 1 || c.Pending(ECAP1INT) {
		t.Fatalf("hits=%d", hits)
	}
	// Raising twice before servicing latches once.
	_ = c.Raise(ECAP1INT)
	_ = c.Raise(ECAP1INT)
	c.Service()
	if hits != 2 {
		t.Fatalf("hits=%d", hits)
	}
}

func TestRun(t *testing.T) {
	c := New(nil)
	done := make(chan struct{})
	_ = c.Register(TINT2, func() { close(done) })
	_ = c.Enable(TINT2)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error)
	go func() { errc <- c.Run(ctx) }()
	_ = c.Raise(TINT2)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("handler not run")
	}
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() = %v", err)
	}
}
