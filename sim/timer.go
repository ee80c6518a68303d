// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sim

import (
	"github.com/GermanBionicSystems/piccolo/cputimer"
	"github.com/GermanBionicSystems/piccolo/pie"
	"github.com/GermanBionicSystems/piccolo/regs"
)

// Timer models CPU timer n. Time only advances on Underflow.
type Timer struct {
	fr frame
	n  int
}

// NewTimer attaches a model of CPU timer n to m.
func NewTimer(m *regs.Mem, ic *pie.Controller, n int) *Timer {
	t := &Timer{fr: frame{m: m, ic: ic, base: cputimer.Base(n)}, n: n}
	t.fr.onWrite(cputimer.TCR, t.onTCR)
	return t
}

// TIF is write one to clear and TRB reads as zero.
func (t *Timer) onTCR(old, v uint32) uint32 {
	if has(v, cputimer.TRB) {
		t.fr.poke(cputimer.TIM, t.fr.peek(cputimer.PRD))
	}
	tif := cputimer.TIF.Mask()
	return v&^(tif|cputimer.TRB.Mask()) | old&tif&^v
}

// Underflow ends one period. It returns false while the timer is stopped.
func (t *Timer) Underflow() bool {
	tcr := t.fr.peek(cputimer.TCR)
	if has(tcr, cputimer.TSS) {
		return false
	}
	t.fr.poke(cputimer.TIM, t.fr.peek(cputimer.PRD))
	t.fr.set(cputimer.TIF, 1)
	if has(tcr, cputimer.TIE) {
		t.fr.raise(cputimer.Source(t.n))
	}
	return true
}
