// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sim

import (
	"sync"

	"github.com/GermanBionicSystems/piccolo/ecap"
	"github.com/GermanBionicSystems/piccolo/pie"
	"github.com/GermanBionicSystems/piccolo/regs"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// ECAP models eCAP1 in difference mode fed by a square wave.
//
// Time only advances on Cycle, or when the CPU polls ECFLG while no event is
// pending.
type ECAP struct {
	fr frame

	mu        sync.Mutex
	high, low uint32
}

// NewECAP attaches an eCAP1 model to m at ecap.Base.
func NewECAP(m *regs.Mem, ic *pie.Controller) *ECAP {
	e := &ECAP{fr: frame{m: m, ic: ic, base: ecap.Base}}
	e.fr.onWrite(ecap.ECCLR, e.onECCLR)
	e.fr.onRead(ecap.ECFLG, e.onECFLG)
	return e
}

// SetInput sets the input signal, high and low times in counter cycles. Zero
// times remove the signal.
func (e *ECAP) SetInput(high, low uint32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.high, e.low = high, low
}

// Follow feeds the input from the ePWM output w, the counter running at
// sysclk. A forced or stopped output carries no edge.
func (e *ECAP) Follow(w Waveform, sysclk physic.Frequency) {
	if w.Forced || w.Freq <= 0 {
		e.SetInput(0, 0)
		return
	}
	period := uint64(sysclk / w.Freq)
	high := period * uint64(w.Duty) / uint64(gpio.DutyMax)
	e.SetInput(uint32(high), uint32(period-high))
}

// Cycle captures the four edges of one signal period pair. It returns false
// if there is no signal or the capture is stopped.
func (e *ECAP) Cycle() bool {
	e.mu.Lock()
	high, low := e.high, e.low
	e.mu.Unlock()
	if high == 0 || low == 0 {
		return false
	}
	ctl := e.fr.peek(ecap.ECCTL1)
	if !has(ctl, ecap.CAPLDEN) || !has(e.fr.peek(ecap.ECCTL2), ecap.TSCTRSTOP) {
		return false
	}
	// Falling edges end the high times.
	for n := 1; n <= 4; n++ {
		v := low
		if has(ctl, ecap.CAPPOL(n)) {
			v = high
		}
		e.fr.poke(ecap.CAP(n), v)
	}
	var flg uint32
	e.fr.m.Update(e.fr.addr(ecap.ECFLG), func(old uint32) uint32 {
		flg = old
		return old | ecap.CEVT(1) | ecap.CEVT(2) | ecap.CEVT(3) | ecap.CEVT(4)
	})
	if e.fr.peek(ecap.ECEINT)&ecap.CEVT(4) != 0 && flg&ecap.INT == 0 {
		e.fr.m.Update(e.fr.addr(ecap.ECFLG), func(old uint32) uint32 { return old | ecap.INT })
		e.fr.raise(pie.ECAP1INT)
	}
	return true
}

// ECCLR reads as zero.
func (e *ECAP) onECCLR(old, v uint32) uint32 {
	e.fr.m.Update(e.fr.addr(ecap.ECFLG), func(f uint32) uint32 { return f &^ v })
	return 0
}

func (e *ECAP) onECFLG(v uint32) uint32 {
	if v != 0 || !e.Cycle() {
		return v
	}
	return e.fr.peek(ecap.ECFLG)
}
