// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sim

import (
	"sync"

	"github.com/GermanBionicSystems/piccolo/adc"
	"github.com/GermanBionicSystems/piccolo/pie"
	"github.com/GermanBionicSystems/piccolo/regs"
)

// ADC models the ADC with its cascaded sequencer. A sequence converts at
// once when started by software or by SOCA.
type ADC struct {
	fr frame

	mu    sync.Mutex
	in    [16]uint16
	convs int
}

// NewADC attaches an ADC model to m at adc.Base.
func NewADC(m *regs.Mem, ic *pie.Controller) *ADC {
	a := &ADC{fr: frame{m: m, ic: ic, base: adc.Base}}
	a.fr.onWrite(adc.ADCTRL2, a.onCTRL2)
	a.fr.onWrite(adc.ADCST, a.onST)
	a.fr.onWrite(adc.ADCINTFLGCLR, a.onINTFLGCLR)
	return a
}

// SetInput sets the 12 bits conversion result of channel ch.
func (a *ADC) SetInput(ch int, raw uint16) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.in[ch] = raw & 0xFFF
}

// Conversions returns the number of sequences converted.
func (a *ADC) Conversions() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.convs
}

// SOCA is the start of conversion pulse of ePWM1. It is ignored unless
// EPWM_SOCA_SEQ1 is set.
func (a *ADC) SOCA() {
	if has(a.fr.peek(adc.ADCTRL2), adc.EPWMSOCASEQ1) {
		a.convert()
	}
}

// SOC_SEQ1 and RST_SEQ1 read as zero.
func (a *ADC) onCTRL2(old, v uint32) uint32 {
	if has(v, adc.SOCSEQ1) {
		a.convert()
	}
	return v &^ (adc.SOCSEQ1.Mask() | adc.RSTSEQ1.Mask())
}

func (a *ADC) onST(old, v uint32) uint32 {
	if has(v, adc.INTSEQ1CLR) {
		old &^= adc.INTSEQ1.Mask()
	}
	return old
}

func (a *ADC) onINTFLGCLR(old, v uint32) uint32 {
	a.fr.m.Update(a.fr.addr(adc.ADCINTFLG), func(f uint32) uint32 { return f &^ v })
	return 0
}

// convert runs MAX_CONV1+1 conversions. Nothing happens while the analog
// core is powered down.
func (a *ADC) convert() {
	if !has(a.fr.peek(adc.ADCTRL3), adc.ADCPWDN) {
		return
	}
	n := int(a.fr.get(adc.MAXCONV1)) + 1
	a.mu.Lock()
	for i := 0; i < n; i++ {
		ch := a.fr.get(adc.CONV(i))
		a.fr.poke(adc.ADCRESULT(i), uint32(a.in[ch])<<4)
	}
	a.convs++
	a.mu.Unlock()
	a.fr.set(adc.INTSEQ1, 1)
	if has(a.fr.peek(adc.ADCTRL2), adc.INTENASEQ1) {
		a.fr.set(adc.ADCINT1, 1)
		a.fr.raise(pie.ADCINT1)
	}
}
