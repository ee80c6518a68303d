// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sim

import (
	"github.com/GermanBionicSystems/piccolo/epwm"
	"github.com/GermanBionicSystems/piccolo/pie"
	"github.com/GermanBionicSystems/piccolo/regs"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// Waveform is the output of an ePWM module.
type Waveform struct {
	// Forced is set when the output is held at Level by software.
	Forced bool
	Level  gpio.Level
	Freq   physic.Frequency
	Duty   gpio.Duty
}

// PWM models one ePWM module in up-count mode. Time only advances on Period.
type PWM struct {
	fr    frame
	tbclk physic.Frequency
	src   pie.Source
	// OnSOCA, if set, is called on every start of conversion pulse.
	OnSOCA func()
}

// NewPWM attaches an ePWMn model to m, clocked at tbclk.
func NewPWM(m *regs.Mem, ic *pie.Controller, n int, tbclk physic.Frequency) *PWM {
	p := &PWM{fr: frame{m: m, ic: ic, base: epwm.Base(n)}, tbclk: tbclk}
	if n == 1 {
		p.src = pie.EPWM1INT
	}
	p.fr.onWrite(epwm.ETCLR, p.onETCLR)
	return p
}

// ETCLR reads as zero.
func (p *PWM) onETCLR(old, v uint32) uint32 {
	p.fr.m.Update(p.fr.addr(epwm.ETFLG), func(f uint32) uint32 { return f &^ v })
	return 0
}

// Period runs the counter through one full period: the zero, compare and
// period events. The event prescalers are taken as 1.
func (p *PWM) Period() {
	if p.fr.get(epwm.CTRMODE) == epwm.Frozen {
		return
	}
	sel := p.fr.peek(epwm.ETSEL)
	if has(sel, epwm.SOCAEN) && p.fr.get(epwm.SOCAPRD) != 0 {
		p.fr.set(epwm.SOCA, 1)
		if p.OnSOCA != nil {
			p.OnSOCA()
		}
	}
	if has(sel, epwm.INTEN) && p.fr.get(epwm.INTPRD) != 0 {
		// No further interrupt is generated until INT is cleared.
		if p.fr.get(epwm.INT) == 0 {
			p.fr.set(epwm.INT, 1)
			if p.src != pie.None {
				p.fr.raise(p.src)
			}
		}
	}
}

// Output returns the waveform programmed in the module.
func (p *PWM) Output() Waveform {
	switch p.fr.get(epwm.CSFA) {
	case 1:
		return Waveform{Forced: true, Level: gpio.Low}
	case 2:
		return Waveform{Forced: true, Level: gpio.High}
	}
	if p.fr.get(epwm.CTRMODE) != epwm.CountUp {
		return Waveform{}
	}
	prd := int64(p.fr.peek(epwm.TBPRD)) + 1
	div := p.fr.get(epwm.CLKDIV)
	w := Waveform{Freq: p.tbclk / physic.Frequency(prd<<div)}
	cmpa := int64(p.fr.peek(epwm.CMPA))
	if cmpa > prd {
		cmpa = prd
	}
	if p.fr.get(epwm.ZRO) == epwm.AQSet && p.fr.get(epwm.CAU) == epwm.AQClear {
		w.Duty = gpio.Duty(cmpa * int64(gpio.DutyMax) / prd)
	} else if p.fr.get(epwm.ZRO) == epwm.AQClear && p.fr.get(epwm.CAU) == epwm.AQSet {
		w.Duty = gpio.Duty((prd - cmpa) * int64(gpio.DutyMax) / prd)
	}
	return w
}
