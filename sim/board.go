// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package sim models the F2802x peripherals on a regs.Mem.
//
// Each model installs hooks on the registers of its frame so the drivers see
// flags set, results loaded and interrupts raised the way the silicon does
// it. Time never advances on its own: the caller moves it with Period,
// Underflow, Tick and the like, which keeps the tests deterministic.
package sim

import (
	"github.com/GermanBionicSystems/piccolo/pie"
	"github.com/GermanBionicSystems/piccolo/regs"
	"periph.io/x/conn/v3/physic"
)

// Board is every peripheral model of one device on a single memory.
type Board struct {
	Mem      *regs.Mem
	GPIO     *GPIO
	Timers   [3]*Timer
	Watchdog *Watchdog
	ADC      *ADC
	SCI      *SCI
	SPI      *SPI
	I2C      *I2C
	CAN      *CAN
	PWM      [4]*PWM
	ECAP     *ECAP
	QEP      *QEP
}

// NewBoard attaches all the models to m, raising their interrupts on ic.
// ePWM1 SOCA starts the ADC sequencer.
func NewBoard(m *regs.Mem, ic *pie.Controller, sysclk physic.Frequency) *Board {
	b := &Board{
		Mem:      m,
		GPIO:     NewGPIO(m),
		Watchdog: NewWatchdog(m, ic),
		ADC:      NewADC(m, ic),
		SCI:      NewSCI(m, ic),
		SPI:      NewSPI(m),
		I2C:      NewI2C(m, ic),
		CAN:      NewCAN(m, ic),
		ECAP:     NewECAP(m, ic),
		QEP:      NewQEP(m, ic),
	}
	for i := range b.Timers {
		b.Timers[i] = NewTimer(m, ic, i)
	}
	for i := range b.PWM {
		b.PWM[i] = NewPWM(m, ic, i+1, sysclk)
	}
	b.PWM[0].OnSOCA = b.ADC.SOCA
	return b
}
