// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package board_test

import (
	"fmt"
	"log"

	"github.com/GermanBionicSystems/piccolo/adc"
	"github.com/GermanBionicSystems/piccolo/board"
	"github.com/GermanBionicSystems/piccolo/regs"
	"github.com/GermanBionicSystems/piccolo/sim"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

func Example() {
	// Make sure periph is initialized.
	if _, err := host.Init(); err != nil {
		log.Fatal(err)
	}
	// Open the default I²C bus, the register bridge answering at 0x42.
	bus, err := i2creg.Open("")
	if err != nil {
		log.Fatalf("failed to open I²C: %v", err)
	}
	defer bus.Close()

	b := board.New(regs.NewRemoteI2C(bus, 0x42), nil)
	a, err := b.OpenADC(&adc.Opts{Channels: []int{0, 1}})
	if err != nil {
		log.Fatal(err)
	}
	raw, err := a.ReadSequence()
	if err != nil {
		log.Fatal(err)
	}
	for i, v := range raw {
		fmt.Printf("ADCINA%d: %s\n", i, a.Voltage(v))
	}
}

func Example_simulated() {
	mem := &regs.Mem{}
	b := board.New(mem, nil)
	hw := sim.NewBoard(mem, b.IC, board.DefaultOpts.SysClk)

	p, err := b.OpenPWM(nil)
	if err != nil {
		log.Fatal(err)
	}
	if err := p.PWM(gpio.DutyHalf, 20*physic.KiloHertz); err != nil {
		log.Fatal(err)
	}
	w := hw.PWM[0].Output()
	fmt.Printf("%s: %s %s\n", p, w.Freq, w.Duty)
	// Output:
	// EPWM1A: 20kHz 50%
}
