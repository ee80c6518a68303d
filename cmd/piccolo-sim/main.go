// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// piccolo-sim runs the peripheral drivers against a simulated F2802x.
//
// The CPU timer blinks GPIO0, ePWM1 triggers the ADC, ePWM2 feeds eCAP1 and
// SCI-A echoes every character it receives. The received characters come
// from stdin, or from a real serial port with -serial. With -peer the I2C-A
// master reads a device on a real I²C bus opened through periph.io/x/host.
//
// With -bridge the drivers instead reach a real device through an I²C
// register bridge and the ADC and eQEP are polled.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/GermanBionicSystems/piccolo/adc"
	"github.com/GermanBionicSystems/piccolo/board"
	"github.com/GermanBionicSystems/piccolo/cputimer"
	"github.com/GermanBionicSystems/piccolo/epwm"
	"github.com/GermanBionicSystems/piccolo/regs"
	"github.com/GermanBionicSystems/piccolo/scia"
	"github.com/GermanBionicSystems/piccolo/sim"
	"github.com/GermanBionicSystems/piccolo/trace"
	"github.com/tarm/serial"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

type options struct {
	period   time.Duration
	duration time.Duration
	png      string
	term     bool
	serial   string
	baud     int
	i2cName  string
	peer     uint16
	bridge   uint16
}

func mainImpl() error {
	var o options
	flag.DurationVar(&o.period, "period", 100*time.Millisecond, "CPU timer period, the simulated time step")
	flag.DurationVar(&o.duration, "d", 0, "run duration, 0 runs until interrupted")
	flag.StringVar(&o.png, "png", "", "write the GPIO waveform to this PNG file")
	flag.BoolVar(&o.term, "term", false, "show the GPIO levels in the terminal")
	flag.StringVar(&o.serial, "serial", "", "serial port connected to SCI-A instead of stdin")
	flag.IntVar(&o.baud, "baud", 9600, "serial port baud rate")
	flag.StringVar(&o.i2cName, "i2c", "", "I²C bus name; \"\" is the first one")
	peer := flag.String("peer", "", "address of a real I²C device read by I2C-A")
	bridge := flag.String("bridge", "", "address of the I²C register bridge of a real device")
	verbose := flag.Bool("v", false, "verbose mode")
	flag.Parse()
	if flag.NArg() != 0 {
		return errors.New("unexpected argument, try -help")
	}
	if !*verbose {
		log.SetOutput(io.Discard)
	}
	log.SetFlags(log.Lmicroseconds)
	var err error
	if o.peer, err = parseAddr(*peer); err != nil {
		return err
	}
	if o.bridge, err = parseAddr(*bridge); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	if o.duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, o.duration)
		defer cancel()
	}
	if o.bridge != 0 {
		return runBridge(ctx, &o)
	}
	return runSim(ctx, &o)
}

func parseAddr(s string) (uint16, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 0, 7)
	if err != nil {
		return 0, fmt.Errorf("invalid I²C address %q", s)
	}
	return uint16(v), nil
}

func openI2C(name string) (i2c.BusCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, err
	}
	return i2creg.Open(name)
}

// runBridge polls a real device through its register bridge.
func runBridge(ctx context.Context, o *options) error {
	bus, err := openI2C(o.i2cName)
	if err != nil {
		return err
	}
	defer bus.Close()
	b := board.New(regs.NewRemoteI2C(bus, o.bridge), nil)
	a, err := b.OpenADC(nil)
	if err != nil {
		return err
	}
	q, err := b.OpenEQEP(nil)
	if err != nil {
		return err
	}
	t := time.NewTicker(o.period)
	defer t.Stop()
	for {
		raw, err := a.Sample()
		if err != nil {
			return err
		}
		pos, err := q.Position()
		if err != nil {
			return err
		}
		fmt.Printf("ADCINA0 %#03x %s  QPOSCNT %d\n", raw, a.Voltage(raw), pos)
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

// runSim runs the drivers on the simulated board until ctx is done.
func runSim(ctx context.Context, o *options) error {
	const sysclk = 60 * physic.MegaHertz
	logger := log.Default()
	mem := &regs.Mem{}
	b := board.New(mem, &board.Opts{SysClk: sysclk, Logger: logger})
	hw := sim.NewBoard(mem, b.IC, sysclk)

	rec := trace.New(nil)
	hw.GPIO.OnChange = rec.OnChange(map[int]string{0: "GPIO0"})
	rec.Declare("ADCINA0")
	var strip *trace.Strip
	if o.term {
		strip = trace.NewStrip(&trace.StripOpts{X: 2})
		defer strip.Halt()
	}

	port, err := b.OpenGPIO(nil)
	if err != nil {
		return err
	}
	led := port.Pin(0)
	if err := led.Out(gpio.Low); err != nil {
		return err
	}
	tm, err := b.OpenTimer(&cputimer.Opts{Period: o.period})
	if err != nil {
		return err
	}
	tk, err := tm.NewTicker(b.IC, &cputimer.TickOpts{Pin: led, Logger: logger})
	if err != nil {
		return err
	}
	defer tk.Close()

	a, err := b.OpenADC(nil)
	if err != nil {
		return err
	}
	in, err := a.NewInterrupt(b.IC, &adc.IntOpts{
		OnSample: func(raw uint16) { rec.Record("ADCINA0", raw >= 0x800) },
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer in.Close()
	trig, err := b.OpenPWM(nil)
	if err != nil {
		return err
	}
	if err := trig.TriggerADC(); err != nil {
		return err
	}

	gen, err := b.OpenPWM(&epwm.Opts{Module: 2})
	if err != nil {
		return err
	}
	if err := gen.PWM(gpio.DutyMax/4, 10*physic.KiloHertz); err != nil {
		return err
	}
	capture, err := b.OpenECAP(nil)
	if err != nil {
		return err
	}
	hw.ECAP.Follow(hw.PWM[1].Output(), sysclk)

	sci, err := b.OpenSCI(&scia.Opts{Interrupts: true})
	if err != nil {
		return err
	}
	echo, err := sci.NewEcho(b.IC, &scia.EchoOpts{Logger: logger})
	if err != nil {
		return err
	}
	defer echo.Close()
	var out io.Writer = os.Stdout
	if o.serial != "" {
		p, err := serial.OpenPort(&serial.Config{Name: o.serial, Baud: o.baud, ReadTimeout: o.period})
		if err != nil {
			return err
		}
		defer p.Close()
		out = p
		go feed(ctx, p, hw.SCI, false)
	} else {
		go feed(ctx, os.Stdin, hw.SCI, true)
	}
	hw.SCI.OnTransmit = func(c byte) {
		if _, err := out.Write([]byte{c}); err != nil {
			log.Printf("SCI-A: %v", err)
		}
	}

	if o.peer != 0 {
		bus, err := openI2C(o.i2cName)
		if err != nil {
			return err
		}
		defer bus.Close()
		hw.I2C.Peer = bus
	}
	master, err := b.OpenI2C(nil)
	if err != nil {
		return err
	}

	for _, start := range []func() error{tk.Start, in.Start, echo.Start} {
		if err := start(); err != nil {
			return err
		}
	}
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	t := time.NewTicker(o.period)
	defer t.Stop()
	for n := 0; ; n++ {
		select {
		case <-ctx.Done():
			<-done
			return report(o, rec, tk, capture.Frequency, hw)
		case <-t.C:
		}
		// A triangle on ADCINA0, one step per period.
		v := uint16(n%32) * 0x80
		if n/32%2 == 1 {
			v = 0xFFF - v
		}
		hw.ADC.SetInput(0, v)
		hw.PWM[0].Period()
		hw.Timers[0].Underflow()
		if o.peer != 0 && n%10 == 0 {
			var r [2]byte
			if err := master.Tx(o.peer, []byte{0}, r[:]); err != nil {
				log.Printf("%s: %v", master, err)
			} else {
				fmt.Printf("I²C %#02x: %#04x\n", o.peer, uint16(r[0])<<8|uint16(r[1]))
			}
		}
		if strip != nil {
			if err := rec.Show(strip); err != nil {
				return err
			}
		}
	}
}

// feed puts the bytes read from r on the SCI-A receive line. A serial port
// read times out with io.EOF, so only stdin ends on it.
func feed(ctx context.Context, r io.Reader, s *sim.SCI, stdin bool) {
	var buf [16]byte
	for ctx.Err() == nil {
		n, err := r.Read(buf[:])
		for _, c := range buf[:n] {
			s.Receive(c)
		}
		if err == io.EOF && !stdin {
			continue
		}
		if err != nil {
			if err != io.EOF {
				log.Printf("SCI-A: %v", err)
			}
			return
		}
	}
}

func report(o *options, rec *trace.Recorder, tk *cputimer.Ticker, freq func() (physic.Frequency, error), hw *sim.Board) error {
	f, err := freq()
	if err != nil {
		return err
	}
	fmt.Printf("\n%d ticks, eCAP1 %s, %d conversions, %d SCI overruns\n", tk.Ticks(), f, hw.ADC.Conversions(), hw.SCI.Overruns())
	if o.png == "" {
		return nil
	}
	w, err := os.Create(o.png)
	if err != nil {
		return err
	}
	if err := rec.WritePNG(w, nil); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "piccolo-sim: %s.\n", err)
		os.Exit(1)
	}
}
