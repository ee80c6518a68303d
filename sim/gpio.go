// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sim

import (
	"sync"

	"github.com/GermanBionicSystems/piccolo/gpioa"
	"github.com/GermanBionicSystems/piccolo/regs"
	"periph.io/x/conn/v3/gpio"
)

// GPIO models port A. GPADAT reads the output latch on output pins and the
// external level on input pins.
type GPIO struct {
	fr frame

	mu    sync.Mutex
	latch uint32
	input uint32
	// OnChange, if set, is called with every level change of a pin, without
	// any lock held.
	OnChange func(n int, l gpio.Level)
}

// NewGPIO attaches a port A model to m at gpioa.Base.
func NewGPIO(m *regs.Mem) *GPIO {
	g := &GPIO{fr: frame{m: m, base: gpioa.Base}}
	g.fr.onWrite(gpioa.GPADAT, func(old, v uint32) uint32 {
		return g.update(func(l uint32) uint32 { return v }, nil)
	})
	g.fr.onWrite(gpioa.GPASET, g.latchHook(func(l, v uint32) uint32 { return l | v }))
	g.fr.onWrite(gpioa.GPACLEAR, g.latchHook(func(l, v uint32) uint32 { return l &^ v }))
	g.fr.onWrite(gpioa.GPATOGGLE, g.latchHook(func(l, v uint32) uint32 { return l ^ v }))
	g.fr.onWrite(gpioa.GPADIR, func(old, v uint32) uint32 {
		g.update(func(l uint32) uint32 { return l }, &v)
		return v
	})
	return g
}

// SetInput drives the external level of pin n.
func (g *GPIO) SetInput(n int, l gpio.Level) {
	g.mu.Lock()
	if l {
		g.input |= 1 << uint(n)
	} else {
		g.input &^= 1 << uint(n)
	}
	g.mu.Unlock()
	g.fr.poke(gpioa.GPADAT, g.update(func(l uint32) uint32 { return l }, nil))
}

// Level returns the level of pin n.
func (g *GPIO) Level(n int) gpio.Level {
	return gpio.Level(g.fr.peek(gpioa.GPADAT)&(1<<uint(n)) != 0)
}

// The set, clear and toggle registers read as zero.
func (g *GPIO) latchHook(fn func(l, v uint32) uint32) regs.WriteHook {
	return func(old, v uint32) uint32 {
		g.fr.poke(gpioa.GPADAT, g.update(func(l uint32) uint32 { return fn(l, v) }, nil))
		return 0
	}
}

// update applies fn to the latch and returns the new GPADAT. dir replaces
// GPADIR when the direction is being written.
func (g *GPIO) update(fn func(uint32) uint32, dir *uint32) uint32 {
	d := g.fr.peek(gpioa.GPADIR)
	if dir != nil {
		d = *dir
	}
	old := g.fr.peek(gpioa.GPADAT)
	g.mu.Lock()
	g.latch = fn(g.latch)
	dat := g.latch&d | g.input&^d
	cb := g.OnChange
	g.mu.Unlock()
	if dir != nil {
		g.fr.poke(gpioa.GPADAT, dat)
	}
	if cb != nil {
		for n, diff := 0, old^dat; diff != 0; n, diff = n+1, diff>>1 {
			if diff&1 != 0 {
				cb(n, gpio.Level(dat&(1<<uint(n)) != 0))
			}
		}
	}
	return dat
}
