// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sim

import (
	"sync"

	"github.com/GermanBionicSystems/piccolo/pie"
	"github.com/GermanBionicSystems/piccolo/regs"
	"github.com/GermanBionicSystems/piccolo/watchdog"
)

// Watchdog models the watchdog counter. Time only advances on Tick.
type Watchdog struct {
	fr frame

	mu     sync.Mutex
	key    uint32
	resets int
}

// NewWatchdog attaches a watchdog model to m at watchdog.Base.
func NewWatchdog(m *regs.Mem, ic *pie.Controller) *Watchdog {
	w := &Watchdog{fr: frame{m: m, ic: ic, base: watchdog.Base}}
	w.fr.onWrite(watchdog.WDKEY, w.onKEY)
	w.fr.onWrite(watchdog.WDCR, w.onCR)
	return w
}

// Resets returns the number of device resets caused by the watchdog.
func (w *Watchdog) Resets() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.resets
}

// Tick advances the counter by n WDCLK cycles. An overflow raises WAKEINT
// when WDENINT is set and resets the device otherwise.
func (w *Watchdog) Tick(n int) {
	if has(w.fr.peek(watchdog.WDCR), watchdog.WDDIS) {
		return
	}
	for ; n > 0; n-- {
		cnt := w.fr.peek(watchdog.WDCNTR) + 1
		if cnt <= 0xFF {
			w.fr.poke(watchdog.WDCNTR, cnt)
			continue
		}
		w.fr.poke(watchdog.WDCNTR, 0)
		if has(w.fr.peek(watchdog.SCSR), watchdog.WDENINT) {
			w.fr.raise(pie.WAKEINT)
			continue
		}
		w.reset()
	}
}

// 0x55 followed by 0xAA clears the counter.
func (w *Watchdog) onKEY(old, v uint32) uint32 {
	w.mu.Lock()
	ok := w.key == watchdog.Key1 && v == watchdog.Key2
	w.key = v
	w.mu.Unlock()
	if ok {
		w.fr.poke(watchdog.WDCNTR, 0)
	}
	return v
}

// A wrong check pattern resets the device. WDFLAG is write one to clear.
func (w *Watchdog) onCR(old, v uint32) uint32 {
	if regs.Extract(v, watchdog.WDCHK.Shift, watchdog.WDCHK.Width) != watchdog.Check {
		w.reset()
		return w.fr.peek(watchdog.WDCR)
	}
	flag := old & watchdog.WDFLAG.Mask() &^ v
	return v&^watchdog.WDFLAG.Mask() | flag
}

// reset leaves the watchdog as the device reset does, enabled with WDFLAG
// set.
func (w *Watchdog) reset() {
	w.mu.Lock()
	w.resets++
	w.mu.Unlock()
	w.fr.poke(watchdog.WDCNTR, 0)
	w.fr.poke(watchdog.SCSR, 0)
	w.fr.poke(watchdog.WDCR, watchdog.Control(false, 0)|watchdog.WDFLAG.Mask())
}
