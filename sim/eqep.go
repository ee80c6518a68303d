// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sim

import (
	"github.com/GermanBionicSystems/piccolo/eqep"
	"github.com/GermanBionicSystems/piccolo/pie"
	"github.com/GermanBionicSystems/piccolo/regs"
)

// QEP models eQEP1 counting quadrature edges.
//
// A unit time out happens on UnitTimeout, or when the CPU polls QFLG while
// none is pending.
type QEP struct {
	fr frame
}

// NewQEP attaches an eQEP1 model to m at eqep.Base.
func NewQEP(m *regs.Mem, ic *pie.Controller) *QEP {
	q := &QEP{fr: frame{m: m, ic: ic, base: eqep.Base}}
	q.fr.onWrite(eqep.QCLR, q.onQCLR)
	q.fr.onRead(eqep.QFLG, q.onQFLG)
	return q
}

// Rotate moves the encoder by counts quadrature edges, negative backward.
// Nothing is counted while the counter is disabled.
func (q *QEP) Rotate(counts int32) {
	if !has(q.fr.peek(eqep.QEPCTL), eqep.QPEN) {
		return
	}
	top := q.fr.peek(eqep.QPOSMAX)
	q.fr.m.Update(q.fr.addr(eqep.QPOSCNT), func(v uint32) uint32 {
		v += uint32(counts)
		if top != 0xFFFFFFFF && v > top {
			if counts < 0 {
				return top
			}
			return 0
		}
		return v
	})
}

// UnitTimeout expires the unit timer. It returns false when the unit timer
// is disabled.
func (q *QEP) UnitTimeout() bool {
	ctl := q.fr.peek(eqep.QEPCTL)
	if !has(ctl, eqep.UTE) {
		return false
	}
	if has(ctl, eqep.QCLM) {
		q.fr.poke(eqep.QPOSLAT, q.fr.peek(eqep.QPOSCNT))
	}
	var flg uint32
	q.fr.m.Update(q.fr.addr(eqep.QFLG), func(old uint32) uint32 {
		flg = old
		return old | eqep.UTO
	})
	if q.fr.peek(eqep.QEINT)&eqep.UTO != 0 && flg&eqep.INT == 0 {
		q.fr.m.Update(q.fr.addr(eqep.QFLG), func(old uint32) uint32 { return old | eqep.INT })
		q.fr.raise(pie.EQEP1INT)
	}
	return true
}

// QCLR reads as zero.
func (q *QEP) onQCLR(old, v uint32) uint32 {
	q.fr.m.Update(q.fr.addr(eqep.QFLG), func(f uint32) uint32 { return f &^ v })
	return 0
}

func (q *QEP) onQFLG(v uint32) uint32 {
	if v&eqep.UTO != 0 || !q.UnitTimeout() {
		return v
	}
	return q.fr.peek(eqep.QFLG)
}
