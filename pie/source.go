// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package pie

import "strconv"

// Source is an interrupt source known to the controller.
type Source uint8

// Interrupt sources used by the peripheral packages. The comment is the PIE
// group and index, or the CPU interrupt line for sources that bypass the PIE.
const (
	None      Source = iota
	ADCINT1          // 1.6
	TINT0            // 1.7
	WAKEINT          // 1.8
	EPWM1INT         // 3.1
	ECAP1INT         // 4.1
	EQEP1INT         // 5.1
	I2CINT1A         // 8.1
	SCIRXINTA        // 9.1
	SCITXINTA        // 9.2
	ECAN0INTA        // 9.5
	TINT1            // INT13
	TINT2            // INT14
	numSources
)

// Number of PIE groups. CPU lines INT13 and INT14 are reported as groups 13
// and 14 and have no acknowledge bit.
const (
	NumGroups = 12
	cpuINT13  = 13
	cpuINT14  = 14
)

type vector struct {
	name  string
	group int
	index int
}

var vectors = [numSources]vector{
	None:      {"None", 0, 0},
	ADCINT1:   {"ADCINT1", 1, 6},
	TINT0:     {"TINT0", 1, 7},
	WAKEINT:   {"WAKEINT", 1, 8},
	EPWM1INT:  {"EPWM1_INT", 3, 1},
	ECAP1INT:  {"ECAP1_INT", 4, 1},
	EQEP1INT:  {"EQEP1_INT", 5, 1},
	I2CINT1A:  {"I2CINT1A", 8, 1},
	SCIRXINTA: {"SCIRXINTA", 9, 1},
	SCITXINTA: {"SCITXINTA", 9, 2},
	ECAN0INTA: {"ECAN0INTA", 9, 5},
	TINT1:     {"TINT1", cpuINT13, 0},
	TINT2:     {"TINT2", cpuINT14, 0},
}

// priority lists the sources from the highest to the lowest priority.
var priority []Source

func init() {
	for s := Source(1); s < numSources; s++ {
		i := len(priority)
		priority = append(priority, s)
		for ; i > 0 && less(priority[i], priority[i-1]); i-- {
			priority[i], priority[i-1] = priority[i-1], priority[i]
		}
	}
}

func less(a, b Source) bool {
	va, vb := vectors[a], vectors[b]
	if va.group != vb.group {
		return va.group < vb.group
	}
	return va.index < vb.index
}

// Valid returns true for a source the controller can route.
func (s Source) Valid() bool {
	return s > None && s < numSources
}

// Group returns the PIE group, or 13/14 for the CPU timer lines.
func (s Source) Group() int {
	if !s.Valid() {
		return 0
	}
	return vectors[s].group
}

// Index returns the index within the PIE group, 0 for CPU lines.
func (s Source) Index() int {
	if !s.Valid() {
		return 0
	}
	return vectors[s].index
}

// Grouped returns true if the source goes through the PIE and needs a group
// acknowledge.
func (s Source) Grouped() bool {
	g := s.Group()
	return g >= 1 && g <= NumGroups
}

func (s Source) String() string {
	if s < numSources {
		return vectors[s].name
	}
	return "Source(" + strconv.Itoa(int(s)) + ")"
}
