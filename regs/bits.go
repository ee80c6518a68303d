// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package regs

import "golang.org/x/exp/constraints"

// Mask returns a value with the lowest width bits set.
func Mask[T constraints.Unsigned](width uint) T {
	if width == 0 {
		return 0
	}
	var all T
	all = ^all
	if bits := bitSize[T](); width >= bits {
		return all
	}
	return ^(all << width)
}

// Extract returns the width bits of v starting at bit shift.
func Extract[T constraints.Unsigned](v T, shift, width uint) T {
	return (v >> shift) & Mask[T](width)
}

// Insert returns v with the width bits starting at shift replaced by x.
//
// Bits of x above width are discarded.
func Insert[T constraints.Unsigned](v T, shift, width uint, x T) T {
	m := Mask[T](width) << shift
	return (v &^ m) | ((x << shift) & m)
}

func bitSize[T constraints.Unsigned]() uint {
	var n uint
	for v := ^T(0); v != 0; v >>= 1 {
		n++
	}
	return n
}
