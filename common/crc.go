// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package common contains functions used across multiple packages. For
// example, the CRC of a CAN frame.
package common

// CRC15 calculates the 15-bit CAN CRC of a bit sequence, one bit per byte,
// most significant bit first. It covers the frame from the start of frame
// bit to the end of the data field, before bit stuffing.
func CRC15(bits []byte) uint16 {
	var crc uint16
	for _, b := range bits {
		next := (b & 1) ^ byte(crc>>14&1)
		crc = crc << 1 & 0x7FFF
		if next != 0 {
			crc ^= 0x4599
		}
	}
	return crc
}

// Unpack returns the n least significant bits of v, one bit per byte, most
// significant bit first.
func Unpack(v uint32, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(v >> uint(n-1-i) & 1)
	}
	return out
}
