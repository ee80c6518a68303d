// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package common

import "testing"

func TestCRC15(t *testing.T) {
	var tests = []struct {
		bits   []byte
		result uint16
	}{
		{bits: nil, result: 0},
		{bits: []byte{1, 0, 1}, result: 0x1d56},
		{bits: Unpack(0x123, 11), result: 0x143a},
	}
	for _, test := range tests {
		res := CRC15(test.bits)
		if res != test.result {
			t.Errorf("CRC15(%v)!=%#x received %#x", test.bits, test.result, res)
		}
	}
}

func TestUnpack(t *testing.T) {
	got := Unpack(0x5, 4)
	if len(got) != 4 || got[0] != 0 || got[1] != 1 || got[2] != 0 || got[3] != 1 {
		t.Errorf("Unpack(5, 4) = %v", got)
	}
}
