// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ecan

import (
	"fmt"
	"strings"

	"github.com/GermanBionicSystems/piccolo/common"
)

// MaxID is the largest standard identifier.
const MaxID = 0x7FF

// Frame is a standard CAN data or remote frame.
type Frame struct {
	ID uint16 // 11 bits identifier
	// RTR marks a remote frame. Its Data is not transmitted; only its length
	// is, as the requested length.
	RTR  bool
	Data []byte // up to 8 bytes
}

// Validate returns an error if the frame cannot be transmitted.
func (fr *Frame) Validate() error {
	if fr.ID > MaxID {
		return fmt.Errorf("ecan: identifier %#x is not 11 bits", fr.ID)
	}
	if len(fr.Data) > 8 {
		return fmt.Errorf("ecan: %d data bytes", len(fr.Data))
	}
	return nil
}

func (fr *Frame) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%03X", fr.ID)
	if fr.RTR {
		fmt.Fprintf(&b, " R%d", len(fr.Data))
		return b.String()
	}
	fmt.Fprintf(&b, " [%d]", len(fr.Data))
	for _, v := range fr.Data {
		fmt.Fprintf(&b, " %02X", v)
	}
	return b.String()
}

// Bits returns the frame as seen on the wire, one bit per byte, from the
// start of frame to the end of frame. Dominant bits are 0.
//
// The fields up to the CRC are bit stuffed. The acknowledge slot is the
// recessive bit sent by the transmitter.
func (fr *Frame) Bits() ([]byte, error) {
	if err := fr.Validate(); err != nil {
		return nil, err
	}
	rtr := uint32(0)
	if fr.RTR {
		rtr = 1
	}
	b := make([]byte, 0, 19+64+15)
	b = append(b, 0)
	b = append(b, common.Unpack(uint32(fr.ID), 11)...)
	// RTR, IDE and r0.
	b = append(b, byte(rtr), 0, 0)
	b = append(b, common.Unpack(uint32(len(fr.Data)), 4)...)
	if !fr.RTR {
		for _, v := range fr.Data {
			b = append(b, common.Unpack(uint32(v), 8)...)
		}
	}
	b = append(b, common.Unpack(uint32(common.CRC15(b)), 15)...)
	out := stuff(b)
	// CRC delimiter, acknowledge slot and delimiter, end of frame.
	return append(out, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1), nil
}

// stuff inserts the complement after every run of five identical bits. The
// stuff bit starts the next run.
func stuff(in []byte) []byte {
	out := make([]byte, 0, len(in)+len(in)/4)
	run, last := 0, byte(2)
	for _, v := range in {
		out = append(out, v)
		if v == last {
			run++
		} else {
			last, run = v, 1
		}
		if run == 5 {
			last, run = 1-v, 1
			out = append(out, last)
		}
	}
	return out
}

// Pack returns the MSGID, MSGCTRL, MDL and MDH values for the frame. The
// first data byte is the most significant byte of MDL.
func (fr *Frame) Pack() (id, ctrl, mdl, mdh uint32) {
	id = uint32(fr.ID) << STDMSGID.Shift
	ctrl = uint32(len(fr.Data))
	if fr.RTR {
		ctrl |= RTR.Mask()
	}
	var d [8]byte
	copy(d[:], fr.Data)
	mdl = uint32(d[0])<<24 | uint32(d[1])<<16 | uint32(d[2])<<8 | uint32(d[3])
	mdh = uint32(d[4])<<24 | uint32(d[5])<<16 | uint32(d[6])<<8 | uint32(d[7])
	return
}

// Unpack returns the frame held in mailbox register values.
func Unpack(id, ctrl, mdl, mdh uint32) Frame {
	n := int(ctrl & DLC.Mask())
	if n > 8 {
		n = 8
	}
	d := [8]byte{
		byte(mdl >> 24), byte(mdl >> 16), byte(mdl >> 8), byte(mdl),
		byte(mdh >> 24), byte(mdh >> 16), byte(mdh >> 8), byte(mdh),
	}
	return Frame{
		ID:   uint16(id >> STDMSGID.Shift & 0x7FF),
		RTR:  ctrl&RTR.Mask() != 0,
		Data: append([]byte{}, d[:n]...),
	}
}
