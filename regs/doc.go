// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package regs is the register interface shared by every peripheral package.
//
// The C2000 peripheral frames are word addressed. A Reg names one 16 or 32
// bits register at a word offset within a peripheral frame, a Field names a
// bit range within a Reg. A File binds a frame base address to a Space, and
// the Space binds every File to one Bus.
//
// Some registers are protected: the CPU ignores writes to them unless the
// EALLOW bit is set. Space.Protected brackets a set of writes the same way
// the EALLOW/EDIS pair does; a protected write outside of the bracket is
// reported as ErrProtected instead of being silently dropped.
//
// Three Bus implementations are provided:
//
//   - Mem is an in-memory register space with hooks, used by the sim package
//     and by tests to emulate the hardware.
//   - Remote accesses registers through a half-duplex conn.Conn, for example a
//     register bridge on an I²C bus.
//   - DevMem maps physical memory through /dev/mem (linux only).
package regs
