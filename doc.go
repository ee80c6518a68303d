// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package piccolo is a container for the TI C2000 Piccolo (F2802x)
// peripheral drivers.
//
// Package regs reaches the registers and package pie routes the peripheral
// interrupts. Package txn runs the transactions every driver is built on,
// interrupt driven or polled. Package board assembles the drivers of one
// device and package sim models the silicon so they run on a host.
package piccolo
