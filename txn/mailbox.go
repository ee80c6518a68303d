// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package txn

import "sync"

// mailbox is a one slot, last write wins handoff from the interrupt handler
// to the main loop.
type mailbox struct {
	mu      sync.Mutex
	r       Result
	err     error
	seq     uint64
	pending bool          // a result is staged but not yet published
	ready   chan struct{} // closed on the next publish
}

// stage runs then and marks a result as pending. The returned function
// publishes r and err and wakes the waiters up.
func (m *mailbox) stage(r Result, err error, then func()) (publish func()) {
	m.mu.Lock()
	if then != nil {
		then()
	}
	m.pending = true
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		m.r = r
		m.err = err
		m.seq++
		m.pending = false
		ch := m.ready
		m.ready = nil
		m.mu.Unlock()
		if ch != nil {
			close(ch)
		}
	}
}

// get returns the published content and a channel closed on the next
// publish.
func (m *mailbox) get() (Result, uint64, <-chan struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ready == nil {
		m.ready = make(chan struct{})
	}
	return m.r, m.seq, m.ready, m.err
}

// mark runs fn and returns the sequence number of the last result fn
// predates, a pending one included.
func (m *mailbox) mark(fn func() bool) (uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seq := m.seq
	if m.pending {
		seq++
	}
	return seq, fn()
}
