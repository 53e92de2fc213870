// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package filter

// Delay is a fixed-depth delay line: Input returns the value that was input
// Depth calls earlier. Until the line has been filled once it returns the
// seed given to Clear.
type Delay[T Integer] struct {
	data []T
	ptr  int
}

// NewDelay returns a delay line of the given depth, seeded with zeros.
func NewDelay[T Integer](depth int) *Delay[T] {
	if depth < 1 {
		depth = 1
	}
	return &Delay[T]{data: make([]T, depth)}
}

// Depth returns the number of calls between a value going in and coming out.
func (d *Delay[T]) Depth() int {
	return len(d.data)
}

// Clear fills the line with seed.
func (d *Delay[T]) Clear(seed T) {
	for i := range d.data {
		d.data[i] = seed
	}
	d.ptr = 0
}

// Input stores v and returns the oldest value held.
func (d *Delay[T]) Input(v T) T {
	out := d.data[d.ptr]
	d.data[d.ptr] = v
	d.ptr++
	if d.ptr == len(d.data) {
		d.ptr = 0
	}
	return out
}
