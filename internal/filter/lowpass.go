// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package filter

// Integer is the set of accumulator types the filters run on.
type Integer interface {
	~int32 | ~int64
}

// LowPass2 is two cascaded exponential smoothers on a fixed-point
// accumulator. The first stage moves 1/2^shift1 of the way to the input,
// the second moves 1/2^shift2 of the way to the first stage. Internal
// values are kept scaled by 2^scale so small steps are not lost.
type LowPass2[T Integer] struct {
	shift1, shift2, scale uint

	out1 T
	out  T
}

// NewLowPass2 returns a smoother with the given shifts, seeded at zero.
func NewLowPass2[T Integer](shift1, shift2, scale uint) *LowPass2[T] {
	return &LowPass2[T]{shift1: shift1, shift2: shift2, scale: scale}
}

// Set forces both stages to v.
func (f *LowPass2[T]) Set(v T) {
	f.out1 = v << f.scale
	f.out = f.out1
}

// Process feeds one sample and returns the smoothed output.
func (f *LowPass2[T]) Process(v T) T {
	v <<= f.scale
	f.out1 += (v - f.out1) >> f.shift1
	f.out += (f.out1 - f.out) >> f.shift2
	return f.Output()
}

// Output returns the smoothed value, rounded back to input units.
func (f *LowPass2[T]) Output() T {
	return (f.out + f.half()) >> f.scale
}

// Raw returns the second stage accumulator, scaled by 2^scale.
func (f *LowPass2[T]) Raw() T {
	return f.out
}

func (f *LowPass2[T]) half() T {
	if f.scale == 0 {
		return 0
	}
	return T(1) << (f.scale - 1)
}
