// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package filter holds the integer signal primitives of the barometer
// pipeline: a 4-point slope fitter, a two-stage low-pass and a delay line.
// Nothing in here allocates after construction or uses floating point.
package filter

// slopeWeights are the sample times of the fit window, oldest first, in
// half sample intervals centred on the middle of the window.
var slopeWeights = [4]int64{-3, -1, 1, 3}

// SlopeShift is the left shift applied to the least-squares slope so the
// result keeps two fractional bits: with 0.25 Pa input samples every 0.5 s,
// Slope comes out in 1/16 Pa per 0.5 s.
const SlopeShift = 2

// SlopePipe fits an average and a slope over the four most recent samples.
//
// Aver is the sum of the four samples (4x the mean, so 0.25 Pa input gives
// 1/16 Pa). Slope is round(2*Sxy/5) where Sxy = sum(w*y) over the weights
// -3,-1,+1,+3; this equals the least-squares slope per sample interval
// shifted left by SlopeShift. Noise is the mean square residual about the
// fitted line in units of (input/20)^2.
//
// Aver, Slope and Noise are only meaningful once four samples have been
// pushed since the last Clear; counting pushes is up to the caller.
type SlopePipe struct {
	data [4]int32
	ptr  int // index of the oldest sample

	sxy int64

	Aver  int32
	Slope int32
	Noise int64
}

// Clear fills the window with v.
func (p *SlopePipe) Clear(v int32) {
	for i := range p.data {
		p.data[i] = v
	}
	p.ptr = 0
	p.sxy = 0
	p.Aver = 4 * v
	p.Slope = 0
	p.Noise = 0
}

// Input pushes a new sample, evicting the oldest one.
func (p *SlopePipe) Input(v int32) {
	p.data[p.ptr] = v
	p.ptr = (p.ptr + 1) & 3
}

// at returns the i-th sample of the window, 0 being the oldest.
func (p *SlopePipe) at(i int) int64 {
	return int64(p.data[(p.ptr+i)&3])
}

// FitSlope computes Aver and Slope from the current window.
func (p *SlopePipe) FitSlope() {
	var sum, sxy int64
	for i, w := range slopeWeights {
		y := p.at(i)
		sum += y
		sxy += w * y
	}
	p.sxy = sxy
	p.Aver = int32(sum)
	p.Slope = int32(DivRound(2*sxy, 5))
}

// CalcNoise computes the mean square residual of the window about the line
// fitted by the last FitSlope call.
func (p *SlopePipe) CalcNoise() {
	var sum int64
	for i, w := range slopeWeights {
		r := 20*p.at(i) - 5*int64(p.Aver) - w*p.sxy
		sum += r * r
	}
	p.Noise = sum / 4
}
