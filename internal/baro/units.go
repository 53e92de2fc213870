// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package baro

// Fixed-point units used across the pipeline. Each quantity has exactly one
// scale; conversions between them go through the divisors below.
const (
	PressureScale    = 4   // sensor and record pressure: 0.25 Pa
	AverScale        = 16  // SlopePipe.Aver: 1/16 Pa (4 samples of 0.25 Pa)
	AltitudeScale    = 10  // altitudes: 0.1 m
	ClimbScale       = 100 // climb rates: 0.01 m/s
	NoiseScale       = 10  // pressure noise RMS: 0.1 Pa
	TemperatureScale = 10  // 0.1 °C
	HumidityScale    = 10  // 0.1 %RH
	LapseRateScale   = 10000
)

const (
	// climbDiv takes Slope [1/16 Pa per 0.5 s] x PLR [0.0001 m/Pa] to 0.01 m/s.
	climbDiv = 800
	// climb4sDiv takes an Aver delta over 4 s times PLR to 0.01 m/s.
	climb4sDiv = 6400
	// altDiffDiv takes a pressure delta [0.25 Pa] times PLR to 0.1 m.
	altDiffDiv = 4000
)

const (
	// WarmupSamples is the number of consecutive good samples the fit
	// window needs before estimates are produced.
	WarmupSamples = 4

	// DelayDepth is 4 s of samples at two per second.
	DelayDepth = 8

	// AnnotateTolerance is the largest time error [ms] at which a position
	// record still receives the barometric fields.
	AnnotateTolerance = 250

	// Slot timing [ms].
	SlotMs          = 500
	PressureBudget  = 200
	MaxPressureSubs = 16
	SettleMs        = 20
	IdleMs          = 100
)

// Start-up seeds.
const (
	pipeSeed  = 4 * 90000   // 0.25 Pa
	noiseSeed = 96 * 96     // (1/80 Pa)^2, 1.2 Pa RMS
	pressSeed = 4 * 101300  // 0.25 Pa
	altSeed   = 0           // 0.1 m
	delaySeed = 16 * 101325 // 1/16 Pa
)
