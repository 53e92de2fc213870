// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package atmosphere converts between pressure and altitude using the ICAO
// standard atmosphere (troposphere only).
package atmosphere

import "math"

const (
	// SeaLevelPressure is the standard pressure at 0 m, in Pa.
	SeaLevelPressure = 101325

	// gasOverGravity is R/g0 for dry air, in 0.0001 m/K (287.053/9.80665).
	gasOverGravity = 29271

	// zeroCelsius in 0.1 K.
	zeroCelsius = 2732

	stdAltScale    = 443308.0 // 0.1 m
	stdAltExponent = 0.190263
)

// PressureLapseRate returns dh/dp at the given pressure [Pa] and
// temperature [0.1 degC], in 0.0001 m/Pa. The result is negative: altitude
// grows as pressure falls.
func PressureLapseRate(pressure int32, temperature int32) int32 {
	if pressure <= 0 {
		return 0
	}
	return int32(-int64(temperature+zeroCelsius) * gasOverGravity / int64(pressure))
}

// StdAltitude returns the standard-atmosphere altitude for a pressure [Pa],
// in 0.1 m.
func StdAltitude(pressure int32) int32 {
	if pressure <= 0 {
		return 0
	}
	h := stdAltScale * (1 - math.Pow(float64(pressure)/SeaLevelPressure, stdAltExponent))
	return int32(math.Round(h))
}

// Pressure returns the standard-atmosphere pressure [Pa] at an altitude in
// metres. It is the inverse of StdAltitude.
func Pressure(altitude float64) float64 {
	return SeaLevelPressure * math.Pow(1-altitude*10/stdAltScale, 1/stdAltExponent)
}
