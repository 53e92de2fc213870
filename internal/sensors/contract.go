// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sensors holds the barometer capability contract and the drivers
// that satisfy it: periph.io BMP280/BME280 and BMP180 chips on I2C, and a
// scripted simulator.
package sensors

import (
	"errors"

	"github.com/relabs-tech/baro_vario/internal/env"
)

// ErrNotConnected is returned when a chip is used before CheckID found it.
var ErrNotConnected = errors.New("sensor not connected")

// Baro is what every barometer exposes, whatever the chip. A Baro also
// implements exactly one of Combined or TwoPhase.
type Baro interface {
	Name() string // chip name, e.g. "BMP280"
	Addr() uint16 // bus address, 0 when not applicable

	CheckID() error         // probe the chip and confirm its identity
	ReadCalibration() error // load compensation constants

	// Sample returns the latest compensated reading. Pressure is valid after
	// Calculate or CalcPressure, Temperature after Calculate or CalcTemperature.
	Sample() env.Sample
	HasHumidity() bool
}

// Combined chips measure temperature and pressure in one conversion.
type Combined interface {
	Baro
	Acquire() error // run one conversion and read the raw values
	Calculate()     // compensate the raw values into Sample
}

// TwoPhase chips convert temperature and pressure separately. Pressure
// compensation uses the last temperature.
type TwoPhase interface {
	Baro
	AcquireRawTemperature() error
	CalcTemperature()
	AcquireRawPressure() error
	CalcPressure()
}

// Restarter recovers the bus a sensor hangs off after a fault.
type Restarter interface {
	Restart() error
}
