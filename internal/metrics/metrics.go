// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package metrics exports the vario estimates as Prometheus gauges.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relabs-tech/baro_vario/internal/baro"
	"github.com/relabs-tech/baro_vario/internal/vario"
)

// Vario holds the collectors. It implements baro.Observer and
// baro.FaultObserver.
type Vario struct {
	reg *prometheus.Registry

	pressure    prometheus.Gauge
	temperature prometheus.Gauge
	stdAltitude prometheus.Gauge
	altitude    prometheus.Gauge
	climb       prometheus.Gauge
	climb4s     prometheus.Gauge
	noise       prometheus.Gauge
	lapseRate   prometheus.Gauge
	toneNote    prometheus.Gauge
	cycles      prometheus.Counter
	calibrated  prometheus.Counter
	faults      prometheus.Counter
}

// New registers the collectors on a private registry.
func New() *Vario {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	gauge := func(name, help string) prometheus.Gauge {
		return f.NewGauge(prometheus.GaugeOpts{Namespace: "vario", Name: name, Help: help})
	}
	counter := func(name, help string) prometheus.Counter {
		return f.NewCounter(prometheus.CounterOpts{Namespace: "vario", Name: name, Help: help})
	}
	return &Vario{
		reg:         reg,
		pressure:    gauge("pressure_pa", "Barometric pressure, window mean"),
		temperature: gauge("temperature_celsius", "Sensor temperature"),
		stdAltitude: gauge("std_altitude_m", "Standard atmosphere altitude"),
		altitude:    gauge("altitude_m", "GNSS cross-calibrated altitude"),
		climb:       gauge("climb_mps", "Short-term climb rate"),
		climb4s:     gauge("climb_4s_mps", "Climb rate over 4 seconds"),
		noise:       gauge("noise_pa", "Pressure noise RMS"),
		lapseRate:   gauge("lapse_rate_m_per_pa", "Pressure lapse rate"),
		toneNote:    gauge("tone_note", "Vario tone note, -1 when silent"),
		cycles:      counter("estimates_total", "Estimates produced"),
		calibrated:  counter("calibrations_total", "Slots that fed the GNSS cross-calibration"),
		faults:      counter("sensor_faults_total", "Recovered sensor faults"),
	}
}

// Observe implements baro.Observer.
func (v *Vario) Observe(e baro.Estimate, t vario.Tone) {
	v.pressure.Set(e.PressurePa())
	v.temperature.Set(e.Celsius())
	v.stdAltitude.Set(e.StdAltitudeM())
	v.altitude.Set(e.AltitudeM())
	v.climb.Set(e.ClimbMPS())
	v.climb4s.Set(e.Climb4sMPS())
	v.noise.Set(e.NoisePa())
	v.lapseRate.Set(float64(e.PLR) / baro.LapseRateScale)
	if t.Silent() {
		v.toneNote.Set(-1)
	} else {
		v.toneNote.Set(float64(t.Note))
	}
	v.cycles.Inc()
	if e.Calibrated {
		v.calibrated.Inc()
	}
}

// Fault implements baro.FaultObserver.
func (v *Vario) Fault(error) { v.faults.Inc() }

// Handler serves the registry in the Prometheus text format.
func (v *Vario) Handler() http.Handler {
	return promhttp.HandlerFor(v.reg, promhttp.HandlerOpts{})
}

var (
	_ baro.Observer      = (*Vario)(nil)
	_ baro.FaultObserver = (*Vario)(nil)
)
