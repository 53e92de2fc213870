package baro

import "github.com/relabs-tech/baro_vario/internal/env"

// Measurement is one acquired sample handed to the pipeline.
type Measurement struct {
	Sample env.Sample

	// Time and MsTime locate the middle of the acquisition window on the
	// GNSS clock.
	Time   uint32
	MsTime uint16

	// Calibrate is set for slots that may update the cross-calibration:
	// second half of the second and a locked GNSS fix.
	Calibrate   bool
	RefAltitude int32 // GNSS altitude [0.1 m], used when Calibrate
}

// Estimate is the output of one successful cycle.
type Estimate struct {
	Sensor string `json:"sensor"`
	Time   uint32 `json:"time"`
	MsTime uint16 `json:"ms_time"`

	Pressure    int32 `json:"pressure_qpa"` // window mean, 0.25 Pa
	Temperature int32 `json:"temp_dc"`      // 0.1 °C
	Humidity    int32 `json:"humidity_dpc"` // 0.1 %RH
	HasHumidity bool  `json:"has_humidity"`

	PLR         int32  `json:"plr"`         // 0.0001 m/Pa, negative
	ClimbRate   int32  `json:"climb_cms"`   // 0.01 m/s, from the window slope
	ClimbRate4s int32  `json:"climb4s_cms"` // 0.01 m/s, over 4 s
	Noise       uint32 `json:"noise_dpa"`   // 0.1 Pa RMS
	StdAltitude int32  `json:"std_alt_dm"`  // 0.1 m
	Altitude    int32  `json:"alt_dm"`      // 0.1 m, GNSS cross-calibrated
	Calibrated  bool   `json:"calibrated"`  // this slot fed the calibration
	Annotated   bool   `json:"annotated"`   // merged into a position record
}

// PressurePa returns the pressure in Pa.
func (e Estimate) PressurePa() float64 { return float64(e.Pressure) / PressureScale }

// StdAltitudeM returns the standard altitude in metres.
func (e Estimate) StdAltitudeM() float64 { return float64(e.StdAltitude) / AltitudeScale }

// AltitudeM returns the cross-calibrated altitude in metres.
func (e Estimate) AltitudeM() float64 { return float64(e.Altitude) / AltitudeScale }

// ClimbMPS returns the short-term climb rate in m/s.
func (e Estimate) ClimbMPS() float64 { return float64(e.ClimbRate) / ClimbScale }

// Climb4sMPS returns the 4 s climb rate in m/s.
func (e Estimate) Climb4sMPS() float64 { return float64(e.ClimbRate4s) / ClimbScale }

// NoisePa returns the pressure noise RMS in Pa.
func (e Estimate) NoisePa() float64 { return float64(e.Noise) / NoiseScale }

// Celsius returns the temperature in °C.
func (e Estimate) Celsius() float64 { return float64(e.Temperature) / TemperatureScale }
