package env

import "periph.io/x/conn/v3/physic"

// Sample represents a single compensated barometer reading in the fixed-point
// units the vario pipeline works in.
type Sample struct {
	Source string `json:"source"` // chip name, e.g. "BMP280"

	Pressure    uint32 `json:"pressure_qpa"` // 0.25 Pa
	Temperature int32  `json:"temp_dc"`      // 0.1 °C
	Humidity    int32  `json:"humidity_dpc"` // 0.1 %RH, valid when HasHumidity
	HasHumidity bool   `json:"has_humidity"`
}

const (
	quarterPascal = physic.Pascal / 4
	deciKelvin    = 100 * physic.MilliKelvin
)

// FromEnv converts a periph.io environment reading. Humidity is copied only
// when withHumidity is set, since BMP280 leaves it zero.
func FromEnv(source string, e *physic.Env, withHumidity bool) Sample {
	s := Sample{
		Source:      source,
		Pressure:    uint32(roundDiv(int64(e.Pressure), int64(quarterPascal))),
		Temperature: int32(roundDiv(int64(e.Temperature-physic.ZeroCelsius), int64(deciKelvin))),
	}
	if withHumidity {
		s.Humidity = int32(e.Humidity / physic.MilliRH)
		s.HasHumidity = true
	}
	return s
}

// PressurePa returns the pressure in Pa.
func (s Sample) PressurePa() float64 {
	return float64(s.Pressure) / 4
}

// Celsius returns the temperature in °C.
func (s Sample) Celsius() float64 {
	return float64(s.Temperature) / 10
}

func roundDiv(n, d int64) int64 {
	if n < 0 {
		return -((-n + d/2) / d)
	}
	return (n + d/2) / d
}
