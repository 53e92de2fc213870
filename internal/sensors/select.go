package sensors

import (
	"fmt"
	"time"

	"github.com/relabs-tech/baro_vario/internal/config"
)

// Open builds the barometer selected by SENSOR_TYPE together with the bus
// it needs restarting through. The returned Restarter is also an io.Closer
// for real buses.
func Open(cfg *config.Config, now func() time.Time) (Baro, Restarter, error) {
	switch cfg.SensorType {
	case "sim":
		script, err := LoadSimScript(cfg.SimScenario)
		if err != nil {
			return nil, nil, fmt.Errorf("sim scenario: %w", err)
		}
		baro, err := NewSim(script, now)
		if err != nil {
			return nil, nil, fmt.Errorf("sim scenario %s: %w", cfg.SimScenario, err)
		}
		return baro, &SimBus{}, nil

	case "bmp280", "bme280":
		bus, err := OpenBus(cfg.SensorI2CBus)
		if err != nil {
			return nil, nil, err
		}
		return NewBMXX80(bus, cfg.SensorI2CAddr), bus, nil

	case "bmp180":
		bus, err := OpenBus(cfg.SensorI2CBus)
		if err != nil {
			return nil, nil, err
		}
		return NewBMP180(bus), bus, nil
	}
	return nil, nil, fmt.Errorf("unknown sensor type %q", cfg.SensorType)
}
