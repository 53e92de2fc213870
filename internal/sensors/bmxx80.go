package sensors

import (
	"fmt"
	"strings"

	"github.com/relabs-tech/baro_vario/internal/env"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
)

// BMXX80 drives a Bosch BMP280 or BME280 through periph.io. Both chips
// convert temperature and pressure together; the BME280 adds humidity. A
// BMP180 found at the address is reported under its own name.
type BMXX80 struct {
	bus  i2c.Bus
	addr uint16

	dev      *bmxx80.Dev
	name     string
	humidity bool

	raw    physic.Env
	sample env.Sample
}

// NewBMXX80 returns a driver for the chip at addr (0x76 or 0x77). Nothing
// is sent on the bus until CheckID.
func NewBMXX80(bus i2c.Bus, addr uint16) *BMXX80 {
	return &BMXX80{bus: bus, addr: addr}
}

func (b *BMXX80) Name() string {
	if b.name == "" {
		return "BMx280"
	}
	return b.name
}

func (b *BMXX80) Addr() uint16 { return b.addr }

func (b *BMXX80) HasHumidity() bool { return b.humidity }

func (b *BMXX80) Sample() env.Sample { return b.sample }

// CheckID (re)creates the periph device, which reads and checks the chip ID.
func (b *BMXX80) CheckID() error {
	if b.dev != nil {
		_ = b.dev.Halt()
		b.dev = nil
	}
	dev, err := bmxx80.NewI2C(b.bus, b.addr, &bmxx80.DefaultOpts)
	if err != nil {
		return fmt.Errorf("bmxx80 @0x%02X init: %w", b.addr, err)
	}
	b.dev = dev
	b.name = chipName(dev.String())
	b.humidity = b.name == "BME280"
	return nil
}

// chipName returns the chip model from a periph bmxx80 device string such
// as "BME280{playground(i2c)}".
func chipName(dev string) string {
	if i := strings.IndexByte(dev, '{'); i >= 0 {
		dev = dev[:i]
	}
	switch dev {
	case "BMP180", "BMP280", "BME280":
		return dev
	}
	return "BMx280"
}

// ReadCalibration is satisfied by CheckID: periph loads the trimming
// parameters while creating the device.
func (b *BMXX80) ReadCalibration() error {
	if b.dev == nil {
		return ErrNotConnected
	}
	return nil
}

// Acquire runs one forced conversion.
func (b *BMXX80) Acquire() error {
	if b.dev == nil {
		return ErrNotConnected
	}
	if err := b.dev.Sense(&b.raw); err != nil {
		return fmt.Errorf("%s sense: %w", b.Name(), err)
	}
	return nil
}

// Calculate converts the last conversion to pipeline units.
func (b *BMXX80) Calculate() {
	b.sample = env.FromEnv(b.Name(), &b.raw, b.humidity)
}

var _ Combined = (*BMXX80)(nil)
