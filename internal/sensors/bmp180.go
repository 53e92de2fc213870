package sensors

import (
	"fmt"

	"github.com/relabs-tech/baro_vario/internal/env"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
)

// bmp180Addr is fixed by the chip.
const bmp180Addr = 0x77

// BMP180 drives a Bosch BMP180 through the periph.io bmxx80 driver, which
// recognises the chip by its ID. The acquisition loop treats it as a
// TwoPhase sensor: temperature once per slot, then as many pressure reads
// as fit the budget. Every periph Sense runs a full temperature and
// pressure conversion, so each phase costs one complete conversion.
type BMP180 struct {
	bus i2c.Bus
	dev *bmxx80.Dev

	rawT   physic.Env
	rawP   physic.Env
	sample env.Sample
}

// NewBMP180 returns a driver on bus. Nothing is sent until CheckID.
func NewBMP180(bus i2c.Bus) *BMP180 {
	return &BMP180{bus: bus}
}

func (b *BMP180) Name() string       { return "BMP180" }
func (b *BMP180) Addr() uint16       { return bmp180Addr }
func (b *BMP180) HasHumidity() bool  { return false }
func (b *BMP180) Sample() env.Sample { return b.sample }

// CheckID (re)creates the periph device and refuses any chip other than a
// BMP180 at 0x77.
func (b *BMP180) CheckID() error {
	if b.dev != nil {
		_ = b.dev.Halt()
		b.dev = nil
	}
	dev, err := bmxx80.NewI2C(b.bus, bmp180Addr, &bmxx80.DefaultOpts)
	if err != nil {
		return fmt.Errorf("bmp180 init: %w", err)
	}
	if name := chipName(dev.String()); name != "BMP180" {
		_ = dev.Halt()
		return fmt.Errorf("bmp180 init: found %s @0x%02X", name, bmp180Addr)
	}
	b.dev = dev
	return nil
}

func (b *BMP180) ReadCalibration() error {
	if b.dev == nil {
		return ErrNotConnected
	}
	return nil
}

func (b *BMP180) AcquireRawTemperature() error {
	if b.dev == nil {
		return ErrNotConnected
	}
	if err := b.dev.Sense(&b.rawT); err != nil {
		return fmt.Errorf("bmp180 temperature: %w", err)
	}
	return nil
}

func (b *BMP180) CalcTemperature() {
	s := env.FromEnv(b.Name(), &b.rawT, false)
	b.sample.Source = s.Source
	b.sample.Temperature = s.Temperature
}

func (b *BMP180) AcquireRawPressure() error {
	if b.dev == nil {
		return ErrNotConnected
	}
	if err := b.dev.Sense(&b.rawP); err != nil {
		return fmt.Errorf("bmp180 pressure: %w", err)
	}
	return nil
}

func (b *BMP180) CalcPressure() {
	b.sample.Pressure = env.FromEnv(b.Name(), &b.rawP, false).Pressure
}

var _ TwoPhase = (*BMP180)(nil)
