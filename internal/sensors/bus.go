// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"log"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

var hostOnce sync.Once
var hostErr error

func initHost() error {
	hostOnce.Do(func() {
		if _, err := host.Init(); err != nil {
			hostErr = fmt.Errorf("periph host init: %w", err)
		}
	})
	return hostErr
}

// Bus is an I2C bus that can be closed and reopened after a fault. Drivers
// hold the Bus itself, so a restart is transparent to them.
type Bus struct {
	name string

	mu  sync.Mutex
	bus i2c.BusCloser
}

// OpenBus initialises the periph host and opens the named I2C bus ("" picks
// the first one available).
func OpenBus(name string) (*Bus, error) {
	if err := initHost(); err != nil {
		return nil, err
	}
	b := &Bus{name: name}
	if err := b.open(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Bus) open() error {
	bus, err := i2creg.Open(b.name)
	if err != nil {
		return fmt.Errorf("i2c open %q: %w", b.name, err)
	}
	b.bus = bus
	return nil
}

// Restart closes and reopens the underlying bus.
func (b *Bus) Restart() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bus != nil {
		if err := b.bus.Close(); err != nil {
			log.Printf("sensors: i2c close %q: %v", b.name, err)
		}
		b.bus = nil
	}
	return b.open()
}

// Close releases the bus.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bus == nil {
		return nil
	}
	err := b.bus.Close()
	b.bus = nil
	return err
}

func (b *Bus) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bus == nil {
		return fmt.Sprintf("%s(closed)", b.name)
	}
	return b.bus.String()
}

// Tx implements i2c.Bus.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bus == nil {
		return fmt.Errorf("i2c %q: %w", b.name, ErrNotConnected)
	}
	return b.bus.Tx(addr, w, r)
}

// SetSpeed implements i2c.Bus.
func (b *Bus) SetSpeed(f physic.Frequency) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bus == nil {
		return fmt.Errorf("i2c %q: %w", b.name, ErrNotConnected)
	}
	return b.bus.SetSpeed(f)
}

var _ i2c.Bus = (*Bus)(nil)
