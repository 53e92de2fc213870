// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/relabs-tech/baro_vario/internal/baro"
	"github.com/relabs-tech/baro_vario/internal/config"
	"github.com/relabs-tech/baro_vario/internal/gps"
	"github.com/relabs-tech/baro_vario/internal/output"
	"github.com/relabs-tech/baro_vario/internal/sensors"
)

// replayEpoch is the virtual start of every replay.
var replayEpoch = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

// ReplayStats summarises one replay.
type ReplayStats struct {
	Slots      int
	Estimates  int
	Faults     int
	Calibrated int
	Annotated  int
}

// virtualClock is a timesync.Clock that only moves when slept on.
type virtualClock struct{ t time.Time }

func (c *virtualClock) Now() time.Time            { return c.t }
func (c *virtualClock) Time(t time.Time) uint32   { return uint32(t.Unix()) }
func (c *virtualClock) MsTime(t time.Time) uint16 { return uint16(t.Nanosecond() / int(time.Millisecond)) }
func (c *virtualClock) Sleep(d time.Duration)     { c.t = c.t.Add(d) }

type faultFunc func(error)

func (f faultFunc) Fault(err error) { f(err) }

// Replay runs script through baro.Task on a virtual clock, so acquisition,
// fault recovery, cross-calibration and annotation follow the live code
// path, and hands every estimate to sink. When the script has a gnss
// section, a position record is pushed for every whole second before the
// slot that needs it.
func Replay(script sensors.SimScript, duration time.Duration, sink baro.Sink) (ReplayStats, error) {
	clk := &virtualClock{t: replayEpoch}
	sensor, err := sensors.NewSim(script, clk.Now)
	if err != nil {
		return ReplayStats{}, err
	}

	var st ReplayStats
	task := baro.NewTask(sensor, &sensors.SimBus{}, clk)
	task.Sleep = clk.Sleep
	task.Sink = sink
	task.Faults = []baro.FaultObserver{faultFunc(func(error) { st.Faults++ })}

	var positions *gps.Buffer
	nextFix := replayEpoch.Unix()
	if script.GNSS != nil {
		positions = gps.NewBuffer(gps.DefaultDepth)
		task.Positions = positions
	}

	if _, err := task.InitBaro(); err != nil {
		log.Printf("replay: %s ?! (%v)", sensor.Name(), err)
	}

	slot := baro.SlotMs * time.Millisecond
	for clk.t.Sub(replayEpoch) < duration {
		if positions != nil {
			next := clk.t.Truncate(slot).Add(slot)
			for ; nextFix <= next.Unix(); nextFix++ {
				alt, locked := script.GNSSAt(time.Unix(nextFix, 0).Sub(replayEpoch))
				p := gps.Position{Sec: uint32(nextFix), Altitude: alt}
				if locked {
					p.FixQuality = 1
					p.Satellites = 8
				}
				positions.Push(p)
			}
		}

		st.Slots++
		est, ok := task.Cycle()
		if !ok {
			continue
		}
		st.Estimates++
		if est.Calibrated {
			st.Calibrated++
		}
		if est.Annotated {
			st.Annotated++
		}
	}
	return st, nil
}

// scriptDuration is the scripted flight plus ten seconds of hold.
func scriptDuration(s sensors.SimScript) time.Duration {
	d := 10 * time.Second
	for _, seg := range s.Segments {
		d += seg.Duration
	}
	return d
}

// RunReplay replays the configured simulator scenario and prints the
// sentences to stdout.
func RunReplay() error {
	cfg := config.Get()
	if cfg.SimScenario == "" {
		return fmt.Errorf("SIM_SCENARIO is not set")
	}
	script, err := sensors.LoadSimScript(cfg.SimScenario)
	if err != nil {
		return fmt.Errorf("sim scenario: %w", err)
	}

	emitter := output.NewEmitter(output.NewTransport(os.Stdout), nil, true)
	emitter.Battery = func() uint32 { return cfg.BatteryMV }

	st, err := Replay(script, scriptDuration(script), emitter)
	if err != nil {
		return err
	}
	log.Printf("replay: %d slots, %d estimates (%d calibrated, %d annotated), %d faults",
		st.Slots, st.Estimates, st.Calibrated, st.Annotated, st.Faults)
	return nil
}
