package baro

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/relabs-tech/baro_vario/internal/env"
	"github.com/relabs-tech/baro_vario/internal/gps"
	"github.com/relabs-tech/baro_vario/internal/sensors"
	"github.com/relabs-tech/baro_vario/internal/timesync"
	"github.com/relabs-tech/baro_vario/internal/vario"
)

// sleep is replaced in tests.
var sleep = time.Sleep

// errNoPressure is reported when a two-phase sensor gave no pressure
// sub-sample within the budget.
var errNoPressure = errors.New("no pressure sample within budget")

// Sink receives every estimate, e.g. the sentence emitter.
type Sink interface {
	Emit(Estimate)
}

// Observer is told about every estimate and the tone chosen for it.
type Observer interface {
	Observe(Estimate, vario.Tone)
}

// FaultObserver is told about every recovered sensor fault.
type FaultObserver interface {
	Fault(err error)
}

// Task runs the barometer: one acquisition and estimation cycle per
// half-second slot aligned to the GNSS clock.
type Task struct {
	Sensor sensors.Baro
	Bus    sensors.Restarter
	Clock  timesync.Clock

	// Positions is optional. Without it the altitude is never
	// cross-calibrated and no record is annotated.
	Positions *gps.Buffer

	Pipeline *Pipeline
	Sink     Sink
	Player   vario.Player
	Knob     func() uint8
	Active   func() bool // power gate, nil means always on

	Observers []Observer
	Faults    []FaultObserver

	// Sleep replaces time.Sleep, e.g. to run on a virtual clock.
	Sleep func(time.Duration)
}

// NewTask returns a Task with a freshly seeded pipeline.
func NewTask(sensor sensors.Baro, bus sensors.Restarter, clock timesync.Clock) *Task {
	return &Task{
		Sensor:   sensor,
		Bus:      bus,
		Clock:    clock,
		Pipeline: NewPipeline(),
	}
}

// InitBaro probes and calibrates the sensor and takes a first reading. It
// returns the bus address of the chip.
func (t *Task) InitBaro() (uint16, error) {
	if err := t.Sensor.CheckID(); err != nil {
		return 0, fmt.Errorf("check id: %w", err)
	}
	if err := t.Sensor.ReadCalibration(); err != nil {
		return 0, fmt.Errorf("read calibration: %w", err)
	}
	switch s := t.Sensor.(type) {
	case sensors.TwoPhase:
		if err := s.AcquireRawTemperature(); err != nil {
			return 0, fmt.Errorf("first temperature: %w", err)
		}
		s.CalcTemperature()
	case sensors.Combined:
		if err := s.Acquire(); err != nil {
			return 0, fmt.Errorf("first acquire: %w", err)
		}
		s.Calculate()
	default:
		return 0, fmt.Errorf("%s: no acquisition protocol", t.Sensor.Name())
	}
	return t.Sensor.Addr(), nil
}

// Run settles the bus, initialises the sensor and runs cycles until ctx is
// cancelled. A cycle in progress is always completed.
func (t *Task) Run(ctx context.Context) error {
	t.wait(SettleMs * time.Millisecond)
	addr, err := t.InitBaro()
	if err != nil {
		log.Printf("baro: %s ?! (%v)", t.Sensor.Name(), err)
	} else {
		log.Printf("baro: %s @0x%02X", t.Sensor.Name(), addr)
	}

	for ctx.Err() == nil {
		if t.Active != nil && !t.Active() {
			t.wait(IdleMs * time.Millisecond)
			continue
		}
		t.Cycle()
	}
	return nil
}

// Cycle waits for the next slot, takes one measurement and, once the fit
// window is full, produces and distributes the estimate.
func (t *Task) Cycle() (Estimate, bool) {
	phase := t.Clock.MsTime(t.Clock.Now())
	secondHalf := phase >= SlotMs
	wait := SlotMs - int(phase)
	if secondHalf {
		wait = 2*SlotMs - int(phase)
	}
	t.wait(time.Duration(wait) * time.Millisecond)

	sample, tick, err := t.acquire()
	if err != nil {
		if errors.Is(err, errNoPressure) {
			t.Pipeline.Reset()
			t.fault(err)
			return Estimate{}, false
		}
		t.recover(err)
		return Estimate{}, false
	}

	m := Measurement{
		Sample: sample,
		Time:   t.Clock.Time(tick),
		MsTime: t.Clock.MsTime(tick),
	}
	if t.Positions != nil {
		alt, locked := t.Positions.Reference(m.Time)
		m.Calibrate = secondHalf && locked
		m.RefAltitude = alt
	}

	est, ok := t.Pipeline.Input(m)
	if !ok {
		return Estimate{}, false
	}
	if t.Positions != nil {
		_, est.Annotated = t.Positions.Annotate(m.Time, m.MsTime, AnnotateTolerance, func(p *gps.Position) {
			annotate(p, est)
		})
	}

	// The 4 s climb is published but the tone follows the window slope.
	tone := vario.ToneFor(est.ClimbRate, t.knob())
	if t.Player != nil {
		t.Player.Play(tone)
	}
	if t.Sink != nil {
		t.Sink.Emit(est)
	}
	for _, o := range t.Observers {
		o.Observe(est, tone)
	}
	return est, true
}

func (t *Task) wait(d time.Duration) {
	if t.Sleep != nil {
		t.Sleep(d)
		return
	}
	sleep(d)
}

func (t *Task) knob() uint8 {
	if t.Knob == nil {
		return 0
	}
	return t.Knob()
}

// acquire reads one averaged sample and returns the middle of the
// acquisition window.
func (t *Task) acquire() (env.Sample, time.Time, error) {
	switch s := t.Sensor.(type) {
	case sensors.TwoPhase:
		return t.acquireTwoPhase(s)
	case sensors.Combined:
		return t.acquireCombined(s)
	}
	return env.Sample{}, time.Time{}, fmt.Errorf("%s: no acquisition protocol", t.Sensor.Name())
}

func (t *Task) acquireCombined(s sensors.Combined) (env.Sample, time.Time, error) {
	start := t.Clock.Now()
	if err := s.Acquire(); err != nil {
		return env.Sample{}, time.Time{}, err
	}
	s.Calculate()
	first := s.Sample().Pressure
	if err := s.Acquire(); err != nil {
		return env.Sample{}, time.Time{}, err
	}
	s.Calculate()
	end := t.Clock.Now()

	sample := s.Sample()
	sample.Pressure = (first + sample.Pressure) / 2
	return sample, start.Add(end.Sub(start) / 2), nil
}

func (t *Task) acquireTwoPhase(s sensors.TwoPhase) (env.Sample, time.Time, error) {
	start := t.Clock.Now()
	if err := s.AcquireRawTemperature(); err != nil {
		return env.Sample{}, time.Time{}, err
	}
	s.CalcTemperature()

	var sum, count uint32
	end := start
	for i := 0; i < MaxPressureSubs; i++ {
		if err := s.AcquireRawPressure(); err == nil {
			s.CalcPressure()
			sum += s.Sample().Pressure
			count++
		}
		end = t.Clock.Now()
		if end.Sub(start) >= PressureBudget*time.Millisecond {
			break
		}
	}
	if count == 0 {
		return env.Sample{}, time.Time{}, errNoPressure
	}

	sample := s.Sample()
	sample.Pressure = (sum + count/2) / count
	return sample, start.Add(end.Sub(start) / 2), nil
}

// recover handles a sensor fault: the window restarts, the bus is reset
// and the sensor re-initialised. The cycle produces nothing.
func (t *Task) recover(err error) {
	log.Printf("baro: %s fault: %v", t.Sensor.Name(), err)
	t.Pipeline.Reset()
	t.fault(err)
	if t.Bus != nil {
		if rerr := t.Bus.Restart(); rerr != nil {
			log.Printf("baro: bus restart: %v", rerr)
		}
	}
	t.wait(SettleMs * time.Millisecond)
	if _, ierr := t.InitBaro(); ierr != nil {
		log.Printf("baro: re-init: %v", ierr)
	}
}

func (t *Task) fault(err error) {
	for _, f := range t.Faults {
		f.Fault(err)
	}
}

// annotate writes the barometric fields into a position record.
func annotate(p *gps.Position, e Estimate) {
	p.Pressure = uint32(e.Pressure)
	p.StdAltitude = e.StdAltitude
	p.ClimbRate = e.ClimbRate / 10 // 0.1 m/s
	p.Temperature = e.Temperature
	if e.HasHumidity {
		p.Humidity = e.Humidity
		p.HasHum = true
	}
	p.HasBaro = true
}
