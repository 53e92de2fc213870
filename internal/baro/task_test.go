package baro

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/relabs-tech/baro_vario/internal/env"
	"github.com/relabs-tech/baro_vario/internal/gps"
	"github.com/relabs-tech/baro_vario/internal/vario"
)

const testSec = 1780317319

type fakeClock struct{ t time.Time }

func newFakeClock(phaseMs int) *fakeClock {
	return &fakeClock{t: time.Unix(testSec, int64(phaseMs)*int64(time.Millisecond))}
}

func (c *fakeClock) Now() time.Time            { return c.t }
func (c *fakeClock) Time(t time.Time) uint32   { return uint32(t.Unix()) }
func (c *fakeClock) MsTime(t time.Time) uint16 { return uint16(t.Nanosecond() / int(time.Millisecond)) }
func (c *fakeClock) advance(d time.Duration)   { c.t = c.t.Add(d) }

// useClock routes the package sleep through clk and records every wait.
func useClock(t *testing.T, clk *fakeClock) *[]time.Duration {
	var sleeps []time.Duration
	old := sleep
	sleep = func(d time.Duration) {
		sleeps = append(sleeps, d)
		clk.advance(d)
	}
	t.Cleanup(func() { sleep = old })
	return &sleeps
}

// fakeCombined returns Pressure on every conversion; each conversion takes
// 10 ms.
type fakeCombined struct {
	clk      *fakeClock
	Pressure uint32
	Temp     int32
	Fail     bool
	checkIDs int
	sample   env.Sample
}

func (f *fakeCombined) Name() string           { return "FAKE280" }
func (f *fakeCombined) Addr() uint16           { return 0x77 }
func (f *fakeCombined) HasHumidity() bool      { return false }
func (f *fakeCombined) Sample() env.Sample     { return f.sample }
func (f *fakeCombined) ReadCalibration() error { return nil }

func (f *fakeCombined) CheckID() error {
	f.checkIDs++
	return nil
}

func (f *fakeCombined) Acquire() error {
	f.clk.advance(10 * time.Millisecond)
	if f.Fail {
		return errors.New("nack")
	}
	return nil
}

func (f *fakeCombined) Calculate() {
	f.sample = env.Sample{Source: f.Name(), Pressure: f.Pressure, Temperature: f.Temp}
}

// fakeTwoPhase takes 30 ms per pressure conversion.
type fakeTwoPhase struct {
	clk       *fakeClock
	pressures []uint32
	FailP     bool
	calls     int
	sample    env.Sample
}

func (f *fakeTwoPhase) Name() string           { return "FAKE180" }
func (f *fakeTwoPhase) Addr() uint16           { return 0x77 }
func (f *fakeTwoPhase) HasHumidity() bool      { return false }
func (f *fakeTwoPhase) Sample() env.Sample     { return f.sample }
func (f *fakeTwoPhase) CheckID() error         { return nil }
func (f *fakeTwoPhase) ReadCalibration() error { return nil }

func (f *fakeTwoPhase) AcquireRawTemperature() error {
	f.clk.advance(5 * time.Millisecond)
	return nil
}

func (f *fakeTwoPhase) CalcTemperature() { f.sample.Temperature = 215 }

func (f *fakeTwoPhase) AcquireRawPressure() error {
	f.clk.advance(30 * time.Millisecond)
	f.calls++
	if f.FailP {
		return errors.New("timeout")
	}
	return nil
}

func (f *fakeTwoPhase) CalcPressure() {
	f.sample.Pressure = f.pressures[(f.calls-1)%len(f.pressures)]
}

type fakeBus struct{ restarts int }

func (b *fakeBus) Restart() error {
	b.restarts++
	return nil
}

type recorder struct {
	estimates []Estimate
	tones     []vario.Tone
	emitted   int
	played    int
	faults    []error
}

func (r *recorder) Emit(Estimate)   { r.emitted++ }
func (r *recorder) Play(vario.Tone) { r.played++ }
func (r *recorder) Fault(err error) { r.faults = append(r.faults, err) }
func (r *recorder) Observe(e Estimate, t vario.Tone) {
	r.estimates = append(r.estimates, e)
	r.tones = append(r.tones, t)
}

func newTestTask(t *testing.T, phaseMs int) (*Task, *fakeCombined, *fakeBus, *recorder, *[]time.Duration) {
	clk := newFakeClock(phaseMs)
	sleeps := useClock(t, clk)
	sensor := &fakeCombined{clk: clk, Pressure: 4 * 95000, Temp: 150}
	bus := &fakeBus{}
	rec := &recorder{}
	task := NewTask(sensor, bus, clk)
	task.Sink = rec
	task.Player = rec
	task.Observers = []Observer{rec}
	task.Faults = []FaultObserver{rec}
	task.Knob = func() uint8 { return 4 }
	return task, sensor, bus, rec, sleeps
}

func TestCycleWaitsForSlotBoundary(t *testing.T) {
	task, _, _, _, sleeps := newTestTask(t, 200)
	task.Cycle()
	if (*sleeps)[0] != 300*time.Millisecond {
		t.Fatalf("wait from phase 200: got %s", (*sleeps)[0])
	}

	// the cycle ended 20 ms after the 500 ms boundary
	task.Cycle()
	if (*sleeps)[1] != 480*time.Millisecond {
		t.Fatalf("wait from phase 520: got %s", (*sleeps)[1])
	}
}

func TestCycleWarmupIsSilent(t *testing.T) {
	task, _, _, rec, _ := newTestTask(t, 0)
	for i := 0; i < WarmupSamples-1; i++ {
		if _, ok := task.Cycle(); ok {
			t.Fatalf("estimate during warm-up cycle %d", i)
		}
	}
	if rec.emitted != 0 || rec.played != 0 || len(rec.faults) != 0 {
		t.Fatalf("warm-up produced output: %+v", rec)
	}
	if _, ok := task.Cycle(); !ok {
		t.Fatalf("no estimate after warm-up")
	}
	if rec.emitted != 1 || rec.played != 1 || len(rec.estimates) != 1 {
		t.Fatalf("estimate not distributed: %+v", rec)
	}
}

func TestCycleMeasurementTimeIsWindowMiddle(t *testing.T) {
	task, _, _, _, _ := newTestTask(t, 100)
	var est Estimate
	for i := 0; i < WarmupSamples; i++ {
		est, _ = task.Cycle()
	}
	// each cycle: wait to the boundary, then two 10 ms conversions
	if est.Time != testSec+2 || est.MsTime != 10 {
		t.Fatalf("measurement time: %d.%03d", est.Time, est.MsTime)
	}
}

func TestCycleFaultRecovery(t *testing.T) {
	pressures := []uint32{380000, 379990, 379984, 379970, 379968, 379950, 379941, 379936, 379920, 379915}

	ref, refSensor, _, _, _ := newTestTask(t, 0)
	var want Estimate
	for _, p := range pressures {
		refSensor.Pressure = p
		want, _ = ref.Cycle()
	}

	task, sensor, bus, rec, sleeps := newTestTask(t, 0)
	const k = 5
	for i, p := range pressures {
		sensor.Pressure = p
		sensor.Fail = i == k
		est, ok := task.Cycle()
		switch {
		case i == k:
			if ok {
				t.Fatalf("faulted cycle produced an estimate")
			}
			if bus.restarts != 1 || len(rec.faults) != 1 || task.Pipeline.Count() != 0 {
				t.Fatalf("recovery: restarts %d faults %d count %d", bus.restarts, len(rec.faults), task.Pipeline.Count())
			}
			if got := (*sleeps)[len(*sleeps)-1]; got != SettleMs*time.Millisecond {
				t.Fatalf("settle delay: got %s", got)
			}
			if sensor.checkIDs != 1 {
				t.Fatalf("sensor not re-initialised")
			}
		case i > k && i < k+WarmupSamples:
			if ok {
				t.Fatalf("estimate during refill at cycle %d", i)
			}
		case i == k+WarmupSamples:
			if !ok {
				t.Fatalf("no estimate at cycle %d", i)
			}
			if est.Pressure != want.Pressure || est.ClimbRate != want.ClimbRate ||
				est.StdAltitude != want.StdAltitude || est.Temperature != want.Temperature ||
				est.Altitude != want.Altitude {
				t.Fatalf("after recovery got %+v, uninterrupted %+v", est, want)
			}
		}
	}
}

func TestCycleTwoPhaseBudget(t *testing.T) {
	clk := newFakeClock(0)
	useClock(t, clk)
	sensor := &fakeTwoPhase{clk: clk, pressures: []uint32{400000, 400002, 400004, 400006}}
	task := NewTask(sensor, &fakeBus{}, clk)

	var est Estimate
	for i := 0; i < WarmupSamples; i++ {
		sensor.calls = 0
		est, _ = task.Cycle()
		// 5 ms temperature, then 30 ms per pressure until 200 ms have passed
		if sensor.calls != 7 {
			t.Fatalf("cycle %d: %d pressure conversions, want 7", i, sensor.calls)
		}
	}
	// 400000,400002,400004,400006,400000,400002,400004 averages to 400002.57
	if est.Pressure != 400003 || est.Temperature != 215 {
		t.Fatalf("estimate: %+v", est)
	}
	if est.MsTime != 107 {
		t.Fatalf("measurement phase: got %d want 107", est.MsTime)
	}
}

func TestCycleTwoPhaseWithoutPressure(t *testing.T) {
	clk := newFakeClock(0)
	useClock(t, clk)
	sensor := &fakeTwoPhase{clk: clk, pressures: []uint32{400000}}
	bus := &fakeBus{}
	rec := &recorder{}
	task := NewTask(sensor, bus, clk)
	task.Faults = []FaultObserver{rec}

	for i := 0; i < 3; i++ {
		task.Cycle()
	}
	sensor.FailP = true
	sensor.calls = 0
	if _, ok := task.Cycle(); ok {
		t.Fatalf("estimate without pressure")
	}
	if sensor.calls != MaxPressureSubs && sensor.calls != 7 {
		t.Fatalf("pressure attempts: %d", sensor.calls)
	}
	if task.Pipeline.Count() != 0 || bus.restarts != 0 || len(rec.faults) != 1 {
		t.Fatalf("count %d restarts %d faults %d", task.Pipeline.Count(), bus.restarts, len(rec.faults))
	}
}

func TestCycleAnnotatesAndCalibrates(t *testing.T) {
	// measurements land on .500 and .000; records are on whole seconds
	task, _, _, rec, _ := newTestTask(t, 100)
	buf := gps.NewBuffer(8)
	for s := uint32(testSec); s < testSec+8; s++ {
		buf.Push(gps.Position{Sec: s, FixQuality: 1, Altitude: 5454})
	}
	task.Positions = buf

	var est Estimate
	var ok bool
	for i := 0; i < WarmupSamples; i++ {
		est, ok = task.Cycle()
	}
	if !ok || !est.Annotated || !est.Calibrated {
		t.Fatalf("estimate not annotated or calibrated: %+v", est)
	}
	p, res, _ := buf.Closest(est.Time, est.MsTime)
	if res > AnnotateTolerance || !p.HasBaro || p.Pressure != uint32(est.Pressure) ||
		p.StdAltitude != est.StdAltitude || p.ClimbRate != est.ClimbRate/10 || p.Temperature != est.Temperature {
		t.Fatalf("record: %+v (res %d), estimate %+v", p, res, est)
	}

	// cycles alternate between slot halves; only second-half ones calibrate
	calibrated := 0
	for i := 0; i < 4; i++ {
		e, _ := task.Cycle()
		if e.Calibrated {
			calibrated++
		}
	}
	if calibrated != 2 {
		t.Fatalf("calibrated cycles: got %d of 4", calibrated)
	}
	if len(rec.estimates) != 5 {
		t.Fatalf("observed %d estimates", len(rec.estimates))
	}
}

func TestCycleIgnoresStaleFix(t *testing.T) {
	task, _, _, rec, _ := newTestTask(t, 100)
	buf := gps.NewBuffer(8)
	buf.Push(gps.Position{Sec: testSec - 600, FixQuality: 1, Altitude: 5454})
	task.Positions = buf

	for i := 0; i < 40; i++ {
		task.Cycle()
	}
	for _, e := range rec.estimates {
		if e.Calibrated {
			t.Fatalf("calibrated against a 10 minute old fix at %d.%03d", e.Time, e.MsTime)
		}
	}
	if len(rec.estimates) != 40-WarmupSamples+1 {
		t.Fatalf("observed %d estimates", len(rec.estimates))
	}
}

func TestCycleToneFollowsShortTermClimb(t *testing.T) {
	task, sensor, _, rec, _ := newTestTask(t, 0)
	p := uint32(4 * 95000)
	for i := 0; i < 8; i++ {
		sensor.Pressure = p
		task.Cycle()
		p -= 60 // 15 Pa per 0.5 s
	}
	last := rec.estimates[len(rec.estimates)-1]
	want := vario.ToneFor(last.ClimbRate, 4)
	if rec.tones[len(rec.tones)-1] != want {
		t.Fatalf("tone %+v does not follow climb %d", rec.tones[len(rec.tones)-1], last.ClimbRate)
	}
	if want.Silent() {
		t.Fatalf("2.6 m/s climb must beep, climb %d", last.ClimbRate)
	}
}

func TestCycleUsesTaskSleep(t *testing.T) {
	task, _, _, _, sleeps := newTestTask(t, 200)
	clk := task.Clock.(*fakeClock)
	var own []time.Duration
	task.Sleep = func(d time.Duration) {
		own = append(own, d)
		clk.advance(d)
	}
	task.Cycle()
	if len(*sleeps) != 0 || len(own) != 1 || own[0] != 300*time.Millisecond {
		t.Fatalf("package sleeps %v, task sleeps %v", *sleeps, own)
	}
}

func TestRunStopsWhenCancelled(t *testing.T) {
	task, sensor, _, _, sleeps := newTestTask(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	polls := 0
	task.Active = func() bool {
		polls++
		if polls == 3 {
			cancel()
		}
		return false
	}
	if err := task.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sensor.checkIDs != 1 {
		t.Fatalf("Run did not initialise the sensor")
	}
	if (*sleeps)[0] != SettleMs*time.Millisecond || (*sleeps)[1] != IdleMs*time.Millisecond {
		t.Fatalf("sleeps: %v", *sleeps)
	}
}
