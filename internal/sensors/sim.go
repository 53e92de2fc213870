package sensors

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/relabs-tech/baro_vario/internal/atmosphere"
	"github.com/relabs-tech/baro_vario/internal/env"
)

// SimScript describes a simulated flight for bench testing without a chip.
//
// YAML schema (v1):
//
//	version: 1
//	chip: BME280          # name reported in the start-up banner
//	two_phase: false      # true exercises the BMP180-style acquisition path
//	start_alt_m: 500
//	temperature_c: 20     # at start_alt_m, falls 6.5 C/km above it
//	humidity_pct: 45      # 0 means no humidity channel
//	noise_pa: 1.5         # RMS of the gaussian pressure noise
//	seed: 1
//	segments:
//	  - duration: 30s
//	    climb_mps: 2.5
//	  - duration: 20s
//	    climb_mps: -1.5
//	faults:               # every bus access fails inside these windows
//	  - at: 12s
//	    duration: 1s
//	gnss:                 # optional scripted fix, used by the replay
//	  offset_m: 12        # GNSS altitude minus scripted altitude
//	  lock_after: 3s
//
// The altitude holds after the last segment.
type SimScript struct {
	Version        int          `yaml:"version"`
	Chip           string       `yaml:"chip"`
	TwoPhase       bool         `yaml:"two_phase"`
	StartAltitudeM float64      `yaml:"start_alt_m"`
	TemperatureC   float64      `yaml:"temperature_c"`
	HumidityPct    float64      `yaml:"humidity_pct"`
	NoisePa        float64      `yaml:"noise_pa"`
	Seed           int64        `yaml:"seed"`
	Segments       []SimSegment `yaml:"segments"`
	Faults         []SimFault   `yaml:"faults"`
	GNSS           *SimGNSS     `yaml:"gnss"`
}

// SimSegment is a constant climb (negative for sink) lasting Duration.
type SimSegment struct {
	Duration time.Duration `yaml:"duration"`
	ClimbMPS float64       `yaml:"climb_mps"`
}

// SimGNSS scripts a GNSS fix following the flight with a fixed offset.
type SimGNSS struct {
	OffsetM   float64       `yaml:"offset_m"`
	LockAfter time.Duration `yaml:"lock_after"`
}

// SimFault is a window of scenario time during which the chip does not answer.
type SimFault struct {
	At       time.Duration `yaml:"at"`
	Duration time.Duration `yaml:"duration"`
}

// LoadSimScript reads and unmarshals a YAML scenario from path.
func LoadSimScript(path string) (SimScript, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return SimScript{}, err
	}
	return ParseSimScriptYAML(b)
}

// ParseSimScriptYAML parses a YAML scenario.
func ParseSimScriptYAML(b []byte) (SimScript, error) {
	var s SimScript
	if err := yaml.Unmarshal(b, &s); err != nil {
		return SimScript{}, err
	}
	return s, nil
}

func (s *SimScript) validate() error {
	if s.Version == 0 {
		s.Version = 1
	}
	if s.Version != 1 {
		return fmt.Errorf("unsupported scenario version %d", s.Version)
	}
	if s.NoisePa < 0 {
		return fmt.Errorf("noise_pa must not be negative, got %v", s.NoisePa)
	}
	if s.HumidityPct < 0 || s.HumidityPct > 100 {
		return fmt.Errorf("humidity_pct must be 0-100, got %v", s.HumidityPct)
	}
	for i, seg := range s.Segments {
		if seg.Duration <= 0 {
			return fmt.Errorf("segments[%d].duration must be positive", i)
		}
	}
	for i, f := range s.Faults {
		if f.Duration <= 0 {
			return fmt.Errorf("faults[%d].duration must be positive", i)
		}
	}
	if s.Chip == "" {
		s.Chip = "SIM"
	}
	return nil
}

// AltitudeAt returns the scripted altitude in metres at elapsed scenario time.
func (s *SimScript) AltitudeAt(elapsed time.Duration) float64 {
	alt := s.StartAltitudeM
	for _, seg := range s.Segments {
		if elapsed <= 0 {
			break
		}
		d := seg.Duration
		if elapsed < d {
			d = elapsed
		}
		alt += seg.ClimbMPS * d.Seconds()
		elapsed -= d
	}
	return alt
}

// GNSSAt returns the scripted GNSS altitude [0.1 m] at elapsed scenario
// time and whether the fix is locked. Without a gnss section there is
// never a lock.
func (s *SimScript) GNSSAt(elapsed time.Duration) (int32, bool) {
	if s.GNSS == nil || elapsed < s.GNSS.LockAfter {
		return 0, false
	}
	return int32(math.Round((s.AltitudeAt(elapsed) + s.GNSS.OffsetM) * 10)), true
}

func (s *SimScript) faulted(elapsed time.Duration) bool {
	for _, f := range s.Faults {
		if elapsed >= f.At && elapsed < f.At+f.Duration {
			return true
		}
	}
	return false
}

// Sim is the scripted chip. Use NewSim to get it behind the right
// acquisition interface.
type Sim struct {
	script SimScript
	now    func() time.Time
	start  time.Time
	rng    *rand.Rand

	connected bool
	rawT      float64 // °C
	rawP      float64 // Pa
	sample    env.Sample
}

// SimCombined exposes a Sim as a Combined sensor.
type SimCombined struct{ *Sim }

// SimTwoPhase exposes a Sim as a TwoPhase sensor.
type SimTwoPhase struct{ *Sim }

// NewSim validates script and returns a SimCombined or a SimTwoPhase. The
// scenario clock starts at the first now() call.
func NewSim(script SimScript, now func() time.Time) (Baro, error) {
	if err := script.validate(); err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	s := &Sim{
		script: script,
		now:    now,
		start:  now(),
		rng:    rand.New(rand.NewSource(script.Seed)),
	}
	if script.TwoPhase {
		return SimTwoPhase{s}, nil
	}
	return SimCombined{s}, nil
}

func (s *Sim) Name() string       { return s.script.Chip }
func (s *Sim) Addr() uint16       { return 0 }
func (s *Sim) HasHumidity() bool  { return s.script.HumidityPct > 0 }
func (s *Sim) Sample() env.Sample { return s.sample }

func (s *Sim) elapsed() time.Duration { return s.now().Sub(s.start) }

func (s *Sim) CheckID() error {
	if s.script.faulted(s.elapsed()) {
		s.connected = false
		return fmt.Errorf("%s: no answer on probe", s.Name())
	}
	s.connected = true
	return nil
}

func (s *Sim) ReadCalibration() error {
	if !s.connected {
		return ErrNotConnected
	}
	return nil
}

// access fails when the chip is not connected or the script injects a fault;
// a fault drops the connection until the next CheckID.
func (s *Sim) access() error {
	if !s.connected {
		return ErrNotConnected
	}
	if s.script.faulted(s.elapsed()) {
		s.connected = false
		return fmt.Errorf("%s: bus fault", s.Name())
	}
	return nil
}

func (s *Sim) convertTemperature() {
	alt := s.script.AltitudeAt(s.elapsed())
	s.rawT = s.script.TemperatureC - 0.0065*(alt-s.script.StartAltitudeM)
}

func (s *Sim) convertPressure() {
	alt := s.script.AltitudeAt(s.elapsed())
	s.rawP = atmosphere.Pressure(alt) + s.rng.NormFloat64()*s.script.NoisePa
}

func (s *Sim) calcTemperature() {
	s.sample.Source = s.Name()
	s.sample.Temperature = int32(math.Round(s.rawT * 10))
}

func (s *Sim) calcPressure() {
	s.sample.Pressure = uint32(math.Round(s.rawP * 4))
}

func (s SimCombined) Acquire() error {
	if err := s.access(); err != nil {
		return err
	}
	s.convertTemperature()
	s.convertPressure()
	return nil
}

func (s SimCombined) Calculate() {
	s.calcTemperature()
	s.calcPressure()
	if s.HasHumidity() {
		s.sample.Humidity = int32(math.Round(s.script.HumidityPct * 10))
		s.sample.HasHumidity = true
	}
}

func (s SimTwoPhase) AcquireRawTemperature() error {
	if err := s.access(); err != nil {
		return err
	}
	s.convertTemperature()
	return nil
}

func (s SimTwoPhase) CalcTemperature() { s.calcTemperature() }

func (s SimTwoPhase) AcquireRawPressure() error {
	if err := s.access(); err != nil {
		return err
	}
	s.convertPressure()
	return nil
}

func (s SimTwoPhase) CalcPressure() { s.calcPressure() }

// SimBus stands in for the I2C bus when the simulator is selected.
type SimBus struct {
	Restarts int
}

func (b *SimBus) Restart() error {
	b.Restarts++
	return nil
}

var (
	_ Combined = SimCombined{}
	_ TwoPhase = SimTwoPhase{}
)
