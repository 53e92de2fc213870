package baro

import (
	"github.com/relabs-tech/baro_vario/internal/atmosphere"
	"github.com/relabs-tech/baro_vario/internal/filter"
)

// Pipeline holds all estimation state: the slope-fit window, the noise
// filter, the 4 s delay line and the two cross-calibration filters. It is
// owned by a single Task and is not safe for concurrent use.
type Pipeline struct {
	pipe  filter.SlopePipe
	count int

	noise     *filter.LowPass2[int64]
	pressAver *filter.LowPass2[int64] // 0.25 Pa
	altAver   *filter.LowPass2[int64] // 0.1 m
	delay     *filter.Delay[int32]    // 1/16 Pa
}

// NewPipeline returns a seeded pipeline.
func NewPipeline() *Pipeline {
	p := &Pipeline{
		noise:     filter.NewLowPass2[int64](6, 4, 8),
		pressAver: filter.NewLowPass2[int64](10, 9, 12),
		altAver:   filter.NewLowPass2[int64](10, 9, 12),
		delay:     filter.NewDelay[int32](DelayDepth),
	}
	p.Seed()
	return p
}

// Seed puts every filter back to its start-up guess and empties the window.
func (p *Pipeline) Seed() {
	p.pipe.Clear(pipeSeed)
	p.count = 0
	p.noise.Set(noiseSeed)
	p.altAver.Set(altSeed)
	p.pressAver.Set(pressSeed)
	p.delay.Clear(delaySeed)
}

// Reset drops the window count after a fault; the window must be refilled
// with WarmupSamples good samples before estimates resume. Filter state
// is kept.
func (p *Pipeline) Reset() {
	p.count = 0
}

// Count returns the number of samples pushed since the last Reset.
func (p *Pipeline) Count() int { return p.count }

// Input pushes one measurement and, once the window is full, returns the
// estimate for it.
func (p *Pipeline) Input(m Measurement) (Estimate, bool) {
	p.pipe.Input(int32(m.Sample.Pressure))
	if p.count < 255 {
		p.count++
	}
	if p.count < WarmupSamples {
		return Estimate{}, false
	}

	p.pipe.FitSlope()
	plr := atmosphere.PressureLapseRate(int32((m.Sample.Pressure+2)>>2), m.Sample.Temperature)
	climb := int64(p.pipe.Slope) * int64(plr) / climbDiv

	p.pipe.CalcNoise()
	n := p.noise.Process(p.pipe.Noise)
	if n < 0 {
		n = 0
	}
	noise := (filter.IntSqrt(uint64(n)) + 4) >> 3

	aver := p.pipe.Aver // 1/16 Pa
	std := atmosphere.StdAltitude((aver + 8) >> 4)
	climb4s := int64(aver-p.delay.Input(aver)) * int64(plr) / climb4sDiv

	pressure := (aver + 2) >> 2 // 0.25 Pa
	if m.Calibrate {
		p.pressAver.Process(int64(pressure))
		p.altAver.Process(int64(m.RefAltitude))
	}
	pressDiff := int64(pressure) - p.pressAver.Output()
	altDiff := pressDiff * int64(plr) / altDiffDiv

	return Estimate{
		Sensor:      m.Sample.Source,
		Time:        m.Time,
		MsTime:      m.MsTime,
		Pressure:    pressure,
		Temperature: m.Sample.Temperature,
		Humidity:    m.Sample.Humidity,
		HasHumidity: m.Sample.HasHumidity,
		PLR:         plr,
		ClimbRate:   int32(climb),
		ClimbRate4s: int32(climb4s),
		Noise:       uint32(noise),
		StdAltitude: std,
		Altitude:    int32(p.altAver.Output() + altDiff),
		Calibrated:  m.Calibrate,
	}, true
}
