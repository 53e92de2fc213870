// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package vario maps climb rate onto the audible variometer tone.
package vario

import "log"

const (
	// BasePeriod is the beep period at the weakest climb and the length of
	// the continuous sink tone [ms].
	BasePeriod = 800

	climbThreshold = 50   // 0.01 m/s
	climbStep      = 50   // one semitone per 0.5 m/s
	maxClimbNote   = 0x0F // reached at 8 m/s
	sinkThreshold  = -100 // 0.01 m/s
	sinkStep       = 100  // one semitone per 1 m/s
	maxSinkNote    = 0x0B
	maxVolume      = 3

	climbBase = 0x10 // first note of the climb table
)

// Tone is what the beeper plays until the next cycle. Note is the packed
// note code: 0x0B down to 0x00 is the sink table (lower for stronger sink),
// 0x10..0x1F the climb table. Silence is the zero Tone.
type Tone struct {
	Volume uint8  `json:"volume"` // 0-3
	Note   uint8  `json:"note"`
	Period uint16 `json:"period_ms"`
	Fill   uint16 `json:"fill_ms"`
}

// Silent reports whether the tone plays nothing.
func (t Tone) Silent() bool { return t.Period == 0 }

// Packed returns volume and note in one byte as the beeper expects them.
func (t Tone) Packed() uint8 { return t.Volume<<6 | t.Note }

// ToneFor returns the tone for a climb rate [0.01 m/s] at the given knob
// position. Volume is knob/2, clamped to the 4 beeper levels. Silence is
// the zero Tone, so it packs to 0x00.
func ToneFor(climb int32, knob uint8) Tone {
	vol := knob >> 1
	if vol > maxVolume {
		vol = maxVolume
	}
	var t Tone

	switch {
	case climb >= climbThreshold:
		note := (climb - climbThreshold) / climbStep
		if note > maxClimbNote {
			note = maxClimbNote
		}
		t.Period = uint16((BasePeriod + note/2) / (1 + note))
		t.Fill = t.Period / 2
		t.Note = uint8(climbBase + note)
		t.Volume = vol
	case climb <= sinkThreshold:
		note := (-climb + sinkThreshold) / sinkStep
		if note > maxSinkNote {
			note = maxSinkNote
		}
		t.Period = BasePeriod
		t.Fill = BasePeriod
		t.Note = uint8(maxSinkNote - note)
		t.Volume = vol
	}
	return t
}

// Player hands a tone to whatever produces the sound.
type Player interface {
	Play(Tone)
}

// LogPlayer logs tone changes. It stands in for a beeper on hosts that have
// none.
type LogPlayer struct {
	last Tone
	set  bool
}

func (p *LogPlayer) Play(t Tone) {
	if p.set && t == p.last {
		return
	}
	p.last, p.set = t, true
	if t.Silent() {
		log.Printf("vario: silent")
		return
	}
	log.Printf("vario: note 0x%02X vol %d period %dms fill %dms", t.Note, t.Volume, t.Period, t.Fill)
}
