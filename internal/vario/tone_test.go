// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package vario

import "testing"

func TestToneFor(t *testing.T) {
	tests := []struct {
		name  string
		climb int32
		knob  uint8
		want  Tone
	}{
		{"threshold climb", 50, 4, Tone{Volume: 2, Note: 0x10, Period: 800, Fill: 400}},
		{"1 m/s", 100, 4, Tone{Volume: 2, Note: 0x11, Period: 400, Fill: 200}},
		{"2.49 m/s", 249, 4, Tone{Volume: 2, Note: 0x13, Period: 200, Fill: 100}},
		{"8 m/s", 800, 4, Tone{Volume: 2, Note: 0x1F, Period: 50, Fill: 25}},
		{"clamped climb", 2000, 4, Tone{Volume: 2, Note: 0x1F, Period: 50, Fill: 25}},
		{"weak climb", 49, 4, Tone{}},
		{"zero", 0, 4, Tone{}},
		{"weak sink", -99, 4, Tone{}},
		{"threshold sink", -100, 4, Tone{Volume: 2, Note: 0x0B, Period: 800, Fill: 800}},
		{"3 m/s sink", -300, 4, Tone{Volume: 2, Note: 0x09, Period: 800, Fill: 800}},
		{"clamped sink", -5000, 4, Tone{Volume: 2, Note: 0x00, Period: 800, Fill: 800}},
		{"knob 0", 100, 0, Tone{Volume: 0, Note: 0x11, Period: 400, Fill: 200}},
		{"knob clamps volume", 100, 15, Tone{Volume: 3, Note: 0x11, Period: 400, Fill: 200}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToneFor(tt.climb, tt.knob); got != tt.want {
				t.Fatalf("ToneFor(%d, %d) = %+v, want %+v", tt.climb, tt.knob, got, tt.want)
			}
		})
	}
}

func TestToneForIsStateless(t *testing.T) {
	a := ToneFor(300, 6)
	ToneFor(-700, 2)
	if b := ToneFor(300, 6); a != b {
		t.Fatalf("same input gave %+v then %+v", a, b)
	}
}

func TestTonePacked(t *testing.T) {
	if got := ToneFor(100, 6).Packed(); got != 0xD1 {
		t.Fatalf("Packed: got 0x%02X want 0xD1", got)
	}
	if got := ToneFor(0, 6).Packed(); got != 0x00 {
		t.Fatalf("Packed silence: got 0x%02X want 0x00", got)
	}
}

func TestSilenceAndStrongestSinkPackDifferently(t *testing.T) {
	for knob := uint8(2); knob <= 15; knob++ {
		silence, sink := ToneFor(0, knob).Packed(), ToneFor(-5000, knob).Packed()
		if silence != 0x00 || silence == sink {
			t.Fatalf("knob %d: silence 0x%02X, strongest sink 0x%02X", knob, silence, sink)
		}
	}
}

func TestLogPlayerSkipsRepeats(t *testing.T) {
	var p LogPlayer
	p.Play(ToneFor(100, 4))
	p.Play(ToneFor(100, 4))
	if p.last != ToneFor(100, 4) || !p.set {
		t.Fatalf("last tone not tracked: %+v", p.last)
	}
}

func TestToneSilent(t *testing.T) {
	if !ToneFor(10, 4).Silent() {
		t.Fatalf("weak climb must be silent")
	}
	// strongest sink shares note 0 with silence but keeps its period
	if ToneFor(-5000, 4).Silent() {
		t.Fatalf("clamped sink must not be silent")
	}
}
