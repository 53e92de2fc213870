// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package timesync aligns local time to the GNSS clock.
package timesync

import (
	"sync"
	"time"
)

// Clock maps local instants to GNSS-disciplined time.
type Clock interface {
	Now() time.Time
	Time(t time.Time) uint32   // absolute second (Unix)
	MsTime(t time.Time) uint16 // milliseconds into that second, 0-999
}

// Sync is a Clock that follows the local wall clock shifted by the last
// offset measured against the GNSS receiver.
type Sync struct {
	mu       sync.RWMutex
	offset   time.Duration
	adjusted time.Time
}

// NewSync returns a Sync with zero offset.
func NewSync() *Sync {
	return &Sync{}
}

// Adjust records that the GNSS time was ref at local instant local.
func (s *Sync) Adjust(ref, local time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offset = ref.Sub(local)
	s.adjusted = local
}

// Offset returns the current correction and when it was last measured.
func (s *Sync) Offset() (time.Duration, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.offset, s.adjusted
}

func (s *Sync) Now() time.Time { return time.Now() }

func (s *Sync) Time(t time.Time) uint32 {
	return uint32(s.ref(t).Unix())
}

func (s *Sync) MsTime(t time.Time) uint16 {
	return uint16(s.ref(t).Nanosecond() / int(time.Millisecond))
}

func (s *Sync) ref(t time.Time) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return t.Add(s.offset)
}
