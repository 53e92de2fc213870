package gps

import (
	"sync"
)

// Position is one per-fix record in the position buffer. The navigation
// fields come from the receiver; the barometric fields are written by the
// barometer task through Buffer.Annotate.
type Position struct {
	Sec  uint32 `json:"sec"`  // Unix second of the fix
	MSec uint16 `json:"msec"` // milliseconds into Sec

	FixQuality uint8   `json:"fix_quality"` // 0 = no fix
	Satellites int     `json:"satellites"`
	Latitude   float64 `json:"lat"`
	Longitude  float64 `json:"lon"`
	Altitude   int32   `json:"alt_dm"` // 0.1 m above MSL

	HasBaro     bool   `json:"has_baro"`
	Pressure    uint32 `json:"pressure_qpa"` // 0.25 Pa
	StdAltitude int32  `json:"std_alt_dm"`   // 0.1 m
	ClimbRate   int32  `json:"climb_dms"`    // 0.1 m/s
	Temperature int32  `json:"temp_dc"`      // 0.1 °C
	HasHum      bool   `json:"has_hum"`
	Humidity    int32  `json:"humidity_dpc"` // 0.1 %RH
}

// Locked reports whether the record carries a valid fix.
func (p *Position) Locked() bool { return p.FixQuality > 0 }

func (p *Position) ms() int64 { return int64(p.Sec)*1000 + int64(p.MSec) }

// DefaultDepth is the number of records a Buffer keeps.
const DefaultDepth = 8

// Buffer is a small ring of recent positions shared between the GNSS
// reader, which pushes records, and the barometer task, which annotates
// them.
type Buffer struct {
	mu    sync.Mutex
	recs  []Position
	used  []bool
	next  int
	last  int
	valid bool
}

// NewBuffer returns a ring holding depth records.
func NewBuffer(depth int) *Buffer {
	if depth < 1 {
		depth = DefaultDepth
	}
	return &Buffer{recs: make([]Position, depth), used: make([]bool, depth)}
}

// Push stores p, evicting the oldest record.
func (b *Buffer) Push(p Position) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recs[b.next] = p
	b.used[b.next] = true
	b.last = b.next
	b.valid = true
	b.next = (b.next + 1) % len(b.recs)
}

// Latest returns a copy of the most recent record.
func (b *Buffer) Latest() (Position, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.valid {
		return Position{}, false
	}
	return b.recs[b.last], true
}

// MaxFixAge is how many seconds the latest record may lag the
// measurement and still count as a current fix.
const MaxFixAge = 2

// Reference returns the altitude of the most recent record [0.1 m] and
// whether that record is a locked fix no older than MaxFixAge at second
// sec. A reader that stopped delivering records unlocks the reference.
func (b *Buffer) Reference(sec uint32) (int32, bool) {
	p, ok := b.Latest()
	if !ok || !p.Locked() {
		return 0, false
	}
	if int64(sec)-int64(p.Sec) > MaxFixAge {
		return 0, false
	}
	return p.Altitude, true
}

// closest returns the index of the record nearest to sec.ms and its
// residual in ms (record time minus requested time). Caller holds mu.
func (b *Buffer) closest(sec uint32, ms uint16) (int, int64, bool) {
	want := int64(sec)*1000 + int64(ms)
	best, bestRes := -1, int64(0)
	for i := range b.recs {
		if !b.used[i] {
			continue
		}
		res := b.recs[i].ms() - want
		if best < 0 || abs64(res) < abs64(bestRes) {
			best, bestRes = i, res
		}
	}
	return best, bestRes, best >= 0
}

// Closest returns a copy of the record nearest in time to sec.ms together
// with the residual in ms.
func (b *Buffer) Closest(sec uint32, ms uint16) (Position, int64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	idx, res, ok := b.closest(sec, ms)
	if !ok {
		return Position{}, 0, false
	}
	return b.recs[idx], res, true
}

// Annotate finds the record nearest to sec.ms and, if it lies within tol
// milliseconds, calls fn with a pointer to it while the buffer is locked.
// fn must not retain the pointer. It returns the residual and whether fn
// ran.
func (b *Buffer) Annotate(sec uint32, ms uint16, tol int64, fn func(*Position)) (int64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	idx, res, ok := b.closest(sec, ms)
	if !ok || abs64(res) > tol {
		return res, false
	}
	fn(&b.recs[idx])
	return res, true
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
