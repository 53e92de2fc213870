package gps

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"strings"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	serial "github.com/jacobsa/go-serial/serial"
)

// Adjuster receives GNSS time for local clock alignment.
type Adjuster interface {
	Adjust(ref, local time.Time)
}

// Reader turns an NMEA stream into Position records. GGA supplies the fix,
// RMC supplies the date and drives clock alignment.
type Reader struct {
	Buffer *Buffer
	Clock  Adjuster // optional
	Now    func() time.Time

	// Latency is how long an RMC line takes from the end of the fix second
	// to Handle. It is taken off the local receipt time before alignment.
	Latency time.Duration

	date   nmea.Date
	locked bool
}

// NewReader returns a Reader feeding buf and aligning clock.
func NewReader(buf *Buffer, clock Adjuster) *Reader {
	return &Reader{Buffer: buf, Clock: clock, Now: time.Now}
}

// OpenSerial opens the GNSS UART.
func OpenSerial(port string, baud int) (io.ReadWriteCloser, error) {
	serialOpts := serial.OpenOptions{
		PortName:              port,
		BaudRate:              uint(baud),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	p, err := serial.Open(serialOpts)
	if err != nil {
		return nil, fmt.Errorf("gps serial %s: %w", port, err)
	}
	return p, nil
}

// Run reads sentences from r until ctx is cancelled or r fails.
func (r *Reader) Run(ctx context.Context, src io.Reader) error {
	br := bufio.NewReader(src)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line, err := br.ReadString('\n')
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("gps read: %w", err)
		}
		if err := r.Handle(line); err != nil {
			// noisy GPS or partial sentences
			continue
		}
	}
}

// Handle parses one NMEA line. Non-NMEA lines and sentence types other
// than GGA and RMC are ignored without error.
func (r *Reader) Handle(line string) error {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return nil
	}
	sentence, err := nmea.Parse(line)
	if err != nil {
		return err
	}

	switch sentence.DataType() {
	case nmea.TypeRMC:
		m := sentence.(nmea.RMC)
		if !m.Date.Valid {
			return nil
		}
		r.date = m.Date
		if m.Validity == "A" && m.Time.Valid && r.Clock != nil {
			r.Clock.Adjust(fixTime(m.Date, m.Time), r.Now().Add(-r.Latency))
		}

	case nmea.TypeGGA:
		m := sentence.(nmea.GGA)
		if !r.date.Valid || !m.Time.Valid {
			return nil
		}
		t := fixTime(r.date, m.Time)
		p := Position{
			Sec:        uint32(t.Unix()),
			MSec:       uint16(m.Time.Millisecond),
			Satellites: int(m.NumSatellites),
			Latitude:   m.Latitude,
			Longitude:  m.Longitude,
			Altitude:   int32(math.Round(m.Altitude * 10)),
		}
		if m.FixQuality != nmea.Invalid && m.FixQuality != "" {
			p.FixQuality = m.FixQuality[0] - '0'
		}
		r.Buffer.Push(p)
		if p.Locked() != r.locked {
			r.locked = p.Locked()
			log.Printf("gps: lock=%v (%d satellites)", r.locked, p.Satellites)
		}
	}
	return nil
}

func fixTime(d nmea.Date, t nmea.Time) time.Time {
	return time.Date(2000+d.YY, time.Month(d.MM), d.DD,
		t.Hour, t.Minute, t.Second, t.Millisecond*int(time.Millisecond), time.UTC)
}
