// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package output carries finished sentences to the console and the log
// file. Each transport serialises its writers; a writer holds the lock for
// exactly one line.
package output

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	serial "github.com/jacobsa/go-serial/serial"
)

// ErrFull is returned by LogQueue.WriteLine when the line does not fit.
var ErrFull = errors.New("log queue full")

// Transport is a line-oriented writer shared by several tasks.
type Transport struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTransport wraps w.
func NewTransport(w io.Writer) *Transport {
	return &Transport{w: w}
}

// WriteLine writes one complete line under the transport lock.
func (t *Transport) WriteLine(line []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := t.w.Write(line)
	return err
}

// OpenConsole returns the console transport: the given UART, or stdout
// when port is empty. The closer is nil for stdout.
func OpenConsole(port string, baud int) (*Transport, io.Closer, error) {
	if port == "" {
		return NewTransport(os.Stdout), nil, nil
	}
	p, err := serial.Open(serial.OpenOptions{
		PortName:        port,
		BaudRate:        uint(baud),
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
		ParityMode:      serial.PARITY_NONE,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("console serial %s: %w", port, err)
	}
	return NewTransport(p), p, nil
}

// LogQueue buffers lines for a slow writer (an SD card file) and drains
// them from its own goroutine. Free reports the room left so producers can
// skip a line instead of blocking.
type LogQueue struct {
	mu       sync.Mutex
	pending  []byte
	capacity int

	w    io.Writer
	wake chan struct{}
}

// NewLogQueue returns a queue of capacity bytes in front of w. Run must be
// started to drain it.
func NewLogQueue(w io.Writer, capacity int) *LogQueue {
	return &LogQueue{
		pending:  make([]byte, 0, capacity),
		capacity: capacity,
		w:        w,
		wake:     make(chan struct{}, 1),
	}
}

// Free returns the number of bytes that can still be queued.
func (q *LogQueue) Free() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.capacity - len(q.pending)
}

// WriteLine queues a copy of line, or returns ErrFull.
func (q *LogQueue) WriteLine(line []byte) error {
	q.mu.Lock()
	if len(q.pending)+len(line) > q.capacity {
		q.mu.Unlock()
		return ErrFull
	}
	q.pending = append(q.pending, line...)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

// Flush writes everything queued so far.
func (q *LogQueue) Flush() error {
	q.mu.Lock()
	buf := make([]byte, len(q.pending))
	copy(buf, q.pending)
	q.pending = q.pending[:0]
	q.mu.Unlock()

	if len(buf) == 0 {
		return nil
	}
	_, err := q.w.Write(buf)
	return err
}

// Run drains the queue until ctx is cancelled, then flushes what is left.
func (q *LogQueue) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return q.Flush()
		case <-q.wake:
			if err := q.Flush(); err != nil {
				return fmt.Errorf("log write: %w", err)
			}
		}
	}
}
