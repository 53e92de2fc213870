// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sentence builds the barometer NMEA sentences: $POGNB, $PGRMZ and
// $LK8EX1. Builders append to a caller-owned line buffer so a cycle does
// not allocate once the buffer has grown.
package sentence

import (
	nmea "github.com/adrianmo/go-nmea"
)

// AppendUnsDec appends v in decimal with at least minDigits digits and a
// decimal point decPoint digits from the right: (253, 2, 1) gives "25.3",
// (5, 2, 1) gives "0.5".
func AppendUnsDec(dst []byte, v uint32, minDigits, decPoint int) []byte {
	var digits [12]byte
	n := 0
	for v > 0 || n < minDigits || n <= decPoint {
		digits[n] = byte('0' + v%10)
		v /= 10
		n++
	}
	for i := n - 1; i >= 0; i-- {
		if decPoint > 0 && i == decPoint-1 {
			dst = append(dst, '.')
		}
		dst = append(dst, digits[i])
	}
	return dst
}

// AppendSignDec is AppendUnsDec with a sign. Non-negative values get an
// explicit '+' unless noPlus is set.
func AppendSignDec(dst []byte, v int32, minDigits, decPoint int, noPlus bool) []byte {
	if v < 0 {
		dst = append(dst, '-')
		return AppendUnsDec(dst, uint32(-int64(v)), minDigits, decPoint)
	}
	if !noPlus {
		dst = append(dst, '+')
	}
	return AppendUnsDec(dst, uint32(v), minDigits, decPoint)
}

// AppendChecksum closes the sentence that starts at line[0] == '$' with
// "*XX\r\n".
func AppendChecksum(line []byte) []byte {
	cs := nmea.Checksum(string(line[1:]))
	line = append(line, '*')
	line = append(line, cs...)
	return append(line, '\r', '\n')
}
