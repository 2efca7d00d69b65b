// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package avifinspect

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestBitReaderReadBits(t *testing.T) {
	c := qt.New(t)

	// 0b10110000 -> bits: 1,0,1,1,0,0,0,0
	r := newBitReader([]byte{0b10110000})
	c.Assert(r.readBit(), qt.Equals, uint32(1))
	c.Assert(r.readBits(3), qt.Equals, uint32(0b011))
	c.Assert(r.readBits(4), qt.Equals, uint32(0b0000))
}

func TestBitReaderCrossesByteBoundary(t *testing.T) {
	c := qt.New(t)

	r := newBitReader([]byte{0xFF, 0x00})
	c.Assert(r.readBits(12), qt.Equals, uint32(0xFF0))
}

func TestBitReaderEndOfStream(t *testing.T) {
	c := qt.New(t)

	r := newBitReader([]byte{0xFF})
	r.readBits(8)
	err := catchStop(func() { r.readBit() })
	c.Assert(err, qt.Not(qt.IsNil))
	code, ok := CodeOf(err)
	c.Assert(ok, qt.IsTrue)
	c.Assert(code, qt.Equals, TruncatedHeader)
}

// The three worked examples from spec §8.
func TestReadUvlcWorkedExamples(t *testing.T) {
	c := qt.New(t)

	// 0b1000... (a single leading 1) -> 0.
	r := newBitReader([]byte{0b10000000})
	c.Assert(r.readUvlc(), qt.Equals, uint32(0))

	// 0b01x -> 1 + x, for x in {0,1}.
	r = newBitReader([]byte{0b0110_0000})
	c.Assert(r.readUvlc(), qt.Equals, uint32(2)) // leading=1, x=1 -> 1+1=2

	r = newBitReader([]byte{0b0100_0000})
	c.Assert(r.readUvlc(), qt.Equals, uint32(1)) // leading=1, x=0 -> 1+0=1

	// 0b001xy -> 3 + (x<<1|y).
	r = newBitReader([]byte{0b0011_1000})
	c.Assert(r.readUvlc(), qt.Equals, uint32(6)) // leading=2, x=1,y=1 -> 3+3=6

	r = newBitReader([]byte{0b0010_0000})
	c.Assert(r.readUvlc(), qt.Equals, uint32(3)) // leading=2, x=0,y=0 -> 3+0=3
}

func TestReadUvlcTooLong(t *testing.T) {
	c := qt.New(t)

	// 32 zero bits with no terminating 1 within the cap.
	r := newBitReader(make([]byte, 8))
	err := catchStop(func() { r.readUvlc() })
	c.Assert(err, qt.Not(qt.IsNil))
	code, ok := CodeOf(err)
	c.Assert(ok, qt.IsTrue)
	c.Assert(code, qt.Equals, UvlcTooLong)
}

// catchStop runs f, recovering an errStop panic into a plain error the
// way every exported entry point in this package does.
func catchStop(f func()) (err error) {
	defer recoverStop(&err)
	f()
	return nil
}
