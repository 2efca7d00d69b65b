// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package avifinspect

// This file implements component F, the OBU Scanner (spec §4.F): walk a
// size-delimited AV1 OBU stream, index OBUs by type, and locate the
// payload of the first Sequence Header OBU.

const obuSeqHeaderType = 1

// ObuIndex is the result of scanning an OBU stream (spec §6 "ObuIndex").
type ObuIndex struct {
	Count int
	// TypeCounts is indexed by obu_type (0..15).
	TypeCounts [16]int

	HasSeqHeader    bool
	SeqHeaderOffset int64
	SeqHeaderSize   int64

	Warnings []string
}

// ScanOBUs implements spec §4.F. It walks buf from byte 0, treating a
// maximal trailing run of zero bytes as accepted padding rather than a
// stream of zero-type OBUs; zero bytes anywhere else are ordinary OBU
// headers (type 0, reserved).
func ScanOBUs(buf []byte) (idx *ObuIndex, err error) {
	defer recoverStop(&err)

	idx = &ObuIndex{}

	trailingZeroStart := len(buf)
	for trailingZeroStart > 0 && buf[trailingZeroStart-1] == 0 {
		trailingZeroStart--
	}

	pos := 0
	for pos < len(buf) {
		if pos >= trailingZeroStart {
			break
		}

		header := buf[pos]
		if header&0x80 != 0 {
			stopAt(ForbiddenBit, int64(pos), fourCC{}, "obu at offset %d has forbidden bit set", pos)
		}
		obuType := (header >> 3) & 0x0F
		extensionFlag := (header >> 2) & 1
		hasSizeField := (header >> 1) & 1

		cur := pos + 1
		if extensionFlag == 1 {
			if cur >= len(buf) {
				stopAt(PayloadOverrun, int64(pos), fourCC{}, "obu at offset %d truncated in extension header", pos)
			}
			cur++
		}

		if hasSizeField != 1 {
			stopAt(NoSizeField, int64(pos), fourCC{}, "obu at offset %d has has_size_field=0", pos)
		}

		size, n, ok := readLEB128(buf, cur)
		if !ok {
			stopAt(PayloadOverrun, int64(pos), fourCC{}, "obu at offset %d has an invalid or truncated LEB128 size", pos)
		}
		cur += n

		payloadStart := cur
		payloadEnd := payloadStart + int(size)
		if payloadEnd > len(buf) || payloadEnd < payloadStart {
			stopAt(PayloadOverrun, int64(pos), fourCC{}, "obu at offset %d (size %d) overruns the buffer", pos, size)
		}

		idx.Count++
		idx.TypeCounts[obuType]++

		if obuType == obuSeqHeaderType {
			if !idx.HasSeqHeader {
				idx.HasSeqHeader = true
				idx.SeqHeaderOffset = int64(payloadStart)
				idx.SeqHeaderSize = int64(size)
			} else {
				idx.Warnings = append(idx.Warnings, "multiple Sequence Header OBUs present; only the first is indexed")
			}
		}

		pos = payloadEnd
	}

	return idx, nil
}

// readLEB128 reads a little-endian base-128 variable length unsigned
// integer starting at buf[pos] (spec glossary "LEB128"; spec §4.F: at
// most 10 bytes, bit 7 is the continuation flag).
func readLEB128(buf []byte, pos int) (value uint64, n int, ok bool) {
	for n = 0; n < 10; n++ {
		if pos+n >= len(buf) {
			return 0, 0, false
		}
		b := buf[pos+n]
		value |= uint64(b&0x7F) << (7 * uint(n))
		if b&0x80 == 0 {
			return value, n + 1, true
		}
	}
	return 0, 0, false
}
