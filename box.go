// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package avifinspect

// fourCC is a four byte box or item type code, e.g. "meta" or "av01".
type fourCC [4]byte

func (f fourCC) String() string { return string(f[:]) }

var (
	fccFtyp = fourCC{'f', 't', 'y', 'p'}
	fccMeta = fourCC{'m', 'e', 't', 'a'}
	fccHdlr = fourCC{'h', 'd', 'l', 'r'}
	fccPitm = fourCC{'p', 'i', 't', 'm'}
	fccIinf = fourCC{'i', 'i', 'n', 'f'}
	fccInfe = fourCC{'i', 'n', 'f', 'e'}
	fccIloc = fourCC{'i', 'l', 'o', 'c'}
	fccIprp = fourCC{'i', 'p', 'r', 'p'}
	fccIpco = fourCC{'i', 'p', 'c', 'o'}
	fccIpma = fourCC{'i', 'p', 'm', 'a'}
	fccIdat = fourCC{'i', 'd', 'a', 't'}
	fccIspe = fourCC{'i', 's', 'p', 'e'}
	fccPixi = fourCC{'p', 'i', 'x', 'i'}
	fccAv1C = fourCC{'a', 'v', '1', 'C'}
	fccAv01 = fourCC{'a', 'v', '0', '1'}
	fccUUID = fourCC{'u', 'u', 'i', 'd'}
)

// BoxHeader is the immutable record produced by reading a single ISOBMFF
// box header (spec §3 "Box header", §4.A).
type BoxHeader struct {
	// Offset is the byte offset of the box (header start) in the file.
	Offset int64
	// Size is the total box size, header included.
	Size uint64
	// Type is the box's four-byte type code.
	Type fourCC
	// UUID is populated only when Type == "uuid".
	UUID     [16]byte
	HasUUID  bool
	HeaderLen int64
}

// End returns the absolute end offset of the box (Offset + Size).
func (h BoxHeader) End() int64 { return h.Offset + int64(h.Size) }

// PayloadStart returns the offset of the first payload byte.
func (h BoxHeader) PayloadStart() int64 { return h.Offset + h.HeaderLen }

// readBoxHeader implements component A: read a single box header at the
// cursor's current position, bounds-checked against parentEnd and
// fileEnd. On success the cursor is left positioned at the start of the
// box payload.
func readBoxHeader(c *byteCursor, parentEnd, fileEnd int64) BoxHeader {
	start := c.pos()

	size32, ok := c.u32()
	if !ok {
		stopAt(TruncatedHeader, start, fourCC{}, "truncated box header at offset %d", start)
	}
	typeBytes, ok := c.bytes(4)
	if !ok {
		stopAt(TruncatedHeader, start, fourCC{}, "truncated box header at offset %d", start)
	}
	var boxType fourCC
	copy(boxType[:], typeBytes)

	headerLen := int64(8)
	var size uint64

	switch size32 {
	case 1:
		large, ok := c.u64()
		if !ok {
			stopAt(TruncatedHeader, start, boxType, "truncated largesize for box %q at offset %d", boxType, start)
		}
		size = large
		headerLen += 8
	case 0:
		if parentEnd < start {
			stopAt(InvalidSize, start, boxType, "box %q at offset %d extends before its own start", boxType, start)
		}
		size = uint64(parentEnd - start)
	default:
		size = uint64(size32)
	}

	var uuid [16]byte
	hasUUID := false
	if boxType == fccUUID {
		u, ok := c.bytes(16)
		if !ok {
			stopAt(TruncatedHeader, start, boxType, "truncated uuid for box at offset %d", start)
		}
		copy(uuid[:], u)
		hasUUID = true
		headerLen += 16
	}

	if size < uint64(headerLen) {
		stopAt(InvalidSize, start, boxType, "box %q at offset %d has size %d smaller than header length %d", boxType, start, size, headerLen)
	}

	end := start + int64(size)
	if end > parentEnd || end > fileEnd {
		stopAt(OverrunsParent, start, boxType, "box %q at offset %d (size %d) overruns parent/file end", boxType, start, size)
	}

	return BoxHeader{
		Offset:    start,
		Size:      size,
		Type:      boxType,
		UUID:      uuid,
		HasUUID:   hasUUID,
		HeaderLen: headerLen,
	}
}

// readFullBoxHeader reads the 4-byte version/flags prefix common to every
// FullBox (spec glossary "FullBox") and splits it into version and the
// 24-bit flags field.
func readFullBoxHeader(c *byteCursor, box fourCC) (version uint8, flags uint32) {
	start := c.pos()
	vf, ok := c.u32()
	if !ok {
		stopAt(TruncatedHeader, start, box, "truncated FullBox header for %q at offset %d", box, start)
	}
	return uint8(vf >> 24), vf & 0x00FFFFFF
}
