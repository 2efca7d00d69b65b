// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package avifinspect_test

import "encoding/binary"

// Byte-builder helpers for assembling synthetic ISOBMFF box trees in
// tests, in the spirit of the table-driven {name, struct, bin} fixtures
// used elsewhere in the corpus for box round-trips (adapted here to
// this package's plain-struct design, which has no Marshal step to
// round-trip against).

func u16b(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

func u32b(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func u64b(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// beN encodes v in the low n bytes, big-endian (n in 0..8).
func beN(n int, v uint64) []byte {
	b := make([]byte, n)
	for i := n - 1; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

func fullBoxHeader(version uint8, flags uint32) []byte {
	return u32b(uint32(version)<<24 | flags&0x00FFFFFF)
}

// mkBox wraps payload in a plain (non-full) box of the given 4-char type.
func mkBox(typ string, payload []byte) []byte {
	if len(typ) != 4 {
		panic("box type must be 4 chars")
	}
	b := make([]byte, 0, 8+len(payload))
	b = append(b, u32b(uint32(8+len(payload)))...)
	b = append(b, typ...)
	b = append(b, payload...)
	return b
}

// mkFullBox wraps payload behind a FullBox version/flags header, then a
// plain box header, e.g. mkFullBox("pitm", 0, 0, u16b(1)).
func mkFullBox(typ string, version uint8, flags uint32, payload []byte) []byte {
	full := append(fullBoxHeader(version, flags), payload...)
	return mkBox(typ, full)
}

func concat(chunks ...[]byte) []byte {
	var out []byte
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

// ilocEntryV1 builds one iloc item entry for version >= 1, with a
// single extent and no extent index (index_size assumed 0 by the
// caller's nibble byte).
func ilocEntryV1(itemID uint16, constructionMethod uint16, offsetSize, lengthSize, baseOffsetSize int, baseOffset uint64, extentOffset, extentLength uint64) []byte {
	return concat(
		u16b(itemID),
		u16b(constructionMethod&0x0F),
		u16b(0), // data_reference_index
		beN(baseOffsetSize, baseOffset),
		u16b(1), // extent_count
		beN(offsetSize, extentOffset),
		beN(lengthSize, extentLength),
	)
}

func mkIlocV1(offsetSize, lengthSize, baseOffsetSize, indexSize int, entries ...[]byte) []byte {
	payload := []byte{
		byte(offsetSize<<4 | lengthSize),
		byte(baseOffsetSize<<4 | indexSize),
	}
	payload = append(payload, u16b(uint16(len(entries)))...)
	for _, e := range entries {
		payload = append(payload, e...)
	}
	return mkFullBox("iloc", 1, 0, payload)
}

func mkInfeV2(itemID uint16, itemType string) []byte {
	payload := concat(u16b(itemID), u16b(0), []byte(itemType))
	return mkFullBox("infe", 2, 0, payload)
}

func mkInfeV0(itemID uint16) []byte {
	payload := concat(u16b(itemID), u16b(0))
	return mkFullBox("infe", 0, 0, payload)
}

func mkInfeV3(itemID uint32, itemType string) []byte {
	payload := concat(u32b(itemID), u16b(0), []byte(itemType))
	return mkFullBox("infe", 3, 0, payload)
}

func mkIinfV0(infes ...[]byte) []byte {
	payload := concat(u16b(uint16(len(infes))))
	payload = append(payload, concat(infes...)...)
	return mkFullBox("iinf", 0, 0, payload)
}

func mkHdlr(handlerType string) []byte {
	payload := concat(make([]byte, 4), []byte(handlerType), make([]byte, 12))
	return mkFullBox("hdlr", 0, 0, payload)
}

func mkPitmV0(itemID uint16) []byte {
	return mkFullBox("pitm", 0, 0, u16b(itemID))
}

func mkIspe(w, h uint32) []byte {
	return mkFullBox("ispe", 0, 0, concat(u32b(w), u32b(h)))
}

func mkPixi(depths ...uint8) []byte {
	payload := []byte{byte(len(depths))}
	payload = append(payload, depths...)
	return mkFullBox("pixi", 0, 0, payload)
}

func mkAv1C(profile, level, tier uint8, monochrome, sx, sy bool) []byte {
	b0 := byte(0) // version 0
	b1 := profile<<5 | level&0x1F
	var b2 byte
	if tier != 0 {
		b2 |= 1 << 7
	}
	if monochrome {
		b2 |= 1 << 4
	}
	if sx {
		b2 |= 1 << 3
	}
	if sy {
		b2 |= 1 << 2
	}
	b3 := byte(0)
	return mkBox("av1C", []byte{b0, b1, b2, b3})
}

func mkIpco(props ...[]byte) []byte {
	return mkBox("ipco", concat(props...))
}

type ipmaAssoc struct {
	index     int
	essential bool
}

func mkIpmaV0(itemID uint16, assocs ...ipmaAssoc) []byte {
	payload := u32b(1) // entry_count
	payload = append(payload, u16b(itemID)...)
	payload = append(payload, byte(len(assocs)))
	for _, a := range assocs {
		v := byte(a.index & 0x7F)
		if a.essential {
			v |= 0x80
		}
		payload = append(payload, v)
	}
	return mkFullBox("ipma", 0, 0, payload)
}

func mkIprp(children ...[]byte) []byte {
	return mkBox("iprp", concat(children...))
}

func mkMeta(children ...[]byte) []byte {
	payload := append(fullBoxHeader(0, 0), concat(children...)...)
	return mkBox("meta", payload)
}

func mkFtyp() []byte {
	return mkBox("ftyp", concat([]byte("avif"), u32b(0), []byte("avifmif1miaf")))
}

// bitWriter packs MSB-first bits into bytes, mirroring the bit order
// the package's bit reader consumes, for building synthetic AV1
// Sequence Header OBU payloads.
type bitWriter struct {
	bits []bool
}

func (w *bitWriter) writeBit(b bool) {
	w.bits = append(w.bits, b)
}

func (w *bitWriter) writeBits(v uint32, n int) {
	for i := n - 1; i >= 0; i-- {
		w.writeBit((v>>uint(i))&1 == 1)
	}
}

func (w *bitWriter) writeFlag(b bool) {
	w.writeBit(b)
}

func (w *bitWriter) bytes() []byte {
	n := (len(w.bits) + 7) / 8
	out := make([]byte, n)
	for i, b := range w.bits {
		if b {
			out[i/8] |= 1 << uint(7-i%8)
		}
	}
	return out
}

// reducedSeqHeaderPayload builds a minimal reduced_still_picture_header
// Sequence Header OBU payload: profile 0, 8-bit, 4:2:0, BT.601-ish
// description, not sRGB identity.
func reducedSeqHeaderPayload() []byte {
	w := &bitWriter{}
	w.writeBits(0, 3) // seq_profile
	w.writeFlag(true)  // still_picture
	w.writeFlag(true)  // reduced_still_picture_header
	w.writeBits(0, 5)  // seq_level_idx[0]
	w.writeFlag(false) // high_bitdepth
	w.writeFlag(false) // monochrome
	w.writeFlag(true)  // color_description_present_flag
	w.writeBits(1, 8)  // color_primaries
	w.writeBits(6, 8)  // transfer_characteristics
	w.writeBits(6, 8)  // matrix_coefficients
	w.writeFlag(false) // color_range
	// not sRGB identity -> profile 0 -> subsampling 1,1, chroma_sample_position present
	w.writeBits(0, 2)  // chroma_sample_position
	w.writeFlag(false) // separate_uv_delta_q
	return w.bytes()
}

// fullSeqHeaderPayload builds a non-reduced Sequence Header OBU payload
// with a single operating point, 8x8-bit frame dimension fields, screen
// content tools auto-chosen, and 4:2:0 8-bit color.
func fullSeqHeaderPayload() []byte {
	w := &bitWriter{}
	w.writeBits(0, 3)  // seq_profile
	w.writeFlag(false) // still_picture
	w.writeFlag(false) // reduced_still_picture_header
	w.writeFlag(false) // timing_info_present_flag
	w.writeFlag(false) // initial_display_delay_present_flag
	w.writeBits(0, 5)  // operating_points_cnt_minus1

	w.writeBits(0, 12) // operating_point_idc[0]
	w.writeBits(0, 5)  // seq_level_idx[0]

	w.writeBits(7, 4) // frame_width_bits_minus1 -> 8 bits
	w.writeBits(7, 4) // frame_height_bits_minus1 -> 8 bits
	w.writeBits(0, 8) // max_frame_width_minus1
	w.writeBits(0, 8) // max_frame_height_minus1

	w.writeFlag(false) // frame_id_numbers_present_flag
	w.writeFlag(false) // use_128x128_superblock
	w.writeFlag(false) // enable_filter_intra
	w.writeFlag(false) // enable_intra_edge_filter
	w.writeFlag(false) // enable_interintra_compound
	w.writeFlag(false) // enable_masked_compound
	w.writeFlag(false) // enable_warped_motion
	w.writeFlag(false) // enable_dual_filter
	w.writeFlag(false) // enable_order_hint
	w.writeFlag(true)  // seq_choose_screen_content_tools
	w.writeFlag(true)  // seq_choose_integer_mv
	w.writeFlag(false) // enable_superres
	w.writeFlag(false) // enable_cdef
	w.writeFlag(false) // enable_restoration

	w.writeFlag(false) // high_bitdepth
	w.writeFlag(false) // monochrome
	w.writeFlag(false) // color_description_present_flag
	w.writeFlag(false) // color_range
	w.writeBits(0, 2)  // chroma_sample_position
	w.writeFlag(false) // separate_uv_delta_q
	return w.bytes()
}

// srgbIdentitySeqHeaderPayload builds a reduced Sequence Header OBU
// payload using the sRGB identity matrix special case (spec §8 scenario
// 4): color_primaries=1, transfer_characteristics=13,
// matrix_coefficients=0, which forces 4:4:4 regardless of profile.
func srgbIdentitySeqHeaderPayload() []byte {
	w := &bitWriter{}
	w.writeBits(0, 3) // seq_profile
	w.writeFlag(true)  // still_picture
	w.writeFlag(true)  // reduced_still_picture_header
	w.writeBits(0, 5)  // seq_level_idx[0]
	w.writeFlag(false) // high_bitdepth
	w.writeFlag(false) // monochrome
	w.writeFlag(true)  // color_description_present_flag
	w.writeBits(1, 8)  // color_primaries == 1
	w.writeBits(13, 8) // transfer_characteristics == 13
	w.writeBits(0, 8)  // matrix_coefficients == 0
	w.writeFlag(true)  // color_range (full range)
	w.writeFlag(false) // separate_uv_delta_q
	return w.bytes()
}
