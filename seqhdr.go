// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package avifinspect

// This file implements component G, the Sequence Header Decoder (spec
// §4.G): a bit-exact parse of the AV1 Sequence Header OBU payload,
// covering the reduced and non-reduced forms and the color_config
// subset spec.md defines. Fields the spec does not surface in the
// summary (frame dimensions, decoder model timing, chroma sample
// position, ...) are still read, bit for bit, to keep the parse
// synchronized with the bitstream; they are simply discarded.

// SeqHdrSummary is the immutable result of decoding a Sequence Header
// OBU payload (spec §3 "Sequence Header Summary").
type SeqHdrSummary struct {
	SeqProfile                uint8
	StillPicture              bool
	ReducedStillPictureHeader bool
	OperatingPointIdc         uint16

	BitDepth    uint8
	Monochrome  bool
	SubsamplingX uint8
	SubsamplingY uint8

	ColorPrimaries          uint8
	TransferCharacteristics uint8
	MatrixCoefficients      uint8
	FullRange               bool
}

// DecodeSequenceHeader implements spec §4.G.
func DecodeSequenceHeader(payload []byte) (summary SeqHdrSummary, err error) {
	defer recoverStop(&err)

	r := newBitReader(payload)

	summary.SeqProfile = uint8(r.readBits(3))
	summary.StillPicture = r.readFlag()
	summary.ReducedStillPictureHeader = r.readFlag()

	if summary.ReducedStillPictureHeader {
		summary.OperatingPointIdc = 0
		r.readBits(5) // seq_level_idx[0], discarded
		decodeColorConfig(r, &summary)
		return summary, nil
	}

	decoderModelInfoPresent := false
	var bufferDelayLengthMinus1 uint32

	timingInfoPresent := r.readFlag()
	if timingInfoPresent {
		r.readBits(32) // num_units_in_display_tick
		r.readBits(32) // time_scale
		if r.readFlag() { // equal_picture_interval
			r.readUvlc() // num_ticks_per_picture_minus_1
		}
		decoderModelInfoPresent = r.readFlag()
		if decoderModelInfoPresent {
			bufferDelayLengthMinus1 = r.readBits(5)
			r.readBits(32) // num_units_in_decoding_tick
			r.readBits(5)  // buffer_removal_time_length_minus_1
			r.readBits(5)  // frame_presentation_time_length_minus_1
		}
	}

	initialDisplayDelayPresent := r.readFlag()

	operatingPointsCntMinus1 := r.readBits(5)
	for i := uint32(0); i <= operatingPointsCntMinus1; i++ {
		opIdc := r.readBits(12)
		if i == 0 {
			summary.OperatingPointIdc = uint16(opIdc)
		}

		seqLevelIdx := r.readBits(5)
		if seqLevelIdx > 7 {
			r.readBits(1) // seq_tier[i]
		}

		if decoderModelInfoPresent {
			if r.readFlag() { // decoder_model_present_for_this_op[i]
				n := bufferDelayLengthMinus1 + 1
				if n > 32 {
					stop(Unsupported, "sequence header: decoder model buffer delay length %d exceeds 32 bits", n)
				}
				r.readBits(int(n)) // decoder_buffer_delay[i]
				r.readBits(int(n)) // encoder_buffer_delay[i]
				r.readBits(1)      // low_delay_mode_flag[i]
			}
		}

		if initialDisplayDelayPresent {
			if r.readFlag() { // initial_display_delay_present_for_this_op[i]
				r.readBits(4) // initial_display_delay_minus_1[i]
			}
		}
	}

	frameWidthBitsMinus1 := r.readBits(4)
	frameHeightBitsMinus1 := r.readBits(4)
	r.readBits(int(frameWidthBitsMinus1) + 1)  // max_frame_width_minus_1
	r.readBits(int(frameHeightBitsMinus1) + 1) // max_frame_height_minus_1

	if r.readFlag() { // frame_id_numbers_present_flag
		r.readBits(4) // delta_frame_id_length_minus_2
		r.readBits(3) // additional_frame_id_length_minus_1
	}

	r.readFlag() // use_128x128_superblock
	r.readFlag() // enable_filter_intra
	r.readFlag() // enable_intra_edge_filter

	r.readFlag() // enable_interintra_compound
	r.readFlag() // enable_masked_compound
	r.readFlag() // enable_warped_motion
	r.readFlag() // enable_dual_filter

	enableOrderHint := r.readFlag()
	if enableOrderHint {
		r.readFlag() // enable_jnt_comp
		r.readFlag() // enable_ref_frame_mvs
	}

	var seqForceScreenContentTools uint32
	if r.readFlag() { // seq_choose_screen_content_tools
		seqForceScreenContentTools = 2
	} else {
		seqForceScreenContentTools = r.readBits(1)
	}
	if seqForceScreenContentTools > 0 {
		if !r.readFlag() { // seq_choose_integer_mv
			r.readBits(1) // seq_force_integer_mv
		}
	}

	if enableOrderHint {
		r.readBits(3) // order_hint_bits_minus_1
	}

	r.readFlag() // enable_superres
	r.readFlag() // enable_cdef
	r.readFlag() // enable_restoration

	decodeColorConfig(r, &summary)

	return summary, nil
}

// decodeColorConfig implements the color_config(seq_profile) subset
// spec §4.G defines.
func decodeColorConfig(r *bitReader, s *SeqHdrSummary) {
	highBitdepth := r.readFlag()
	twelveBit := false
	if s.SeqProfile == 2 && highBitdepth {
		twelveBit = r.readFlag()
	}

	switch {
	case !highBitdepth:
		s.BitDepth = 8
	case s.SeqProfile == 2 && twelveBit:
		s.BitDepth = 12
	default:
		s.BitDepth = 10
	}

	if s.SeqProfile == 1 {
		s.Monochrome = false
	} else {
		s.Monochrome = r.readFlag()
	}

	if r.readFlag() { // color_description_present_flag
		s.ColorPrimaries = uint8(r.readBits(8))
		s.TransferCharacteristics = uint8(r.readBits(8))
		s.MatrixCoefficients = uint8(r.readBits(8))
	} else {
		s.ColorPrimaries = 2
		s.TransferCharacteristics = 2
		s.MatrixCoefficients = 2
	}

	s.FullRange = r.readFlag() // color_range

	if s.Monochrome {
		s.SubsamplingX, s.SubsamplingY = 1, 1
		return
	}

	if s.ColorPrimaries == 1 && s.TransferCharacteristics == 13 && s.MatrixCoefficients == 0 {
		s.SubsamplingX, s.SubsamplingY = 0, 0
		r.readFlag() // separate_uv_delta_q
		return
	}

	switch s.SeqProfile {
	case 0:
		s.SubsamplingX, s.SubsamplingY = 1, 1
	case 1:
		s.SubsamplingX, s.SubsamplingY = 0, 0
	case 2:
		if s.BitDepth == 12 {
			s.SubsamplingX = uint8(r.readBits(1))
			if s.SubsamplingX == 1 {
				s.SubsamplingY = uint8(r.readBits(1))
			} else {
				s.SubsamplingY = 0
			}
		} else {
			s.SubsamplingX, s.SubsamplingY = 1, 0
		}
	}

	if s.SubsamplingX == 1 && s.SubsamplingY == 1 {
		r.readBits(2) // chroma_sample_position, not surfaced in the summary
	}

	r.readFlag() // separate_uv_delta_q
}
