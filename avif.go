// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

// Package avifinspect locates, validates, and summarises the data an
// AVIF still-image inspector needs: the HEIF "meta" item table
// (component A-D) and the AV1 Sequence Header (component E-G). It is a
// pure, synchronous, byte-buffer-in/struct-out core; see package doc
// comments on ParseMeta, PlanExtraction, ScanOBUs, and
// DecodeSequenceHeader for the individual components, and Inspect* below
// for the two convenience entry points a thin CLI/presentation layer
// would call.
package avifinspect

// MetaSummary is the read-only view of a parsed meta box that a thin
// presentation layer renders (spec §6 "MetaSummary"). It is derived
// from a *MetaState by Summarize; MetaState itself stays an internal
// parse product since presentation wants a few conveniences (resolved
// primary-item properties, a per-item extent map, a single refusal
// string) that would otherwise require re-walking the item table.
type MetaSummary struct {
	HasHandlerType bool
	HandlerType    fourCC

	HasPrimaryItem bool
	PrimaryItemID  ItemID

	HasIdat bool
	Idat    IdatRef

	Items      []Item
	Properties []Property

	// ItemExtents maps each item with an iloc record to its extent
	// list, keyed by id, for callers that don't want to search Items.
	ItemExtents map[ItemID][]Extent

	// PrimaryItemProperties resolves the primary item's property
	// associations into the actual Property values, in association
	// order. Associations whose index falls outside the property
	// table are silently skipped (spec §3 invariant: "tolerated as
	// unknown during summary printing but produce no crash").
	PrimaryItemProperties []Property

	// ExtractionUnsupportedReason is empty when PlanExtraction would
	// succeed for this meta, and otherwise holds its error message
	// (spec §6: "refusal reason otherwise").
	ExtractionUnsupportedReason string

	Warnings []string
}

// Summarize builds a MetaSummary from a completed MetaState. fileSize is
// needed to evaluate whether extraction would succeed (component D).
func Summarize(ms *MetaState, fileSize int64) MetaSummary {
	s := MetaSummary{
		HasHandlerType: ms.HasHandler,
		HandlerType:    ms.HandlerType,
		HasPrimaryItem: ms.HasPrimaryItem,
		PrimaryItemID:  ms.PrimaryItemID,
		HasIdat:        ms.HasIdat,
		Idat:           ms.Idat,
		Items:          ms.Items,
		Properties:     ms.Properties,
		Warnings:       ms.Warnings,
	}

	s.ItemExtents = make(map[ItemID][]Extent, len(ms.Items))
	for _, it := range ms.Items {
		if it.Location != nil {
			s.ItemExtents[it.ID] = it.Location.Extents
		}
	}

	if item, ok := ms.itemByID(ms.PrimaryItemID); ms.HasPrimaryItem && ok {
		for _, assoc := range item.Associations {
			if assoc.PropertyIndex < 1 || assoc.PropertyIndex > len(ms.Properties) {
				continue
			}
			s.PrimaryItemProperties = append(s.PrimaryItemProperties, ms.Properties[assoc.PropertyIndex-1])
		}
	}

	if _, err := PlanExtraction(ms, fileSize); err != nil {
		s.ExtractionUnsupportedReason = err.Error()
	}

	return s
}

// InspectContainer runs the Meta Walker and Item Table Builder over an
// AVIF/HEIF container buffer and returns its MetaSummary (spec §6
// "AVIF container" input).
func InspectContainer(buf []byte, opts Options) (MetaSummary, error) {
	ms, err := ParseMeta(buf, opts)
	if err != nil {
		return MetaSummary{}, err
	}
	return Summarize(ms, int64(len(buf))), nil
}

// InspectSequenceHeader runs the OBU Scanner over a size-delimited AV1
// OBU stream, requires exactly one Sequence Header OBU, and bit-exactly
// decodes it (spec §6 "AV1 payload" input; spec §4.F: "The caller
// rejects empty/duplicate cases").
func InspectSequenceHeader(obuStream []byte) (SeqHdrSummary, error) {
	idx, err := ScanOBUs(obuStream)
	if err != nil {
		return SeqHdrSummary{}, err
	}
	if !idx.HasSeqHeader {
		return SeqHdrSummary{}, newErr(Unsupported, "no Sequence Header OBU found in stream")
	}
	if idx.TypeCounts[obuSeqHeaderType] > 1 {
		return SeqHdrSummary{}, newErr(Unsupported, "multiple Sequence Header OBUs found in stream")
	}
	payload := obuStream[idx.SeqHeaderOffset : idx.SeqHeaderOffset+idx.SeqHeaderSize]
	return DecodeSequenceHeader(payload)
}
