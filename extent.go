// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package avifinspect

// This file implements component D, the Extent Planner (spec §4.D):
// given the primary item, produce a sequence of (source offset,
// length) byte ranges that reconstitute its payload, or refuse with a
// specific reason.

// ExtractionRange is one (src offset, length) byte range to be copied
// from the AVIF file to an output sink (spec §6 "ExtractionPlan").
type ExtractionRange struct {
	SrcOffset int64
	Length    int64
}

// ExtractionPlan is the ordered extraction plan produced by PlanExtraction.
type ExtractionPlan struct {
	Ranges []ExtractionRange
}

// PlanExtraction implements spec §4.D, checking rules 1-6 in order and
// returning the first violation encountered.
func PlanExtraction(ms *MetaState, fileSize int64) (plan ExtractionPlan, err error) {
	defer recoverStop(&err)

	if !ms.HasPrimaryItem {
		stop(MissingPrimary, "no primary item is set (pitm absent)")
	}
	item, ok := ms.itemByID(ms.PrimaryItemID)
	if !ok {
		stop(MissingPrimary, "primary item id %d has no entry in the item table", ms.PrimaryItemID)
	}

	if !item.HasType || item.Type != fccAv01 {
		stop(NotCodedStill, "primary item %d is not a coded still picture (type %q)", item.ID, item.Type)
	}

	loc := item.Location
	if loc == nil || len(loc.Extents) == 0 {
		stop(NoExtents, "primary item %d has no iloc extents", item.ID)
	}

	if loc.DataReferenceIndex != 0 {
		stop(ExternalData, "primary item %d references external data (data_reference_index=%d)", item.ID, loc.DataReferenceIndex)
	}

	if loc.ConstructionMethod != 0 && loc.ConstructionMethod != 1 {
		stop(UnsupportedConstruction, "primary item %d uses unsupported construction method %d", item.ID, loc.ConstructionMethod)
	}

	ranges := make([]ExtractionRange, 0, len(loc.Extents))
	for i, ext := range loc.Extents {
		if ext.HasIndex {
			stop(UnsupportedExtentIndex, "primary item %d extent %d carries an extent index", item.ID, i)
		}
		if ext.Length == 0 {
			stop(ZeroExtentLength, "primary item %d extent %d has zero length", item.ID, i)
		}

		var src int64
		switch loc.ConstructionMethod {
		case 0:
			src = int64(ext.Offset)
			if src+int64(ext.Length) > fileSize {
				stop(OverrunsParent, "primary item %d extent %d (offset=%d length=%d) overruns file size %d", item.ID, i, ext.Offset, ext.Length, fileSize)
			}
		case 1:
			if !ms.HasIdat {
				stop(OverrunsParent, "primary item %d extent %d uses construction method 1 but no idat box is present", item.ID, i)
			}
			src = ms.Idat.PayloadOffset + int64(ext.Offset)
			if ext.Offset+ext.Length > ms.Idat.PayloadSize {
				stop(OverrunsParent, "primary item %d extent %d (offset=%d length=%d) overruns idat payload size %d", item.ID, i, ext.Offset, ext.Length, ms.Idat.PayloadSize)
			}
		}

		ranges = append(ranges, ExtractionRange{SrcOffset: src, Length: int64(ext.Length)})
	}

	return ExtractionPlan{Ranges: ranges}, nil
}
