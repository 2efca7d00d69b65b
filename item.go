// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package avifinspect

// This file implements component C, the Item Table Builder (spec §4.C):
// hdlr, pitm, iinf/infe, iloc, iprp/ipco/ipma. Each parse* function is
// handed a cursor already positioned at the start of the box's payload
// (i.e. past the generic box header read by component A) and the box's
// BoxHeader for bounds/diagnostics, and either mutates ms in place or
// panics via stop()/stopAt() on a structural or unsupported condition
// (recovered at the ParseMeta boundary in meta.go).

// parseHdlr implements spec §4.C "hdlr". Only handler_type is retained;
// pre_defined is skipped, and reserved and the null-terminated name are
// not consumed.
func parseHdlr(c *byteCursor, ms *MetaState, header BoxHeader) {
	readFullBoxHeader(c, fccHdlr)
	c.skip(4) // pre_defined
	handlerType := c.mustBytes(4, fccHdlr)
	var ht fourCC
	copy(ht[:], handlerType)
	ms.HasHandler = true
	ms.HandlerType = ht
}

// parsePitm implements spec §4.C "pitm".
func parsePitm(c *byteCursor, ms *MetaState, header BoxHeader) {
	version, _ := readFullBoxHeader(c, fccPitm)
	switch version {
	case 0:
		ms.PrimaryItemID = ItemID(c.mustU16(fccPitm))
	case 1:
		ms.PrimaryItemID = ItemID(c.mustU32(fccPitm))
	default:
		stopAt(UnsupportedVersion, header.Offset, fccPitm, "pitm version %d is not supported", version)
	}
	ms.HasPrimaryItem = true
}

// parseIinf implements spec §4.C "iinf": read the FullBox header and
// entry_count, then iterate exactly entry_count infe children.
func parseIinf(c *byteCursor, ms *MetaState, header BoxHeader, fileEnd int64, opts Options) {
	version, _ := readFullBoxHeader(c, fccIinf)
	var count uint32
	switch version {
	case 0:
		count = uint32(c.mustU16(fccIinf))
	case 1:
		count = c.mustU32(fccIinf)
	default:
		stopAt(UnsupportedVersion, header.Offset, fccIinf, "iinf version %d is not supported", version)
	}
	if count > opts.LimitNumItems {
		stopAt(OutOfMemory, header.Offset, fccIinf, "iinf entry_count %d exceeds configured limit %d", count, opts.LimitNumItems)
	}

	boxEnd := header.End()
	var consumed uint32
	for consumed < count {
		if c.pos()+8 > boxEnd {
			stopAt(TruncatedIinf, header.Offset, fccIinf, "iinf declared entry_count %d but only %d child boxes were present", count, consumed)
		}
		child := readBoxHeader(c, boxEnd, fileEnd)
		if child.Type != fccInfe {
			stopAt(TruncatedIinf, header.Offset, fccIinf, "iinf child at offset %d has type %q, want \"infe\"", child.Offset, child.Type)
		}
		parseInfe(c, ms, child)
		c.seek(child.End())
		consumed++
	}
}

// parseInfe implements spec §4.C "infe". Unknown versions are non-fatal:
// a warning is recorded and no item entry is produced for this child
// (spec §7: "allow the walk to continue without producing an entry for
// that item").
func parseInfe(c *byteCursor, ms *MetaState, header BoxHeader) {
	version, _ := readFullBoxHeader(c, fccInfe)

	var id ItemID
	switch {
	case version <= 2:
		id = ItemID(c.mustU16(fccInfe))
	case version == 3:
		id = ItemID(c.mustU32(fccInfe))
	default:
		ms.warnf("infe: unsupported version %d at offset %d, skipping", version, header.Offset)
		return
	}

	c.skip(2) // item_protection_index, ignored

	item := ms.getOrCreateItem(id)

	if version == 2 || version == 3 {
		typeBytes := c.mustBytes(4, fccInfe)
		var it fourCC
		copy(it[:], typeBytes)
		item.HasType = true
		item.Type = it
	}
	// item_name and any further variable-length fields are not consumed;
	// the caller seeks to the box end regardless.
}

// parseIloc implements spec §4.C "iloc".
func parseIloc(c *byteCursor, ms *MetaState, header BoxHeader, opts Options) {
	version, _ := readFullBoxHeader(c, fccIloc)
	if version > 2 {
		stopAt(UnsupportedVersion, header.Offset, fccIloc, "iloc version %d is not supported", version)
	}

	b1 := c.mustU8(fccIloc)
	offsetSize := int(b1 >> 4)
	lengthSize := int(b1 & 0x0F)

	b2 := c.mustU8(fccIloc)
	baseOffsetSize := int(b2 >> 4)
	indexSize := int(b2 & 0x0F)

	var itemCount uint32
	if version < 2 {
		itemCount = uint32(c.mustU16(fccIloc))
	} else {
		itemCount = c.mustU32(fccIloc)
	}
	if itemCount > opts.LimitNumItems {
		stopAt(OutOfMemory, header.Offset, fccIloc, "iloc item_count %d exceeds configured limit %d", itemCount, opts.LimitNumItems)
	}

	for i := uint32(0); i < itemCount; i++ {
		var itemID ItemID
		if version == 2 {
			itemID = ItemID(c.mustU32(fccIloc))
		} else {
			itemID = ItemID(c.mustU16(fccIloc))
		}

		var constructionMethod uint8
		if version >= 1 {
			v := c.mustU16(fccIloc)
			constructionMethod = uint8(v & 0x0F)
		}

		dataRefIdx := c.mustU16(fccIloc)
		baseOffset := c.mustReadBE(baseOffsetSize, fccIloc)
		extentCount := c.mustU16(fccIloc)

		extents := make([]Extent, 0, extentCount)
		for j := uint16(0); j < extentCount; j++ {
			var idx uint64
			hasIdx := false
			if version >= 1 && indexSize > 0 {
				idx = c.mustReadBE(indexSize, fccIloc)
				hasIdx = true
			}
			off := c.mustReadBE(offsetSize, fccIloc)
			length := c.mustReadBE(lengthSize, fccIloc)
			extents = append(extents, Extent{
				Offset:   baseOffset + off,
				Length:   length,
				HasIndex: hasIdx,
				Index:    idx,
			})
		}

		item := ms.getOrCreateItem(itemID)
		item.Location = &ItemLocation{
			Version:            version,
			ConstructionMethod: constructionMethod,
			DataReferenceIndex: dataRefIdx,
			BaseOffset:         baseOffset,
			Extents:            extents,
		}
	}
}

// parseIprp implements spec §4.C "iprp": dispatch ipco and ipma among
// its children, skip anything else.
func parseIprp(c *byteCursor, ms *MetaState, header BoxHeader, fileEnd int64, opts Options) {
	end := header.End()
	for c.pos()+8 <= end {
		child := readBoxHeader(c, end, fileEnd)
		switch child.Type {
		case fccIpco:
			parseIpco(c, ms, child, fileEnd, opts)
		case fccIpma:
			parseIpma(c, ms, child, opts)
		}
		c.seek(child.End())
	}
}

// parseIpco implements spec §4.C "ipco": append one Property per child,
// in order, decoding the structured summary for ispe/pixi/av1C.
func parseIpco(c *byteCursor, ms *MetaState, header BoxHeader, fileEnd int64, opts Options) {
	end := header.End()
	for c.pos()+8 <= end {
		if uint32(len(ms.Properties)) >= opts.LimitNumProperties {
			stopAt(OutOfMemory, header.Offset, fccIpco, "ipco property count exceeds configured limit %d", opts.LimitNumProperties)
		}
		propHeader := readBoxHeader(c, end, fileEnd)
		prop := Property{
			Type:   propHeader.Type,
			Offset: propHeader.Offset,
			Size:   propHeader.Size,
		}

		switch propHeader.Type {
		case fccIspe:
			parseIspe(c, &prop)
		case fccPixi:
			parsePixi(c, &prop)
		case fccAv1C:
			parseAv1C(c, &prop)
		default:
			prop.Kind = PropertyUnknown
		}

		ms.Properties = append(ms.Properties, prop)
		c.seek(propHeader.End())
	}
}

func parseIspe(c *byteCursor, prop *Property) {
	version, _ := readFullBoxHeader(c, fccIspe)
	prop.Kind = PropertyIspe
	if version != 0 {
		prop.Ispe = Ispe{DetailsUnavailable: true}
		return
	}
	w := c.mustU32(fccIspe)
	h := c.mustU32(fccIspe)
	prop.Ispe = Ispe{Width: w, Height: h}
}

func parsePixi(c *byteCursor, prop *Property) {
	readFullBoxHeader(c, fccPixi)
	numChannels := c.mustU8(fccPixi)
	depths := make([]uint8, 0, min(int(numChannels), 16))
	overflow := false
	for i := 0; i < int(numChannels); i++ {
		d := c.mustU8(fccPixi)
		if i < 16 {
			depths = append(depths, d)
		} else {
			overflow = true
		}
	}
	prop.Kind = PropertyPixi
	prop.Pixi = Pixi{NumChannels: numChannels, Depths: depths, Overflow: overflow}
}

func parseAv1C(c *byteCursor, prop *Property) {
	b0 := c.mustU8(fccAv1C)
	b1 := c.mustU8(fccAv1C)
	b2 := c.mustU8(fccAv1C)
	b3 := c.mustU8(fccAv1C)

	prop.Kind = PropertyAv1C
	prop.Av1C = Av1C{
		Version:                         b0 & 0x7F,
		SeqProfile:                      b1 >> 5,
		SeqLevelIdx0:                    b1 & 0x1F,
		SeqTier0:                        (b2 >> 7) & 1,
		HighBitdepth:                    (b2>>6)&1 == 1,
		TwelveBit:                       (b2>>5)&1 == 1,
		Monochrome:                      (b2>>4)&1 == 1,
		ChromaSubsamplingX:              (b2 >> 3) & 1,
		ChromaSubsamplingY:              (b2 >> 2) & 1,
		ChromaSamplePosition:            b2 & 0x3,
		InitialPresentationDelayPresent: (b3>>4)&1 == 1,
		InitialPresentationDelayMinus1:  b3 & 0x0F,
	}
}

// parseIpma implements spec §4.C "ipma".
func parseIpma(c *byteCursor, ms *MetaState, header BoxHeader, opts Options) {
	version, flags := readFullBoxHeader(c, fccIpma)
	if version > 1 {
		stopAt(UnsupportedVersion, header.Offset, fccIpma, "ipma version %d is not supported", version)
	}
	is16BitAssoc := flags&1 != 0

	entryCount := c.mustU32(fccIpma)
	if entryCount > opts.LimitNumItems {
		stopAt(OutOfMemory, header.Offset, fccIpma, "ipma entry_count %d exceeds configured limit %d", entryCount, opts.LimitNumItems)
	}

	for i := uint32(0); i < entryCount; i++ {
		var itemID ItemID
		if version < 1 {
			itemID = ItemID(c.mustU16(fccIpma))
		} else {
			itemID = ItemID(c.mustU32(fccIpma))
		}

		assocCount := c.mustU8(fccIpma)
		assocs := make([]PropertyAssociation, 0, assocCount)
		for j := uint8(0); j < assocCount; j++ {
			var essential bool
			var idx int
			if is16BitAssoc {
				v := c.mustU16(fccIpma)
				essential = v&0x8000 != 0
				idx = int(v & 0x7FFF)
			} else {
				v := c.mustU8(fccIpma)
				essential = v&0x80 != 0
				idx = int(v & 0x7F)
			}
			assocs = append(assocs, PropertyAssociation{PropertyIndex: idx, Essential: essential})
		}

		item := ms.getOrCreateItem(itemID)
		item.Associations = append(item.Associations, assocs...)
	}
}
