// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package avifinspect

// This file implements component B, the Meta Walker (spec §4.B): locate
// the top-level meta box and dispatch its children to component C.

// ParseMeta walks buf as an ISOBMFF file, locates the first top-level
// "meta" box, and builds the item and property tables from it (spec
// §4.B, §4.C). It never performs I/O and never retains buf past return.
func ParseMeta(buf []byte, opts Options) (ms *MetaState, err error) {
	defer recoverStop(&err)

	opts = opts.withDefaults()
	fileEnd := int64(len(buf))
	c := newByteCursor(buf)

	metaHeader, found := findTopLevelMeta(c, fileEnd)
	if !found {
		return nil, newErr(NoMetaBox, "no top-level \"meta\" box found")
	}

	ms = newMetaState(opts.Warnf)
	walkMeta(c, ms, metaHeader, fileEnd, opts)
	return ms, nil
}

// findTopLevelMeta scans top-level boxes starting at offset 0 for the
// first box of type "meta". Running off the end of the file without
// finding one is reported via the found=false return, not a panic; the
// caller turns that into NoMetaBox.
func findTopLevelMeta(c *byteCursor, fileEnd int64) (BoxHeader, bool) {
	for c.pos() < fileEnd {
		header := readBoxHeader(c, fileEnd, fileEnd)
		if header.Type == fccMeta {
			return header, true
		}
		c.seek(header.End())
	}
	return BoxHeader{}, false
}

// walkMeta implements the inner dispatch loop of spec §4.B: read the
// meta FullBox header (version/flags presently ignored), then iterate
// children, dispatching known types to component C and skipping
// everything else silently.
func walkMeta(c *byteCursor, ms *MetaState, metaHeader BoxHeader, fileEnd int64, opts Options) {
	c.seek(metaHeader.PayloadStart())
	readFullBoxHeader(c, fccMeta)

	metaEnd := metaHeader.End()
	for c.pos()+8 <= metaEnd {
		child := readBoxHeader(c, metaEnd, fileEnd)

		switch child.Type {
		case fccHdlr:
			parseHdlr(c, ms, child)
		case fccPitm:
			parsePitm(c, ms, child)
		case fccIinf:
			parseIinf(c, ms, child, fileEnd, opts)
		case fccIloc:
			parseIloc(c, ms, child, opts)
		case fccIprp:
			parseIprp(c, ms, child, fileEnd, opts)
		case fccIdat:
			ms.HasIdat = true
			ms.Idat = IdatRef{
				PayloadOffset: child.PayloadStart(),
				PayloadSize:   child.Size - uint64(child.HeaderLen),
			}
		}

		c.seek(child.End())
	}
}
