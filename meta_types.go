// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package avifinspect

import "fmt"

// ItemID is a 32-bit item id. 16-bit ids read from the bitstream are
// widened to this type (spec §3 "Item").
type ItemID uint32

// Extent is a single (offset, length) byte range belonging to an item's
// iloc entry. Offset has already been summed with the item's base
// offset during parsing (spec §3 "Extent").
type Extent struct {
	Offset     uint64
	Length     uint64
	HasIndex   bool
	Index      uint64
}

// ItemLocation is the parsed iloc record for one item (spec §3 "Item").
type ItemLocation struct {
	Version            uint8
	ConstructionMethod uint8
	DataReferenceIndex uint16
	BaseOffset         uint64
	Extents            []Extent
}

// PropertyAssociation is one (1-based property index, essential flag)
// pair from ipma, in the order it appeared for its item (spec §3
// "Property association").
type PropertyAssociation struct {
	PropertyIndex int
	Essential     bool
}

// Item is a single entry in the item table, keyed by ItemID (spec §3
// "Item").
type Item struct {
	ID ItemID

	// HasType is false for infe v0/v1, which carry no item_type field.
	HasType bool
	Type    fourCC

	Location *ItemLocation

	Associations []PropertyAssociation
}

// PropertyKind tags the variant a Property decodes to (design notes:
// "Polymorphic properties").
type PropertyKind int

const (
	PropertyUnknown PropertyKind = iota
	PropertyIspe
	PropertyPixi
	PropertyAv1C
)

// Ispe is the decoded "ispe" (Image Spatial Extents) property.
type Ispe struct {
	Width, Height uint32
	// DetailsUnavailable is true for non-zero ispe versions, which the
	// core does not decode further (spec §4.C "ispe").
	DetailsUnavailable bool
}

// Pixi is the decoded "pixi" (Pixel Information) property.
type Pixi struct {
	NumChannels uint8
	// Depths holds up to 16 channel bit depths; see Overflow.
	Depths []uint8
	// Overflow is true when NumChannels > len(Depths) (16), i.e. some
	// depths were not retained (spec §4.C "pixi": "store up to 16,
	// remember overflow").
	Overflow bool
}

// Av1C is the decoded "av1C" (AV1 Codec Configuration) property.
type Av1C struct {
	Version                       uint8
	SeqProfile                    uint8
	SeqLevelIdx0                  uint8
	SeqTier0                      uint8
	HighBitdepth                  bool
	TwelveBit                     bool
	Monochrome                    bool
	ChromaSubsamplingX            uint8
	ChromaSubsamplingY            uint8
	ChromaSamplePosition          uint8
	InitialPresentationDelayPresent bool
	InitialPresentationDelayMinus1  uint8
}

// Property is one entry in the property table built from ipco, in
// 1-based-index order (spec §3 "Property").
type Property struct {
	Kind PropertyKind

	Type   fourCC
	Offset int64
	Size   uint64

	Ispe Ispe
	Pixi Pixi
	Av1C Av1C
}

// IdatRef records the location and size of an idat box's payload, used
// to resolve iloc construction method 1 extents (spec glossary "idat").
type IdatRef struct {
	PayloadOffset int64
	PayloadSize   uint64
}

// MetaState is the accumulated, immutable-after-parse result of walking
// the meta box tree (spec §3 "Meta state").
type MetaState struct {
	HasHandler  bool
	HandlerType fourCC

	HasPrimaryItem bool
	PrimaryItemID  ItemID

	HasIdat bool
	Idat    IdatRef

	// Items preserves first-seen order; lookup by id is via ItemIndex.
	Items      []Item
	ItemIndex  map[ItemID]int

	Properties []Property

	// Warnings holds the diagnostic line for each non-fatal anomaly
	// encountered during the walk (supplements spec §3's bare warning
	// count: len(Warnings) is that count).
	Warnings []string

	warnCB func(string, ...any)
}

func newMetaState(warnCB func(string, ...any)) *MetaState {
	return &MetaState{ItemIndex: make(map[ItemID]int), warnCB: warnCB}
}

func (m *MetaState) warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	m.Warnings = append(m.Warnings, msg)
	if m.warnCB != nil {
		m.warnCB(msg)
	}
}

// itemByID returns the item for id and whether it exists.
func (m *MetaState) itemByID(id ItemID) (*Item, bool) {
	idx, ok := m.ItemIndex[id]
	if !ok {
		return nil, false
	}
	return &m.Items[idx], true
}

// getOrCreateItem returns the existing item for id, or appends and
// returns a new zero-value entry.
func (m *MetaState) getOrCreateItem(id ItemID) *Item {
	if idx, ok := m.ItemIndex[id]; ok {
		return &m.Items[idx]
	}
	m.Items = append(m.Items, Item{ID: id})
	m.ItemIndex[id] = len(m.Items) - 1
	return &m.Items[len(m.Items)-1]
}
