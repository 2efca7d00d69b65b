// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package avifinspect

// Options configures a meta parse. The zero value is usable; defaults
// are applied by withDefaults. Mirrors the teacher's imagemeta.Options
// in spirit: a small struct of callbacks and limits, no file paths or
// environment (spec §6: CLI/env/persisted state are out of scope).
type Options struct {
	// Warnf is called for each non-fatal anomaly (spec §7: e.g. an
	// unsupported infe version). If nil, warnings are still recorded in
	// MetaState.Warnings but no callback fires.
	Warnf func(format string, args ...any)

	// LimitNumItems bounds the declared entry count of each iinf, iloc
	// and ipma box (checked per box, not as a total across boxes),
	// guarding against a crafted declared count driving unbounded
	// vector growth. Default 65536.
	LimitNumItems uint32

	// LimitNumProperties bounds how many ipco property entries a
	// single parse will create. Default 65536.
	LimitNumProperties uint32
}

const (
	defaultLimitNumItems      = 65536
	defaultLimitNumProperties = 65536
)

func (o Options) withDefaults() Options {
	if o.LimitNumItems == 0 {
		o.LimitNumItems = defaultLimitNumItems
	}
	if o.LimitNumProperties == 0 {
		o.LimitNumProperties = defaultLimitNumProperties
	}
	return o
}
