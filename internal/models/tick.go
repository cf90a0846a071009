// Package models defines the core domain entities: price ticks, hits, rules,
// holdings, and the computed alert feed.
package models

import (
	"strings"
)

// InstrumentType classifies a quoted instrument. Index and currency rows are
// dashboard decoration in the quote feed and are excluded from market-wide
// scans.
type InstrumentType string

const (
	InstrumentEquity   InstrumentType = "equity"
	InstrumentETF      InstrumentType = "etf"
	InstrumentIndex    InstrumentType = "index"
	InstrumentCurrency InstrumentType = "currency"
)

// PriceTick is one live quote as published by the market-data poller. Ticks
// are replaced wholesale on every refresh and are never mutated by consumers.
type PriceTick struct {
	Code      string         `json:"code"`
	Name      string         `json:"name,omitempty"`
	Price     float64        `json:"price"`
	Change    float64        `json:"change"`
	PctChange float64        `json:"pct_change"`
	PrevClose float64        `json:"prev_close"`
	High52    float64        `json:"high_52"`
	Low52     float64        `json:"low_52"`
	DayHigh   float64        `json:"day_high"`
	DayLow    float64        `json:"day_low"`
	Volume    int64          `json:"volume"`
	Industry  string         `json:"industry,omitempty"`
	Type      InstrumentType `json:"type,omitempty"`
}

// IsDashboard reports whether the tick is an index or currency row rather
// than a tradeable instrument.
func (t PriceTick) IsDashboard() bool {
	return t.Type == InstrumentIndex || t.Type == InstrumentCurrency
}

// NormalizeCode canonicalizes an instrument code: trimmed, uppercased, with
// any market-suffix decoration (".AX" and friends) removed. Every map keyed
// by code in this module uses the normalized form.
func NormalizeCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if i := strings.IndexByte(code, '.'); i > 0 {
		code = code[:i]
	}
	return code
}
