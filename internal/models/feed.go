package models

import (
	"time"
)

// RawRecord is one undecoded hit record from a batch document or a
// client-synthesized candidate before normalization. Field names vary by
// source; only the normalizer may read them.
type RawRecord map[string]any

// BatchDocuments carries the three server batch documents after tolerant
// decoding. A document that failed to fetch or decode is a nil slice.
type BatchDocuments struct {
	Custom []RawRecord
	Movers []RawRecord
	HiLo   []RawRecord
}

type LocalFeed struct {
	Pinned []Hit `json:"pinned"`
	Fresh  []Hit `json:"fresh"`
}

type GlobalFeed struct {
	MoversUp   []Hit `json:"movers_up"`
	MoversDown []Hit `json:"movers_down"`
	HiLoHigh   []Hit `json:"hilo_high"`
	HiLoLow    []Hit `json:"hilo_low"`
}

// AlertFeed is the full per-pass output, recomputed from scratch on every
// refresh rather than incrementally patched.
type AlertFeed struct {
	Local      LocalFeed  `json:"local"`
	Global     GlobalFeed `json:"global"`
	ComputedAt time.Time  `json:"computed_at"`
}

// GlobalHits returns the four global categories flattened, in feed order.
func (f AlertFeed) GlobalHits() []Hit {
	out := make([]Hit, 0, len(f.Global.MoversUp)+len(f.Global.MoversDown)+len(f.Global.HiLoHigh)+len(f.Global.HiLoLow))
	out = append(out, f.Global.MoversUp...)
	out = append(out, f.Global.MoversDown...)
	out = append(out, f.Global.HiLoHigh...)
	out = append(out, f.Global.HiLoLow...)
	return out
}

// BadgeScope selects which unread watermark an operation applies to.
type BadgeScope string

const (
	ScopeTotal  BadgeScope = "total"
	ScopeCustom BadgeScope = "custom"
)

// Watermarks holds the two independent last-viewed markers. Clearing one
// never affects the other.
type Watermarks struct {
	Total  time.Time `json:"total"`
	Custom time.Time `json:"custom"`
}

type BadgeCounts struct {
	Total  int `json:"total"`
	Custom int `json:"custom"`
}

// PinnedAlert is a user-pinned hit persisted across sessions.
type PinnedAlert struct {
	ID       string    `json:"id"`
	Hit      Hit       `json:"hit"`
	PinnedAt time.Time `json:"pinned_at"`
}
