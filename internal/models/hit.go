package models

import (
	"errors"
	"time"
)

// Intent is the alert category a hit belongs to.
type Intent string

const (
	IntentTarget Intent = "target"
	IntentMover  Intent = "mover"
	IntentHiLo   Intent = "hilo"
)

// Direction of a mover or target hit.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// Extreme marks which 52-week boundary a hilo hit touched.
type Extreme string

const (
	ExtremeHigh Extreme = "high"
	ExtremeLow  Extreme = "low"
)

// Source identifies which generation path produced a hit.
type Source string

const (
	SourceServer Source = "server"
	SourceClient Source = "client"
)

// Hit is a normalized alert candidate: one instrument, one intent. Hits are
// immutable once emitted into a feed; a recomputation pass supersedes them
// with fresh instances.
type Hit struct {
	Code         string    `json:"code"`
	Name         string    `json:"name,omitempty"`
	Intent       Intent    `json:"intent"`
	Direction    Direction `json:"direction,omitempty"`
	Extreme      Extreme   `json:"extreme,omitempty"`
	Price        float64   `json:"price"`
	PctChange    float64   `json:"pct_change"`
	DollarChange float64   `json:"dollar_change"`
	PrevClose    float64   `json:"prev_close,omitempty"`
	Industry     string    `json:"industry,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	Source       Source    `json:"source"`
	IsLocal      bool      `json:"is_local"`

	// Matches lists every intent matched by this instrument when several
	// hits for one code were consolidated into a single feed entry.
	Matches []Intent `json:"matches,omitempty"`
}

// Key returns the intent signature used for deduplication and the stable
// first-seen timestamp memo: normalized code plus canonical intent.
func (h Hit) Key() string {
	return h.Code + "|" + string(h.Intent)
}

// Validate checks hit field constraints.
func (h *Hit) Validate() error {
	if h.Code == "" {
		return errors.New("hit code must not be empty")
	}
	if h.Code != NormalizeCode(h.Code) {
		return errors.New("hit code must be normalized")
	}
	switch h.Intent {
	case IntentTarget, IntentMover, IntentHiLo:
	default:
		return errors.New("hit intent must be target, mover, or hilo")
	}
	if h.Intent == IntentHiLo && h.Extreme == "" {
		return errors.New("hilo hit must carry an extreme")
	}
	if h.Price < 0 {
		return errors.New("hit price must not be negative")
	}
	switch h.Source {
	case SourceServer, SourceClient:
	default:
		return errors.New("hit source must be server or client")
	}
	return nil
}

// CanonicalIntent collapses the intent spellings found in raw documents
// ("target-hit", "movers", "52w-high", ...) into the canonical Intent, so
// downstream deduplication never sees source-specific variants.
func CanonicalIntent(raw string) (Intent, bool) {
	switch normalizeIntentToken(raw) {
	case "target", "targethit", "pricetarget":
		return IntentTarget, true
	case "mover", "movers", "move":
		return IntentMover, true
	case "hilo", "hilo52", "52whigh", "52wlow", "52weekhigh", "52weeklow", "high52", "low52":
		return IntentHiLo, true
	}
	return "", false
}

func normalizeIntentToken(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z':
			out = append(out, c+'a'-'A')
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			out = append(out, c)
		}
	}
	return string(out)
}
