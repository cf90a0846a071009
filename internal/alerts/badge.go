package alerts

import (
	"time"

	"github.com/iamkanga/asxtracker-sub003/internal/models"
)

// observeTime returns the stable event time for a hit. The first time an
// intent signature is seen this session, its resolved time is memoized;
// every later pass reuses that value. Without the memo, client-synthesized
// hits would carry a fresh timestamp on every recomputation and flicker back
// to "new" after each tick. The memo is append-only; its key space is
// bounded by the instrument universe, so there is no eviction.
func (e *Engine) observeTime(h models.Hit, now time.Time) time.Time {
	key := h.Key()
	if t, ok := e.seen[key]; ok {
		return t
	}
	t := h.Timestamp
	if t.IsZero() {
		t = now
	}
	e.seen[key] = t
	return t
}

// countsLocked derives the badge pair from a feed and the current
// watermarks. Both counts deduplicate by instrument code, count only hits
// whose stable time is strictly after their scope's watermark, and skip
// zombie entries. Pinned alerts never badge. Caller holds the engine lock.
func (e *Engine) countsLocked(feed models.AlertFeed) models.BadgeCounts {
	now := e.now()
	var counts models.BadgeCounts

	totalCodes := make(map[string]struct{})
	for _, h := range feed.Local.Fresh {
		if isZombie(h) {
			continue
		}
		if e.observeTime(h, now).After(e.marks.Total) {
			totalCodes[h.Code] = struct{}{}
		}
	}
	for _, h := range feed.GlobalHits() {
		if isZombie(h) {
			continue
		}
		if e.observeTime(h, now).After(e.marks.Total) {
			totalCodes[h.Code] = struct{}{}
		}
	}
	counts.Total = len(totalCodes)

	customCodes := make(map[string]struct{})
	for _, h := range feed.Local.Fresh {
		if isZombie(h) {
			continue
		}
		if e.observeTime(h, now).After(e.marks.Custom) {
			customCodes[h.Code] = struct{}{}
		}
	}
	counts.Custom = len(customCodes)

	return counts
}
