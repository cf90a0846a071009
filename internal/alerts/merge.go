package alerts

import (
	"sort"
	"time"

	"github.com/iamkanga/asxtracker-sub003/internal/models"
)

// clientTargetHits synthesizes target hits from the holdings registry against
// the live cache. A target with no direction is treated as an upside target.
func (e *Engine) clientTargetHits(now time.Time) []models.Hit {
	var hits []models.Hit
	for _, holding := range e.holdings.All() {
		if holding.TargetPrice == nil {
			continue
		}
		tick, ok := e.quotes.Get(holding.Code)
		if !ok || tick.Price <= 0 {
			continue
		}

		direction := holding.TargetDirection
		if direction == "" {
			direction = models.DirectionUp
		}
		reached := false
		switch direction {
		case models.DirectionUp:
			reached = tick.Price >= *holding.TargetPrice
		case models.DirectionDown:
			reached = tick.Price <= *holding.TargetPrice
		}
		if !reached {
			continue
		}

		hits = append(hits, e.hitFromTick(tick, models.IntentTarget, direction, "", now, true))
	}
	sortHitsByCode(hits)
	return hits
}

// clientHoldingHiLoHits synthesizes 52-week extreme hits for owned
// instruments from the live cache.
func (e *Engine) clientHoldingHiLoHits(now time.Time) []models.Hit {
	var hits []models.Hit
	for _, holding := range e.holdings.All() {
		tick, ok := e.quotes.Get(holding.Code)
		if !ok {
			continue
		}
		if extreme, ok := tickExtreme(tick); ok {
			hits = append(hits, e.hitFromTick(tick, models.IntentHiLo, "", extreme, now, true))
		}
	}
	sortHitsByCode(hits)
	return hits
}

// clientHoldingMoverHits synthesizes mover candidates for owned instruments.
// Threshold evaluation happens later; this only builds the candidate set.
func (e *Engine) clientHoldingMoverHits(now time.Time) []models.Hit {
	var hits []models.Hit
	for _, holding := range e.holdings.All() {
		tick, ok := e.quotes.Get(holding.Code)
		if !ok {
			continue
		}
		h := e.hitFromTick(tick, models.IntentMover, "", "", now, true)
		if h.Direction == "" {
			continue
		}
		hits = append(hits, h)
	}
	sortHitsByCode(hits)
	return hits
}

// clientGlobalScan hydrates market-wide mover and hi/lo candidates from the
// full live cache. Index and currency rows are dashboard decoration, not
// alertable instruments. Used when the server mover documents look like a
// backend outage.
func (e *Engine) clientGlobalScan(now time.Time) (up, down, high, low []models.Hit) {
	for _, tick := range e.quotes.All() {
		if tick.IsDashboard() || tick.Code == "" {
			continue
		}
		_, isLocal := e.holdings.Get(tick.Code)

		h := e.hitFromTick(tick, models.IntentMover, "", "", now, isLocal)
		switch h.Direction {
		case models.DirectionUp:
			up = append(up, h)
		case models.DirectionDown:
			down = append(down, h)
		}

		if extreme, ok := tickExtreme(tick); ok {
			hl := e.hitFromTick(tick, models.IntentHiLo, "", extreme, now, isLocal)
			if extreme == models.ExtremeHigh {
				high = append(high, hl)
			} else {
				low = append(low, hl)
			}
		}
	}
	// The cache iterates in map order; pin down a deterministic base order
	// before the stable rank sort.
	sortHitsByCode(up)
	sortHitsByCode(down)
	sortHitsByCode(high)
	sortHitsByCode(low)
	return up, down, high, low
}

func (e *Engine) hitFromTick(tick models.PriceTick, intent models.Intent, direction models.Direction, extreme models.Extreme, now time.Time, isLocal bool) models.Hit {
	if direction == "" {
		switch {
		case tick.PctChange > 0 || (tick.PctChange == 0 && tick.Change > 0):
			direction = models.DirectionUp
		case tick.PctChange < 0 || (tick.PctChange == 0 && tick.Change < 0):
			direction = models.DirectionDown
		}
	}
	name := tick.Name
	if holding, ok := e.holdings.Get(tick.Code); ok && name == "" {
		name = holding.Name
	}
	return models.Hit{
		Code:         tick.Code,
		Name:         name,
		Intent:       intent,
		Direction:    direction,
		Extreme:      extreme,
		Price:        tick.Price,
		PctChange:    tick.PctChange,
		DollarChange: tick.Change,
		PrevClose:    tick.PrevClose,
		Industry:     tick.Industry,
		Timestamp:    now,
		Source:       models.SourceClient,
		IsLocal:      isLocal,
	}
}

// tickExtreme reports whether a tick sits at a 52-week boundary.
func tickExtreme(tick models.PriceTick) (models.Extreme, bool) {
	if tick.Price <= 0 {
		return "", false
	}
	if tick.High52 > 0 && tick.Price >= tick.High52 {
		return models.ExtremeHigh, true
	}
	if tick.Low52 > 0 && tick.Price <= tick.Low52 {
		return models.ExtremeLow, true
	}
	return "", false
}

// mergeLocal merges client-synthesized and server-batch personal hits.
// Client data reflects the current tick rather than the morning batch run, so
// on an intent-signature collision the server hit is dropped. Hits are then
// consolidated to one entry per code carrying the full list of matched
// intents.
func mergeLocal(client, server []models.Hit) []models.Hit {
	clientKeys := make(map[string]struct{}, len(client))
	for _, h := range client {
		clientKeys[h.Key()] = struct{}{}
	}

	merged := make([]models.Hit, 0, len(client)+len(server))
	merged = append(merged, client...)
	for _, h := range server {
		if _, dup := clientKeys[h.Key()]; dup {
			continue
		}
		merged = append(merged, h)
	}
	return consolidateByCode(merged)
}

// consolidateByCode folds multiple hits on one code into a single entry. The
// first hit in merge order stays the primary record; every matched intent is
// listed on Matches so the caller can render "mover + target" style badges.
func consolidateByCode(hits []models.Hit) []models.Hit {
	byCode := make(map[string]int, len(hits))
	var out []models.Hit
	for _, h := range hits {
		idx, ok := byCode[h.Code]
		if !ok {
			h.Matches = []models.Intent{h.Intent}
			byCode[h.Code] = len(out)
			out = append(out, h)
			continue
		}
		if !containsIntent(out[idx].Matches, h.Intent) {
			out[idx].Matches = append(out[idx].Matches, h.Intent)
		}
	}
	return out
}

func containsIntent(intents []models.Intent, intent models.Intent) bool {
	for _, i := range intents {
		if i == intent {
			return true
		}
	}
	return false
}

// mergeByCode merges server and client candidates for one global category,
// keyed by code with the client entry winning collisions.
func mergeByCode(server, client []models.Hit) []models.Hit {
	clientCodes := make(map[string]struct{}, len(client))
	for _, h := range client {
		clientCodes[h.Code] = struct{}{}
	}
	out := make([]models.Hit, 0, len(server)+len(client))
	out = append(out, client...)
	for _, h := range server {
		if _, dup := clientCodes[h.Code]; dup {
			continue
		}
		out = append(out, h)
	}
	return out
}

func sortHitsByCode(hits []models.Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Code < hits[j].Code
	})
}

func splitByDirection(hits []models.Hit) (up, down []models.Hit) {
	for _, h := range hits {
		switch h.Direction {
		case models.DirectionUp:
			up = append(up, h)
		case models.DirectionDown:
			down = append(down, h)
		}
	}
	return up, down
}

func splitByExtreme(hits []models.Hit) (high, low []models.Hit) {
	for _, h := range hits {
		switch h.Extreme {
		case models.ExtremeHigh:
			high = append(high, h)
		case models.ExtremeLow:
			low = append(low, h)
		}
	}
	return high, low
}
