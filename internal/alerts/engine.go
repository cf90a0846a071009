// Package alerts implements the alert aggregation engine: it reconciles
// server-batched daily hit documents with client-computed real-time
// candidates into one deduplicated, noise-filtered, threshold-gated,
// deterministically ordered alert feed, plus the derived unread badge
// counts. The engine performs no I/O of its own; it reads snapshot views of
// the quote cache, holdings registry, rule store, and batch documents, and
// recomputes the whole feed from scratch on every pass. A newer pass simply
// supersedes the previous feed.
package alerts

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iamkanga/asxtracker-sub003/internal/logger"
	"github.com/iamkanga/asxtracker-sub003/internal/models"
)

// DefaultSparseThreshold is the combined up+down mover count below which the
// server batch documents are treated as a backend outage.
const DefaultSparseThreshold = 20

// QuoteView is the read-only live-price cache.
type QuoteView interface {
	Get(code string) (models.PriceTick, bool)
	All() []models.PriceTick
	Len() int
}

// HoldingsView is the read-only user instrument registry.
type HoldingsView interface {
	Get(code string) (models.Holding, bool)
	All() []models.Holding
}

// RuleView supplies the current rule snapshot at evaluation time.
type RuleView interface {
	Current() models.Rule
}

// Store persists pins and viewed watermarks across sessions.
type Store interface {
	LoadWatermarks() (models.Watermarks, error)
	SaveWatermark(scope models.BadgeScope, viewedAt time.Time) error
	GetPinnedAlerts() ([]models.PinnedAlert, error)
	AddPinnedAlert(pin *models.PinnedAlert) error
	RemovePinnedAlert(id string) error
}

// Options configures an Engine.
type Options struct {
	// User filters the custom batch document; records naming a different
	// user are dropped. Empty disables the filter.
	User string
	// SparseThreshold overrides DefaultSparseThreshold when positive.
	SparseThreshold int
}

// Engine owns the recomputation pipeline and the small amount of session
// state it needs: the current batch documents, the pinned alerts, the viewed
// watermarks, and the stable first-seen timestamp memo.
type Engine struct {
	user            string
	sparseThreshold int

	quotes   QuoteView
	holdings HoldingsView
	rules    RuleView
	store    Store

	mu       sync.Mutex
	docs     models.BatchDocuments
	feed     models.AlertFeed
	marks    models.Watermarks
	pins     []models.PinnedAlert
	seen     map[string]time.Time
	onChange []func(models.AlertFeed, models.BadgeCounts)
	now      func() time.Time
}

// New creates an engine over the given views. A nil store disables pin and
// watermark persistence. Persisted state that fails to load degrades to
// empty rather than failing construction.
func New(quotes QuoteView, holdings HoldingsView, rules RuleView, store Store, opts Options) *Engine {
	e := &Engine{
		user:            opts.User,
		sparseThreshold: opts.SparseThreshold,
		quotes:          quotes,
		holdings:        holdings,
		rules:           rules,
		store:           store,
		seen:            make(map[string]time.Time),
		now:             time.Now,
	}
	if e.sparseThreshold <= 0 {
		e.sparseThreshold = DefaultSparseThreshold
	}

	if store != nil {
		marks, err := store.LoadWatermarks()
		if err != nil {
			logger.Warn("Failed to load watermarks: %v", err)
		} else {
			e.marks = marks
		}
		pins, err := store.GetPinnedAlerts()
		if err != nil {
			logger.Warn("Failed to load pinned alerts: %v", err)
		} else {
			e.pins = pins
			logger.Info("Loaded %d pinned alerts", len(pins))
		}
	}
	return e
}

// UpdateDocuments replaces the batch document snapshot and recomputes.
func (e *Engine) UpdateDocuments(docs models.BatchDocuments) {
	e.mu.Lock()
	e.docs = docs
	feed, counts, subs := e.publishLocked()
	e.mu.Unlock()
	fire(subs, feed, counts)
}

// Refresh recomputes the feed from the current inputs. Call it after the
// quote cache or the rule changes.
func (e *Engine) Refresh() {
	e.mu.Lock()
	feed, counts, subs := e.publishLocked()
	e.mu.Unlock()
	fire(subs, feed, counts)
}

// LocalAlerts recomputes and returns the personal feed.
func (e *Engine) LocalAlerts() models.LocalFeed {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.computeLocked(false).Local
}

// GlobalAlerts recomputes and returns the market-wide feed. bypassStrict is
// the diagnostic mode: categories without configured thresholds pass
// through, and the movers-enabled switch is ignored. Noise gates always
// apply.
func (e *Engine) GlobalAlerts(bypassStrict bool) models.GlobalFeed {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.computeLocked(bypassStrict).Global
}

// BadgeCounts recomputes the feed and derives the unread badge pair.
func (e *Engine) BadgeCounts() models.BadgeCounts {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.countsLocked(e.computeLocked(false))
}

// Feed returns the last published feed.
func (e *Engine) Feed() models.AlertFeed {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.feed
}

// Pin persists a hit into the pinned list. Pinning a code+intent that is
// already pinned returns the existing pin.
func (e *Engine) Pin(hit models.Hit) (models.PinnedAlert, error) {
	hit.Code = models.NormalizeCode(hit.Code)
	if err := hit.Validate(); err != nil {
		return models.PinnedAlert{}, fmt.Errorf("cannot pin: %w", err)
	}

	e.mu.Lock()
	for _, p := range e.pins {
		if p.Hit.Key() == hit.Key() {
			e.mu.Unlock()
			return p, nil
		}
	}

	pin := models.PinnedAlert{ID: uuid.NewString(), Hit: hit, PinnedAt: e.now()}
	if pin.Hit.Timestamp.IsZero() {
		pin.Hit.Timestamp = pin.PinnedAt
	}
	if e.store != nil {
		if err := e.store.AddPinnedAlert(&pin); err != nil {
			e.mu.Unlock()
			return models.PinnedAlert{}, err
		}
	}
	e.pins = append([]models.PinnedAlert{pin}, e.pins...)
	feed, counts, subs := e.publishLocked()
	e.mu.Unlock()
	fire(subs, feed, counts)
	return pin, nil
}

// Unpin removes the pin matching the hit's code and intent.
func (e *Engine) Unpin(hit models.Hit) error {
	hit.Code = models.NormalizeCode(hit.Code)
	key := hit.Key()

	e.mu.Lock()
	idx := -1
	for i, p := range e.pins {
		if p.Hit.Key() == key {
			idx = i
			break
		}
	}
	if idx < 0 {
		e.mu.Unlock()
		return fmt.Errorf("no pinned alert for %s", key)
	}
	if e.store != nil {
		if err := e.store.RemovePinnedAlert(e.pins[idx].ID); err != nil {
			e.mu.Unlock()
			return err
		}
	}
	e.pins = append(e.pins[:idx], e.pins[idx+1:]...)
	feed, counts, subs := e.publishLocked()
	e.mu.Unlock()
	fire(subs, feed, counts)
	return nil
}

// MarkViewed stamps one scope's watermark with the current time. The two
// scopes are independent: dismissing one never touches the other.
func (e *Engine) MarkViewed(scope models.BadgeScope) error {
	switch scope {
	case models.ScopeTotal, models.ScopeCustom:
	default:
		return fmt.Errorf("unknown badge scope: %s", scope)
	}

	e.mu.Lock()
	now := e.now()
	if e.store != nil {
		if err := e.store.SaveWatermark(scope, now); err != nil {
			e.mu.Unlock()
			return err
		}
	}
	if scope == models.ScopeTotal {
		e.marks.Total = now
	} else {
		e.marks.Custom = now
	}
	feed, counts, subs := e.publishLocked()
	e.mu.Unlock()
	fire(subs, feed, counts)
	return nil
}

// OnChange registers a callback fired after every recomputation with the new
// feed and badge counts.
func (e *Engine) OnChange(fn func(models.AlertFeed, models.BadgeCounts)) {
	e.mu.Lock()
	e.onChange = append(e.onChange, fn)
	e.mu.Unlock()
}

// SelfTestReport compares strict and bypass population of one category.
type SelfTestReport struct {
	Category string
	Strict   int
	Bypass   int
}

// SelfTest evaluates the global feed in both strict and bypass modes and
// logs where they disagree. Mismatches are expected whenever thresholds are
// gating; the report exists so a silent feed can be told apart from an
// over-aggressive rule.
func (e *Engine) SelfTest() []SelfTestReport {
	e.mu.Lock()
	strict := e.computeLocked(false).Global
	bypass := e.computeLocked(true).Global
	e.mu.Unlock()

	reports := []SelfTestReport{
		{Category: "movers_up", Strict: len(strict.MoversUp), Bypass: len(bypass.MoversUp)},
		{Category: "movers_down", Strict: len(strict.MoversDown), Bypass: len(bypass.MoversDown)},
		{Category: "hilo_high", Strict: len(strict.HiLoHigh), Bypass: len(bypass.HiLoHigh)},
		{Category: "hilo_low", Strict: len(strict.HiLoLow), Bypass: len(bypass.HiLoLow)},
	}
	for _, r := range reports {
		if r.Strict != r.Bypass {
			logger.Info("Self-test %s: strict=%d bypass=%d (%d gated by rule)",
				r.Category, r.Strict, r.Bypass, r.Bypass-r.Strict)
		} else {
			logger.Debug("Self-test %s: strict and bypass agree at %d", r.Category, r.Strict)
		}
	}
	return reports
}

// publishLocked recomputes the feed, stores it as current, and returns the
// values plus subscriber list to notify after the lock is released.
func (e *Engine) publishLocked() (models.AlertFeed, models.BadgeCounts, []func(models.AlertFeed, models.BadgeCounts)) {
	feed := e.computeLocked(false)
	e.feed = feed
	counts := e.countsLocked(feed)
	subs := append(([]func(models.AlertFeed, models.BadgeCounts))(nil), e.onChange...)
	return feed, counts, subs
}

func fire(subs []func(models.AlertFeed, models.BadgeCounts), feed models.AlertFeed, counts models.BadgeCounts) {
	for _, fn := range subs {
		fn(feed, counts)
	}
}

// computeLocked rebuilds the whole feed from the current input snapshots.
func (e *Engine) computeLocked(bypass bool) models.AlertFeed {
	now := e.now()
	rule := e.rules.Current()
	ec := evalContext{
		strict:    !bypass,
		whitelist: rule.IndustryWhitelist(),
		industry: func(code string) string {
			if tick, ok := e.quotes.Get(code); ok {
				return tick.Industry
			}
			return ""
		},
		muted: func(code string) bool {
			holding, ok := e.holdings.Get(code)
			return ok && holding.Muted
		},
	}

	return models.AlertFeed{
		Local:      e.computeLocalLocked(ec, rule, now),
		Global:     e.computeGlobalLocked(ec, rule, bypass, now),
		ComputedAt: now,
	}
}

// computeLocalLocked builds the personal feed: client-side candidates in
// fixed order (targets, 52-week extremes, implicit movers) merged with the
// user's server custom hits, client winning signature collisions.
func (e *Engine) computeLocalLocked(ec evalContext, rule models.Rule, now time.Time) models.LocalFeed {
	client := ec.evaluateTargets(e.clientTargetHits(now))
	client = append(client, ec.evaluateHiLo(e.clientHoldingHiLoHits(now), rule.HiLoMinPrice)...)
	if rule.MoversEnabled {
		up, down := splitByDirection(e.clientHoldingMoverHits(now))
		client = append(client, ec.evaluateMovers(up, rule.Up, rule.MinPrice)...)
		client = append(client, ec.evaluateMovers(down, rule.Down, rule.MinPrice)...)
	}

	server := e.serverCustomHits(ec, rule, now)

	return models.LocalFeed{
		Pinned: e.pinnedHitsLocked(),
		Fresh:  mergeLocal(client, server),
	}
}

// serverCustomHits normalizes the custom batch document, drops records owned
// by other users, and applies the per-intent gates in document order.
func (e *Engine) serverCustomHits(ec evalContext, rule models.Rule, now time.Time) []models.Hit {
	if len(e.docs.Custom) == 0 {
		return nil
	}

	raws := make([]models.RawRecord, 0, len(e.docs.Custom))
	for _, raw := range e.docs.Custom {
		if raw == nil {
			continue
		}
		if user, ok := recordUser(raw); ok && e.user != "" && user != e.user {
			continue
		}
		raws = append(raws, raw)
	}

	hits := normalizeRecords(raws, models.IntentTarget, models.SourceServer, e.quotes, e.holdings, now)

	var out []models.Hit
	for _, h := range hits {
		// Custom-document hits are personal by definition.
		h.IsLocal = true
		switch h.Intent {
		case models.IntentTarget:
			if !ec.targetPasses(h) {
				continue
			}
		case models.IntentHiLo:
			if !ec.hiloPasses(h, rule.HiLoMinPrice) {
				continue
			}
		case models.IntentMover:
			if !rule.MoversEnabled {
				continue
			}
			pair := rule.Up
			if h.Direction == models.DirectionDown {
				pair = rule.Down
			}
			if !ec.moverPasses(h, pair, rule.MinPrice) {
				continue
			}
		}
		out = append(out, h)
	}
	return out
}

// computeGlobalLocked builds the market-wide feed. A sparse server mover set
// signals a backend outage: candidates are then hydrated from a full cache
// scan and merged with whatever the server did deliver, client entries
// winning per code.
func (e *Engine) computeGlobalLocked(ec evalContext, rule models.Rule, bypass bool, now time.Time) models.GlobalFeed {
	up, down := splitByDirection(
		normalizeRecords(e.docs.Movers, models.IntentMover, models.SourceServer, e.quotes, e.holdings, now))
	high, low := splitByExtreme(
		normalizeRecords(e.docs.HiLo, models.IntentHiLo, models.SourceServer, e.quotes, e.holdings, now))

	if len(up)+len(down) < e.sparseThreshold {
		cUp, cDown, cHigh, cLow := e.clientGlobalScan(now)
		up = mergeByCode(up, cUp)
		down = mergeByCode(down, cDown)
		high = mergeByCode(high, cHigh)
		low = mergeByCode(low, cLow)
	}

	var g models.GlobalFeed
	if rule.MoversEnabled || bypass {
		g.MoversUp = ec.evaluateMovers(up, rule.Up, rule.MinPrice)
		g.MoversDown = ec.evaluateMovers(down, rule.Down, rule.MinPrice)
	}
	g.HiLoHigh = ec.evaluateHiLo(high, rule.HiLoMinPrice)
	g.HiLoLow = ec.evaluateHiLo(low, rule.HiLoMinPrice)

	rankGainers(g.MoversUp, e.quotes)
	rankLosers(g.MoversDown, e.quotes)
	rankGainers(g.HiLoHigh, e.quotes)
	rankLosers(g.HiLoLow, e.quotes)
	return g
}

func (e *Engine) pinnedHitsLocked() []models.Hit {
	if len(e.pins) == 0 {
		return nil
	}
	out := make([]models.Hit, 0, len(e.pins))
	for _, p := range e.pins {
		out = append(out, p.Hit)
	}
	return out
}
