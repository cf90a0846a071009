package alerts

import (
	"errors"
	"testing"
	"time"

	"github.com/iamkanga/asxtracker-sub003/internal/models"
)

// Shared test doubles for the engine's read-only views.

type fakeQuotes map[string]models.PriceTick

func (f fakeQuotes) Get(code string) (models.PriceTick, bool) {
	t, ok := f[code]
	return t, ok
}

func (f fakeQuotes) All() []models.PriceTick {
	out := make([]models.PriceTick, 0, len(f))
	for _, t := range f {
		out = append(out, t)
	}
	return out
}

func (f fakeQuotes) Len() int { return len(f) }

type fakeHoldings map[string]models.Holding

func (f fakeHoldings) Get(code string) (models.Holding, bool) {
	h, ok := f[code]
	return h, ok
}

func (f fakeHoldings) All() []models.Holding {
	out := make([]models.Holding, 0, len(f))
	for _, h := range f {
		out = append(out, h)
	}
	return out
}

type fakeRules struct{ rule models.Rule }

func (f fakeRules) Current() models.Rule { return f.rule.Clone() }

type fakeStore struct {
	marks   models.Watermarks
	pins    []models.PinnedAlert
	failAdd bool
}

func (f *fakeStore) LoadWatermarks() (models.Watermarks, error) { return f.marks, nil }

func (f *fakeStore) SaveWatermark(scope models.BadgeScope, viewedAt time.Time) error {
	if scope == models.ScopeTotal {
		f.marks.Total = viewedAt
	} else {
		f.marks.Custom = viewedAt
	}
	return nil
}

func (f *fakeStore) GetPinnedAlerts() ([]models.PinnedAlert, error) {
	return append([]models.PinnedAlert(nil), f.pins...), nil
}

func (f *fakeStore) AddPinnedAlert(pin *models.PinnedAlert) error {
	if f.failAdd {
		return errors.New("disk full")
	}
	f.pins = append(f.pins, *pin)
	return nil
}

func (f *fakeStore) RemovePinnedAlert(id string) error {
	for i, p := range f.pins {
		if p.ID == id {
			f.pins = append(f.pins[:i], f.pins[i+1:]...)
			return nil
		}
	}
	return errors.New("not found")
}

func permissiveRule() models.Rule {
	return models.Rule{
		Up:            models.ThresholdPair{Percent: models.Float64Ptr(0.0)},
		Down:          models.ThresholdPair{Percent: models.Float64Ptr(0.0)},
		MoversEnabled: true,
	}
}

// newTestEngine wires an engine over fakes with a fixed clock.
func newTestEngine(t *testing.T, quotes fakeQuotes, holdings fakeHoldings, rule models.Rule, store Store, opts Options) *Engine {
	t.Helper()
	e := New(quotes, holdings, fakeRules{rule: rule}, store, opts)
	e.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }
	return e
}

func tick(code string, price, change, pct, prevClose float64) models.PriceTick {
	return models.PriceTick{
		Code:      code,
		Price:     price,
		Change:    change,
		PctChange: pct,
		PrevClose: prevClose,
		Type:      models.InstrumentEquity,
	}
}

func TestEngine_LocalTargetHit(t *testing.T) {
	quotes := fakeQuotes{
		"BHP": tick("BHP", 46.00, 1.00, 2.2, 45.00),
		"WES": tick("WES", 60.00, -0.50, -0.8, 60.50),
	}
	holdings := fakeHoldings{
		"BHP": {Code: "BHP", Name: "BHP Group", TargetPrice: models.Float64Ptr(45.50), TargetDirection: models.DirectionUp},
		"WES": {Code: "WES", TargetPrice: models.Float64Ptr(55.00), TargetDirection: models.DirectionDown},
	}
	e := newTestEngine(t, quotes, holdings, permissiveRule(), nil, Options{})

	local := e.LocalAlerts()
	var target *models.Hit
	for i := range local.Fresh {
		if local.Fresh[i].Code == "BHP" && local.Fresh[i].Intent == models.IntentTarget {
			target = &local.Fresh[i]
		}
		if local.Fresh[i].Code == "WES" && local.Fresh[i].Intent == models.IntentTarget {
			t.Error("WES downside target at 55.00 should not fire at 60.00")
		}
	}
	if target == nil {
		t.Fatal("BHP upside target at 45.50 should fire at 46.00")
	}
	if target.Source != models.SourceClient || !target.IsLocal {
		t.Errorf("target hit should be a local client hit: %+v", target)
	}
}

func TestEngine_LocalMutedHoldingNeverAlerts(t *testing.T) {
	quotes := fakeQuotes{
		"BHP": tick("BHP", 50.00, 5.00, 11.1, 45.00),
	}
	holdings := fakeHoldings{
		"BHP": {Code: "BHP", TargetPrice: models.Float64Ptr(45.00), Muted: true},
	}
	e := newTestEngine(t, quotes, holdings, permissiveRule(), nil, Options{})

	local := e.LocalAlerts()
	if len(local.Fresh) != 0 {
		t.Errorf("muted holding produced %d hits: %+v", len(local.Fresh), local.Fresh)
	}
}

func TestEngine_ClientWinsOverServerBatch(t *testing.T) {
	// The worked case: server "target" and client target on the same code
	// collapse to the client hit after intent canonicalization.
	quotes := fakeQuotes{
		"GAP": tick("GAP", 10.00, 0.50, 5.26, 9.50),
	}
	holdings := fakeHoldings{
		"GAP": {Code: "GAP", TargetPrice: models.Float64Ptr(9.80), TargetDirection: models.DirectionUp},
	}
	e := newTestEngine(t, quotes, holdings, permissiveRule(), nil, Options{})
	e.UpdateDocuments(models.BatchDocuments{
		Custom: []models.RawRecord{
			{"code": "GAP", "intent": "target-hit", "price": 9.90, "pctChange": 4.2, "timestamp": float64(1_699_999_000_000)},
		},
	})

	local := e.LocalAlerts()
	if len(local.Fresh) != 1 {
		t.Fatalf("got %d fresh hits, want 1: %+v", len(local.Fresh), local.Fresh)
	}
	h := local.Fresh[0]
	if h.Source != models.SourceClient {
		t.Errorf("surviving hit source: got %s, want client", h.Source)
	}
	if h.Price != 10.00 {
		t.Errorf("surviving hit price: got %v, want live 10.00", h.Price)
	}
}

func TestEngine_ConsolidatesMatchesPerCode(t *testing.T) {
	// BHP is simultaneously a target hit and an implicit mover: one entry,
	// both intents listed.
	rule := models.Rule{
		Up:            models.ThresholdPair{Percent: models.Float64Ptr(3.0)},
		Down:          models.ThresholdPair{Percent: models.Float64Ptr(3.0)},
		MoversEnabled: true,
	}
	quotes := fakeQuotes{
		"BHP": tick("BHP", 46.00, 2.00, 4.5, 44.00),
	}
	holdings := fakeHoldings{
		"BHP": {Code: "BHP", TargetPrice: models.Float64Ptr(45.00), TargetDirection: models.DirectionUp},
	}
	e := newTestEngine(t, quotes, holdings, rule, nil, Options{})

	local := e.LocalAlerts()
	if len(local.Fresh) != 1 {
		t.Fatalf("got %d fresh hits, want 1 consolidated: %+v", len(local.Fresh), local.Fresh)
	}
	h := local.Fresh[0]
	if h.Intent != models.IntentTarget {
		t.Errorf("primary intent: got %s, want target (first in merge order)", h.Intent)
	}
	if len(h.Matches) != 2 || !containsIntent(h.Matches, models.IntentTarget) || !containsIntent(h.Matches, models.IntentMover) {
		t.Errorf("matches: got %v, want [target mover]", h.Matches)
	}
}

func TestEngine_CustomDocumentUserFilter(t *testing.T) {
	quotes := fakeQuotes{
		"BHP": tick("BHP", 46.00, 1.00, 2.2, 45.00),
		"WES": tick("WES", 60.00, 1.20, 2.0, 58.80),
	}
	e := newTestEngine(t, quotes, fakeHoldings{}, permissiveRule(), nil, Options{User: "kanga"})
	e.UpdateDocuments(models.BatchDocuments{
		Custom: []models.RawRecord{
			{"code": "BHP", "intent": "target", "user": "kanga", "price": 46.0, "pctChange": 2.2},
			{"code": "WES", "intent": "target", "user": "other", "price": 60.0, "pctChange": 2.0},
			{"code": "CBA", "intent": "target", "price": 100.0, "pctChange": 1.0},
		},
	})

	local := e.LocalAlerts()
	codes := make(map[string]bool)
	for _, h := range local.Fresh {
		codes[h.Code] = true
	}
	if !codes["BHP"] {
		t.Error("record for this user should pass")
	}
	if codes["WES"] {
		t.Error("record for another user should be dropped")
	}
	if !codes["CBA"] {
		t.Error("record without a user field should pass")
	}
}

func TestEngine_GlobalSparseFallbackScansCache(t *testing.T) {
	rule := models.Rule{
		Up:            models.ThresholdPair{Percent: models.Float64Ptr(2.0)},
		Down:          models.ThresholdPair{Percent: models.Float64Ptr(2.0)},
		MoversEnabled: true,
	}
	quotes := fakeQuotes{
		"AAA": tick("AAA", 1.00, 0.05, 5.0, 0.95),
		"BBB": tick("BBB", 2.00, -0.10, -4.8, 2.10),
		"XJO": {Code: "XJO", Price: 8400, PctChange: 1.2, Change: 99, Type: models.InstrumentIndex},
		"AUD": {Code: "AUD", Price: 0.65, PctChange: 3.0, Change: 0.02, Type: models.InstrumentCurrency},
	}
	e := newTestEngine(t, quotes, fakeHoldings{}, rule, nil, Options{})
	// Two server movers: well under the sparse threshold of 20.
	e.UpdateDocuments(models.BatchDocuments{
		Movers: []models.RawRecord{
			{"code": "CCC", "pctChange": 9.0, "price": 5.0, "prevClose": 4.59},
		},
	})

	global := e.GlobalAlerts(false)
	upCodes := hitCodes(global.MoversUp)
	if !upCodes["AAA"] {
		t.Error("cache scan should contribute AAA to movers-up")
	}
	if !upCodes["CCC"] {
		t.Error("server mover CCC should survive the merge")
	}
	if upCodes["XJO"] || upCodes["AUD"] {
		t.Error("index and currency rows must be excluded from the scan")
	}
	downCodes := hitCodes(global.MoversDown)
	if !downCodes["BBB"] {
		t.Error("cache scan should contribute BBB to movers-down")
	}
}

func TestEngine_GlobalDenseServerSetSkipsFallback(t *testing.T) {
	rule := permissiveRule()
	quotes := fakeQuotes{
		"ZZZ": tick("ZZZ", 1.00, 0.10, 10.0, 0.90),
	}
	e := newTestEngine(t, quotes, fakeHoldings{}, rule, nil, Options{SparseThreshold: 2})
	e.UpdateDocuments(models.BatchDocuments{
		Movers: []models.RawRecord{
			{"code": "AAA", "pctChange": 4.0, "price": 2.0, "prevClose": 1.92},
			{"code": "BBB", "pctChange": -3.0, "price": 2.0, "prevClose": 2.06},
		},
	})

	global := e.GlobalAlerts(false)
	if hitCodes(global.MoversUp)["ZZZ"] {
		t.Error("dense server set must not trigger the cache scan")
	}
}

func TestEngine_BypassStrictIgnoresMoversSwitch(t *testing.T) {
	rule := models.Rule{MoversEnabled: false}
	quotes := fakeQuotes{
		"AAA": tick("AAA", 1.00, 0.05, 5.0, 0.95),
	}
	e := newTestEngine(t, quotes, fakeHoldings{}, rule, nil, Options{})

	strict := e.GlobalAlerts(false)
	if len(strict.MoversUp) != 0 {
		t.Errorf("strict with no thresholds and movers disabled: got %d hits", len(strict.MoversUp))
	}

	bypass := e.GlobalAlerts(true)
	if !hitCodes(bypass.MoversUp)["AAA"] {
		t.Error("bypass mode should surface AAA despite disabled movers and unset thresholds")
	}
}

func TestEngine_BypassNeverSkipsNoiseGates(t *testing.T) {
	quotes := fakeQuotes{}
	e := newTestEngine(t, quotes, fakeHoldings{}, models.Rule{}, nil, Options{SparseThreshold: 1})
	e.UpdateDocuments(models.BatchDocuments{
		Movers: []models.RawRecord{
			{"code": "ZMB", "pctChange": 0.0, "change": 0.0, "price": 5.0},
			{"code": "PHT", "pctChange": 8.0, "change": 0.0, "price": 10.001, "prevClose": 10.0},
		},
	})

	bypass := e.GlobalAlerts(true)
	codes := hitCodes(append(bypass.MoversUp, bypass.MoversDown...))
	if codes["ZMB"] {
		t.Error("zombie hit must be rejected even in bypass mode")
	}
	if codes["PHT"] {
		t.Error("phantom hit must be rejected even in bypass mode")
	}
}

func TestEngine_PinLifecycle(t *testing.T) {
	store := &fakeStore{}
	e := newTestEngine(t, fakeQuotes{}, fakeHoldings{}, permissiveRule(), store, Options{})

	hit := models.Hit{
		Code:      "bhp.ax",
		Intent:    models.IntentTarget,
		Price:     46.00,
		PctChange: 2.2,
		Source:    models.SourceClient,
		IsLocal:   true,
	}
	pin, err := e.Pin(hit)
	if err != nil {
		t.Fatalf("Pin: %v", err)
	}
	if pin.ID == "" {
		t.Error("pin should carry a generated id")
	}
	if pin.Hit.Code != "BHP" {
		t.Errorf("pin code not normalized: %q", pin.Hit.Code)
	}
	if len(store.pins) != 1 {
		t.Fatalf("store has %d pins, want 1", len(store.pins))
	}

	// Pinning the same code+intent again is a no-op returning the original.
	again, err := e.Pin(hit)
	if err != nil {
		t.Fatalf("Pin again: %v", err)
	}
	if again.ID != pin.ID {
		t.Error("re-pin should return the existing pin")
	}
	if len(store.pins) != 1 {
		t.Errorf("re-pin should not add a row, store has %d", len(store.pins))
	}

	local := e.LocalAlerts()
	if len(local.Pinned) != 1 || local.Pinned[0].Code != "BHP" {
		t.Errorf("pinned feed: got %+v", local.Pinned)
	}

	if err := e.Unpin(models.Hit{Code: "BHP", Intent: models.IntentTarget}); err != nil {
		t.Fatalf("Unpin: %v", err)
	}
	if len(store.pins) != 0 {
		t.Errorf("store should be empty after unpin, has %d", len(store.pins))
	}
	if err := e.Unpin(models.Hit{Code: "BHP", Intent: models.IntentTarget}); err == nil {
		t.Error("unpinning a missing pin should error")
	}
}

func TestEngine_PinPersistFailureLeavesStateClean(t *testing.T) {
	store := &fakeStore{failAdd: true}
	e := newTestEngine(t, fakeQuotes{}, fakeHoldings{}, permissiveRule(), store, Options{})

	_, err := e.Pin(models.Hit{Code: "BHP", Intent: models.IntentTarget, Source: models.SourceClient})
	if err == nil {
		t.Fatal("expected persist error")
	}
	if len(e.LocalAlerts().Pinned) != 0 {
		t.Error("failed pin must not appear in the feed")
	}
}

func TestEngine_OnChangeFiresPerRecomputation(t *testing.T) {
	e := newTestEngine(t, fakeQuotes{}, fakeHoldings{}, permissiveRule(), nil, Options{})

	var calls int
	e.OnChange(func(feed models.AlertFeed, counts models.BadgeCounts) {
		calls++
	})

	e.Refresh()
	e.UpdateDocuments(models.BatchDocuments{})
	if err := e.MarkViewed(models.ScopeTotal); err != nil {
		t.Fatalf("MarkViewed: %v", err)
	}

	if calls != 3 {
		t.Errorf("change callback fired %d times, want 3", calls)
	}
}

func TestEngine_SelfTestReportsGatedCategories(t *testing.T) {
	rule := models.Rule{MoversEnabled: true} // thresholds unset: strict empties movers
	quotes := fakeQuotes{
		"AAA": tick("AAA", 1.00, 0.05, 5.0, 0.95),
	}
	e := newTestEngine(t, quotes, fakeHoldings{}, rule, nil, Options{})

	reports := e.SelfTest()
	if len(reports) != 4 {
		t.Fatalf("got %d report rows, want 4", len(reports))
	}
	for _, r := range reports {
		if r.Bypass < r.Strict {
			t.Errorf("%s: bypass %d < strict %d, bypass can never be narrower", r.Category, r.Bypass, r.Strict)
		}
		if r.Category == "movers_up" && (r.Strict != 0 || r.Bypass != 1) {
			t.Errorf("movers_up: strict=%d bypass=%d, want 0/1", r.Strict, r.Bypass)
		}
	}
}

func hitCodes(hits []models.Hit) map[string]bool {
	out := make(map[string]bool, len(hits))
	for _, h := range hits {
		out[h.Code] = true
	}
	return out
}
