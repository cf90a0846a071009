package alerts

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/iamkanga/asxtracker-sub003/internal/models"
)

// Raw records arrive with inconsistent field names depending on which server
// revision produced the document. All aliasing lives here; nothing downstream
// may branch on source field names.
var (
	codeKeys      = []string{"code", "asxCode", "asx_code", "shareCode", "symbol", "ticker"}
	nameKeys      = []string{"name", "companyName", "company_name", "shareName", "title"}
	priceKeys     = []string{"price", "lastPrice", "last_price", "livePrice", "live_price", "close"}
	changeKeys    = []string{"change", "dollarChange", "dollar_change", "priceChange", "price_change"}
	pctKeys       = []string{"pctChange", "pct_change", "percentChange", "percent_change", "changePercent", "change_percent", "pct"}
	prevCloseKeys = []string{"prevClose", "prev_close", "previousClose", "previous_close"}
	timeKeys      = []string{"timestamp", "ts", "time", "t", "hitTime", "hit_time"}
	intentKeys    = []string{"intent", "alertType", "alert_type", "type", "reason", "kind"}
	directionKeys = []string{"direction", "dir"}
	extremeKeys   = []string{"extreme", "side", "boundary", "type"}
	userKeys      = []string{"user", "userId", "user_id", "uid", "owner"}
	industryKeys  = []string{"industry", "sector"}
)

// bracketedCode matches a 3-4 letter ticker in a free-text name, with or
// without an exchange prefix: "BHP Group (ASX: BHP)" or "BHP Group (BHP)".
var bracketedCode = regexp.MustCompile(`(?i)\(\s*(?:ASX:\s*)?([A-Za-z]{3,4})\s*\)`)

// normalizeRecord converts one raw record into a canonical Hit. It returns
// false when no instrument code can be resolved or no intent applies; such
// records are dropped, never surfaced as errors.
func normalizeRecord(raw models.RawRecord, defaultIntent models.Intent, source models.Source, quotes QuoteView, holdings HoldingsView, fallback time.Time) (models.Hit, bool) {
	code := resolveCode(raw)
	if code == "" {
		return models.Hit{}, false
	}

	intent := defaultIntent
	if s, ok := stringField(raw, intentKeys...); ok {
		if canonical, ok := models.CanonicalIntent(s); ok {
			intent = canonical
		}
	}
	if intent == "" {
		return models.Hit{}, false
	}

	h := models.Hit{
		Code:   code,
		Intent: intent,
		Source: source,
	}
	h.Name, _ = stringField(raw, nameKeys...)
	h.Price, _ = floatField(raw, priceKeys...)
	h.DollarChange, _ = floatField(raw, changeKeys...)
	h.PctChange, _ = floatField(raw, pctKeys...)
	h.PrevClose, _ = floatField(raw, prevCloseKeys...)
	h.Industry, _ = stringField(raw, industryKeys...)

	if t, ok := timeField(raw, timeKeys...); ok {
		h.Timestamp = t
	} else {
		h.Timestamp = fallback
	}

	// Zero-movement backfill: a record with no change of its own adopts the
	// live tick so threshold math sees today's actual figures.
	if h.PctChange == 0 && h.DollarChange == 0 {
		if tick, ok := quotes.Get(code); ok {
			h.Price = tick.Price
			h.DollarChange = tick.Change
			h.PctChange = tick.PctChange
		}
	}
	if tick, ok := quotes.Get(code); ok {
		if h.PrevClose == 0 {
			h.PrevClose = tick.PrevClose
		}
		if h.Industry == "" {
			h.Industry = tick.Industry
		}
		if h.Name == "" {
			h.Name = tick.Name
		}
	}

	if holding, ok := holdings.Get(code); ok {
		h.IsLocal = true
		if h.Name == "" {
			h.Name = holding.Name
		}
	}

	h.Direction = resolveDirection(raw, h)
	if h.Intent == models.IntentHiLo {
		h.Extreme = resolveExtreme(raw)
	}

	return h, true
}

// normalizeRecords converts a whole document. A nil or malformed document
// normalizes to an empty result.
func normalizeRecords(raws []models.RawRecord, defaultIntent models.Intent, source models.Source, quotes QuoteView, holdings HoldingsView, fallback time.Time) []models.Hit {
	hits := make([]models.Hit, 0, len(raws))
	for _, raw := range raws {
		if raw == nil {
			continue
		}
		if h, ok := normalizeRecord(raw, defaultIntent, source, quotes, holdings, fallback); ok {
			hits = append(hits, h)
		}
	}
	return hits
}

func resolveCode(raw models.RawRecord) string {
	if s, ok := stringField(raw, codeKeys...); ok {
		if code := models.NormalizeCode(s); code != "" {
			return code
		}
	}
	// Fall back to a ticker embedded in the display name.
	if name, ok := stringField(raw, nameKeys...); ok {
		if m := bracketedCode.FindStringSubmatch(name); m != nil {
			return models.NormalizeCode(m[1])
		}
	}
	return ""
}

func resolveDirection(raw models.RawRecord, h models.Hit) models.Direction {
	if s, ok := stringField(raw, directionKeys...); ok {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "up", "gain", "gainer", "rise":
			return models.DirectionUp
		case "down", "loss", "loser", "fall":
			return models.DirectionDown
		}
	}
	switch {
	case h.PctChange > 0 || (h.PctChange == 0 && h.DollarChange > 0):
		return models.DirectionUp
	case h.PctChange < 0 || (h.PctChange == 0 && h.DollarChange < 0):
		return models.DirectionDown
	}
	return ""
}

func resolveExtreme(raw models.RawRecord) models.Extreme {
	for _, key := range extremeKeys {
		s, ok := stringField(raw, key)
		if !ok {
			continue
		}
		token := strings.ToLower(s)
		switch {
		case strings.Contains(token, "high"):
			return models.ExtremeHigh
		case strings.Contains(token, "low"):
			return models.ExtremeLow
		}
	}
	return ""
}

// recordUser extracts the owning user of a record, if any source revision
// attached one.
func recordUser(raw models.RawRecord) (string, bool) {
	return stringField(raw, userKeys...)
}

func stringField(raw models.RawRecord, keys ...string) (string, bool) {
	for _, key := range keys {
		v, ok := raw[key]
		if !ok {
			continue
		}
		if s, ok := v.(string); ok {
			s = strings.TrimSpace(s)
			if s != "" {
				return s, true
			}
		}
	}
	return "", false
}

func floatField(raw models.RawRecord, keys ...string) (float64, bool) {
	for _, key := range keys {
		v, ok := raw[key]
		if !ok {
			continue
		}
		if f, ok := toFloat(v); ok {
			return f, true
		}
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(n)
		s = strings.Trim(s, "%$")
		s = strings.ReplaceAll(s, ",", "")
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	return 0, false
}

// timeField resolves an event time from a numeric epoch (milliseconds, or
// seconds for older documents) or an RFC 3339 string.
func timeField(raw models.RawRecord, keys ...string) (time.Time, bool) {
	for _, key := range keys {
		v, ok := raw[key]
		if !ok {
			continue
		}
		if s, ok := v.(string); ok {
			if t, err := time.Parse(time.RFC3339, strings.TrimSpace(s)); err == nil {
				return t, true
			}
		}
		if f, ok := toFloat(v); ok && f > 0 {
			return epochToTime(f), true
		}
	}
	return time.Time{}, false
}

func epochToTime(f float64) time.Time {
	// Values this large can only be millisecond epochs.
	if f >= 1e11 {
		return time.UnixMilli(int64(f))
	}
	return time.Unix(int64(f), 0)
}
