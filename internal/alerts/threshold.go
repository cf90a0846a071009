package alerts

import (
	"math"

	"github.com/iamkanga/asxtracker-sub003/internal/models"
)

// evalContext carries the gates shared by every category evaluation pass:
// mute lookup, industry whitelist with just-in-time industry resolution, and
// the strict/bypass switch.
type evalContext struct {
	strict    bool
	whitelist map[string]struct{}
	industry  func(code string) string
	muted     func(code string) bool
}

// moverPasses applies the mover gates to one hit, in order: mute, noise,
// minimum price, industry whitelist, then the percent/dollar thresholds with
// OR semantics.
//
// Threshold resolution distinguishes unset from zero: a nil threshold takes
// no part in the decision, a zero threshold is satisfied by any hit that
// survived the zombie gate. With neither threshold set, strict mode disables
// the category and bypass mode passes every surviving hit.
func (ec evalContext) moverPasses(h models.Hit, pair models.ThresholdPair, floor *float64) bool {
	if ec.muted != nil && ec.muted(h.Code) {
		return false
	}
	if !passesNoiseGates(h) {
		return false
	}
	if floor != nil && h.Price < *floor {
		return false
	}
	if !ec.passesWhitelist(h) {
		return false
	}
	if !pair.Defined() {
		return !ec.strict
	}
	return meetsThreshold(h, pair)
}

// hiloPasses applies the 52-week extreme gates: mute, noise, the hi/lo
// minimum price floor, and the industry whitelist. There is no threshold
// math; reaching the boundary is the trigger.
func (ec evalContext) hiloPasses(h models.Hit, floor *float64) bool {
	if ec.muted != nil && ec.muted(h.Code) {
		return false
	}
	if !passesNoiseGates(h) {
		return false
	}
	if floor != nil && h.Price < *floor {
		return false
	}
	return ec.passesWhitelist(h)
}

// targetPasses applies the personal target gates: mute and the phantom
// guard. Targets alert on price level, not movement, so the zombie gate does
// not apply.
func (ec evalContext) targetPasses(h models.Hit) bool {
	if ec.muted != nil && ec.muted(h.Code) {
		return false
	}
	return !isPhantom(h)
}

func (ec evalContext) evaluateMovers(hits []models.Hit, pair models.ThresholdPair, floor *float64) []models.Hit {
	if !pair.Defined() && ec.strict {
		return nil
	}
	var out []models.Hit
	for _, h := range hits {
		if ec.moverPasses(h, pair, floor) {
			out = append(out, h)
		}
	}
	return out
}

func (ec evalContext) evaluateHiLo(hits []models.Hit, floor *float64) []models.Hit {
	var out []models.Hit
	for _, h := range hits {
		if ec.hiloPasses(h, floor) {
			out = append(out, h)
		}
	}
	return out
}

func (ec evalContext) evaluateTargets(hits []models.Hit) []models.Hit {
	var out []models.Hit
	for _, h := range hits {
		if ec.targetPasses(h) {
			out = append(out, h)
		}
	}
	return out
}

// passesWhitelist checks the industry whitelist. Holdings the user already
// owns always pass; an industry filter must never hide the user's own
// positions.
func (ec evalContext) passesWhitelist(h models.Hit) bool {
	if len(ec.whitelist) == 0 || h.IsLocal {
		return true
	}
	industry := h.Industry
	if industry == "" && ec.industry != nil {
		industry = ec.industry(h.Code)
	}
	_, ok := ec.whitelist[industry]
	return ok
}

func meetsThreshold(h models.Hit, pair models.ThresholdPair) bool {
	if pair.Percent != nil && math.Abs(h.PctChange) >= *pair.Percent {
		return true
	}
	if pair.Dollar != nil && math.Abs(h.DollarChange) >= *pair.Dollar {
		return true
	}
	return false
}
