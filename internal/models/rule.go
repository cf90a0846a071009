package models

import (
	"errors"
)

// ThresholdPair holds the percent and dollar thresholds for one mover
// direction. A nil field means "not configured"; a non-nil zero means
// "configured to zero" and is satisfied by any real movement. The two must
// never be conflated.
type ThresholdPair struct {
	Percent *float64 `json:"percent,omitempty"`
	Dollar  *float64 `json:"dollar,omitempty"`
}

// Defined reports whether at least one threshold of the pair is configured.
func (p ThresholdPair) Defined() bool {
	return p.Percent != nil || p.Dollar != nil
}

func (p ThresholdPair) clone() ThresholdPair {
	return ThresholdPair{Percent: cloneFloat(p.Percent), Dollar: cloneFloat(p.Dollar)}
}

// Rule is the per-user alert configuration. Threshold fields follow the
// nil-vs-zero convention of ThresholdPair.
type Rule struct {
	Up               ThresholdPair `json:"up"`
	Down             ThresholdPair `json:"down"`
	MinPrice         *float64      `json:"min_price,omitempty"`
	HiLoMinPrice     *float64      `json:"hilo_min_price,omitempty"`
	MoversEnabled    bool          `json:"movers_enabled"`
	ActiveIndustries []string      `json:"active_industries,omitempty"`
}

// Clone returns a deep copy so rule snapshots can be handed to the engine
// without aliasing the store's current value.
func (r Rule) Clone() Rule {
	out := Rule{
		Up:            r.Up.clone(),
		Down:          r.Down.clone(),
		MinPrice:      cloneFloat(r.MinPrice),
		HiLoMinPrice:  cloneFloat(r.HiLoMinPrice),
		MoversEnabled: r.MoversEnabled,
	}
	if len(r.ActiveIndustries) > 0 {
		out.ActiveIndustries = append([]string(nil), r.ActiveIndustries...)
	}
	return out
}

// IndustryWhitelist returns the active industry set, or nil when no
// filtering is configured.
func (r Rule) IndustryWhitelist() map[string]struct{} {
	if len(r.ActiveIndustries) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(r.ActiveIndustries))
	for _, ind := range r.ActiveIndustries {
		set[ind] = struct{}{}
	}
	return set
}

// Validate checks rule field constraints.
func (r *Rule) Validate() error {
	for _, v := range []*float64{r.Up.Percent, r.Up.Dollar, r.Down.Percent, r.Down.Dollar} {
		if v != nil && *v < 0 {
			return errors.New("mover thresholds must not be negative")
		}
	}
	if r.MinPrice != nil && *r.MinPrice < 0 {
		return errors.New("min price must not be negative")
	}
	if r.HiLoMinPrice != nil && *r.HiLoMinPrice < 0 {
		return errors.New("hilo min price must not be negative")
	}
	return nil
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Float64Ptr is a convenience for building rules and configs literals.
func Float64Ptr(v float64) *float64 { return &v }
