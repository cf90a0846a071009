package models

import (
	"errors"
)

// Holding is one instrument in the user's registry. TargetPrice follows the
// nil-means-unset convention.
type Holding struct {
	Code            string    `json:"code" yaml:"code"`
	Name            string    `json:"name,omitempty" yaml:"name,omitempty"`
	TargetPrice     *float64  `json:"target_price,omitempty" yaml:"target_price,omitempty"`
	TargetDirection Direction `json:"target_direction,omitempty" yaml:"target_direction,omitempty"`
	Muted           bool      `json:"muted,omitempty" yaml:"muted,omitempty"`
}

// Validate checks holding field constraints.
func (h *Holding) Validate() error {
	if h.Code == "" {
		return errors.New("holding code must not be empty")
	}
	if h.TargetPrice != nil && *h.TargetPrice <= 0 {
		return errors.New("target price must be positive when set")
	}
	switch h.TargetDirection {
	case "", DirectionUp, DirectionDown:
	default:
		return errors.New("target direction must be up or down")
	}
	return nil
}
