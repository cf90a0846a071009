package server

import (
	"errors"

	"github.com/iamkanga/asxtracker-sub003/internal/models"
)

var (
	errMissingHit  = errors.New("control message carries no hit")
	errMissingRule = errors.New("control message carries no rule")
)

// controlMsg is an inbound client command.
type controlMsg struct {
	Type   string       `json:"type"`
	Action string       `json:"action"`
	Scope  string       `json:"scope,omitempty"`
	Hit    *models.Hit  `json:"hit,omitempty"`
	Rule   *models.Rule `json:"rule,omitempty"`
}

type feedMsg struct {
	Type string           `json:"type"`
	Feed models.AlertFeed `json:"feed"`
}

type badgeMsg struct {
	Type   string             `json:"type"`
	Counts models.BadgeCounts `json:"counts"`
}

type ruleMsg struct {
	Type string      `json:"type"`
	Rule models.Rule `json:"rule"`
}

type ackMsg struct {
	Type   string `json:"type"`
	Action string `json:"action,omitempty"`
	Text   string `json:"text,omitempty"`
}
