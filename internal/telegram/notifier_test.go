package telegram

import (
	"errors"
	"testing"

	"github.com/iamkanga/asxtracker-sub003/internal/models"
)

func feedWith(hits ...models.Hit) models.AlertFeed {
	return models.AlertFeed{Local: models.LocalFeed{Fresh: hits}}
}

func TestNotifier_AnnouncesEachSignatureOnce(t *testing.T) {
	var sent [][]models.Hit
	n := &Notifier{
		send: func(hits []models.Hit) error {
			sent = append(sent, hits)
			return nil
		},
		announced: make(map[string]struct{}),
	}

	target := models.Hit{Code: "BHP", Intent: models.IntentTarget, Source: models.SourceClient}
	mover := models.Hit{Code: "WES", Intent: models.IntentMover, Source: models.SourceClient}

	n.HandleFeed(feedWith(target, mover), models.BadgeCounts{})
	if len(sent) != 1 || len(sent[0]) != 2 {
		t.Fatalf("first feed: sent %v, want one digest with both hits", sent)
	}

	// The same feed again stays quiet.
	n.HandleFeed(feedWith(target, mover), models.BadgeCounts{})
	if len(sent) != 1 {
		t.Fatalf("unchanged feed resent a digest: %d sends", len(sent))
	}

	// Only the genuinely new hit is announced.
	hilo := models.Hit{Code: "BHP", Intent: models.IntentHiLo, Extreme: models.ExtremeHigh, Source: models.SourceClient}
	n.HandleFeed(feedWith(target, mover, hilo), models.BadgeCounts{})
	if len(sent) != 2 {
		t.Fatalf("new hit did not trigger a digest: %d sends", len(sent))
	}
	if len(sent[1]) != 1 || sent[1][0].Intent != models.IntentHiLo {
		t.Errorf("second digest: got %v, want only the hilo hit", sent[1])
	}
}

func TestNotifier_EmptyFeedStaysQuiet(t *testing.T) {
	calls := 0
	n := &Notifier{
		send:      func([]models.Hit) error { calls++; return nil },
		announced: make(map[string]struct{}),
	}
	n.HandleFeed(feedWith(), models.BadgeCounts{})
	if calls != 0 {
		t.Errorf("empty feed sent %d digests", calls)
	}
}

func TestNotifier_SendFailureDoesNotRepeat(t *testing.T) {
	calls := 0
	n := &Notifier{
		send:      func([]models.Hit) error { calls++; return errors.New("telegram down") },
		announced: make(map[string]struct{}),
	}
	hit := models.Hit{Code: "BHP", Intent: models.IntentTarget, Source: models.SourceClient}

	n.HandleFeed(feedWith(hit), models.BadgeCounts{})
	n.HandleFeed(feedWith(hit), models.BadgeCounts{})

	// Announcement is at-most-once: the client retries internally, and a
	// hard failure is logged rather than replayed on the next pass.
	if calls != 1 {
		t.Errorf("failed digest was replayed: %d sends", calls)
	}
}
