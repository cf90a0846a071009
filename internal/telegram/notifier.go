package telegram

import (
	"sync"

	"github.com/iamkanga/asxtracker-sub003/internal/logger"
	"github.com/iamkanga/asxtracker-sub003/internal/models"
)

// Notifier pushes a digest whenever the personal feed surfaces alerts that
// have not been announced yet. Each intent signature is announced at most
// once per session; a hit that persists across recomputations stays quiet
// after its first digest.
type Notifier struct {
	send func(hits []models.Hit) error

	mu        sync.Mutex
	announced map[string]struct{}
}

func NewNotifier(client *Client) *Notifier {
	return &Notifier{
		send:      client.SendDigest,
		announced: make(map[string]struct{}),
	}
}

// HandleFeed matches the engine change callback signature, so it can be
// subscribed directly.
func (n *Notifier) HandleFeed(feed models.AlertFeed, _ models.BadgeCounts) {
	n.mu.Lock()
	var fresh []models.Hit
	for _, h := range feed.Local.Fresh {
		key := h.Key()
		if _, seen := n.announced[key]; seen {
			continue
		}
		n.announced[key] = struct{}{}
		fresh = append(fresh, h)
	}
	n.mu.Unlock()

	if len(fresh) == 0 {
		return
	}
	if err := n.send(fresh); err != nil {
		logger.Error("Failed to send alert digest: %v", err)
	}
}
