package alerts

import (
	"math"

	"github.com/iamkanga/asxtracker-sub003/internal/models"
)

// isZombie reports a hit with no observed movement at all. Server documents
// carry residual entries from earlier in the day whose movement has since
// unwound; they must not alert or badge.
func isZombie(h models.Hit) bool {
	return h.PctChange == 0 && h.DollarChange == 0
}

// isPhantom reports a hit whose reported percent move disagrees with a
// recomputation from previous close by more than an order of magnitude:
// reported above 1% while the recomputed figure is under 0.1%. That pattern
// means the upstream feed is reporting yesterday's move as today's.
func isPhantom(h models.Hit) bool {
	if h.PrevClose <= 0 {
		return false
	}
	calcPct := (h.Price - h.PrevClose) / h.PrevClose * 100
	return math.Abs(h.PctChange) > 1.0 && math.Abs(calcPct) < 0.1
}

func passesNoiseGates(h models.Hit) bool {
	return !isZombie(h) && !isPhantom(h)
}
