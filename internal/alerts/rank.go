package alerts

import (
	"math"
	"sort"

	"github.com/iamkanga/asxtracker-sub003/internal/models"
)

// enrichForRanking resolves a comparison value for hits that arrived without
// one. The resolved figure is written back onto the hit so ranking and the
// displayed number can never disagree.
func enrichForRanking(hits []models.Hit, quotes QuoteView) {
	for i := range hits {
		if hits[i].PctChange != 0 {
			continue
		}
		tick, ok := quotes.Get(hits[i].Code)
		if !ok {
			continue
		}
		hits[i].PctChange = tick.PctChange
		if hits[i].DollarChange == 0 {
			hits[i].DollarChange = tick.Change
		}
	}
}

// rankGainers orders movers-up and 52-week-high hits by percent magnitude,
// largest first. The sort is stable: equal magnitudes keep merge order.
func rankGainers(hits []models.Hit, quotes QuoteView) {
	enrichForRanking(hits, quotes)
	sort.SliceStable(hits, func(i, j int) bool {
		return math.Abs(hits[i].PctChange) > math.Abs(hits[j].PctChange)
	})
}

// rankLosers orders movers-down and 52-week-low hits most-negative first.
// The comparison key is the sign-forced negative magnitude, so a hit whose
// reported percent lost its sign still ranks by how far it fell rather than
// floating above genuine losers.
func rankLosers(hits []models.Hit, quotes QuoteView) {
	enrichForRanking(hits, quotes)
	sort.SliceStable(hits, func(i, j int) bool {
		return -math.Abs(hits[i].PctChange) < -math.Abs(hits[j].PctChange)
	})
}
