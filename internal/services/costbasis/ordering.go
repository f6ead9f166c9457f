package costbasis

import (
	"sort"

	"github.com/chaintax/chaintax/internal/models"
)

// BuildDependencyGraph maps each transaction id to the transaction ids
// that must be processed before it. A link's target leg depends on its
// source leg having produced lot transfers.
func BuildDependencyGraph(txs []*models.Transaction, links []*models.TransactionLink) map[string][]string {
	known := make(map[string]bool, len(txs))
	for _, tx := range txs {
		known[tx.ID] = true
	}

	deps := make(map[string][]string)
	for _, link := range links {
		if link.Status != models.LinkStatusConfirmed {
			continue
		}
		if !known[link.SourceTransactionID] || !known[link.TargetTransactionID] {
			continue
		}
		deps[link.TargetTransactionID] = append(deps[link.TargetTransactionID], link.SourceTransactionID)
	}
	return deps
}

// SortWithLogicalOrdering orders transactions chronologically, then lifts
// link sources ahead of their targets. Ready transactions are picked
// earliest timestamp first, id breaking ties, so the output is
// deterministic. A dependency cycle degrades to plain chronological order
// for the remainder.
func SortWithLogicalOrdering(txs []*models.Transaction, links []*models.TransactionLink) []*models.Transaction {
	deps := BuildDependencyGraph(txs, links)

	chronological := make([]*models.Transaction, len(txs))
	copy(chronological, txs)
	sort.SliceStable(chronological, func(i, j int) bool {
		if !chronological[i].Timestamp.Equal(chronological[j].Timestamp) {
			return chronological[i].Timestamp.Before(chronological[j].Timestamp)
		}
		return chronological[i].ID < chronological[j].ID
	})

	done := make(map[string]bool, len(txs))
	ordered := make([]*models.Transaction, 0, len(txs))

	for len(ordered) < len(chronological) {
		progressed := false
		for _, tx := range chronological {
			if done[tx.ID] {
				continue
			}
			ready := true
			for _, dep := range deps[tx.ID] {
				if !done[dep] {
					ready = false
					break
				}
			}
			if !ready {
				continue
			}
			done[tx.ID] = true
			ordered = append(ordered, tx)
			progressed = true
		}
		if !progressed {
			// cycle: flush the remainder chronologically
			for _, tx := range chronological {
				if !done[tx.ID] {
					done[tx.ID] = true
					ordered = append(ordered, tx)
				}
			}
		}
	}
	return ordered
}
