// internal/engine/pipeline/rebalance.go
package pipeline

import (
	"sort"

	"merithire-engine/internal/models"
)

// loadStats groups future-dated interviews by owner and classifies each
// owner against the mean: high when scheduled >= mean+1, low when
// scheduled <= mean-1, balanced otherwise. The mean is computed across all
// owners with at least one scheduled interview.
func (e *Engine) loadStats(interviews []*models.Interview) []LoadStat {
	counts := make(map[string]int)
	for _, iv := range interviews {
		counts[iv.Owner]++
	}
	if len(counts) == 0 {
		return nil
	}

	total := 0
	for _, c := range counts {
		total += c
	}
	mean := float64(total) / float64(len(counts))

	owners := make([]string, 0, len(counts))
	for owner := range counts {
		owners = append(owners, owner)
	}
	sort.Strings(owners)

	stats := make([]LoadStat, 0, len(owners))
	for _, owner := range owners {
		c := counts[owner]
		level := LoadBalanced
		switch {
		case float64(c) >= mean+1:
			level = LoadHigh
		case float64(c) <= mean-1:
			level = LoadLow
		}
		stats = append(stats, LoadStat{Owner: owner, Scheduled: c, LoadLevel: level})
	}
	return stats
}

// rebalance is a greedy heuristic, deliberately not a globally optimal
// assignment. For each high-load owner it repeatedly takes the next unmoved
// upcoming interview and reassigns it to the low-load owner with the
// smallest virtual count, stopping once the gap between source and target
// virtual counts is <= 1 or nothing movable remains.
func (e *Engine) rebalance(stats []LoadStat, interviews []*models.Interview) []RebalanceSuggestion {
	var highOwners, lowOwners []string
	virtual := make(map[string]int)
	for _, s := range stats {
		virtual[s.Owner] = s.Scheduled
		switch s.LoadLevel {
		case LoadHigh:
			highOwners = append(highOwners, s.Owner)
		case LoadLow:
			lowOwners = append(lowOwners, s.Owner)
		}
	}
	if len(highOwners) == 0 || len(lowOwners) == 0 {
		return nil
	}

	// Upcoming interviews per owner, soonest first, so the "next unmoved
	// interview" is deterministic.
	byOwner := make(map[string][]*models.Interview)
	for _, iv := range interviews {
		byOwner[iv.Owner] = append(byOwner[iv.Owner], iv)
	}
	for _, list := range byOwner {
		sort.Slice(list, func(i, j int) bool {
			return list[i].ScheduledAt.Before(list[j].ScheduledAt)
		})
	}

	var suggestions []RebalanceSuggestion
	for _, src := range highOwners {
		queue := byOwner[src]
		for len(queue) > 0 {
			target, ok := smallestVirtual(lowOwners, virtual)
			if !ok {
				return suggestions
			}
			if virtual[src]-virtual[target] <= 1 {
				break
			}

			iv := queue[0]
			queue = queue[1:]

			fromBefore, toBefore := virtual[src], virtual[target]
			virtual[src]--
			virtual[target]++

			suggestions = append(suggestions, RebalanceSuggestion{
				InterviewID: iv.ID,
				FromOwner:   src,
				ToOwner:     target,
				Reason:      reasonForMove(src, fromBefore, virtual[src], target, toBefore, virtual[target]),
			})
		}
	}
	return suggestions
}

// smallestVirtual picks the low-load owner with the smallest virtual count;
// ties break on name order for determinism.
func smallestVirtual(lowOwners []string, virtual map[string]int) (string, bool) {
	best := ""
	for _, owner := range lowOwners {
		if best == "" || virtual[owner] < virtual[best] {
			best = owner
		}
	}
	return best, best != ""
}
