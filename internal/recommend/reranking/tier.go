// Open-Pair - Open House Host Recommendation Engine
// Copyright 2026 T. Logan Designs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tlogandesigns/open-pair

// Package reranking implements post-processing over ranked host lists.
package reranking

import (
	"sort"

	"github.com/tlogandesigns/open-pair/internal/metrics"
	"github.com/tlogandesigns/open-pair/internal/models"
	"github.com/tlogandesigns/open-pair/internal/recommend"
)

// TierDiversity limits how many agents of one experience tier occupy the
// top of a recommendation list. When a tier exceeds its cap, the surplus
// entry is swapped for the best-scoring agent of another tier, but only if
// that substitute's fairness score is within the tolerance band, so diversity
// never displaces a decisively better candidate.
type TierDiversity struct {
	maxPerTier int
	tolerance  float64
}

// NewTierDiversity creates the tier-diversity reranker.
func NewTierDiversity(maxPerTier int, tolerance float64) *TierDiversity {
	if maxPerTier < 1 {
		maxPerTier = 1
	}
	if tolerance < 0 {
		tolerance = 0
	}
	return &TierDiversity{maxPerTier: maxPerTier, tolerance: tolerance}
}

// Name returns the reranker identifier.
func (t *TierDiversity) Name() string {
	return "tier_diversity"
}

// Rerank enforces the per-tier cap over the top k entries. Input must be
// ordered by fairness score descending; the output keeps scores
// non-increasing within the top k, with substitutions demoting displaced
// entries into the tail past k.
func (t *TierDiversity) Rerank(items []recommend.Recommendation, k int) []recommend.Recommendation {
	if len(items) == 0 || k <= 0 || k >= len(items) {
		// With the whole pool on display there is no tail to demote a
		// displaced entry into; swapping would only scramble the
		// score order without changing who appears.
		return items
	}

	tierCounts := make(map[models.Tier]int)
	chosen := make([]int, 0, k)
	used := make(map[int]struct{}, k)

	for i := 0; i < len(items) && len(chosen) < k; i++ {
		if _, ok := used[i]; ok {
			continue
		}
		item := items[i]
		if tierCounts[item.Tier] < t.maxPerTier {
			chosen = append(chosen, i)
			used[i] = struct{}{}
			tierCounts[item.Tier]++
			continue
		}

		// Tier cap hit. Look ahead for a close-enough candidate from an
		// uncapped tier before conceding the slot back to this one.
		subIdx := t.findSubstitute(items, used, tierCounts, i, item.FairnessScore)
		if subIdx < 0 {
			chosen = append(chosen, i)
			used[i] = struct{}{}
			tierCounts[item.Tier]++
			continue
		}

		chosen = append(chosen, subIdx)
		used[subIdx] = struct{}{}
		tierCounts[items[subIdx].Tier]++
		metrics.DiversitySwaps.Inc()
	}

	// Emit the chosen window by original position. The input is sorted,
	// so this keeps scores non-increasing even when a concession after a
	// substitution picked entries out of index order.
	sort.Ints(chosen)

	selected := make([]recommend.Recommendation, 0, len(items))
	for _, idx := range chosen {
		selected = append(selected, items[idx])
	}
	// Keep the tail so callers truncating past k see the full list.
	for i := range items {
		if _, ok := used[i]; !ok {
			selected = append(selected, items[i])
		}
	}
	return selected
}

// findSubstitute returns the index of the best unused candidate from any
// uncapped tier whose fairness score is within tolerance of the displaced
// score, or -1.
func (t *TierDiversity) findSubstitute(items []recommend.Recommendation, used map[int]struct{}, tierCounts map[models.Tier]int, from int, displaced float64) int {
	for i := from + 1; i < len(items); i++ {
		if _, ok := used[i]; ok {
			continue
		}
		cand := items[i]
		if tierCounts[cand.Tier] >= t.maxPerTier {
			continue
		}
		if displaced-cand.FairnessScore > t.tolerance {
			// Items are sorted, so every later candidate is further away.
			return -1
		}
		return i
	}
	return -1
}
