// Package fusion combines lexical and dense candidate lists into one ranking.
//
// Each list is min-max normalized on its own, then the two normalized scores
// are blended linearly with weight alpha on the dense side:
//
//	fused = (1 - alpha) * lexical + alpha * dense
//
// A candidate missing from one list scores 0 on that side.
package fusion

import (
	"cmp"
	"slices"
)

// degenerateSpread is the score range under which a list is treated as flat
const degenerateSpread = 1e-9

// Candidate is a corpus position with a raw or fused score
type Candidate struct {
	Position int
	Score    float64
}

// TieBreak orders two positions whose fused scores are equal; it reports
// whether position a ranks before position b.
type TieBreak func(a, b int) bool

// MinMax rescales scores to [0, 1] over the list. When the spread is below
// 1e-9, including single-element lists, every candidate maps to 1.0.
func MinMax(list []Candidate) map[int]float64 {
	out := make(map[int]float64, len(list))
	if len(list) == 0 {
		return out
	}

	lo, hi := list[0].Score, list[0].Score
	for _, c := range list[1:] {
		lo = min(lo, c.Score)
		hi = max(hi, c.Score)
	}

	spread := hi - lo
	for _, c := range list {
		if spread < degenerateSpread {
			out[c.Position] = 1.0
			continue
		}
		out[c.Position] = (c.Score - lo) / spread
	}
	return out
}

// Rank fuses the lexical and dense candidate lists and returns at most topK
// candidates by descending fused score. Equal scores are ordered by:
//
//  1. presence in a list whose weight is not zero, so alpha 0 keeps the BM25
//     order and alpha 1 keeps the dense order
//  2. normalized lexical score, then normalized dense score
//  3. tieBreak, then ascending position
//
// A nil tieBreak orders by position only.
func Rank(lexical, dense []Candidate, alpha float64, topK int, tieBreak TieBreak) []Candidate {
	lexNorm := MinMax(lexical)
	denseNorm := MinMax(dense)

	type entry struct {
		Candidate
		lex, dense float64
		weighted   bool
	}

	entries := make([]entry, 0, len(lexNorm)+len(denseNorm))
	seen := make(map[int]struct{}, cap(entries))
	add := func(pos int) {
		if _, ok := seen[pos]; ok {
			return
		}
		seen[pos] = struct{}{}

		lex, inLex := lexNorm[pos]
		dn, inDense := denseNorm[pos]
		score := (1-alpha)*lex + alpha*dn
		entries = append(entries, entry{
			Candidate: Candidate{Position: pos, Score: clamp01(score)},
			lex:       lex,
			dense:     dn,
			weighted:  (inLex && alpha < 1) || (inDense && alpha > 0),
		})
	}
	for _, c := range lexical {
		add(c.Position)
	}
	for _, c := range dense {
		add(c.Position)
	}

	slices.SortFunc(entries, func(a, b entry) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if a.weighted != b.weighted {
			if a.weighted {
				return -1
			}
			return 1
		}
		if c := cmp.Compare(b.lex, a.lex); c != 0 {
			return c
		}
		if c := cmp.Compare(b.dense, a.dense); c != 0 {
			return c
		}
		if tieBreak != nil {
			if tieBreak(a.Position, b.Position) {
				return -1
			}
			if tieBreak(b.Position, a.Position) {
				return 1
			}
		}
		return cmp.Compare(a.Position, b.Position)
	})

	if topK < 0 {
		topK = 0
	}
	fused := make([]Candidate, 0, min(topK, len(entries)))
	for _, e := range entries[:min(topK, len(entries))] {
		fused = append(fused, e.Candidate)
	}
	return fused
}

// clamp01 absorbs floating point drift of the weighted sum at the bounds.
func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}
