// Package lexical implements the Okapi BM25 index used for keyword scoring.
//
// The index is built once from the tokenized chunk corpus and is read-only
// afterwards, so ScoreAll may be called from many goroutines at once.
package lexical

import (
	"maps"
	"math"
	"slices"
)

const (
	// DefaultK1 controls term frequency saturation
	DefaultK1 = 1.5
	// DefaultB controls document length normalization
	DefaultB = 0.75
	// DefaultEpsilon is the fraction of the average IDF used as a floor for
	// terms that occur in more than half of the corpus
	DefaultEpsilon = 0.25
)

// Params holds BM25 tuning parameters
type Params struct {
	K1      float64
	B       float64
	Epsilon float64
}

// DefaultParams returns the conventional Okapi parameters
func DefaultParams() Params {
	return Params{K1: DefaultK1, B: DefaultB, Epsilon: DefaultEpsilon}
}

type posting struct {
	pos   int
	count int
}

// BM25 is an immutable in-memory Okapi BM25 index over a positional corpus.
type BM25 struct {
	params   Params
	inverted map[string][]posting
	idf      map[string]float64
	docLens  []int
	avgDL    float64
}

// New builds an index over corpus, where corpus[i] is the token list of the
// chunk at position i. params are used as given; see DefaultParams.
func New(corpus [][]string, params Params) *BM25 {
	idx := &BM25{
		params:   params,
		inverted: make(map[string][]posting),
		docLens:  make([]int, len(corpus)),
	}

	total := 0
	for pos, tokens := range corpus {
		idx.docLens[pos] = len(tokens)
		total += len(tokens)

		tf := make(map[string]int, len(tokens))
		for _, t := range tokens {
			tf[t]++
		}
		for t, count := range tf {
			idx.inverted[t] = append(idx.inverted[t], posting{pos: pos, count: count})
		}
	}

	if len(corpus) > 0 {
		idx.avgDL = float64(total) / float64(len(corpus))
	}
	idx.computeIDF()
	return idx
}

// computeIDF uses ln((N-n+0.5)/(n+0.5)). Terms present in more than half the
// corpus get a negative value, which is replaced by Epsilon times the average
// IDF of the vocabulary.
func (idx *BM25) computeIDF() {
	n := float64(len(idx.docLens))
	idx.idf = make(map[string]float64, len(idx.inverted))

	sum := 0.0
	negatives := make([]string, 0)
	// sorted so the floating point sum is identical across rebuilds
	for _, term := range slices.Sorted(maps.Keys(idx.inverted)) {
		df := float64(len(idx.inverted[term]))
		v := math.Log(n-df+0.5) - math.Log(df+0.5)
		idx.idf[term] = v
		sum += v
		if v < 0 {
			negatives = append(negatives, term)
		}
	}

	if len(idx.idf) == 0 {
		return
	}
	floor := idx.params.Epsilon * sum / float64(len(idx.idf))
	for _, term := range negatives {
		idx.idf[term] = floor
	}
}

// Len returns the number of indexed positions.
func (idx *BM25) Len() int {
	return len(idx.docLens)
}

// ScoreAll scores every position of the corpus against the query tokens.
// Each occurrence of a token in the query contributes once; tokens absent from
// the corpus contribute zero.
func (idx *BM25) ScoreAll(query []string) []float64 {
	scores := make([]float64, len(idx.docLens))
	if len(scores) == 0 || idx.avgDL == 0 {
		return scores
	}

	k1, b := idx.params.K1, idx.params.B
	for _, t := range query {
		postings, ok := idx.inverted[t]
		if !ok {
			continue
		}
		idf := idx.idf[t]
		for _, p := range postings {
			tf := float64(p.count)
			docLen := float64(idx.docLens[p.pos])

			num := tf * (k1 + 1)
			denom := tf + k1*(1-b+b*(docLen/idx.avgDL))
			scores[p.pos] += idf * (num / denom)
		}
	}

	return scores
}
