// Package evaluation measures retrieval quality on a labelled question set.
//
// A dataset is a JSONL file of examples
//
//	{"id": "q1", "question": "...", "filters": {"country": "FR"}, "expected_doc_hint": "code_travail"}
//
// An example is a hit when the doc_id of any of the top k results contains
// the expected hint. Recall@k is the fraction of hits.
package evaluation

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/enstso/JuriRH-Assistant/internal/retriever"
	"github.com/enstso/JuriRH-Assistant/pkg/types"
)

// DefaultK is the default recall cutoff
const DefaultK = 5

// ErrInvalidDataset is returned for unparsable or incomplete examples
var ErrInvalidDataset = errors.New("invalid evaluation dataset")

// Searcher runs one query; both retriever.Retriever and service.Service satisfy it
type Searcher interface {
	Search(ctx context.Context, req retriever.SearchRequest) ([]types.RetrievedChunk, error)
}

// Example is one labelled question
type Example struct {
	ID              any          `json:"id"`
	Question        string       `json:"question"`
	Filters         types.Filter `json:"filters"`
	ExpectedDocHint string       `json:"expected_doc_hint"`
}

// Row is the outcome for one example
type Row struct {
	ID       any      `json:"id"`
	OK       bool     `json:"ok"`
	TopDocs  []string `json:"top_docs"`
	Expected string   `json:"expected"`
}

// Report aggregates an evaluation run
type Report struct {
	K      int     `json:"k"`
	Total  int     `json:"total"`
	Hits   int     `json:"hits"`
	Recall float64 `json:"recall"`
	Rows   []Row   `json:"rows"`
}

// LoadDataset reads examples from a JSONL file
func LoadDataset(path string) ([]Example, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	return ReadDataset(f)
}

// ReadDataset parses JSONL examples from r. Blank lines are skipped.
func ReadDataset(r io.Reader) ([]Example, error) {
	examples := make([]Example, 0)
	br := bufio.NewReader(r)
	for lineNo := 1; ; lineNo++ {
		line, err := br.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}

		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			var ex Example
			if err := json.Unmarshal(trimmed, &ex); err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidDataset, lineNo, err)
			}
			if strings.TrimSpace(ex.Question) == "" {
				return nil, fmt.Errorf("%w: line %d: question is empty", ErrInvalidDataset, lineNo)
			}
			examples = append(examples, ex)
		}

		if errors.Is(err, io.EOF) {
			return examples, nil
		}
	}
}

// Run evaluates every example with base as the request template. The final
// cutoff is raised to at least k so that k documents can be inspected.
func Run(ctx context.Context, s Searcher, examples []Example, k int, base retriever.SearchRequest) (*Report, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	report := &Report{K: k, Rows: make([]Row, 0, len(examples))}
	for _, ex := range examples {
		req := base
		req.Query = ex.Question
		req.Filters = ex.Filters
		req.TopKFinal = max(k, base.TopKFinal)

		results, err := s.Search(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("example %v: %w", ex.ID, err)
		}

		top := make([]string, 0, k)
		for i := 0; i < len(results) && i < k; i++ {
			top = append(top, results[i].DocID)
		}

		row := Row{ID: ex.ID, TopDocs: top, Expected: ex.ExpectedDocHint, OK: hit(top, ex.ExpectedDocHint)}
		report.Rows = append(report.Rows, row)
		report.Total++
		if row.OK {
			report.Hits++
		}
	}

	if report.Total > 0 {
		report.Recall = float64(report.Hits) / float64(report.Total)
	}
	return report, nil
}

// hit reports whether any document ID contains hint. An empty hint matches
// any non-empty result list.
func hit(docIDs []string, hint string) bool {
	for _, id := range docIDs {
		if strings.Contains(id, hint) {
			return true
		}
	}
	return false
}

// Write prints the recall summary followed by the per-example rows as JSON
func (r *Report) Write(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "Recall@%d: %.3f (%d/%d)\n", r.K, r.Recall, r.Hits, r.Total); err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(r.Rows)
}
