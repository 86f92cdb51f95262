package evaluation

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enstso/JuriRH-Assistant/internal/retriever"
	"github.com/enstso/JuriRH-Assistant/pkg/types"
)

// mockSearcher answers each question with preset doc IDs and records requests
type mockSearcher struct {
	answers  map[string][]string
	err      error
	requests []retriever.SearchRequest
}

func (m *mockSearcher) Search(_ context.Context, req retriever.SearchRequest) ([]types.RetrievedChunk, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	out := make([]types.RetrievedChunk, 0)
	for _, id := range m.answers[req.Query] {
		out = append(out, types.RetrievedChunk{ChunkID: id + "-0", DocID: id})
	}
	return out, nil
}

const dataset = `{"id": "q1", "question": "durée du préavis", "filters": {"country": "FR"}, "expected_doc_hint": "preavis"}

{"id": 2, "question": "congés payés", "expected_doc_hint": "conges"}
{"id": "q3", "question": "période d'essai", "filters": {}, "expected_doc_hint": "essai"}
`

func TestReadDataset(t *testing.T) {
	examples, err := ReadDataset(strings.NewReader(dataset))
	require.NoError(t, err)
	require.Len(t, examples, 3)

	assert.Equal(t, "q1", examples[0].ID)
	assert.Equal(t, "FR", examples[0].Filters["country"])
	assert.Equal(t, float64(2), examples[1].ID)
	assert.Nil(t, examples[1].Filters)
	assert.Equal(t, "essai", examples[2].ExpectedDocHint)
}

func TestReadDataset_Invalid(t *testing.T) {
	_, err := ReadDataset(strings.NewReader("{\"question\": \"ok\"}\n{broken\n"))
	assert.ErrorIs(t, err, ErrInvalidDataset)

	_, err = ReadDataset(strings.NewReader(`{"id": "q1", "question": "  "}`))
	assert.ErrorIs(t, err, ErrInvalidDataset)
}

func TestLoadDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "questions.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(dataset), 0o644))

	examples, err := LoadDataset(path)
	require.NoError(t, err)
	assert.Len(t, examples, 3)

	_, err = LoadDataset(filepath.Join(t.TempDir(), "absent.jsonl"))
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	examples, err := ReadDataset(strings.NewReader(dataset))
	require.NoError(t, err)

	s := &mockSearcher{answers: map[string][]string{
		"durée du préavis": {"code_travail", "fr_preavis_demission"},
		"congés payés":     {"a", "b", "c", "fr_conges"},
		"période d'essai":  {"autre"},
	}}

	report, err := Run(context.Background(), s, examples, 3, retriever.DefaultRequest(""))
	require.NoError(t, err)

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 1, report.Hits)
	assert.InDelta(t, 1.0/3.0, report.Recall, 1e-12)

	assert.True(t, report.Rows[0].OK)
	assert.False(t, report.Rows[1].OK, "hit ranked fourth is outside k=3")
	assert.Equal(t, []string{"a", "b", "c"}, report.Rows[1].TopDocs)
	assert.False(t, report.Rows[2].OK)

	require.Len(t, s.requests, 3)
	assert.Equal(t, types.Filter{"country": "FR"}, s.requests[0].Filters)
	assert.Equal(t, 8, s.requests[0].TopKFinal, "cutoff is max(k, configured)")
	assert.Equal(t, retriever.DefaultAlpha, s.requests[0].Alpha)
}

func TestRun_LargeKRaisesCutoff(t *testing.T) {
	s := &mockSearcher{}
	_, err := Run(context.Background(), s, []Example{{Question: "q"}}, 20, retriever.DefaultRequest(""))
	require.NoError(t, err)
	assert.Equal(t, 20, s.requests[0].TopKFinal)
}

func TestRun_Errors(t *testing.T) {
	_, err := Run(context.Background(), &mockSearcher{}, nil, 0, retriever.DefaultRequest(""))
	assert.Error(t, err)

	cause := errors.New("backend down")
	_, err = Run(context.Background(), &mockSearcher{err: cause}, []Example{{ID: "q1", Question: "q"}}, 5, retriever.DefaultRequest(""))
	assert.ErrorIs(t, err, cause)
}

func TestRun_EmptyDataset(t *testing.T) {
	report, err := Run(context.Background(), &mockSearcher{}, nil, 5, retriever.DefaultRequest(""))
	require.NoError(t, err)
	assert.Zero(t, report.Total)
	assert.Zero(t, report.Recall)
}

func TestReportWrite(t *testing.T) {
	report := &Report{K: 5, Total: 4, Hits: 3, Recall: 0.75, Rows: []Row{{ID: "q1", OK: true, TopDocs: []string{"préavis"}, Expected: "préavis"}}}

	var buf bytes.Buffer
	require.NoError(t, report.Write(&buf))
	assert.True(t, strings.HasPrefix(buf.String(), "Recall@5: 0.750 (3/4)\n"))
	assert.Contains(t, buf.String(), `"top_docs": [`)
	assert.Contains(t, buf.String(), "préavis")
}
