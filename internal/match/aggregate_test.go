package match

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/check-match/internal/model"
	"github.com/sells-group/check-match/pkg/bloomerang"
)

// fakeSearch implements bloomerang.Client with canned results keyed by URL.
type fakeSearch struct {
	mu       sync.Mutex
	results  map[string][]bloomerang.Constituent
	errs     map[string]error
	calls    []string
	validErr error
}

func newFakeSearch() *fakeSearch {
	return &fakeSearch{
		results: make(map[string][]bloomerang.Constituent),
		errs:    make(map[string]error),
	}
}

func (f *fakeSearch) Validate() error { return f.validErr }

func (f *fakeSearch) TextQueryURL(text string) string { return "text:" + text }

func (f *fakeSearch) NameQueryURL(first, last string) string { return "name:" + first + "|" + last }

func (f *fakeSearch) Search(_ context.Context, queryURL string) (*bloomerang.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, queryURL)
	if err, ok := f.errs[queryURL]; ok {
		return nil, err
	}
	return &bloomerang.SearchResult{Status: http.StatusOK, Constituents: f.results[queryURL]}, nil
}

func TestMatch_DedupesByID(t *testing.T) {
	fs := newFakeSearch()
	fs.results["text:John Smith"] = []bloomerang.Constituent{{ID: "42", FirstName: "John", LastName: "Smith"}}
	fs.results["text:Smith"] = []bloomerang.Constituent{
		{ID: "42", FirstName: "John", LastName: "Smith"},
		{ID: "43", HouseholdName: "Smith Household"},
	}

	res, err := NewMatcher(fs).Match(context.Background(), []string{"John Smith"})
	require.NoError(t, err)

	assert.Equal(t, []model.DonorCandidate{
		{ID: "42", Name: "John Smith (ID 42)"},
		{ID: "43", Name: "Smith Household (ID 43)"},
	}, res.Candidates)

	require.Len(t, res.SearchLog, 5)
	assert.Equal(t, 1, *res.SearchLog[0].ResultCount)
	assert.Equal(t, 2, *res.SearchLog[2].ResultCount)
	assert.Equal(t, 0, *res.SearchLog[1].ResultCount)
}

func TestMatch_DedupesAcrossCandidates(t *testing.T) {
	fs := newFakeSearch()
	fs.results["text:Smith"] = []bloomerang.Constituent{{ID: "42", HouseholdName: "The Smiths"}}

	res, err := NewMatcher(fs).Match(context.Background(), []string{"John Smith", "Mary Smith"})
	require.NoError(t, err)

	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "42", res.Candidates[0].ID)
	// Both candidates still log their own last-name search.
	assert.Len(t, res.SearchLog, 10)
	assert.Equal(t, "John Smith", res.SearchLog[0].Candidate)
	assert.Equal(t, "Mary Smith", res.SearchLog[5].Candidate)
}

func TestMatch_PartialFailureContinues(t *testing.T) {
	fs := newFakeSearch()
	fs.errs["text:Smith, John"] = errors.New("bloomerang: unexpected status 502: bad gateway")
	fs.results["text:John"] = []bloomerang.Constituent{{ID: "9", FirstName: "John", LastName: "Doe"}}

	res, err := NewMatcher(fs, WithConcurrency(2)).Match(context.Background(), []string{"John Smith"})
	require.NoError(t, err)

	require.Len(t, res.SearchLog, 5)
	failed := res.SearchLog[1]
	assert.Equal(t, "Smith, John", failed.Query)
	assert.Contains(t, failed.Error, "502")
	assert.Nil(t, failed.ResultCount)

	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "John Doe (ID 9)", res.Candidates[0].Name)
	assert.Len(t, fs.calls, 5)
}

func TestMatch_BlankCandidateSkipped(t *testing.T) {
	fs := newFakeSearch()
	fs.validErr = bloomerang.ErrMissingAPIKey

	res, err := NewMatcher(fs).Match(context.Background(), []string{"  "})
	require.NoError(t, err)

	assert.Empty(t, res.Candidates)
	require.Len(t, res.SearchLog, 1)
	assert.Equal(t, SkipNote, res.SearchLog[0].Note)
	assert.Equal(t, 0, *res.SearchLog[0].ResultCount)
	assert.Empty(t, res.SearchLog[0].Error)
	assert.Empty(t, fs.calls)
}

func TestMatch_NoCandidates(t *testing.T) {
	res, err := NewMatcher(newFakeSearch()).Match(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []model.DonorCandidate{}, res.Candidates)
	assert.Empty(t, res.SearchLog)
}

func TestMatch_MissingAPIKeyIsFatal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	client := bloomerang.NewClient("", bloomerang.WithBaseURL(srv.URL))
	res, err := NewMatcher(client).Match(context.Background(), []string{"John Smith"})

	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, eris.Is(err, bloomerang.ErrMissingAPIKey))
	assert.Equal(t, int32(0), calls.Load())
}

func TestMatch_ServerErrorOnEveryVariant(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"boom"}`))
	}))
	defer srv.Close()

	client := bloomerang.NewClient("test-key", bloomerang.WithBaseURL(srv.URL))
	res, err := NewMatcher(client).Match(context.Background(), []string{"Jane A Doe"})
	require.NoError(t, err)

	assert.Empty(t, res.Candidates)
	require.Len(t, res.SearchLog, 6)
	for _, a := range res.SearchLog {
		assert.Contains(t, a.Error, "500")
		assert.Contains(t, a.Error, "boom")
		assert.Nil(t, a.ResultCount)
		assert.NotEmpty(t, a.URL)
	}
	assert.Equal(t, int32(6), calls.Load())
}

func TestMatch_EndToEndWithHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("searchText") == "Jane Doe":
			w.Write([]byte(`{"results":[{"id":42,"firstName":"Jane","lastName":"Doe"}]}`))
		case q.Get("searchLastName") == "Doe":
			w.Write([]byte(`[{"id":42,"firstName":"Jane","lastName":"Doe"},{"id":77,"displayName":"Doe Trust"}]`))
		default:
			w.Write([]byte(`[]`))
		}
	}))
	defer srv.Close()

	client := bloomerang.NewClient("test-key", bloomerang.WithBaseURL(srv.URL), bloomerang.WithRateLimit(100))
	res, err := NewMatcher(client).Match(context.Background(), []string{"Jane A Doe"})
	require.NoError(t, err)

	assert.Equal(t, []model.DonorCandidate{
		{ID: "42", Name: "Jane Doe (ID 42)"},
		{ID: "77", Name: "Doe Trust (ID 77)"},
	}, res.Candidates)
	require.Len(t, res.SearchLog, 6)
	assert.Equal(t, 2, *res.SearchLog[5].ResultCount)
}

func TestMatch_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := NewMatcher(newFakeSearch()).Match(ctx, []string{"John Smith"})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, eris.Is(err, context.Canceled))
}
