package check

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/check-match/internal/match"
	"github.com/sells-group/check-match/internal/model"
	"github.com/sells-group/check-match/pkg/bloomerang"
)

const knownPayee = "three trees"

// MockExtractor implements Extractor for testing.
type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) Extract(ctx context.Context, image []byte, mediaType string) (*model.Extraction, error) {
	args := m.Called(ctx, image, mediaType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Extraction), args.Error(1)
}

// crmServer records every searchText it receives and answers from results.
type crmServer struct {
	mu      sync.Mutex
	queries []string
	results map[string]string
	status  int
}

func (c *crmServer) handler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	text := q.Get("searchText")
	if text == "" {
		text = q.Get("searchFirstName") + "|" + q.Get("searchLastName")
	}
	c.mu.Lock()
	c.queries = append(c.queries, text)
	c.mu.Unlock()

	if c.status != 0 {
		w.WriteHeader(c.status)
		return
	}
	body, ok := c.results[text]
	if !ok {
		body = `[]`
	}
	w.Write([]byte(body))
}

func newProcessor(t *testing.T, crm *crmServer, apiKey string, ex Extractor) *Processor {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(crm.handler))
	t.Cleanup(srv.Close)

	client := bloomerang.NewClient(apiKey, bloomerang.WithBaseURL(srv.URL))
	return NewProcessor(ex, match.NewMatcher(client), knownPayee)
}

func TestProcessExtraction_EndToEnd(t *testing.T) {
	crm := &crmServer{results: map[string]string{
		"John Smith": `{"results":[{"id":42,"firstName":"John","lastName":"Smith"}]}`,
		"Smith":      `[{"id":42,"firstName":"John","lastName":"Smith"},{"id":8,"householdName":"Smith Family"}]`,
	}}
	p := newProcessor(t, crm, "test-key", nil)

	payload, err := p.ProcessExtraction(context.Background(), model.Extraction{Fields: model.RawFields{
		model.FieldDate:          "2024-09-01",
		model.FieldAmountNumeric: "250.00",
		model.FieldPayor:         "Mr. John Smith",
		model.FieldPayee:         "Three Trees",
	}})
	require.NoError(t, err)

	assert.Equal(t, model.ReviewFields{
		Date:      "2024-09-01",
		Amount:    "250.00",
		Payee:     "Three Trees",
		DonorName: "Mr. John Smith",
	}, payload.Fields)
	assert.Equal(t, []model.DonorCandidate{
		{ID: "42", Name: "John Smith (ID 42)"},
		{ID: "8", Name: "Smith Family (ID 8)"},
	}, payload.Candidates)

	require.Len(t, payload.SearchLog, 5)
	for _, a := range payload.SearchLog {
		assert.Equal(t, "John Smith", a.Candidate)
	}
	assert.ElementsMatch(t, []string{"John Smith", "Smith, John", "Smith", "John", "John|Smith"}, crm.queries)
}

func TestProcessExtraction_KnownPayeeNeverSearched(t *testing.T) {
	crm := &crmServer{}
	p := newProcessor(t, crm, "test-key", nil)

	payload, err := p.ProcessExtraction(context.Background(), model.Extraction{
		Fields:     model.RawFields{model.FieldPayor: "Three Trees", model.FieldPayee: "John Smith"},
		PayorNames: []string{"THREE TREES"},
	})
	require.NoError(t, err)

	assert.Empty(t, payload.SearchLog)
	assert.Empty(t, payload.Candidates)
	assert.Empty(t, payload.Fields.DonorName)
	assert.Empty(t, crm.queries)
}

func TestProcessExtraction_ExplicitNamesAndJointSigners(t *testing.T) {
	crm := &crmServer{}
	p := newProcessor(t, crm, "test-key", nil)

	payload, err := p.ProcessExtraction(context.Background(), model.Extraction{
		Fields:     model.RawFields{model.FieldPayor: "John Smith and Mary"},
		PayorNames: []string{"Mary Smith"},
	})
	require.NoError(t, err)

	assert.Equal(t, "John Smith and Mary", payload.Fields.DonorName)

	var searched []string
	for _, a := range payload.SearchLog {
		if a.Label == match.LabelFullName {
			searched = append(searched, a.Candidate)
		}
	}
	assert.Equal(t, []string{"Mary Smith", "John Smith"}, searched)
}

func TestProcessExtraction_SearchFailuresAreNotFatal(t *testing.T) {
	crm := &crmServer{status: http.StatusInternalServerError}
	p := newProcessor(t, crm, "test-key", nil)

	payload, err := p.ProcessExtraction(context.Background(), model.Extraction{
		Fields: model.RawFields{model.FieldPayor: "Jane Doe"},
	})
	require.NoError(t, err)

	assert.Empty(t, payload.Candidates)
	require.NotEmpty(t, payload.SearchLog)
	for _, a := range payload.SearchLog {
		assert.Contains(t, a.Error, "500")
	}
}

func TestProcessExtraction_MissingKeyIsFatal(t *testing.T) {
	crm := &crmServer{}
	p := newProcessor(t, crm, "", nil)

	payload, err := p.ProcessExtraction(context.Background(), model.Extraction{
		Fields: model.RawFields{model.FieldPayor: "Jane Doe"},
	})
	require.Error(t, err)
	assert.Nil(t, payload)
	assert.True(t, eris.Is(err, bloomerang.ErrMissingAPIKey))
}

func TestProcessExtraction_NoPayor(t *testing.T) {
	crm := &crmServer{}
	p := newProcessor(t, crm, "", nil)

	payload, err := p.ProcessExtraction(context.Background(), model.Extraction{})
	require.NoError(t, err)

	data, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"fields":{},"candidates":[],"searchLog":[]}`, string(data))
}

func TestProcessImage(t *testing.T) {
	crm := &crmServer{}
	ex := new(MockExtractor)
	img := []byte("jpeg-bytes")
	ex.On("Extract", mock.Anything, img, "image/jpeg").Return(&model.Extraction{
		Fields: model.RawFields{model.FieldPayor: "Dr. Jane A. Doe", model.FieldCheckNumber: "1001"},
	}, nil)

	p := newProcessor(t, crm, "test-key", ex)
	payload, err := p.ProcessImage(context.Background(), img, "image/jpeg")
	require.NoError(t, err)

	assert.Equal(t, "1001", payload.Fields.CheckNumber)
	assert.Equal(t, "Dr. Jane A. Doe", payload.Fields.DonorName)
	assert.Contains(t, crm.queries, "Jane A Doe")
	assert.Contains(t, crm.queries, "Jane Doe")
	ex.AssertExpectations(t)
}

func TestProcessImage_ExtractorError(t *testing.T) {
	ex := new(MockExtractor)
	ex.On("Extract", mock.Anything, mock.Anything, mock.Anything).Return(nil, eris.New("anthropic: create message"))

	p := newProcessor(t, &crmServer{}, "test-key", ex)
	_, err := p.ProcessImage(context.Background(), []byte("x"), "image/png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "check: extract fields")
}

func TestProcessImage_NoExtractor(t *testing.T) {
	p := newProcessor(t, &crmServer{}, "test-key", nil)
	_, err := p.ProcessImage(context.Background(), []byte("x"), "image/png")
	assert.True(t, eris.Is(err, ErrNoExtractor))
}
