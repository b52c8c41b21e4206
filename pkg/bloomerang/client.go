// Package bloomerang provides a client for the Bloomerang CRM constituent search API.
package bloomerang

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public Bloomerang v2 API.
const DefaultBaseURL = "https://api.bloomerang.co/v2"

// maxBodySnippet bounds how much of a failed response body ends up in an error.
const maxBodySnippet = 200

// ErrMissingAPIKey is returned when no API key is configured. No search can
// succeed without one, so callers treat it as fatal.
var ErrMissingAPIKey = eris.New("bloomerang: missing API key")

// Client defines the constituent search operations used by donor matching.
type Client interface {
	// Validate reports a configuration problem that would fail every search.
	Validate() error
	// TextQueryURL builds a free-text constituent search URL.
	TextQueryURL(text string) string
	// NameQueryURL builds a constituent search URL with separate first and last names.
	NameQueryURL(first, last string) string
	// Search executes one query URL. It never retries.
	Search(ctx context.Context, queryURL string) (*SearchResult, error)
}

// Constituent is a donor record with a valid numeric identifier.
type Constituent struct {
	ID            string
	FirstName     string
	LastName      string
	HouseholdName string
	DisplayName   string
}

// Label renders "<best available name> (ID <id>)".
func (c Constituent) Label() string {
	name := strings.TrimSpace(strings.Join(nonEmpty(c.FirstName, c.LastName), " "))
	switch {
	case name != "":
	case strings.TrimSpace(c.HouseholdName) != "":
		name = strings.TrimSpace(c.HouseholdName)
	case strings.TrimSpace(c.DisplayName) != "":
		name = strings.TrimSpace(c.DisplayName)
	default:
		name = "Unknown"
	}
	return name + " (ID " + c.ID + ")"
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// SearchResult is a successful (2xx) search response.
type SearchResult struct {
	Status       int
	Constituents []Constituent
}

// Option configures the Bloomerang client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit paces outgoing searches to rps requests per second.
// A non-positive rps disables pacing.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a new Bloomerang client. An empty apiKey yields a client
// whose Validate and Search return ErrMissingAPIKey.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: DefaultBaseURL,
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Validate() error {
	if c.apiKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

func (c *httpClient) TextQueryURL(text string) string {
	return c.baseURL + "/constituents?" + url.Values{"searchText": {text}}.Encode()
}

func (c *httpClient) NameQueryURL(first, last string) string {
	return c.baseURL + "/constituents?" + url.Values{
		"searchFirstName": {first},
		"searchLastName":  {last},
	}.Encode()
}

func (c *httpClient) Search(ctx context.Context, queryURL string) (*SearchResult, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "bloomerang: rate limit wait")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "bloomerang: create request")
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "bloomerang: request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "bloomerang: read response body (status %d)", resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, eris.Errorf("bloomerang: unexpected status %d: %s", resp.StatusCode, snippet(body))
	}

	constituents, err := decodeConstituents(body)
	if err != nil {
		return nil, eris.Errorf("bloomerang: unparseable response (status %d): %s", resp.StatusCode, snippet(body))
	}

	return &SearchResult{Status: resp.StatusCode, Constituents: constituents}, nil
}

type wireConstituent struct {
	ID            json.RawMessage `json:"id"`
	FirstName     string          `json:"firstName"`
	LastName      string          `json:"lastName"`
	HouseholdName string          `json:"householdName"`
	DisplayName   string          `json:"displayName"`
}

// decodeConstituents accepts either a bare array or {"results": [...]}.
// Records without a numeric id, or with malformed name fields, are dropped.
func decodeConstituents(body []byte) ([]Constituent, error) {
	body = bytes.TrimSpace(body)

	var raw []json.RawMessage
	switch {
	case len(body) > 0 && body[0] == '[':
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, err
		}
	case len(body) > 0 && body[0] == '{':
		var envelope struct {
			Results []json.RawMessage `json:"results"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, err
		}
		raw = envelope.Results
	default:
		return nil, eris.New("bloomerang: response is not a JSON array or object")
	}

	out := make([]Constituent, 0, len(raw))
	for _, r := range raw {
		var w wireConstituent
		if err := json.Unmarshal(r, &w); err != nil {
			continue
		}
		id, ok := numericID(w.ID)
		if !ok {
			continue
		}
		out = append(out, Constituent{
			ID:            id,
			FirstName:     w.FirstName,
			LastName:      w.LastName,
			HouseholdName: w.HouseholdName,
			DisplayName:   w.DisplayName,
		})
	}
	return out, nil
}

// numericID accepts only JSON numbers; quoted ids and null are rejected.
func numericID(raw json.RawMessage) (string, bool) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" || s[0] == '"' {
		return "", false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return "", false
	}
	return strconv.FormatFloat(f, 'f', -1, 64), true
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	r := []rune(s)
	if len(r) > maxBodySnippet {
		return string(r[:maxBodySnippet])
	}
	return s
}
