package match

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/check-match/internal/model"
	"github.com/sells-group/check-match/internal/payor"
	"github.com/sells-group/check-match/pkg/bloomerang"
)

// DefaultConcurrency bounds in-flight searches when no limit is configured.
const DefaultConcurrency = 8

// SkipNote explains a log entry for a candidate that produced no query.
const SkipNote = "skipped: empty name"

// Result is the deduplicated candidate list plus the full attempt log.
type Result struct {
	Candidates []model.DonorCandidate
	SearchLog  []model.SearchAttempt
}

// Matcher runs every variant of every payor name against the CRM.
type Matcher struct {
	client      bloomerang.Client
	concurrency int
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithConcurrency bounds the number of searches in flight. It does not change
// which searches run; every variant is still attempted once.
func WithConcurrency(n int) Option {
	return func(m *Matcher) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

// NewMatcher creates a Matcher backed by the given search client.
func NewMatcher(client bloomerang.Client, opts ...Option) *Matcher {
	m := &Matcher{client: client, concurrency: DefaultConcurrency}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type job struct {
	candidate string
	variant   Variant
	skip      bool
}

type outcome struct {
	result *bloomerang.SearchResult
	err    error
}

// Match searches for every name and merges the results. Individual search
// failures are recorded in the log and never returned; the only errors are a
// misconfigured search client and cancellation of ctx.
func (m *Matcher) Match(ctx context.Context, names []string) (*Result, error) {
	var jobs []job
	searches := 0
	for _, name := range names {
		if payor.NormalizeWhitespace(name) == "" {
			jobs = append(jobs, job{candidate: name, skip: true})
			continue
		}
		for _, v := range Expand(name, m.client) {
			jobs = append(jobs, job{candidate: name, variant: v})
			searches++
		}
	}

	if searches > 0 {
		if err := m.client.Validate(); err != nil {
			zap.L().Error("donor search not configured", zap.Error(err))
			return nil, eris.Wrap(err, "match: search client")
		}
	}

	outcomes := make([]outcome, len(jobs))
	var g errgroup.Group
	g.SetLimit(m.concurrency)
	for i, j := range jobs {
		i, j := i, j
		if j.skip {
			continue
		}
		g.Go(func() error {
			res, err := m.client.Search(ctx, j.variant.URL)
			outcomes[i] = outcome{result: res, err: err}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "match: cancelled")
	}

	return reduce(jobs, outcomes), nil
}

// reduce merges settled outcomes in job order. It is the only writer of the
// seen-id set.
func reduce(jobs []job, outcomes []outcome) *Result {
	res := &Result{
		Candidates: []model.DonorCandidate{},
		SearchLog:  make([]model.SearchAttempt, 0, len(jobs)),
	}
	seen := make(map[string]bool)

	for i, j := range jobs {
		attempt := model.SearchAttempt{
			Candidate: j.candidate,
			Label:     j.variant.Label,
			Query:     j.variant.Query,
			URL:       j.variant.URL,
		}

		switch o := outcomes[i]; {
		case j.skip:
			zero := 0
			attempt.ResultCount = &zero
			attempt.Note = SkipNote
		case o.err != nil:
			attempt.Error = o.err.Error()
			zap.L().Warn("donor search failed",
				zap.String("candidate", j.candidate),
				zap.String("query", j.variant.Query),
				zap.Error(o.err),
			)
		default:
			var found []bloomerang.Constituent
			if o.result != nil {
				found = o.result.Constituents
			}
			count := len(found)
			attempt.ResultCount = &count
			for _, c := range found {
				if c.ID == "" || seen[c.ID] {
					continue
				}
				seen[c.ID] = true
				res.Candidates = append(res.Candidates, model.DonorCandidate{ID: c.ID, Name: c.Label()})
			}
		}

		res.SearchLog = append(res.SearchLog, attempt)
	}

	return res
}
