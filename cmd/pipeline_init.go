package main

import (
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/check-match/internal/check"
	"github.com/sells-group/check-match/internal/config"
	"github.com/sells-group/check-match/internal/extract"
	"github.com/sells-group/check-match/internal/match"
	anthropicpkg "github.com/sells-group/check-match/pkg/anthropic"
	"github.com/sells-group/check-match/pkg/bloomerang"
)

// pipelineEnv holds the initialized clients and the check processor needed
// by the serve/check/match/batch commands.
type pipelineEnv struct {
	Processor *check.Processor
	// Extractor is nil when no Anthropic key is configured.
	Extractor *extract.Extractor
	CRM       bloomerang.Client
}

// initPipeline validates config for mode and wires the processor. Missing API
// keys do not fail startup; they surface as configuration errors on the
// operations that need them.
func initPipeline(c *config.Config, mode string, anthropicClient anthropicpkg.Client) (*pipelineEnv, error) {
	if c == nil {
		return nil, eris.New("config not loaded")
	}
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	crmOpts := []bloomerang.Option{bloomerang.WithRateLimit(c.Bloomerang.RequestsPerSecond)}
	if c.Bloomerang.BaseURL != "" {
		crmOpts = append(crmOpts, bloomerang.WithBaseURL(c.Bloomerang.BaseURL))
	}
	if c.Bloomerang.TimeoutSecs > 0 {
		crmOpts = append(crmOpts, bloomerang.WithHTTPClient(&http.Client{
			Timeout: time.Duration(c.Bloomerang.TimeoutSecs) * time.Second,
		}))
	}
	crm := bloomerang.NewClient(c.Bloomerang.Key, crmOpts...)
	if err := crm.Validate(); err != nil {
		zap.L().Warn("CHECKMATCH_BLOOMERANG_KEY not set, donor searches will fail", zap.Error(err))
	}

	matcher := match.NewMatcher(crm, match.WithConcurrency(c.Match.MaxConcurrentQueries))

	var ex check.Extractor
	extractor, err := extract.New(c.Anthropic, anthropicClient)
	switch {
	case eris.Is(err, extract.ErrNotConfigured):
		zap.L().Warn("CHECKMATCH_ANTHROPIC_KEY not set, image extraction disabled")
		extractor = nil
	case err != nil:
		return nil, eris.Wrap(err, "init extractor")
	default:
		ex = extractor
	}

	if c.Match.KnownPayee == "" {
		zap.L().Warn("match.known_payee not set, the organisation name may be searched as a donor")
	}

	return &pipelineEnv{
		Processor: check.NewProcessor(ex, matcher, c.Match.KnownPayee),
		Extractor: extractor,
		CRM:       crm,
	}, nil
}
