// Package check turns one photographed check into a review payload.
package check

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/check-match/internal/match"
	"github.com/sells-group/check-match/internal/model"
	"github.com/sells-group/check-match/internal/payor"
)

// ErrNoExtractor is returned by ProcessImage when no extraction model is configured.
var ErrNoExtractor = eris.New("check: image extraction not configured")

// Extractor reads raw fields from a check image.
type Extractor interface {
	Extract(ctx context.Context, image []byte, mediaType string) (*model.Extraction, error)
}

// Matcher searches the CRM for donor candidates.
type Matcher interface {
	Match(ctx context.Context, names []string) (*match.Result, error)
}

// Processor runs the per-check pipeline. It holds no per-request state and
// is safe for concurrent use.
type Processor struct {
	extractor  Extractor
	matcher    Matcher
	knownPayee string
}

// NewProcessor creates a Processor. extractor may be nil, in which case only
// ProcessExtraction is usable.
func NewProcessor(extractor Extractor, matcher Matcher, knownPayee string) *Processor {
	return &Processor{
		extractor:  extractor,
		matcher:    matcher,
		knownPayee: knownPayee,
	}
}

// ProcessImage extracts fields from the image and matches the payor.
func (p *Processor) ProcessImage(ctx context.Context, image []byte, mediaType string) (*model.Payload, error) {
	if p.extractor == nil {
		return nil, ErrNoExtractor
	}

	ext, err := p.extractor.Extract(ctx, image, mediaType)
	if err != nil {
		return nil, eris.Wrap(err, "check: extract fields")
	}
	if ext == nil {
		ext = &model.Extraction{}
	}

	return p.ProcessExtraction(ctx, *ext)
}

// ProcessExtraction sanitizes already-extracted fields and matches the payor.
// The payload is returned whole or not at all.
func (p *Processor) ProcessExtraction(ctx context.Context, ext model.Extraction) (*model.Payload, error) {
	if ext.Fields == nil {
		ext.Fields = model.RawFields{}
	}

	payorText, _ := ext.Fields.Get(model.FieldPayor)
	candidates := payor.ResolveCandidates(ext.PayorNames, payorText, p.knownPayee)
	fields := SanitizeFields(ext.Fields, candidates, p.knownPayee)

	zap.L().Debug("payor candidates resolved",
		zap.String("payor", payorText),
		zap.Strings("candidates", candidates),
	)

	result, err := p.matcher.Match(ctx, candidates)
	if err != nil {
		return nil, eris.Wrap(err, "check: match donors")
	}

	return &model.Payload{
		Fields:     fields,
		Candidates: result.Candidates,
		SearchLog:  result.SearchLog,
	}, nil
}
