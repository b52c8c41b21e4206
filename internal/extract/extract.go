// Package extract reads raw check fields from an image with a vision-capable Claude model.
package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/check-match/internal/check"
	"github.com/sells-group/check-match/internal/config"
	"github.com/sells-group/check-match/internal/model"
	"github.com/sells-group/check-match/pkg/anthropic"
)

// ErrNotConfigured is returned when no Anthropic API key is available.
var ErrNotConfigured = eris.New("extract: anthropic API key not configured")

// ErrUnsupportedImage is returned for uploads that are not a supported image type.
var ErrUnsupportedImage = eris.New("extract: unsupported image type")

const phase = "check_extraction"

const systemPrompt = `You extract donation check details from an uploaded image.
Return only a JSON object with these string keys: date (YYYY-MM-DD), amountNumeric, amountWritten, payor, payee, memo, checkNumber, routingNumber, accountNumber.
Also include payorNames: an array of the individual people who wrote the check, only when confidently inferred.
If a value is unclear, use an empty string.
The payor is the person or organization writing the check, not the recipient (payee).`

const userPrompt = "Scan this check image and return the date, amounts, memo, check number and payor name (the check writer)."

var supportedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// Extractor implements check.Extractor with an Anthropic client.
type Extractor struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// New creates an Extractor from config.
func New(cfg config.AnthropicConfig, client anthropic.Client) (*Extractor, error) {
	if client == nil {
		if strings.TrimSpace(cfg.Key) == "" {
			return nil, ErrNotConfigured
		}
		client = anthropic.NewClient(cfg.Key)
	}
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Extractor{client: client, model: cfg.Model, maxTokens: maxTokens}, nil
}

var _ check.Extractor = (*Extractor)(nil)

// Extract sends the image to the model and parses its reply. A reply that is
// not a JSON object yields an empty Extraction rather than an error.
func (e *Extractor) Extract(ctx context.Context, image []byte, mediaType string) (*model.Extraction, error) {
	mediaType, err := MediaType(image, mediaType)
	if err != nil {
		return nil, err
	}

	temp := 0.0
	resp, err := e.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       e.model,
		MaxTokens:   e.maxTokens,
		System:      []anthropic.SystemBlock{{Text: systemPrompt}},
		Temperature: &temp,
		Messages: []anthropic.Message{{
			Role:    "user",
			Content: userPrompt,
			Images:  []anthropic.Image{{MediaType: mediaType, Data: image}},
		}},
	})
	if err != nil {
		return nil, eris.Wrap(err, "extract: model call")
	}
	resp.Usage.LogCost(e.model, phase)

	ext := Parse(resp.Text())
	return &ext, nil
}

// MediaType resolves the image type from the declared content type, sniffing
// the bytes when the declaration is missing or generic.
func MediaType(image []byte, declared string) (string, error) {
	if len(image) == 0 {
		return "", eris.Wrap(ErrUnsupportedImage, "extract: empty image")
	}
	mt := strings.ToLower(strings.TrimSpace(strings.Split(declared, ";")[0]))
	if mt == "image/jpg" {
		mt = "image/jpeg"
	}
	if !supportedTypes[mt] {
		mt = http.DetectContentType(image)
	}
	if !supportedTypes[mt] {
		return "", eris.Wrapf(ErrUnsupportedImage, "extract: %s", mt)
	}
	return mt, nil
}

// Parse decodes the model's reply. Code fences and prose around the JSON
// object are tolerated; anything unparseable is treated as {}.
func Parse(text string) model.Extraction {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		if strings.TrimSpace(text) != "" {
			zap.L().Warn("extract: reply has no JSON object", zap.Int("length", len(text)))
		}
		return check.ExtractionFromMap(nil)
	}

	var m map[string]any
	if err := json.Unmarshal([]byte(text[start:end+1]), &m); err != nil {
		zap.L().Warn("extract: unparseable reply", zap.Error(err))
		return check.ExtractionFromMap(nil)
	}
	return check.ExtractionFromMap(m)
}
