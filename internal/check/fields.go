package check

import (
	"github.com/sells-group/check-match/internal/model"
	"github.com/sells-group/check-match/internal/payor"
)

// payorNamesKey is the optional list of explicit payor names in extraction output.
const payorNamesKey = "payorNames"

// ExtractionFromMap converts a decoded JSON object into an Extraction.
// Unknown keys and non-string values are discarded, strings are
// whitespace-normalized and blank values are treated as absent. A nil map
// yields an empty Extraction.
func ExtractionFromMap(m map[string]any) model.Extraction {
	ext := model.Extraction{Fields: model.RawFields{}}

	for _, key := range model.RawFieldNames {
		s, ok := m[key].(string)
		if !ok {
			continue
		}
		if s = payor.NormalizeWhitespace(s); s != "" {
			ext.Fields[key] = s
		}
	}

	if names, ok := m[payorNamesKey].([]any); ok {
		for _, n := range names {
			s, ok := n.(string)
			if !ok {
				continue
			}
			if s = payor.NormalizeWhitespace(s); s != "" {
				ext.PayorNames = append(ext.PayorNames, s)
			}
		}
	}

	return ext
}

// SanitizeFields builds the review field set. Bank routing and account
// numbers are never carried over, the payor is dropped when it names the
// known payee, and an unset donor name falls back to the first candidate.
func SanitizeFields(raw model.RawFields, candidates []string, knownPayee string) model.ReviewFields {
	var f model.ReviewFields

	f.Date, _ = raw.Get(model.FieldDate)
	f.CheckNumber, _ = raw.Get(model.FieldCheckNumber)
	f.Memo, _ = raw.Get(model.FieldMemo)
	f.Payee, _ = raw.Get(model.FieldPayee)

	if amount, ok := raw.Get(model.FieldAmountNumeric); ok {
		f.Amount = amount
	} else {
		f.Amount, _ = raw.Get(model.FieldAmountWritten)
	}

	if p, ok := raw.Get(model.FieldPayor); ok && !payor.IsKnownPayee(p, knownPayee) {
		f.DonorName = p
	}
	if f.DonorName == "" && len(candidates) > 0 {
		f.DonorName = candidates[0]
	}

	return f
}
