package payor

import (
	"regexp"
	"strings"
)

// MaxCandidates caps the names kept per check: one signer or two joint signers.
const MaxCandidates = 2

var (
	separatorRe = regexp.MustCompile(`[:,]`)
	fillerRe    = regexp.MustCompile(`(?i)\b(?:payor|payer|from|by|for)\b`)
	ampEntityRe = regexp.MustCompile(`(?i)&amp;`)
	jointRe     = regexp.MustCompile(`(?i)\band\b|[&+/]`)
)

// ExtractPayorNames splits a payor line into at most two clean person names.
// "John Smith and Mary" yields ["John Smith", "Mary Smith"].
func ExtractPayorNames(text string) []string {
	cleaned := separatorRe.ReplaceAllString(text, " ")
	cleaned = fillerRe.ReplaceAllString(cleaned, " ")
	cleaned = ampEntityRe.ReplaceAllString(cleaned, "&")

	var segments []string
	for _, seg := range jointRe.Split(cleaned, -1) {
		seg = NormalizeWhitespace(ExtractNameWords(StripHonorifics(seg)))
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	if len(segments) == 0 {
		return nil
	}

	if len(segments) > MaxCandidates {
		segments = segments[:MaxCandidates]
	}
	return attachSharedLastName(segments)
}

// attachSharedLastName gives a bare second first name the first signer's last name.
func attachSharedLastName(parts []string) []string {
	if len(parts) != 2 || strings.Contains(parts[1], " ") {
		return parts
	}

	words := strings.Split(parts[0], " ")
	last := words[len(words)-1]
	if last == "" || strings.EqualFold(last, parts[1]) {
		return parts
	}
	return []string{parts[0], parts[1] + " " + last}
}

// ResolveCandidates merges model-supplied payor names with names inferred from
// the raw payor field. Explicit names come first, duplicates are removed
// case-insensitively, the known payee is excluded and at most two names are kept.
func ResolveCandidates(payorNames []string, payor, knownPayee string) []string {
	var merged []string
	for _, name := range payorNames {
		merged = append(merged, ExtractPayorNames(name)...)
	}
	if payor = NormalizeWhitespace(payor); payor != "" && !IsKnownPayee(payor, knownPayee) {
		merged = append(merged, ExtractPayorNames(payor)...)
	}

	seen := make(map[string]bool, len(merged))
	out := make([]string, 0, MaxCandidates)
	for _, name := range merged {
		key := strings.ToLower(name)
		if seen[key] || IsKnownPayee(name, knownPayee) {
			continue
		}
		seen[key] = true
		out = append(out, name)
		if len(out) == MaxCandidates {
			break
		}
	}
	return out
}
