// Package match searches the CRM for donors matching a check's payor names.
package match

import (
	"strings"
	"unicode/utf8"

	"github.com/sells-group/check-match/internal/payor"
)

// Variant labels, as shown in the search log.
const (
	LabelFullName   = "full name"
	LabelLoosened   = "without middle initials"
	LabelLastFirst  = "last, first"
	LabelLastName   = "last name only"
	LabelFirstName  = "first name only"
	LabelStructured = "first/last fields"
)

// URLBuilder builds search URLs for the two query shapes.
type URLBuilder interface {
	TextQueryURL(text string) string
	NameQueryURL(first, last string) string
}

// Variant is one phrasing of a candidate name as a single search request.
type Variant struct {
	Label string
	Query string
	URL   string
}

// Expand produces the ordered search variants for one candidate name.
// Variants are unique by query text and by URL.
func Expand(name string, urls URLBuilder) []Variant {
	full := payor.NormalizeWhitespace(name)
	if full == "" {
		return nil
	}
	parts := strings.Split(full, " ")

	var out []Variant
	seenQuery := make(map[string]bool)
	seenURL := make(map[string]bool)
	add := func(label, query, u string) {
		if query == "" || seenQuery[query] || seenURL[u] {
			return
		}
		seenQuery[query] = true
		seenURL[u] = true
		out = append(out, Variant{Label: label, Query: query, URL: u})
	}
	addText := func(label, query string) {
		add(label, query, urls.TextQueryURL(query))
	}

	addText(LabelFullName, full)
	addText(LabelLoosened, loosen(parts))

	if len(parts) < 2 {
		return out
	}
	first, last := parts[0], parts[len(parts)-1]
	addText(LabelLastFirst, last+", "+first)
	addText(LabelLastName, last)
	addText(LabelFirstName, first)
	add(LabelStructured, "firstName="+first+" lastName="+last, urls.NameQueryURL(first, last))

	return out
}

// loosen drops single-letter middle parts ("Jane A Doe" → "Jane Doe").
// Names with fewer than three parts are returned unchanged.
func loosen(parts []string) string {
	if len(parts) < 3 {
		return strings.Join(parts, " ")
	}
	kept := make([]string, 0, len(parts))
	for i, p := range parts {
		if i != 0 && i != len(parts)-1 && utf8.RuneCountInString(p) == 1 {
			continue
		}
		kept = append(kept, p)
	}
	return strings.Join(kept, " ")
}
