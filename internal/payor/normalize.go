// Package payor turns the free-text payor line of a check into clean person names.
package payor

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// honorifics lists the titles stripped from the start of a name. Joint forms
// come first so "Mr and Mrs" is removed whole instead of leaving "and Mrs".
var honorifics = []string{
	"mr and mrs",
	"mr & mrs",
	"mr/mrs",
	"mr",
	"mrs",
	"ms",
	"dr",
	"miss",
	"sir",
	"madam",
	"rev",
	"mister",
	"madame",
}

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	nameWordRe   = regexp.MustCompile(`[A-Za-z]+(?:['-][A-Za-z]+)*`)
	honorificRes = compileHonorifics(honorifics)
)

// compileHonorifics builds one anchored pattern per honorific. Each word may
// carry a trailing period and the title must be followed by whitespace or
// end the string.
func compileHonorifics(list []string) []*regexp.Regexp {
	word := regexp.MustCompile(`[a-z]+`)
	out := make([]*regexp.Regexp, 0, len(list))
	for _, h := range list {
		p := word.ReplaceAllString(regexp.QuoteMeta(h), `$0\.?`)
		p = strings.ReplaceAll(p, " ", `\s+`)
		out = append(out, regexp.MustCompile(`(?i)^`+p+`(?:\s+|$)`))
	}
	return out
}

// NormalizeWhitespace collapses runs of whitespace to a single space and trims both ends.
func NormalizeWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// StripHonorifics removes a leading title such as "Mr." or "Mr & Mrs".
// Titles elsewhere in the string are left alone.
func StripHonorifics(s string) string {
	s = NormalizeWhitespace(s)
	for _, re := range honorificRes {
		if loc := re.FindStringIndex(s); loc != nil {
			return NormalizeWhitespace(s[loc[1]:])
		}
	}
	return s
}

// ExtractNameWords keeps only runs of letters (with internal apostrophes or
// hyphens) and joins them with single spaces. Accented letters are folded to
// their ASCII base first.
func ExtractNameWords(s string) string {
	s = strings.NewReplacer("’", "'", "‘", "'").Replace(foldDiacritics(s))
	return strings.Join(nameWordRe.FindAllString(s, -1), " ")
}

// IsKnownPayee reports whether value names the known payee, comparing
// lowercase letters only. An empty known payee matches nothing.
func IsKnownPayee(value, knownPayee string) bool {
	want := lettersOnly(knownPayee)
	if want == "" {
		return false
	}
	return lettersOnly(value) == want
}

func lettersOnly(s string) string {
	s = strings.ToLower(foldDiacritics(s))
	var b strings.Builder
	for _, r := range s {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
