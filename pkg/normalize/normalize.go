// Package normalize cleans product names and image file names into a
// comparable form for fuzzy matching.
package normalize

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// A leading internal product code: "rr123-big-bang" or "xk2201 big bang".
	codePrefix = regexp.MustCompile(`^[a-z0-9]{3,30}[-\s]`)

	separators = strings.NewReplacer("_", " ", "-", " ", "/", " ", `\`, " ")

	termWords = splitTerms(descriptiveTerms)
)

func splitTerms(terms []string) [][]string {
	out := make([][]string, 0, len(terms))
	for _, term := range terms {
		out = append(out, strings.Fields(term))
	}
	// Greedy: longer phrases win over their single-word parts.
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}

// Clean lowercases and simplifies a product or file name.
//
// When stripCode is set, a leading alphanumeric code token (3 to 30
// characters followed by a hyphen or whitespace) is removed first; use it
// only for directories whose vendor prefixes file names with product codes.
//
// Names of two tokens or fewer, and names containing any digit, are returned
// after character cleaning only. Longer names additionally lose descriptive
// marketing terms and stop words. Clean never reduces a non-empty name to the
// empty string, and Clean(Clean(x, false), false) == Clean(x, false).
func Clean(raw string, stripCode bool) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = foldDiacritics(s)

	if stripCode {
		s = codePrefix.ReplaceAllString(s, "")
	}

	s = separators.Replace(s)
	s = strings.Map(keepAlnum, s)

	tokens := strings.Fields(s)
	base := strings.Join(tokens, " ")
	if len(tokens) <= 2 || hasDigit(tokens) {
		return base
	}

	reduced := reduce(tokens)
	if len(reduced) == 0 {
		return base
	}
	return strings.Join(reduced, " ")
}

func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}

func keepAlnum(r rune) rune {
	switch {
	case unicode.IsLetter(r), unicode.IsDigit(r):
		return r
	case unicode.IsSpace(r):
		return ' '
	default:
		return -1
	}
}

func hasDigit(tokens []string) bool {
	for _, tok := range tokens {
		for _, r := range tok {
			if unicode.IsDigit(r) {
				return true
			}
		}
	}
	return false
}

// reduce removes terms until nothing more can be removed. Removing a stop
// word can join two tokens into a descriptive phrase, so one pass is not
// always enough.
func reduce(tokens []string) []string {
	for {
		next := removeTerms(tokens)
		if len(next) == len(tokens) {
			return next
		}
		tokens = next
	}
}

func removeTerms(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); {
		if n := matchTerm(tokens[i:]); n > 0 {
			i += n
			continue
		}
		if stopWords[tokens[i]] {
			i++
			continue
		}
		out = append(out, tokens[i])
		i++
	}
	return out
}

// matchTerm returns how many leading tokens form a descriptive term.
func matchTerm(tokens []string) int {
	for _, words := range termWords {
		if len(words) > len(tokens) {
			continue
		}
		matched := true
		for k, w := range words {
			if tokens[k] != w {
				matched = false
				break
			}
		}
		if matched {
			return len(words)
		}
	}
	return 0
}
