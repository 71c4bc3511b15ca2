// Package match picks the image file that belongs to a catalog variation.
//
// Candidates are tried tier by tier and the first tier that produces a hit
// wins: catalog SKU (exact, then at a word boundary), vendor SKU (exact, at a
// word boundary, then with punctuation removed), and finally a fuzzy
// comparison of the cleaned item name against every cleaned file name.
package match

import (
	"path"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/imgsync/imgsync/pkg/normalize"
)

// DefaultThreshold is the minimum fuzzy ratio accepted as a match.
const DefaultThreshold = 80

// minCompactContains is the shortest compacted vendor SKU allowed to match
// by containment rather than equality.
const minCompactContains = 4

// Tier identifies the strategy that produced a match.
type Tier int

const (
	TierNone Tier = iota
	TierSKUExact
	TierSKUBoundary
	TierVendorSKUExact
	TierVendorSKUBoundary
	TierVendorSKUCompact
	TierNameFuzzy
)

func (t Tier) String() string {
	switch t {
	case TierSKUExact:
		return "sku-exact"
	case TierSKUBoundary:
		return "sku-boundary"
	case TierVendorSKUExact:
		return "vendor-sku-exact"
	case TierVendorSKUBoundary:
		return "vendor-sku-boundary"
	case TierVendorSKUCompact:
		return "vendor-sku-compact"
	case TierNameFuzzy:
		return "name-fuzzy"
	default:
		return "none"
	}
}

// IsSKU reports whether the tier matched on a SKU rather than a name.
func (t Tier) IsSKU() bool {
	return t >= TierSKUExact && t <= TierVendorSKUCompact
}

// Query describes the catalog entry being matched.
type Query struct {
	ItemName  string
	SKU       string // catalog-assigned SKU
	VendorSKU string
	// StripCodes enables code-prefix stripping on candidate file names.
	StripCodes bool
}

// Result is the outcome of a match. When Tier is TierNone, Score carries the
// best fuzzy ratio observed, for diagnostics.
type Result struct {
	File     string
	Score    int
	Tier     Tier
	Compared int // candidates scored by the fuzzy tier
}

// Matched reports whether a candidate was chosen.
func (r Result) Matched() bool {
	return r.Tier != TierNone
}

// Matcher matches queries against candidate file names.
type Matcher struct {
	threshold int
	ratio     func(a, b string) int
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithThreshold sets the minimum accepted fuzzy ratio.
func WithThreshold(threshold int) Option {
	return func(m *Matcher) {
		if threshold > 0 && threshold <= 100 {
			m.threshold = threshold
		}
	}
}

// WithRatio replaces the similarity function.
func WithRatio(ratio func(a, b string) int) Option {
	return func(m *Matcher) {
		if ratio != nil {
			m.ratio = ratio
		}
	}
}

// New creates a Matcher.
func New(opts ...Option) *Matcher {
	m := &Matcher{threshold: DefaultThreshold, ratio: Ratio}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Match picks a candidate for q. Candidates are file names (optionally with a
// directory part) and are scanned in the order given.
func (m *Matcher) Match(q Query, candidates []string) Result {
	if len(candidates) == 0 {
		return Result{}
	}

	stems := make([]string, len(candidates))
	for i, c := range candidates {
		stems[i] = strings.ToLower(stem(c))
	}

	if sku := strings.ToLower(strings.TrimSpace(q.SKU)); sku != "" {
		if i := findIndex(stems, func(s string) bool { return s == sku }); i >= 0 {
			return Result{File: candidates[i], Score: 100, Tier: TierSKUExact}
		}
		if i := findIndex(stems, func(s string) bool { return containsAtBoundary(s, sku) }); i >= 0 {
			return Result{File: candidates[i], Score: 100, Tier: TierSKUBoundary}
		}
	}

	if sku := strings.ToLower(strings.TrimSpace(q.VendorSKU)); sku != "" {
		if i := findIndex(stems, func(s string) bool { return s == sku }); i >= 0 {
			return Result{File: candidates[i], Score: 100, Tier: TierVendorSKUExact}
		}
		if i := findIndex(stems, func(s string) bool { return containsAtBoundary(s, sku) }); i >= 0 {
			return Result{File: candidates[i], Score: 100, Tier: TierVendorSKUBoundary}
		}
		if compactSKU := compact(sku); compactSKU != "" {
			i := findIndex(stems, func(s string) bool {
				cs := compact(s)
				if cs == compactSKU {
					return true
				}
				return len(compactSKU) >= minCompactContains && strings.Contains(cs, compactSKU)
			})
			if i >= 0 {
				return Result{File: candidates[i], Score: 100, Tier: TierVendorSKUCompact}
			}
		}
	}

	return m.matchName(q, candidates)
}

func (m *Matcher) matchName(q Query, candidates []string) Result {
	target := normalize.Clean(q.ItemName, false)
	if target == "" {
		return Result{}
	}

	best, bestIdx, compared := 0, -1, 0
	for i, c := range candidates {
		score := m.ratio(target, normalize.Clean(stem(c), q.StripCodes))
		compared++
		if score > best {
			best, bestIdx = score, i
		}
		if score == 100 {
			break
		}
	}

	if bestIdx >= 0 && best >= m.threshold {
		return Result{File: candidates[bestIdx], Score: best, Tier: TierNameFuzzy, Compared: compared}
	}
	return Result{Score: best, Compared: compared}
}

// stem returns the file name without directory or extension.
func stem(name string) string {
	base := path.Base(strings.ReplaceAll(name, `\`, "/"))
	return strings.TrimSuffix(base, path.Ext(base))
}

func findIndex(stems []string, pred func(string) bool) int {
	for i, s := range stems {
		if pred(s) {
			return i
		}
	}
	return -1
}

// containsAtBoundary reports whether sub occurs in s with no letter or digit
// directly before or after it.
func containsAtBoundary(s, sub string) bool {
	for offset := 0; offset <= len(s)-len(sub); {
		j := strings.Index(s[offset:], sub)
		if j < 0 {
			return false
		}
		start := offset + j
		end := start + len(sub)
		if !alnumBefore(s, start) && !alnumAfter(s, end) {
			return true
		}
		_, size := utf8.DecodeRuneInString(s[start:])
		offset = start + size
	}
	return false
}

func alnumBefore(s string, i int) bool {
	if i == 0 {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return isAlnum(r)
}

func alnumAfter(s string, i int) bool {
	if i >= len(s) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return isAlnum(r)
}

func isAlnum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func compact(s string) string {
	return strings.Map(func(r rune) rune {
		if isAlnum(r) {
			return r
		}
		return -1
	}, s)
}
