package match

import (
	"math"

	"github.com/pmezard/go-difflib/difflib"
)

// Ratio returns the character-level similarity of a and b on a 0-100 scale,
// computed as round(100 * 2M/T) over the longest matching blocks.
func Ratio(a, b string) int {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 100
	}
	m := difflib.NewMatcher(chars(a), chars(b))
	return int(math.Round(100 * m.Ratio()))
}

func chars(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
