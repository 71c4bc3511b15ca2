package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRatio(t *testing.T) {
	assert.Equal(t, 100, Ratio("big bang", "big bang"))
	assert.Equal(t, 0, Ratio("", "big bang"))
	assert.Equal(t, 0, Ratio("big bang", ""))
	assert.Equal(t, 75, Ratio("abcd", "abce"))
	assert.Equal(t, 0, Ratio("abc", "xyz"))
}

func TestMatch_NoCandidates(t *testing.T) {
	res := New().Match(Query{ItemName: "Big Bang", SKU: "BB1"}, nil)
	assert.False(t, res.Matched())
	assert.Equal(t, 0, res.Score)
	assert.Equal(t, TierNone, res.Tier)
}

func TestMatch_VendorSKUBoundary(t *testing.T) {
	q := Query{ItemName: "Artillery Shells - Crackling", VendorSKU: "RR123"}
	res := New().Match(q, []string{"Night-Owl.png", "RR123-big-bang.png"})

	assert.Equal(t, "RR123-big-bang.png", res.File)
	assert.Equal(t, TierVendorSKUBoundary, res.Tier)
	assert.Equal(t, 100, res.Score)
}

func TestMatch_NameFuzzyFallback(t *testing.T) {
	q := Query{ItemName: "What Girl Wants Backpack"}
	res := New().Match(q, []string{"Thunder Rocket.png", "What A Girl Wants Backpack.png"})

	require.True(t, res.Matched())
	assert.Equal(t, TierNameFuzzy, res.Tier)
	assert.Equal(t, "What A Girl Wants Backpack.png", res.File)
	assert.GreaterOrEqual(t, res.Score, DefaultThreshold)
}

func TestMatch_SKUBeatsPerfectFuzzy(t *testing.T) {
	q := Query{ItemName: "Artillery Shells Crackling", SKU: "AS100"}
	candidates := []string{"Artillery Shells Crackling.png", "zz-AS100.jpg"}
	res := New().Match(q, candidates)

	assert.Equal(t, "zz-AS100.jpg", res.File)
	assert.Equal(t, TierSKUBoundary, res.Tier)
	assert.True(t, res.Tier.IsSKU())
}

func TestMatch_ExactBeforeBoundary(t *testing.T) {
	q := Query{SKU: "AB12"}
	res := New().Match(q, []string{"ab12-extra.png", "AB12.jpg"})

	assert.Equal(t, "AB12.jpg", res.File)
	assert.Equal(t, TierSKUExact, res.Tier)
}

func TestMatch_CatalogSKUBeforeVendorSKU(t *testing.T) {
	q := Query{SKU: "CAT-1", VendorSKU: "V200"}
	res := New().Match(q, []string{"V200.png", "photo cat-1 front.png"})

	assert.Equal(t, "photo cat-1 front.png", res.File)
	assert.Equal(t, TierSKUBoundary, res.Tier)
}

func TestMatch_BoundaryRejectsEmbeddedSKU(t *testing.T) {
	q := Query{SKU: "12"}
	res := New().Match(q, []string{"x123.png"})
	assert.False(t, res.Matched())
}

func TestMatch_VendorSKUCompact(t *testing.T) {
	q := Query{VendorSKU: "RR-123"}
	res := New().Match(q, []string{"other.png", "rr123 big bang.png"})

	assert.Equal(t, "rr123 big bang.png", res.File)
	assert.Equal(t, TierVendorSKUCompact, res.Tier)
}

func TestMatch_FuzzyStopsAtPerfectScore(t *testing.T) {
	calls := 0
	counting := func(a, b string) int {
		calls++
		return Ratio(a, b)
	}
	q := Query{ItemName: "What Girl Wants Backpack"}
	candidates := []string{
		"What A Girl Wants Backpack.png",
		"what girl wants backpack.jpg",
		"other.png",
	}

	res := New(WithRatio(counting)).Match(q, candidates)

	assert.Equal(t, "What A Girl Wants Backpack.png", res.File)
	assert.Equal(t, 100, res.Score)
	assert.Equal(t, 1, res.Compared)
	assert.Equal(t, 1, calls)
}

func TestMatch_BelowThresholdReportsBestScore(t *testing.T) {
	q := Query{ItemName: "What Girl Wants Backpack"}
	res := New().Match(q, []string{"Thunder Rocket.png", "Night Owl.png"})

	assert.False(t, res.Matched())
	assert.Empty(t, res.File)
	assert.Greater(t, res.Score, 0)
	assert.Less(t, res.Score, DefaultThreshold)
	assert.Equal(t, 2, res.Compared)
}

func TestMatch_StripCodesOnCandidates(t *testing.T) {
	q := Query{ItemName: "Night Owl Mine", StripCodes: true}
	res := New().Match(q, []string{"XK2201-night-owl-mine.jpg"})

	assert.Equal(t, TierNameFuzzy, res.Tier)
	assert.Equal(t, 100, res.Score)
}

func TestMatch_CustomThreshold(t *testing.T) {
	q := Query{ItemName: "abcd efgh"}
	res := New(WithThreshold(95)).Match(q, []string{"abcd efgx.png"})
	assert.False(t, res.Matched())
}

func TestTierString(t *testing.T) {
	assert.Equal(t, "vendor-sku-boundary", TierVendorSKUBoundary.String())
	assert.Equal(t, "name-fuzzy", TierNameFuzzy.String())
	assert.Equal(t, "none", TierNone.String())
	assert.False(t, TierNameFuzzy.IsSKU())
}
