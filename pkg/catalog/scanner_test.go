package catalog_test

import (
	"context"
	"strings"
	"testing"

	"github.com/imgsync/imgsync/pkg/catalog"
	"github.com/imgsync/imgsync/pkg/catalog/catalogtest"
	"github.com/imgsync/imgsync/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type prefixVendors map[string]string

func (p prefixVendors) Identify(name, annotation string) string {
	for prefix, vendor := range p {
		if strings.HasPrefix(name, prefix) {
			return vendor
		}
	}
	if annotation != "" {
		return annotation
	}
	return "unknown"
}

func item(id string, state string, images []string, variations ...catalog.RemoteVariation) catalog.RemoteItem {
	return catalog.RemoteItem{
		ID:          id,
		Name:        "Item " + id,
		State:       state,
		ProductType: "REGULAR",
		ImageIDs:    images,
		Variations:  variations,
	}
}

func variation(id, name string, images ...string) catalog.RemoteVariation {
	return catalog.RemoteVariation{ID: id, Name: name, SKU: "SKU-" + id, ImageIDs: images}
}

func collect(t *testing.T, s *catalog.Scanner) ([]catalog.Item, error) {
	t.Helper()
	var items []catalog.Item
	for it, err := range s.Scan(context.Background()) {
		if err != nil {
			return items, err
		}
		items = append(items, it)
	}
	return items, nil
}

func TestScan_FiltersItems(t *testing.T) {
	svc := catalogtest.New(2,
		item("i1", "ACTIVE", nil, variation("v1", "RR Big Bang"), variation("v2", "Plain", "img-old")),
		item("i2", "ACTIVE", []string{"img-x"}, variation("v3", "RR Comet")),
		item("i3", "ARCHIVED", nil, variation("v4", "RR Comet")),
		item("i4", "ACTIVE", nil, variation("v5", "Plain", "img-y")),
		item("i5", "active", nil, variation("v6", "Other")),
	)
	svc.SetImages("i2", "img-x")
	svc.SetImages("v5", "img-y")
	svc.SetImages("v2", "img-old")

	scanner := catalog.NewScanner(svc, prefixVendors{"RR": "Raccoon Fireworks"})
	items, err := collect(t, scanner)
	require.NoError(t, err)

	require.Len(t, items, 2)
	assert.Equal(t, "i1", items[0].ID)
	assert.Equal(t, "i5", items[1].ID)

	first := items[0]
	assert.True(t, first.NeedsPrimaryImage)
	require.Len(t, first.Variations, 2)
	assert.Equal(t, "Raccoon Fireworks", first.Variations[0].Vendor)
	assert.True(t, first.Variations[0].NeedsImage)
	assert.False(t, first.Variations[1].NeedsImage)
	assert.Equal(t, "unknown", first.Variations[1].Vendor)
	assert.Equal(t, "i1", first.Variations[0].ItemID)

	stats := scanner.Stats()
	assert.Equal(t, 3, stats.Pages)
	assert.Equal(t, 5, stats.Seen)
	assert.Equal(t, 2, stats.Included)
}

func TestScan_SkipsNonRegularProducts(t *testing.T) {
	gift := item("g1", "ACTIVE", nil, variation("v1", "Card"))
	gift.ProductType = "GIFT_CARD"
	svc := catalogtest.New(0, gift)

	items, err := collect(t, catalog.NewScanner(svc, prefixVendors{}))
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestScan_VendorAnnotationFallback(t *testing.T) {
	v := variation("v1", "Plain")
	v.VendorAnnotation = "World Class"
	svc := catalogtest.New(0, item("i1", "ACTIVE", nil, v))

	items, err := collect(t, catalog.NewScanner(svc, prefixVendors{}))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "World Class", items[0].Variations[0].Vendor)
}

func TestScan_PageFailureKeepsEarlierItems(t *testing.T) {
	svc := catalogtest.New(1,
		item("i1", "ACTIVE", nil, variation("v1", "A")),
		item("i2", "ACTIVE", nil, variation("v2", "B")),
		item("i3", "ACTIVE", nil, variation("v3", "C")),
	)
	svc.FailPage = 2

	items, err := collect(t, catalog.NewScanner(svc, prefixVendors{}))
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
	require.Len(t, items, 1)
	assert.Equal(t, "i1", items[0].ID)
}

func TestScan_StopsWhenConsumerStops(t *testing.T) {
	svc := catalogtest.New(1,
		item("i1", "ACTIVE", nil, variation("v1", "A")),
		item("i2", "ACTIVE", nil, variation("v2", "B")),
	)

	scanner := catalog.NewScanner(svc, prefixVendors{})
	for range scanner.Scan(context.Background()) {
		break
	}
	assert.Equal(t, 1, svc.ListCalls)
}

func TestScan_CanceledContext(t *testing.T) {
	svc := catalogtest.New(0, item("i1", "ACTIVE", nil, variation("v1", "A")))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var gotErr error
	for _, err := range catalog.NewScanner(svc, prefixVendors{}).Scan(ctx) {
		gotErr = err
	}
	assert.ErrorIs(t, gotErr, context.Canceled)
	assert.Equal(t, 0, svc.ListCalls)
}
