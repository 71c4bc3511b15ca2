package catalog

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/imgsync/imgsync/pkg/errors"
)

// VendorIdentifier attributes a variation to a vendor identity.
type VendorIdentifier interface {
	Identify(variationName, annotation string) string
}

// ScanStats counts what a scan has seen so far.
type ScanStats struct {
	Pages    int
	Seen     int
	Included int
}

// Scanner pages through the catalog and yields items that need images.
type Scanner struct {
	svc     Service
	vendors VendorIdentifier
	stats   ScanStats
}

// NewScanner creates a Scanner.
func NewScanner(svc Service, vendors VendorIdentifier) *Scanner {
	return &Scanner{svc: svc, vendors: vendors}
}

// Stats returns the counters of the most recent scan.
func (s *Scanner) Stats() ScanStats {
	return s.stats
}

// Scan follows the listing cursor until it is exhausted, yielding active
// regular items that have no primary image and at least one variation
// without an image. Pages are fetched lazily; a failed fetch yields the error
// once and ends the sequence, so items from earlier pages stay usable.
func (s *Scanner) Scan(ctx context.Context) iter.Seq2[Item, error] {
	return func(yield func(Item, error) bool) {
		s.stats = ScanStats{}
		cursor := ""
		for {
			if err := ctx.Err(); err != nil {
				yield(Item{}, err)
				return
			}

			page, err := s.svc.ListItems(ctx, cursor)
			if err != nil {
				slog.Error("catalog_page_failed", "page", s.stats.Pages+1, "error", err)
				yield(Item{}, errors.Wrap(err, "failed to list catalog page"))
				return
			}
			s.stats.Pages++
			slog.Debug("catalog_page_fetched", "page", s.stats.Pages, "items", len(page.Items))

			for _, raw := range page.Items {
				s.stats.Seen++
				item, ok := s.classify(raw)
				if !ok {
					continue
				}
				s.stats.Included++
				if !yield(item, nil) {
					return
				}
			}

			if page.Cursor == "" {
				slog.Info("catalog_scan_complete", "pages", s.stats.Pages, "seen", s.stats.Seen, "included", s.stats.Included)
				return
			}
			if page.Cursor == cursor {
				yield(Item{}, fmt.Errorf("catalog returned the same cursor twice: %q", cursor))
				return
			}
			cursor = page.Cursor
		}
	}
}

// classify turns a remote item into an Item when it needs images.
func (s *Scanner) classify(raw RemoteItem) (Item, bool) {
	if !strings.EqualFold(raw.State, StateActive) {
		return Item{}, false
	}
	if pt := raw.ProductType; pt != "" && !strings.EqualFold(pt, ProductTypeRegular) {
		return Item{}, false
	}
	// Items that already have a primary image are skipped entirely.
	if len(raw.ImageIDs) > 0 {
		return Item{}, false
	}

	item := Item{
		ID:                raw.ID,
		Name:              raw.Name,
		NeedsPrimaryImage: true,
		Variations:        make([]Variation, 0, len(raw.Variations)),
	}
	anyNeeds := false
	for _, rv := range raw.Variations {
		needs := len(rv.ImageIDs) == 0
		anyNeeds = anyNeeds || needs
		item.Variations = append(item.Variations, Variation{
			ID:         rv.ID,
			Name:       rv.Name,
			SKU:        rv.SKU,
			VendorSKU:  rv.VendorSKU,
			Vendor:     s.vendors.Identify(rv.Name, rv.VendorAnnotation),
			NeedsImage: needs,
			ItemID:     raw.ID,
		})
	}
	if !anyNeeds {
		return Item{}, false
	}
	return item, true
}
