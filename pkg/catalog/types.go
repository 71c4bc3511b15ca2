// Package catalog models the remote product catalog and scans it for
// entries that still need images.
package catalog

import "context"

// Lifecycle and product type values the scanner accepts.
const (
	StateActive        = "active"
	StateArchived      = "archived"
	StateDeleted       = "deleted"
	ProductTypeRegular = "regular"
)

// RemoteItem is an item as the catalog service returns it.
type RemoteItem struct {
	ID          string
	Name        string
	State       string
	ProductType string
	ImageIDs    []string
	Variations  []RemoteVariation
}

// RemoteVariation is a sellable variation as the catalog service returns it.
type RemoteVariation struct {
	ID        string
	Name      string
	SKU       string
	VendorSKU string
	// VendorAnnotation is the free-form vendor attribute, if any.
	VendorAnnotation string
	ImageIDs         []string
}

// Item is a catalog item that needs images. It is a read-only snapshot.
type Item struct {
	ID                string
	Name              string
	NeedsPrimaryImage bool
	Variations        []Variation
}

// Variation is one sellable variation of an Item.
type Variation struct {
	ID         string
	Name       string
	SKU        string
	VendorSKU  string
	Vendor     string
	NeedsImage bool
	ItemID     string
}

// Page is one page of a catalog listing.
type Page struct {
	Items  []RemoteItem
	Cursor string // empty when exhausted
}

// Object is the current image state of a catalog object.
type Object struct {
	ID       string
	Version  int64
	ImageIDs []string
}

// HasImage reports whether the object references any image.
func (o *Object) HasImage() bool {
	return o != nil && len(o.ImageIDs) > 0
}

// CreateImageRequest uploads image bytes.
type CreateImageRequest struct {
	IdempotencyKey string
	// TargetObjectID is set only when the image becomes an item's primary image.
	TargetObjectID string
	IsPrimary      bool
	Name           string
	ContentType    string
	Data           []byte
}

// Service is the remote catalog. Implementations return errors classified
// by the pkg/errors taxonomy.
type Service interface {
	ListItems(ctx context.Context, cursor string) (*Page, error)
	GetObject(ctx context.Context, id string) (*Object, error)
	CreateImage(ctx context.Context, req CreateImageRequest) (string, error)
	AssociateImage(ctx context.Context, variationID string, version int64, imageID string) error
}
