package api

import (
	"encoding/json"
	"strings"

	"github.com/imgsync/imgsync/pkg/catalog"
)

// Wire types of the catalog REST API. Only the fields this tool reads are
// declared; association upserts round-trip the raw object instead.

type listResponse struct {
	Objects []wireObject `json:"objects"`
	Cursor  string       `json:"cursor"`
	Errors  []wireError  `json:"errors"`
}

type objectResponse struct {
	Object json.RawMessage `json:"object"`
	Errors []wireError     `json:"errors"`
}

type imageResponse struct {
	Image struct {
		ID string `json:"id"`
	} `json:"image"`
	Errors []wireError `json:"errors"`
}

type wireError struct {
	Category string `json:"category"`
	Code     string `json:"code"`
	Detail   string `json:"detail"`
}

type wireObject struct {
	Type                  string                         `json:"type"`
	ID                    string                         `json:"id"`
	Version               int64                          `json:"version"`
	IsDeleted             bool                           `json:"is_deleted"`
	ItemData              *wireItemData                  `json:"item_data,omitempty"`
	ItemVariationData     *wireVariationData             `json:"item_variation_data,omitempty"`
	CustomAttributeValues map[string]wireCustomAttribute `json:"custom_attribute_values,omitempty"`
}

type wireItemData struct {
	Name        string       `json:"name"`
	ProductType string       `json:"product_type"`
	IsArchived  bool         `json:"is_archived"`
	ImageIDs    []string     `json:"image_ids"`
	Variations  []wireObject `json:"variations"`
}

type wireVariationData struct {
	ItemID      string           `json:"item_id"`
	Name        string           `json:"name"`
	SKU         string           `json:"sku"`
	ImageIDs    []string         `json:"image_ids"`
	VendorInfos []wireVendorInfo `json:"item_variation_vendor_infos"`
}

type wireVendorInfo struct {
	Data struct {
		SKU      string `json:"sku"`
		VendorID string `json:"vendor_id"`
	} `json:"item_variation_vendor_info_data"`
}

type wireCustomAttribute struct {
	Name        string `json:"name"`
	StringValue string `json:"string_value"`
}

type imageRequest struct {
	IdempotencyKey string    `json:"idempotency_key"`
	ObjectID       string    `json:"object_id,omitempty"`
	IsPrimary      bool      `json:"is_primary,omitempty"`
	Image          wireImage `json:"image"`
}

type wireImage struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	ImageData struct {
		Name string `json:"name"`
	} `json:"image_data"`
}

type upsertRequest struct {
	IdempotencyKey string          `json:"idempotency_key"`
	Object         json.RawMessage `json:"object"`
}

func (o wireObject) toRemoteItem(vendorAttribute string) catalog.RemoteItem {
	item := catalog.RemoteItem{ID: o.ID, State: catalog.StateActive}
	switch {
	case o.IsDeleted:
		item.State = catalog.StateDeleted
	case o.ItemData != nil && o.ItemData.IsArchived:
		item.State = catalog.StateArchived
	}
	if o.ItemData == nil {
		return item
	}

	item.Name = o.ItemData.Name
	item.ProductType = strings.ToLower(o.ItemData.ProductType)
	item.ImageIDs = o.ItemData.ImageIDs
	for _, v := range o.ItemData.Variations {
		if v.IsDeleted || v.ItemVariationData == nil {
			continue
		}
		data := v.ItemVariationData
		rv := catalog.RemoteVariation{
			ID:       v.ID,
			Name:     data.Name,
			SKU:      data.SKU,
			ImageIDs: data.ImageIDs,
		}
		for _, info := range data.VendorInfos {
			if info.Data.SKU != "" {
				rv.VendorSKU = info.Data.SKU
				break
			}
		}
		if attr, ok := v.CustomAttributeValues[vendorAttribute]; ok {
			rv.VendorAnnotation = attr.StringValue
		}
		item.Variations = append(item.Variations, rv)
	}
	return item
}

func (o wireObject) imageIDs() []string {
	switch {
	case o.ItemData != nil:
		return o.ItemData.ImageIDs
	case o.ItemVariationData != nil:
		return o.ItemVariationData.ImageIDs
	default:
		return nil
	}
}
