package models

import (
	"github.com/shopspring/decimal"
)

// Product is the canonical record moving through the pipeline. It is built
// once by the mapper and read-only afterwards.
type Product struct {
	Handle       string        `json:"handle"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	Vendor       string        `json:"vendor"`
	CategoryPath string        `json:"category_path"`
	ProductType  string        `json:"product_type"`
	Tags         []string      `json:"tags"`
	Variant      Variant       `json:"variant"`
	Images       []string      `json:"images"`
	Status       ProductStatus `json:"status"`
	Dimensions   string        `json:"dimensions,omitempty"`
	// SourceRow is the 1-based data row the product came from.
	SourceRow int `json:"source_row"`
}

type Variant struct {
	SKU                 string          `json:"sku"`
	Price               decimal.Decimal `json:"price"`
	InventoryQty        int             `json:"inventory_qty"`
	WeightGrams         *int            `json:"weight_grams,omitempty"`
	Barcode             string          `json:"barcode,omitempty"`
	InventoryManagement string          `json:"inventory_management"`
	InventoryPolicy     string          `json:"inventory_policy"`
	FulfillmentService  string          `json:"fulfillment_service"`
	RequiresShipping    bool            `json:"requires_shipping"`
	Taxable             bool            `json:"taxable"`
}

type ProductStatus string

const (
	StatusActive ProductStatus = "active"
	StatusDraft  ProductStatus = "draft"
)

const (
	InventoryManagementTracked = "shopify"
	InventoryPolicyDeny        = "deny"
	FulfillmentManual          = "manual"
)

// Sellable reports whether the product has stock to sell.
func (p *Product) Sellable() bool {
	return p.Variant.InventoryQty > 0
}

// RemoteProductRef correlates a local product with its remote counterpart.
type RemoteProductRef struct {
	ID              int64  `json:"id"`
	Handle          string `json:"handle"`
	Title           string `json:"title,omitempty"`
	VariantID       int64  `json:"variant_id,omitempty"`
	InventoryItemID int64  `json:"inventory_item_id,omitempty"`
}
