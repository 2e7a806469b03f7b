package shopify

import (
	"time"
)

// Product represents a Shopify product. Fields are omitempty so the same
// type serves as a create or partial update payload.
type Product struct {
	ID          int64      `json:"id,omitempty"`
	Title       string     `json:"title,omitempty"`
	BodyHTML    string     `json:"body_html,omitempty"`
	Vendor      string     `json:"vendor,omitempty"`
	ProductType string     `json:"product_type,omitempty"`
	Handle      string     `json:"handle,omitempty"`
	Status      string     `json:"status,omitempty"`
	Tags        string     `json:"tags,omitempty"`
	Variants    []Variant  `json:"variants,omitempty"`
	Images      []Image    `json:"images,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// Variant represents a product variant
type Variant struct {
	ID                  int64   `json:"id,omitempty"`
	ProductID           int64   `json:"product_id,omitempty"`
	Title               string  `json:"title,omitempty"`
	Price               string  `json:"price,omitempty"`
	Sku                 string  `json:"sku,omitempty"`
	Position            int     `json:"position,omitempty"`
	InventoryPolicy     string  `json:"inventory_policy,omitempty"`
	FulfillmentService  string  `json:"fulfillment_service,omitempty"`
	InventoryManagement string  `json:"inventory_management,omitempty"`
	Taxable             bool    `json:"taxable"`
	RequiresShipping    bool    `json:"requires_shipping"`
	Barcode             *string `json:"barcode,omitempty"`
	Grams               int     `json:"grams,omitempty"`
	Weight              float64 `json:"weight,omitempty"`
	WeightUnit          string  `json:"weight_unit,omitempty"`
	InventoryItemID     int64   `json:"inventory_item_id,omitempty"`
	InventoryQuantity   int     `json:"inventory_quantity,omitempty"`
}

// Image represents a product image
type Image struct {
	ID       int64  `json:"id,omitempty"`
	Position int    `json:"position,omitempty"`
	Src      string `json:"src"`
}

// Shop represents shop information
type Shop struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	Domain            string `json:"domain"`
	MyshopifyDomain   string `json:"myshopify_domain"`
	Currency          string `json:"currency"`
	PlanName          string `json:"plan_name"`
	PrimaryLocationID int64  `json:"primary_location_id"`
}

// Location is a place where inventory is stocked.
type Location struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

type InventoryLevel struct {
	InventoryItemID int64 `json:"inventory_item_id"`
	LocationID      int64 `json:"location_id"`
	Available       *int  `json:"available"`
}

type Metafield struct {
	ID        int64  `json:"id,omitempty"`
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Value     string `json:"value"`
	Type      string `json:"type"`
}

// ProductsResponse represents the response from products API
type ProductsResponse struct {
	Products []Product `json:"products"`
}
