package syncer

import (
	"context"

	"catalogsync/internal/models"
	"catalogsync/internal/services/shopify"
)

// Platform is the subset of the Admin API the engine drives.
// *shopify.Client satisfies it.
type Platform interface {
	GetShopInfo(ctx context.Context) (*shopify.Shop, error)
	GetProducts(ctx context.Context, limit int, pageInfo string) (*shopify.ProductsResponse, error)
	GetProduct(ctx context.Context, productID int64) (*shopify.Product, error)
	FindProductByHandle(ctx context.Context, handle string) (*shopify.Product, error)
	FindProductByTitle(ctx context.Context, title string) (*shopify.Product, error)
	CreateProduct(ctx context.Context, product *shopify.Product) (*shopify.Product, error)
	DeleteProduct(ctx context.Context, productID int64) error
	UpdateProductType(ctx context.Context, productID int64, productType string) error
	SetProductCategory(ctx context.Context, productID int64, categoryGID string) error
	GetVariant(ctx context.Context, variantID int64) (*shopify.Variant, error)
	ListLocations(ctx context.Context) ([]shopify.Location, error)
	ListInventoryLevels(ctx context.Context, locationID int64, limit int) ([]shopify.InventoryLevel, error)
	SetInventoryLevel(ctx context.Context, inventoryItemID, locationID int64, available int) error
	AdjustInventoryLevel(ctx context.Context, inventoryItemID, locationID int64, delta int) error
	CreateMetafield(ctx context.Context, productID int64, m shopify.Metafield) error
}

var _ Platform = (*shopify.Client)(nil)

// Observer is told about every record outcome as it happens.
type Observer interface {
	RecordProcessed(ctx context.Context, p *models.Product, o Outcome)
}

type ObserverFunc func(ctx context.Context, p *models.Product, o Outcome)

func (f ObserverFunc) RecordProcessed(ctx context.Context, p *models.Product, o Outcome) {
	f(ctx, p, o)
}
