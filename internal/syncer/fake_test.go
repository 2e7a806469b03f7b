package syncer

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"catalogsync/internal/services/shopify"
)

// fakePlatform is an in-memory store. Hooks override single calls.
type fakePlatform struct {
	mu       sync.Mutex
	nextID   int64
	products map[int64]*shopify.Product

	locations []shopify.Location

	calls          map[string]int
	inventorySet   map[int64]int
	inventoryDelta map[int64]int
	categories     map[int64]string
	productTypes   map[int64]string
	metafields     map[int64][]shopify.Metafield

	createHook    func(p *shopify.Product) error
	findHook      func() error
	inventoryHook func() error
	categoryHook  func() error
	metafieldHook func(m shopify.Metafield) error
	levelsHook    func() error
	omitItemID    bool
	omitVariants  bool
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		nextID:         1000,
		products:       map[int64]*shopify.Product{},
		locations:      []shopify.Location{{ID: 1, Name: "Warehouse", Active: true}, {ID: 2, Name: "Tienda Centro", Active: true}},
		calls:          map[string]int{},
		inventorySet:   map[int64]int{},
		inventoryDelta: map[int64]int{},
		categories:     map[int64]string{},
		productTypes:   map[int64]string{},
		metafields:     map[int64][]shopify.Metafield{},
	}
}

func (f *fakePlatform) count(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
}

func (f *fakePlatform) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakePlatform) live() []*shopify.Product {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*shopify.Product, 0, len(f.products))
	for _, p := range f.products {
		out = append(out, p)
	}
	return out
}

func (f *fakePlatform) GetShopInfo(ctx context.Context) (*shopify.Shop, error) {
	f.count("GetShopInfo")
	return &shopify.Shop{ID: 1, Name: "Test Shop"}, nil
}

func (f *fakePlatform) GetProducts(ctx context.Context, limit int, pageInfo string) (*shopify.ProductsResponse, error) {
	f.count("GetProducts")
	resp := &shopify.ProductsResponse{}
	for _, p := range f.live() {
		resp.Products = append(resp.Products, *p)
		if len(resp.Products) == limit {
			break
		}
	}
	return resp, nil
}

func (f *fakePlatform) GetProduct(ctx context.Context, productID int64) (*shopify.Product, error) {
	f.count("GetProduct")
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[productID]
	if !ok {
		return nil, &shopify.APIError{StatusCode: http.StatusNotFound, Method: http.MethodGet, Path: "/products.json", Body: "Not Found"}
	}
	cp := *p
	return &cp, nil
}

func (f *fakePlatform) FindProductByHandle(ctx context.Context, handle string) (*shopify.Product, error) {
	f.count("FindProductByHandle")
	if f.findHook != nil {
		if err := f.findHook(); err != nil {
			return nil, err
		}
	}
	for _, p := range f.live() {
		if p.Handle == handle {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakePlatform) FindProductByTitle(ctx context.Context, title string) (*shopify.Product, error) {
	f.count("FindProductByTitle")
	for _, p := range f.live() {
		if strings.EqualFold(p.Title, title) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakePlatform) CreateProduct(ctx context.Context, p *shopify.Product) (*shopify.Product, error) {
	f.count("CreateProduct")
	if f.createHook != nil {
		if err := f.createHook(p); err != nil {
			return nil, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	cp := *p
	cp.ID = f.nextID
	if cp.Handle == "" {
		cp.Handle = strings.ReplaceAll(strings.ToLower(cp.Title), " ", "-")
	}
	cp.Variants = append([]shopify.Variant(nil), p.Variants...)
	for i := range cp.Variants {
		cp.Variants[i].ID = f.nextID*10 + int64(i)
		if !f.omitItemID {
			cp.Variants[i].InventoryItemID = f.nextID*100 + int64(i)
		}
	}
	f.products[cp.ID] = &cp
	out := cp
	if f.omitVariants {
		out.Variants = nil
	}
	return &out, nil
}

func (f *fakePlatform) DeleteProduct(ctx context.Context, productID int64) error {
	f.count("DeleteProduct")
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.products, productID)
	return nil
}

func (f *fakePlatform) UpdateProductType(ctx context.Context, productID int64, productType string) error {
	f.count("UpdateProductType")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.productTypes[productID] = productType
	return nil
}

func (f *fakePlatform) SetProductCategory(ctx context.Context, productID int64, categoryGID string) error {
	f.count("SetProductCategory")
	if f.categoryHook != nil {
		if err := f.categoryHook(); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.categories[productID] = categoryGID
	return nil
}

func (f *fakePlatform) GetVariant(ctx context.Context, variantID int64) (*shopify.Variant, error) {
	f.count("GetVariant")
	return &shopify.Variant{ID: variantID, InventoryItemID: variantID * 7}, nil
}

func (f *fakePlatform) ListLocations(ctx context.Context) ([]shopify.Location, error) {
	f.count("ListLocations")
	return f.locations, nil
}

func (f *fakePlatform) ListInventoryLevels(ctx context.Context, locationID int64, limit int) ([]shopify.InventoryLevel, error) {
	f.count("ListInventoryLevels")
	if f.levelsHook != nil {
		if err := f.levelsHook(); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func (f *fakePlatform) SetInventoryLevel(ctx context.Context, inventoryItemID, locationID int64, available int) error {
	f.count("SetInventoryLevel")
	if f.inventoryHook != nil {
		if err := f.inventoryHook(); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inventorySet[inventoryItemID] = available
	return nil
}

func (f *fakePlatform) AdjustInventoryLevel(ctx context.Context, inventoryItemID, locationID int64, delta int) error {
	f.count("AdjustInventoryLevel")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inventoryDelta[inventoryItemID] += delta
	return nil
}

func (f *fakePlatform) CreateMetafield(ctx context.Context, productID int64, m shopify.Metafield) error {
	f.count("CreateMetafield")
	if f.metafieldHook != nil {
		if err := f.metafieldHook(m); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metafields[productID] = append(f.metafields[productID], m)
	return nil
}

func apiError(status int, body string) error {
	return &shopify.APIError{StatusCode: status, Method: http.MethodPost, Path: "/products.json", Body: body}
}
