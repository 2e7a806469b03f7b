package syncer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"catalogsync/internal/retry"
	"catalogsync/internal/services/shopify"
)

// Permissions is what the access token was found to allow. Only an explicit
// 401/403 counts as denied; other failures are reported in Problems.
type Permissions struct {
	ShopName      string            `json:"shop_name,omitempty"`
	ShopRead      bool              `json:"shop_read"`
	ProductsRead  bool              `json:"products_read"`
	ProductsWrite bool              `json:"products_write"`
	WriteProbed   bool              `json:"write_probed"`
	LocationsRead bool              `json:"locations_read"`
	InventoryRead bool              `json:"inventory_read"`
	Location      *shopify.Location `json:"location,omitempty"`
	Problems      []string          `json:"problems,omitempty"`
}

// Probe checks shop, product, location and inventory access and resolves the
// stock location. With ProbeWrite it creates and deletes a draft product.
func (e *Engine) Probe(ctx context.Context) Permissions {
	perms := Permissions{ProductsWrite: true}
	note := func(what string, err error) bool {
		if err == nil {
			return true
		}
		perms.Problems = append(perms.Problems, fmt.Sprintf("%s: %v", what, err))
		return Classify(err) != ErrorKindPermission
	}

	shop, err := retry.DoValue(ctx, e.opts.Retry, "get shop", e.platform.GetShopInfo)
	perms.ShopRead = note("shop read", err)
	if shop != nil {
		perms.ShopName = shop.Name
	}

	_, err = retry.DoValue(ctx, e.opts.Retry, "list products", func(ctx context.Context) (*shopify.ProductsResponse, error) {
		return e.platform.GetProducts(ctx, 1, "")
	})
	perms.ProductsRead = note("products read", err)

	if e.opts.ProbeWrite {
		perms.WriteProbed = true
		perms.ProductsWrite = e.probeWrite(ctx, note)
		if !perms.ProductsWrite {
			e.logger.Warn("Token cannot write products; creates will fail")
		}
	}

	locations, err := retry.DoValue(ctx, e.opts.Retry, "list locations", e.platform.ListLocations)
	perms.LocationsRead = note("locations read", err)
	perms.Location = ResolveLocation(locations, e.opts.LocationHint)

	if perms.Location != nil {
		_, err = retry.DoValue(ctx, e.opts.Retry, "list inventory levels", func(ctx context.Context) ([]shopify.InventoryLevel, error) {
			return e.platform.ListInventoryLevels(ctx, perms.Location.ID, 1)
		})
		perms.InventoryRead = note("inventory read", err)
	} else {
		perms.Problems = append(perms.Problems, "no active location for inventory")
	}
	if !perms.InventoryRead {
		e.logger.Warn("Inventory cannot be set; created products will need manual stock")
	}

	if perms.Location != nil {
		e.logger.Info("Permission probe for %q: products read=%t write=%t, inventory=%t at %q",
			perms.ShopName, perms.ProductsRead, perms.ProductsWrite, perms.InventoryRead, perms.Location.Name)
	} else {
		e.logger.Info("Permission probe for %q: products read=%t write=%t, no location",
			perms.ShopName, perms.ProductsRead, perms.ProductsWrite)
	}
	return perms
}

func (e *Engine) probeWrite(ctx context.Context, note func(string, error) bool) bool {
	draft := &shopify.Product{
		Title:  fmt.Sprintf("catalogsync permission probe %d", time.Now().Unix()),
		Status: "draft",
	}
	created, err := retry.DoValue(ctx, e.opts.Retry, "probe create", func(ctx context.Context) (*shopify.Product, error) {
		return e.platform.CreateProduct(ctx, draft)
	})
	if !note("products write", err) {
		return false
	}
	if err != nil {
		return true
	}
	if err := retry.Do(ctx, e.opts.Retry, "probe delete", func(ctx context.Context) error {
		return e.platform.DeleteProduct(ctx, created.ID)
	}); err != nil {
		e.logger.Warn("Probe product %d was not deleted: %v", created.ID, err)
	}
	return true
}

// ResolveLocation prefers an active location whose name contains hint, then
// the first active one.
func ResolveLocation(locations []shopify.Location, hint string) *shopify.Location {
	var first *shopify.Location
	hint = strings.ToLower(strings.TrimSpace(hint))
	for i := range locations {
		loc := &locations[i]
		if !loc.Active {
			continue
		}
		if first == nil {
			first = loc
		}
		if hint != "" && strings.Contains(strings.ToLower(loc.Name), hint) {
			return loc
		}
	}
	return first
}

func (e *Engine) permissions(ctx context.Context) *Permissions {
	if e.perms == nil {
		perms := e.Probe(ctx)
		e.perms = &perms
	}
	return e.perms
}
