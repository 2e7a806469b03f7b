package syncer

import (
	"context"
	"errors"
	"fmt"

	"catalogsync/internal/models"
	"catalogsync/internal/retry"
	"catalogsync/internal/services/shopify"
)

var errNoInventoryPermission = errors.New("inventory permission missing, needs manual fix")

// setInventory writes the stock of a freshly created variant at the resolved
// location. A failure leaves the product in place.
func (e *Engine) setInventory(ctx context.Context, p *models.Product, ref *models.RemoteProductRef) StepResult {
	perms := e.permissions(ctx)
	if !perms.InventoryRead {
		return StepResult{Name: StepInventory, Status: StepSkipped, Err: errNoInventoryPermission}
	}
	if perms.Location == nil {
		return StepResult{Name: StepInventory, Status: StepSkipped, Err: errNoLocation}
	}
	locationID := perms.Location.ID

	if ref.VariantID == 0 && ref.InventoryItemID == 0 {
		if err := e.reloadVariant(ctx, ref); err != nil {
			e.logger.Warn("Variant reload failed for %s: %v", p.Handle, err)
			return stepError(StepInventory, err)
		}
	}
	if ref.InventoryItemID == 0 && ref.VariantID != 0 {
		v, err := retry.DoValue(ctx, e.opts.Retry, "get variant", func(ctx context.Context) (*shopify.Variant, error) {
			return e.platform.GetVariant(ctx, ref.VariantID)
		})
		if err != nil {
			e.logger.Warn("Inventory item lookup failed for %s: %v", p.Handle, err)
			return stepError(StepInventory, wrapStep("get variant", err))
		}
		ref.InventoryItemID = v.InventoryItemID
	}
	if ref.InventoryItemID == 0 {
		return stepError(StepInventory, errors.New("created variant has no inventory item"))
	}

	qty := p.Variant.InventoryQty
	err := retry.Do(ctx, e.opts.Retry, "set inventory", func(ctx context.Context) error {
		if e.opts.InventoryMode == InventoryAdjust {
			return e.platform.AdjustInventoryLevel(ctx, ref.InventoryItemID, locationID, qty)
		}
		return e.platform.SetInventoryLevel(ctx, ref.InventoryItemID, locationID, qty)
	})
	if err != nil {
		e.logger.Warn("Inventory update failed for %s, needs manual fix: %v", p.Handle, err)
		return stepError(StepInventory, err)
	}
	e.logger.Debug("Inventory for %s set to %d at location %d", p.Handle, qty, locationID)
	return StepResult{Name: StepInventory, Status: StepOK}
}

// reloadVariant re-reads a created product whose response carried no
// variants.
func (e *Engine) reloadVariant(ctx context.Context, ref *models.RemoteProductRef) error {
	product, err := retry.DoValue(ctx, e.opts.Retry, "get product", func(ctx context.Context) (*shopify.Product, error) {
		return e.platform.GetProduct(ctx, ref.ID)
	})
	if shopify.IsNotFound(err) {
		return fmt.Errorf("product %d no longer exists: %w", ref.ID, err)
	}
	if err != nil {
		return wrapStep("get product", err)
	}
	fresh := shopify.ToRef(product)
	ref.VariantID = fresh.VariantID
	ref.InventoryItemID = fresh.InventoryItemID
	return nil
}

// assignCategory tries the taxonomy category first and falls back to the
// free-text product type.
func (e *Engine) assignCategory(ctx context.Context, p *models.Product, ref models.RemoteProductRef) StepResult {
	var taxonomyErr error
	if e.opts.TaxonomyGID != "" {
		taxonomyErr = retry.Do(ctx, e.opts.Retry, "set category", func(ctx context.Context) error {
			return e.platform.SetProductCategory(ctx, ref.ID, e.opts.TaxonomyGID)
		})
		if taxonomyErr == nil {
			return StepResult{Name: StepCategory, Status: StepOK}
		}
		e.logger.Debug("Taxonomy category failed for %s, using product type: %v", p.Handle, taxonomyErr)
	}

	if p.ProductType == "" {
		if taxonomyErr != nil {
			return stepError(StepCategory, taxonomyErr)
		}
		return StepResult{Name: StepCategory, Status: StepSkipped}
	}
	if taxonomyErr == nil {
		// Product type already went out with the create payload.
		return StepResult{Name: StepCategory, Status: StepFallback}
	}

	err := retry.Do(ctx, e.opts.Retry, "set product type", func(ctx context.Context) error {
		return e.platform.UpdateProductType(ctx, ref.ID, p.ProductType)
	})
	if err != nil {
		e.logger.Warn("Category assignment failed for %s: %v", p.Handle, err)
		return stepError(StepCategory, errors.Join(taxonomyErr, err))
	}
	return StepResult{Name: StepCategory, Status: StepFallback}
}

// attachMetadata stores source attributes that have no native field.
func (e *Engine) attachMetadata(ctx context.Context, p *models.Product, ref models.RemoteProductRef) StepResult {
	fields := Metafields(p, e.opts.MetafieldNamespace)
	if len(fields) == 0 {
		return StepResult{Name: StepMetadata, Status: StepSkipped}
	}

	var errs []error
	for _, m := range fields {
		m := m
		err := retry.Do(ctx, e.opts.Retry, "create metafield "+m.Key, func(ctx context.Context) error {
			return e.platform.CreateMetafield(ctx, ref.ID, m)
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		e.logger.Warn("%d of %d metafields failed for %s", len(errs), len(fields), p.Handle)
		return stepError(StepMetadata, errors.Join(errs...))
	}
	return StepResult{Name: StepMetadata, Status: StepOK}
}

// Metafields lists the metafields for p, skipping empty values.
func Metafields(p *models.Product, namespace string) []shopify.Metafield {
	if namespace == "" {
		namespace = "catalogsync"
	}
	candidates := []struct{ key, value string }{
		{"sku", p.Variant.SKU},
		{"dimensions", p.Dimensions},
		{"barcode", p.Variant.Barcode},
		{"category", p.CategoryPath},
	}
	var out []shopify.Metafield
	for _, c := range candidates {
		if c.value == "" {
			continue
		}
		out = append(out, shopify.Metafield{
			Namespace: namespace,
			Key:       c.key,
			Value:     c.value,
			Type:      "single_line_text_field",
		})
	}
	return out
}
