package shopify

import (
	"fmt"
	"html"
	"strings"

	"catalogsync/internal/models"
)

type Transformer struct {
	imageLimit    int
	titleMaxRunes int
}

func NewTransformer(imageLimit int) *Transformer {
	return &Transformer{imageLimit: imageLimit, titleMaxRunes: 255}
}

// TransformToShopify converts a canonical product into a create payload with
// exactly one variant and at most imageLimit images.
func (t *Transformer) TransformToShopify(p *models.Product) (*Product, error) {
	if p == nil {
		return nil, fmt.Errorf("nil product")
	}
	if strings.TrimSpace(p.Title) == "" {
		return nil, fmt.Errorf("product %q has no title", p.Handle)
	}

	v := p.Variant
	variant := Variant{
		Price:               v.Price.StringFixed(2),
		Sku:                 v.SKU,
		InventoryManagement: v.InventoryManagement,
		InventoryPolicy:     v.InventoryPolicy,
		FulfillmentService:  v.FulfillmentService,
		RequiresShipping:    v.RequiresShipping,
		Taxable:             v.Taxable,
	}
	if v.Barcode != "" {
		barcode := v.Barcode
		variant.Barcode = &barcode
	}
	if v.WeightGrams != nil {
		variant.Grams = *v.WeightGrams
		variant.Weight = float64(*v.WeightGrams)
		variant.WeightUnit = "g"
	}

	out := &Product{
		Title:       truncateRunes(p.Title, t.titleMaxRunes),
		BodyHTML:    bodyHTML(p.Description),
		Vendor:      p.Vendor,
		ProductType: p.ProductType,
		Handle:      p.Handle,
		Status:      string(p.Status),
		Tags:        strings.Join(p.Tags, ", "),
		Variants:    []Variant{variant},
	}

	for i, src := range p.Images {
		if t.imageLimit > 0 && i >= t.imageLimit {
			break
		}
		out.Images = append(out.Images, Image{Src: src, Position: i + 1})
	}
	return out, nil
}

// StripImages returns a copy of the payload without images.
func StripImages(p *Product) *Product {
	cp := *p
	cp.Images = nil
	return &cp
}

// ToRef extracts the identifiers needed for follow-up calls.
func ToRef(p *Product) models.RemoteProductRef {
	ref := models.RemoteProductRef{ID: p.ID, Handle: p.Handle, Title: p.Title}
	if len(p.Variants) > 0 {
		ref.VariantID = p.Variants[0].ID
		ref.InventoryItemID = p.Variants[0].InventoryItemID
	}
	return ref
}

// bodyHTML wraps plain text descriptions in a paragraph. Text that already
// carries markup is passed through.
func bodyHTML(desc string) string {
	desc = strings.TrimSpace(desc)
	if desc == "" || strings.Contains(desc, "<") {
		return desc
	}
	return "<p>" + html.EscapeString(desc) + "</p>"
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n])
}
