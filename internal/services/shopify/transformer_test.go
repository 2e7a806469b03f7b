package shopify

import (
	"strings"
	"testing"

	"catalogsync/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleProduct() *models.Product {
	grams := 232
	return &models.Product{
		Handle:      "widget",
		Title:       "Widget",
		Description: "A small <widget> & more",
		Vendor:      "Acme",
		ProductType: "Toys",
		Tags:        []string{"Toys", "Acme"},
		Status:      models.StatusActive,
		Images:      []string{"https://a/1.jpg", "https://a/2.jpg", "https://a/3.jpg"},
		Variant: models.Variant{
			SKU:                 "X1",
			Price:               decimal.RequireFromString("5"),
			InventoryQty:        3,
			WeightGrams:         &grams,
			Barcode:             "4545784069523",
			InventoryManagement: models.InventoryManagementTracked,
			InventoryPolicy:     models.InventoryPolicyDeny,
			FulfillmentService:  models.FulfillmentManual,
			RequiresShipping:    true,
			Taxable:             true,
		},
	}
}

func TestTransformToShopify(t *testing.T) {
	out, err := NewTransformer(2).TransformToShopify(sampleProduct())
	require.NoError(t, err)

	assert.Equal(t, "widget", out.Handle)
	assert.Equal(t, "active", out.Status)
	assert.Equal(t, "Toys, Acme", out.Tags)
	assert.Contains(t, out.BodyHTML, "<widget>", "markup passes through")
	require.Len(t, out.Variants, 1)
	v := out.Variants[0]
	assert.Equal(t, "5.00", v.Price)
	assert.Equal(t, "shopify", v.InventoryManagement)
	assert.Equal(t, "deny", v.InventoryPolicy)
	assert.Equal(t, 232, v.Grams)
	require.NotNil(t, v.Barcode)
	assert.Equal(t, "4545784069523", *v.Barcode)
	assert.Len(t, out.Images, 2)

	assert.Empty(t, StripImages(out).Images)
	assert.Len(t, out.Images, 2, "strip copies")
}

func TestTransformWrapsPlainDescriptionAndTruncatesTitle(t *testing.T) {
	p := sampleProduct()
	p.Description = "Fish & chips"
	p.Title = strings.Repeat("á", 300)

	out, err := NewTransformer(10).TransformToShopify(p)
	require.NoError(t, err)
	assert.Equal(t, "<p>Fish &amp; chips</p>", out.BodyHTML)
	assert.Equal(t, 255, len([]rune(out.Title)))
}

func TestTransformRejectsEmptyTitle(t *testing.T) {
	p := sampleProduct()
	p.Title = " "
	_, err := NewTransformer(10).TransformToShopify(p)
	assert.Error(t, err)
}
