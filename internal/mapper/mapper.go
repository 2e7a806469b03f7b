// Package mapper turns raw catalog rows into canonical products.
package mapper

import (
	"fmt"
	"strings"

	"catalogsync/internal/logger"
	"catalogsync/internal/models"
	"catalogsync/internal/source"
	"catalogsync/internal/textfix"
)

type field int

const (
	fieldHandle field = iota
	fieldTitle
	fieldDescription
	fieldVendor
	fieldCategory
	fieldType
	fieldTags
	fieldSKU
	fieldPrice
	fieldQty
	fieldGrams
	fieldBarcode
	fieldImages
	fieldStatus
	fieldInventoryTracker
	fieldInventoryPolicy
	fieldFulfillment
	fieldRequiresShipping
	fieldTaxable
	fieldWeightMarkup
	fieldDimensionsMarkup
	fieldBarcodeMarkup
)

// Column names per schema variant, in lookup order.
var nativeColumns = map[field][]string{
	fieldHandle:           {"Handle"},
	fieldTitle:            {"Title"},
	fieldDescription:      {"Body (HTML)"},
	fieldVendor:           {"Vendor"},
	fieldCategory:         {"Product Category"},
	fieldType:             {"Type"},
	fieldTags:             {"Tags"},
	fieldSKU:              {"Variant SKU"},
	fieldPrice:            {"Variant Price"},
	fieldQty:              {"Variant Inventory Qty"},
	fieldGrams:            {"Variant Grams"},
	fieldBarcode:          {"Variant Barcode"},
	fieldImages:           {"Image Src"},
	fieldStatus:           {"Status"},
	fieldInventoryTracker: {"Variant Inventory Tracker"},
	fieldInventoryPolicy:  {"Variant Inventory Policy"},
	fieldFulfillment:      {"Variant Fulfillment Service"},
	fieldRequiresShipping: {"Variant Requires Shipping"},
	fieldTaxable:          {"Variant Taxable"},
}

var alternativeColumns = map[field][]string{
	fieldTitle:            {"Nombre", "Titulo", "Title", "nombre"},
	fieldDescription:      {"Descripcion", "Description", "descripcion"},
	fieldVendor:           {"Marca", "Brand", "marca"},
	fieldCategory:         {"Categoria", "Category", "categoria_principal"},
	fieldSKU:              {"Codigo", "SKU", "referencia"},
	fieldPrice:            {"Precio", "Price", "precio_bruto"},
	fieldQty:              {"Stock", "Inventory", "Cantidad", "stock_disponible"},
	fieldImages:           {"Imagen", "Image", "URL_Imagen", "csv_imagenes"},
	fieldWeightMarkup:     {"xml_info_peso"},
	fieldDimensionsMarkup: {"xml_info_dimensiones"},
	fieldBarcodeMarkup:    {"xml_info_codigos_barras"},
}

// Fields tried, in order, when a record has no title.
var titleFallbacks = []string{"Nombre", "Titulo", "Descripcion", "Description", "nombre", "descripcion", "Body (HTML)"}

const titleFallbackRunes = 100

type Options struct {
	ImageLimit int
}

type Mapper struct {
	opts   Options
	logger *logger.Logger
}

func New(opts Options, logger *logger.Logger) *Mapper {
	return &Mapper{opts: opts, logger: logger}
}

// Map converts parsed rows using the column table of their schema variant.
// Native exports put extra images on continuation rows that repeat the
// handle with no title; those are folded into the preceding product.
func (m *Mapper) Map(res *source.ParseResult) []models.Product {
	columns := alternativeColumns
	if res.Schema == source.SchemaNative {
		columns = nativeColumns
	}

	products := make([]models.Product, 0, len(res.Records))
	placeholders := 0
	for _, rec := range res.Records {
		r := row{rec: rec, columns: columns}

		if res.Schema == source.SchemaNative && len(products) > 0 {
			last := &products[len(products)-1]
			if h := r.get(fieldHandle); h != "" && h == last.Handle && r.raw(fieldTitle) == "" {
				last.Images = mergeImages(last.Images, ParseImageList(r.get(fieldImages), 0), m.opts.ImageLimit)
				continue
			}
		}

		p, placeholder := m.product(r, len(products)+1)
		if placeholder {
			placeholders++
		}
		products = append(products, p)
	}

	if placeholders > 0 {
		m.logger.Warn("%d records had no descriptive field and got a placeholder title", placeholders)
	}
	m.logger.Info("Mapped %d records into %d products (%s schema)", len(res.Records), len(products), res.Schema)
	return products
}

// product maps one row and reports whether the title is a placeholder.
func (m *Mapper) product(r row, position int) (models.Product, bool) {
	p := models.Product{
		Handle:       r.get(fieldHandle),
		Title:        r.get(fieldTitle),
		Description:  r.get(fieldDescription),
		Vendor:       r.get(fieldVendor),
		CategoryPath: r.get(fieldCategory),
		ProductType:  r.get(fieldType),
		Tags:         splitTags(r.get(fieldTags)),
		Images:       ParseImageList(r.get(fieldImages), m.opts.ImageLimit),
		Status:       parseStatus(r.get(fieldStatus)),
		SourceRow:    r.rec.Row,
		Variant: models.Variant{
			SKU:                 r.get(fieldSKU),
			Price:               ParsePrice(r.get(fieldPrice)),
			InventoryQty:        ParseQuantity(r.get(fieldQty)),
			Barcode:             r.get(fieldBarcode),
			InventoryManagement: orDefault(r.get(fieldInventoryTracker), models.InventoryManagementTracked),
			InventoryPolicy:     orDefault(r.get(fieldInventoryPolicy), models.InventoryPolicyDeny),
			FulfillmentService:  orDefault(r.get(fieldFulfillment), models.FulfillmentManual),
			RequiresShipping:    parseBool(r.get(fieldRequiresShipping), true),
			Taxable:             parseBool(r.get(fieldTaxable), true),
		},
	}

	placeholder := false
	if p.Title == "" {
		p.Title, placeholder = fallbackTitle(r.rec, position)
	}
	if p.Handle == "" {
		p.Handle = DeriveHandle(p.Title)
	}
	if p.Handle == "" {
		p.Handle = fmt.Sprintf("product-%d", position)
	}
	if p.ProductType == "" {
		p.ProductType = CoarseType(p.CategoryPath)
	}
	if p.Vendor != "" && len(p.Tags) == 0 {
		p.Tags = []string{p.Vendor}
	}

	if g, ok := parseGrams(r.get(fieldGrams)); ok {
		p.Variant.WeightGrams = &g
	} else if g, ok := source.WeightGrams(r.get(fieldWeightMarkup)); ok {
		p.Variant.WeightGrams = &g
	}
	if d, ok := source.Dimensions(r.get(fieldDimensionsMarkup)); ok {
		p.Dimensions = d
	}
	if p.Variant.Barcode == "" {
		if b, ok := source.Barcode(r.get(fieldBarcodeMarkup)); ok {
			p.Variant.Barcode = b
		}
	}
	return p, placeholder
}

// row reads canonical fields from one raw record. Values are repaired on
// the way out, each exactly once.
type row struct {
	rec     source.RawRecord
	columns map[field][]string
}

func (r row) raw(f field) string {
	return strings.TrimSpace(r.rec.Get(r.columns[f]...))
}

func (r row) get(f field) string {
	v := r.raw(f)
	if v == "" {
		return ""
	}
	if f == fieldWeightMarkup || f == fieldDimensionsMarkup || f == fieldBarcodeMarkup {
		return v
	}
	return textfix.Repair(v)
}

func fallbackTitle(rec source.RawRecord, position int) (string, bool) {
	if v := strings.TrimSpace(rec.Get(titleFallbacks...)); v != "" {
		if t := truncateRunes(textfix.Repair(stripTags(v)), titleFallbackRunes); t != "" {
			return t, false
		}
	}
	return fmt.Sprintf("Product %d", position), true
}

// CoarseType is the first segment of a category path, used as the free-text
// product type.
func CoarseType(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	for _, sep := range []string{">", "/", "|"} {
		if i := strings.Index(path, sep); i >= 0 {
			path = path[:i]
		}
	}
	return strings.TrimSpace(path)
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	seen := map[string]bool{}
	var out []string
	for _, t := range strings.Split(s, ",") {
		t = strings.TrimSpace(t)
		if t == "" || seen[strings.ToLower(t)] {
			continue
		}
		seen[strings.ToLower(t)] = true
		out = append(out, t)
	}
	return out
}

func parseStatus(s string) models.ProductStatus {
	if strings.EqualFold(s, string(models.StatusDraft)) {
		return models.StatusDraft
	}
	return models.StatusActive
}

func parseBool(s string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "1", "si", "sí":
		return true
	case "false", "no", "0":
		return false
	default:
		return def
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func stripTags(s string) string {
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch {
		case r == '<':
			depth++
		case r == '>' && depth > 0:
			depth--
			b.WriteRune(' ')
		case depth == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
