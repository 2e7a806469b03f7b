// Package splitter writes a product set as numbered, self-contained import
// files of a fixed size.
package splitter

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"catalogsync/internal/models"
)

var ErrInvalidChunkSize = errors.New("chunk size must be positive")

// Leading columns, in this order, when present in the set.
var priorityColumns = []string{"Handle", "Title", "Body (HTML)", "Vendor", "Product Category", "Type", "Tags"}

type Chunk struct {
	Index    int // 1-based
	Total    int
	Products []models.Product
}

// FileName follows shopify_products_part_001_of_004.csv.
func (c Chunk) FileName() string {
	return fmt.Sprintf("shopify_products_part_%03d_of_%03d.csv", c.Index, c.Total)
}

// Split cuts products into ceil(n/size) chunks in input order. The last chunk
// may be smaller. An empty input yields no chunks.
func Split(products []models.Product, size int) ([]Chunk, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChunkSize, size)
	}
	total := (len(products) + size - 1) / size
	chunks := make([]Chunk, 0, total)
	for i := 0; i < len(products); i += size {
		end := i + size
		if end > len(products) {
			end = len(products)
		}
		chunks = append(chunks, Chunk{
			Index:    len(chunks) + 1,
			Total:    total,
			Products: products[i:end],
		})
	}
	return chunks, nil
}

// Row renders a product with the platform's import column names. Empty
// values are left out so the header only lists observed columns.
func Row(p models.Product) map[string]string {
	row := map[string]string{
		"Handle":                      p.Handle,
		"Title":                       p.Title,
		"Body (HTML)":                 p.Description,
		"Vendor":                      p.Vendor,
		"Product Category":            p.CategoryPath,
		"Type":                        p.ProductType,
		"Tags":                        strings.Join(p.Tags, ", "),
		"Variant SKU":                 p.Variant.SKU,
		"Variant Price":               p.Variant.Price.StringFixed(2),
		"Variant Inventory Qty":       strconv.Itoa(p.Variant.InventoryQty),
		"Variant Barcode":             p.Variant.Barcode,
		"Variant Inventory Tracker":   p.Variant.InventoryManagement,
		"Variant Inventory Policy":    p.Variant.InventoryPolicy,
		"Variant Fulfillment Service": p.Variant.FulfillmentService,
		"Variant Requires Shipping":   boolCell(p.Variant.RequiresShipping),
		"Variant Taxable":             boolCell(p.Variant.Taxable),
		"Status":                      string(p.Status),
	}
	if p.Variant.WeightGrams != nil {
		row["Variant Grams"] = strconv.Itoa(*p.Variant.WeightGrams)
		row["Variant Weight Unit"] = "g"
	}
	if len(p.Images) > 0 {
		row["Image Src"] = p.Images[0]
		row["Image Position"] = "1"
	}
	for k, v := range row {
		if v == "" {
			delete(row, k)
		}
	}
	return row
}

// Columns computes one header for the whole set: the priority prefix, then
// every other observed column in lexicographic order.
func Columns(rows []map[string]string) []string {
	seen := map[string]bool{}
	for _, r := range rows {
		for k := range r {
			seen[k] = true
		}
	}
	cols := make([]string, 0, len(seen))
	for _, c := range priorityColumns {
		if seen[c] {
			cols = append(cols, c)
			delete(seen, c)
		}
	}
	rest := make([]string, 0, len(seen))
	for c := range seen {
		rest = append(rest, c)
	}
	sort.Strings(rest)
	return append(cols, rest...)
}

func boolCell(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}
