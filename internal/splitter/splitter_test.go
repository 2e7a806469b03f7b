package splitter

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"catalogsync/internal/logger"
	"catalogsync/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func products(n int) []models.Product {
	out := make([]models.Product, n)
	for i := range out {
		out[i] = models.Product{
			Handle: fmt.Sprintf("item-%d", i),
			Title:  fmt.Sprintf("Item %d", i),
			Status: models.StatusActive,
			Variant: models.Variant{
				SKU:          fmt.Sprintf("SKU%d", i),
				Price:        decimal.NewFromFloat(9.5),
				InventoryQty: i + 1,
			},
		}
	}
	return out
}

func TestSplitCompleteness(t *testing.T) {
	for _, tc := range []struct{ n, size, chunks int }{
		{0, 3, 0}, {1, 3, 1}, {3, 3, 1}, {4, 3, 2}, {10, 3, 4}, {7, 1, 7}, {5, 100, 1},
	} {
		in := products(tc.n)
		chunks, err := Split(in, tc.size)
		require.NoError(t, err)
		assert.Len(t, chunks, tc.chunks, "n=%d size=%d", tc.n, tc.size)

		var joined []models.Product
		for i, c := range chunks {
			assert.Equal(t, i+1, c.Index)
			assert.Equal(t, tc.chunks, c.Total)
			assert.LessOrEqual(t, len(c.Products), tc.size)
			joined = append(joined, c.Products...)
		}
		assert.Equal(t, len(in), len(joined))
		for i := range joined {
			assert.Equal(t, in[i].Handle, joined[i].Handle)
		}
	}
}

func TestSplitRejectsNonPositiveSize(t *testing.T) {
	_, err := Split(products(3), 0)
	assert.ErrorIs(t, err, ErrInvalidChunkSize)
	_, err = Split(products(3), -2)
	assert.ErrorIs(t, err, ErrInvalidChunkSize)
}

func TestChunkFileName(t *testing.T) {
	assert.Equal(t, "shopify_products_part_002_of_010.csv", Chunk{Index: 2, Total: 10}.FileName())
}

func TestColumnsPriorityPrefixThenSorted(t *testing.T) {
	rows := []map[string]string{
		{"Variant SKU": "a", "Title": "x", "Handle": "h"},
		{"Tags": "t", "Variant Barcode": "b", "Body (HTML)": "d"},
	}
	assert.Equal(t, []string{"Handle", "Title", "Body (HTML)", "Tags", "Variant Barcode", "Variant SKU"}, Columns(rows))
}

func TestRowOmitsEmptyValues(t *testing.T) {
	grams := 232
	p := products(1)[0]
	p.Variant.WeightGrams = &grams
	p.Images = []string{"https://x/1.jpg", "https://x/2.jpg"}

	row := Row(p)
	assert.Equal(t, "item-0", row["Handle"])
	assert.Equal(t, "9.50", row["Variant Price"])
	assert.Equal(t, "232", row["Variant Grams"])
	assert.Equal(t, "https://x/1.jpg", row["Image Src"])
	assert.NotContains(t, row, "Vendor")
	assert.NotContains(t, row, "Variant Barcode")
}

func TestWriterWritesChunksAndInstructions(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, logger.Nop())
	w.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }

	in := products(5)
	in[4].Vendor = "ACME"
	paths, err := w.Write(in, Summary{Sellable: 5, Excluded: 2, ChunkSize: 2})
	require.NoError(t, err)
	require.Len(t, paths, 3)
	assert.Equal(t, filepath.Join(dir, "shopify_products_part_001_of_003.csv"), paths[0])

	var handles []string
	var header []string
	for _, p := range paths {
		f, err := os.Open(p)
		require.NoError(t, err)
		records, err := csv.NewReader(f).ReadAll()
		f.Close()
		require.NoError(t, err)

		if header == nil {
			header = records[0]
		}
		assert.Equal(t, header, records[0], "same header in every chunk")
		for _, r := range records[1:] {
			handles = append(handles, r[0])
		}
	}
	assert.Equal(t, []string{"Handle", "Title", "Vendor"}, header[:3])
	assert.Equal(t, []string{"item-0", "item-1", "item-2", "item-3", "item-4"}, handles)

	raw, err := os.ReadFile(filepath.Join(dir, InstructionsFile))
	require.NoError(t, err)
	text := string(raw)
	assert.Contains(t, text, "Products in stock:  5")
	assert.Contains(t, text, "Excluded (no stock): 2")
	assert.Contains(t, text, "2025-01-02 03:04:05")
	first := strings.Index(text, "part_001_of_003")
	last := strings.Index(text, "part_003_of_003")
	assert.True(t, first >= 0 && last > first)
}
