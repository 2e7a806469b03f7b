package splitter

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"catalogsync/internal/logger"
	"catalogsync/internal/models"
)

const InstructionsFile = "INSTRUCTIONS.txt"

// Summary feeds the instructions file.
type Summary struct {
	Sellable  int
	Excluded  int
	ChunkSize int
}

type Writer struct {
	dir    string
	logger *logger.Logger
	now    func() time.Time
}

func NewWriter(dir string, logger *logger.Logger) *Writer {
	return &Writer{dir: dir, logger: logger, now: time.Now}
}

// Write splits products and writes one CSV per chunk plus the instructions
// file. It returns the chunk file paths in processing order.
func (w *Writer) Write(products []models.Product, summary Summary) ([]string, error) {
	chunks, err := Split(products, summary.ChunkSize)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	rows := make([]map[string]string, len(products))
	for i, p := range products {
		rows[i] = Row(p)
	}
	header := Columns(rows)

	paths := make([]string, 0, len(chunks))
	offset := 0
	for _, c := range chunks {
		path := filepath.Join(w.dir, c.FileName())
		if err := writeChunk(path, header, rows[offset:offset+len(c.Products)]); err != nil {
			return paths, fmt.Errorf("failed to write %s: %w", c.FileName(), err)
		}
		offset += len(c.Products)
		paths = append(paths, path)
		w.logger.Info("Wrote chunk %d/%d: %s (%d products)", c.Index, c.Total, c.FileName(), len(c.Products))
	}

	if err := w.writeInstructions(chunks, summary); err != nil {
		return paths, err
	}
	return paths, nil
}

func writeChunk(path string, header []string, rows []map[string]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(header); err != nil {
		return err
	}
	record := make([]string, len(header))
	for _, r := range rows {
		for i, col := range header {
			record[i] = r[col]
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return f.Close()
}

func (w *Writer) writeInstructions(chunks []Chunk, summary Summary) error {
	var b strings.Builder
	fmt.Fprintf(&b, "PRODUCT IMPORT INSTRUCTIONS\n")
	fmt.Fprintf(&b, "===========================\n\n")
	fmt.Fprintf(&b, "Generated:          %s\n", w.now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Files:              %d\n", len(chunks))
	fmt.Fprintf(&b, "Products per file:  %d\n", summary.ChunkSize)
	fmt.Fprintf(&b, "Products in stock:  %d\n", summary.Sellable)
	fmt.Fprintf(&b, "Excluded (no stock): %d\n\n", summary.Excluded)
	fmt.Fprintf(&b, "Import the files one at a time from Products > Import in the\n")
	fmt.Fprintf(&b, "store admin, waiting for each import to finish before the next:\n\n")
	for _, c := range chunks {
		fmt.Fprintf(&b, "  %3d. %s (%d products)\n", c.Index, c.FileName(), len(c.Products))
	}

	path := filepath.Join(w.dir, InstructionsFile)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write instructions: %w", err)
	}
	return nil
}
