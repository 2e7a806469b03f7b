package source

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

func isXLSX(f *File) bool {
	ext := strings.ToLower(filepath.Ext(f.Name))
	if ext == ".xlsx" || ext == ".xlsm" {
		return true
	}
	return bytes.HasPrefix(f.Body, []byte("PK\x03\x04"))
}

// parseXLSX reads the first sheet; its first row is the header.
func (p *Parser) parseXLSX(f *File) (*ParseResult, error) {
	book, err := excelize.OpenReader(bytes.NewReader(f.Body))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: open spreadsheet: %v", ErrUnrecognizedSchema, f.Name, err)
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: %s: workbook has no sheets", ErrUnrecognizedSchema, f.Name)
	}
	rows, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %s: read sheet %s: %v", ErrUnrecognizedSchema, f.Name, sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s: sheet %s is empty", ErrUnrecognizedSchema, f.Name, sheets[0])
	}

	header := cleanHeader(rows[0])
	schema, ok := Classify(header)
	if !ok {
		return nil, fmt.Errorf("%w: %s: no recognized columns in header %v", ErrUnrecognizedSchema, f.Name, header)
	}

	result := &ParseResult{
		Schema:   schema,
		Encoding: "xlsx",
		Header:   header,
		Records:  toRecords(header, rows[1:]),
	}
	p.logger.Info("Parsed spreadsheet %s: sheet=%s schema=%s columns=%d rows=%d",
		f.Name, sheets[0], schema, len(header), len(result.Records))
	return result, nil
}
