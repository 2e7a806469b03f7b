package source

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"catalogsync/internal/logger"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// Header names that identify each schema variant.
var (
	nativeSignals = []string{"Handle", "Title", "Variant Price", "Variant Inventory Qty", "Variant SKU", "Body (HTML)"}

	alternativeSignals = []string{
		"Codigo", "Nombre", "Precio", "Stock", "Descripcion", "SKU",
		"nombre", "referencia", "precio_bruto", "stock_disponible", "descripcion",
	}
)

type candidateEncoding struct {
	name string
	enc  encoding.Encoding
}

// Tried in order; utf-8 is only accepted when the bytes are valid UTF-8.
var encodings = []candidateEncoding{
	{name: "utf-8"},
	{name: "windows-1252", enc: charmap.Windows1252},
	{name: "iso-8859-1", enc: charmap.ISO8859_1},
}

const sniffSample = 2048

type Parser struct {
	logger *logger.Logger
}

func NewParser(logger *logger.Logger) *Parser {
	return &Parser{logger: logger}
}

// Parse reads a catalog file into raw records. Spreadsheets are detected by
// extension or zip signature, everything else is treated as delimited text.
func (p *Parser) Parse(f *File) (*ParseResult, error) {
	if isXLSX(f) {
		return p.parseXLSX(f)
	}

	var lastErr error
	for _, cand := range encodings {
		text, err := decode(f.Body, cand)
		if err != nil {
			p.logger.Debug("Encoding %s rejected for %s: %v", cand.name, f.Name, err)
			lastErr = err
			continue
		}

		delim := SniffDelimiter(text)
		header, rows, err := readDelimited(text, delim)
		if err != nil {
			p.logger.Debug("Encoding %s could not be parsed for %s: %v", cand.name, f.Name, err)
			lastErr = err
			continue
		}

		schema, ok := Classify(header)
		if !ok {
			lastErr = fmt.Errorf("no recognized columns in header %v", header)
			continue
		}

		result := &ParseResult{
			Schema:    schema,
			Encoding:  cand.name,
			Delimiter: delim,
			Header:    header,
			Records:   toRecords(header, rows),
		}
		p.logger.Info("Parsed %s: encoding=%s delimiter=%q schema=%s columns=%d rows=%d",
			f.Name, cand.name, delim, schema, len(header), len(result.Records))
		return result, nil
	}
	return nil, fmt.Errorf("%w: %s: %v", ErrUnrecognizedSchema, f.Name, lastErr)
}

func decode(body []byte, cand candidateEncoding) (string, error) {
	if cand.enc == nil {
		body = bytes.TrimPrefix(body, []byte("\xef\xbb\xbf"))
		if !utf8.Valid(body) {
			return "", errors.New("invalid utf-8")
		}
		return string(body), nil
	}
	out, err := cand.enc.NewDecoder().Bytes(body)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// SniffDelimiter picks among comma, semicolon and tab by counting them in
// the header line of a sample. Ties go to comma.
func SniffDelimiter(text string) rune {
	sample := text
	if len(sample) > sniffSample {
		sample = sample[:sniffSample]
	}
	line := sample
	if i := strings.IndexAny(sample, "\r\n"); i >= 0 {
		line = sample[:i]
	}
	if best, ok := mostFrequent(line); ok {
		return best
	}
	if best, ok := mostFrequent(sample); ok {
		return best
	}
	return ','
}

func mostFrequent(s string) (rune, bool) {
	best, bestCount := ',', 0
	for _, d := range []rune{',', ';', '\t'} {
		if n := strings.Count(s, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best, bestCount > 0
}

func readDelimited(text string, delim rune) ([]string, [][]string, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delim
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil, errors.New("empty file")
		}
		return nil, nil, err
	}
	header = cleanHeader(header)

	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		rows = append(rows, rec)
	}
	return header, rows, nil
}

func cleanHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	return out
}

// Classify decides the schema variant from the header. The variant with
// more signal columns wins; native wins ties.
func Classify(header []string) (Schema, bool) {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[h] = true
	}
	count := func(signals []string) int {
		n := 0
		for _, s := range signals {
			if present[s] {
				n++
			}
		}
		return n
	}

	native, alt := count(nativeSignals), count(alternativeSignals)
	switch {
	case native == 0 && alt == 0:
		return "", false
	case native >= alt:
		return SchemaNative, true
	default:
		return SchemaAlternative, true
	}
}

// toRecords drops blank rows. Duplicate header names keep the first column.
func toRecords(header []string, rows [][]string) []RawRecord {
	records := make([]RawRecord, 0, len(rows))
	for i, row := range rows {
		if blank(row) {
			continue
		}
		fields := make(map[string]string, len(header))
		for j, name := range header {
			if name == "" {
				continue
			}
			if _, seen := fields[name]; seen {
				continue
			}
			if j < len(row) {
				fields[name] = row[j]
			} else {
				fields[name] = ""
			}
		}
		records = append(records, RawRecord{Row: i + 1, Fields: fields})
	}
	return records
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
