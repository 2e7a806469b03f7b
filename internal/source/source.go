// Package source obtains the vendor catalog file and reads it into raw
// records.
package source

import (
	"errors"
)

var (
	// ErrSourceUnavailable means neither the URL nor any local file produced
	// a usable catalog.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrUnrecognizedSchema means the file parsed but no known column set
	// was found in its header.
	ErrUnrecognizedSchema = errors.New("unrecognized schema")
)

type Origin string

const (
	OriginDownload Origin = "download"
	OriginLocal    Origin = "local"
)

// File is a catalog obtained by Fetch, kept in memory.
type File struct {
	Name   string
	Origin Origin
	Body   []byte
}

type Schema string

const (
	SchemaNative      Schema = "native"
	SchemaAlternative Schema = "alternative"
)

// RawRecord is one data row keyed by header name. Row is 1-based and does
// not count the header.
type RawRecord struct {
	Row    int
	Fields map[string]string
}

// Get returns the first non-empty value among keys.
func (r RawRecord) Get(keys ...string) string {
	for _, k := range keys {
		if v, ok := r.Fields[k]; ok && v != "" {
			return v
		}
	}
	return ""
}

type ParseResult struct {
	Schema    Schema
	Encoding  string
	Delimiter rune
	Header    []string
	Records   []RawRecord
}
