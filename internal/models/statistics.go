package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Statistics are the counters of one run. Every record lands in exactly one
// of Created, Duplicates or an error kind; OutOfStock counts the excluded ones.
type Statistics struct {
	Processed  int            `json:"processed"`
	Created    int            `json:"created"`
	Duplicates int            `json:"duplicates"`
	Errors     map[string]int `json:"errors"`

	Sellable   int `json:"sellable"`
	OutOfStock int `json:"out_of_stock"`

	InventoryUpdated int `json:"inventory_updated"`
	InventoryErrors  int `json:"inventory_errors"`
	InventorySkipped int `json:"inventory_skipped"`
	CategoryAssigned int `json:"category_assigned"`
	CategoryFallback int `json:"category_fallback"`
	CategoryErrors   int `json:"category_errors"`
	MetadataAttached int `json:"metadata_attached"`
	MetadataErrors   int `json:"metadata_errors"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

func NewStatistics() *Statistics {
	return &Statistics{Errors: map[string]int{}, StartedAt: time.Now()}
}

func (s *Statistics) AddError(kind string) {
	if s.Errors == nil {
		s.Errors = map[string]int{}
	}
	s.Errors[kind]++
}

// ErrorCount is the total of record-level failures.
func (s *Statistics) ErrorCount() int {
	total := 0
	for _, n := range s.Errors {
		total += n
	}
	return total
}

// SuccessRate is created / processed as a percentage.
func (s *Statistics) SuccessRate() float64 {
	if s.Processed == 0 {
		return 0
	}
	return float64(s.Created) / float64(s.Processed) * 100
}

func (s *Statistics) Duration() time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	end := s.FinishedAt
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(s.StartedAt)
}

// Summary renders the end-of-run report.
func (s *Statistics) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "processed=%d created=%d duplicates=%d errors=%d", s.Processed, s.Created, s.Duplicates, s.ErrorCount())
	fmt.Fprintf(&b, " sellable=%d out_of_stock=%d", s.Sellable, s.OutOfStock)
	fmt.Fprintf(&b, " inventory_updated=%d inventory_errors=%d inventory_skipped=%d", s.InventoryUpdated, s.InventoryErrors, s.InventorySkipped)
	fmt.Fprintf(&b, " category_assigned=%d category_fallback=%d metadata_attached=%d", s.CategoryAssigned, s.CategoryFallback, s.MetadataAttached)
	if len(s.Errors) > 0 {
		kinds := make([]string, 0, len(s.Errors))
		for k := range s.Errors {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		parts := make([]string, 0, len(kinds))
		for _, k := range kinds {
			parts = append(parts, fmt.Sprintf("%s:%d", k, s.Errors[k]))
		}
		fmt.Fprintf(&b, " error_kinds=[%s]", strings.Join(parts, " "))
	}
	fmt.Fprintf(&b, " success_rate=%.1f%% duration=%s", s.SuccessRate(), s.Duration().Round(time.Millisecond))
	return b.String()
}
