package mapper

import (
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const handleMaxLen = 100

var (
	handleStrip   = regexp.MustCompile(`[^a-z0-9\s-]`)
	handleSpaces  = regexp.MustCompile(`\s+`)
	handleHyphens = regexp.MustCompile(`-{2,}`)
)

// DeriveHandle builds a URL-safe slug from a title: accents folded,
// lowercased, anything but [a-z0-9] space and hyphen dropped, whitespace
// turned into hyphens, truncated. The result may be empty.
func DeriveHandle(title string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), title)
	if err != nil {
		folded = title
	}
	h := strings.ToLower(folded)
	h = handleStrip.ReplaceAllString(h, "")
	h = handleSpaces.ReplaceAllString(strings.TrimSpace(h), "-")
	h = handleHyphens.ReplaceAllString(h, "-")
	h = strings.Trim(h, "-")
	if len(h) > handleMaxLen {
		h = strings.TrimRight(h[:handleMaxLen], "-")
	}
	return h
}

// ParsePrice accepts "5.00", "5,00" and "1.234,56". Invalid or negative
// values become zero.
func ParsePrice(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	s = strings.TrimFunc(s, func(r rune) bool {
		return !unicode.IsDigit(r) && r != '-' && r != '.' && r != ','
	})
	if s == "" {
		return decimal.Zero
	}
	if strings.Contains(s, ",") {
		if strings.Contains(s, ".") && strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
		} else if strings.Contains(s, ".") {
			s = strings.ReplaceAll(s, ",", "")
		}
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d.Round(2)
}

// ParseQuantity reads a stock value. Fractions are truncated; anything that
// is not a finite non-negative number counts as zero.
func ParseQuantity(s string) int {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0
	}
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(f)
}

func parseGrams(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil || f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(math.Round(f)), true
}

// ParseImageList splits a pipe or comma separated list, keeps absolute
// http(s) URLs, drops duplicates and caps the result. limit <= 0 means no cap.
func ParseImageList(s string, limit int) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	sep := ","
	if strings.Contains(s, "|") {
		sep = "|"
	}
	var out []string
	seen := map[string]bool{}
	for _, part := range strings.Split(s, sep) {
		part = strings.TrimSpace(part)
		if !isImageURL(part) || seen[part] {
			continue
		}
		seen[part] = true
		out = append(out, part)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func mergeImages(existing, more []string, limit int) []string {
	joined := strings.Join(append(append([]string{}, existing...), more...), "|")
	return ParseImageList(joined, limit)
}

func isImageURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
