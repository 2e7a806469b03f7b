// Package textfix repairs mojibake found in vendor catalog exports.
//
// The table is best effort: it covers UTF-8 text that was decoded once or
// twice as Latin-1 or Windows-1252 for a fixed set of accented characters,
// plus a handful of punctuation sequences seen in the feeds. Extend
// accented or punctuation when a new corruption shows up.
package textfix

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

const accented = "áàâãäéèêëíìîïóòôõöúùûüñçÁÀÂÃÄÉÈÊËÍÌÎÏÓÒÔÕÖÚÙÛÜÑÇ°®©±´¨¸º¿¡"

// punctuation maps literal corruptions to their replacement. Quotes are
// folded to ASCII.
var punctuation = map[string]string{
	"\u00e2\u20ac\u2122":       "'",
	"\u00e2\u20ac\u02dc":       "'",
	"\u00e2\u20ac\u0153":       "\"",
	"\u00e2\u20ac\u009d":       "\"",
	"\u00e2\u20ac\u201c":       "\u2013",
	"\u00e2\u20ac\u201d":       "\u2014",
	"\u00e2\u20ac\u00a2":       "\u2022",
	"\u00e2\u20ac\u00a6":       "\u2026",
	"\u00e2\u201a\u00ac":       "\u20ac",
	"\u00e2\u201e\u00a2":       "\u2122",
	"\u00c2 ":                  " ",
	"\u00c2\u00a0":             " ",
	"\u00c3\u201a\u00c2\u00a0": " ",
	"\u00c3 ":                  "\u00e0",
	"\u00c2\u00aa\u00c2\u00ba": "\u00ba",
}

var (
	replacer = buildReplacer()
	controls = regexp.MustCompile(`[\x{0}-\x{8}\x{B}\x{C}\x{E}-\x{1F}\x{7F}-\x{9F}]`)
)

// Repair maps known mis-decoded sequences back to the intended characters,
// strips control characters and collapses whitespace. It never fails; text
// without a known corruption passes through with only whitespace cleanup.
func Repair(s string) string {
	if s == "" {
		return s
	}
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	s = replacer.Replace(s)
	s = controls.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

// Table returns the replacement pairs in application order.
func Table() [][2]string {
	pairs := table()
	out := make([][2]string, 0, len(pairs))
	for _, k := range sortedKeys(pairs) {
		out = append(out, [2]string{k, pairs[k]})
	}
	return out
}

func buildReplacer() *strings.Replacer {
	pairs := table()
	args := make([]string, 0, len(pairs)*2)
	for _, k := range sortedKeys(pairs) {
		args = append(args, k, pairs[k])
	}
	return strings.NewReplacer(args...)
}

func table() map[string]string {
	pairs := map[string]string{}
	decoders := []func(byte) rune{latin1, cp1252}

	for _, r := range accented {
		want := string(r)
		for _, first := range decoders {
			once, ok := misdecode(want, first)
			if !ok {
				continue
			}
			pairs[once] = want
			for _, second := range decoders {
				if twice, ok := misdecode(once, second); ok {
					pairs[twice] = want
				}
			}
		}
	}
	for k, v := range punctuation {
		pairs[k] = v
	}
	return pairs
}

// sortedKeys puts longer patterns first so the replacer prefers them.
func sortedKeys(pairs map[string]string) []string {
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}

// misdecode reads the UTF-8 bytes of s one by one through decode.
func misdecode(s string, decode func(byte) rune) (string, bool) {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		r := decode(s[i])
		if r == utf8.RuneError {
			return "", false
		}
		b.WriteRune(r)
	}
	return b.String(), true
}

func latin1(b byte) rune {
	return rune(b)
}

func cp1252(b byte) rune {
	return charmap.Windows1252.DecodeByte(b)
}
