package source

import (
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// The ociostock feed embeds small XML fragments in some columns. All
// helpers report ok=false for empty or malformed markup.

type xmlNode struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Text     string     `xml:",chardata"`
	Children []xmlNode  `xml:",any"`
}

func parseFragment(s string) (*xmlNode, bool) {
	s = strings.TrimSpace(s)
	if s == "" || !strings.HasPrefix(s, "<") {
		return nil, false
	}
	dec := xml.NewDecoder(strings.NewReader(s))
	dec.Strict = true
	var n xmlNode
	if err := dec.Decode(&n); err != nil {
		return nil, false
	}
	// Reject trailing garbage after the root element.
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false
		}
		if cd, ok := tok.(xml.CharData); ok && strings.TrimSpace(string(cd)) == "" {
			continue
		}
		return nil, false
	}
	return &n, true
}

func (n *xmlNode) attr(name string) string {
	for _, a := range n.Attrs {
		if strings.EqualFold(a.Name.Local, name) {
			return a.Value
		}
	}
	return ""
}

func (n *xmlNode) find(local string) *xmlNode {
	if strings.EqualFold(n.XMLName.Local, local) {
		return n
	}
	for i := range n.Children {
		if hit := n.Children[i].find(local); hit != nil {
			return hit
		}
	}
	return nil
}

func parseNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0, false
	}
	return f, true
}

// WeightGrams reads <shipping_weight unit="g">232</shipping_weight>.
// Kilograms, pounds and ounces are converted; no unit means grams.
func WeightGrams(s string) (int, bool) {
	root, ok := parseFragment(s)
	if !ok {
		return 0, false
	}
	node := root
	if !strings.Contains(strings.ToLower(root.XMLName.Local), "weight") {
		if node = root.find("shipping_weight"); node == nil {
			if node = root.find("weight"); node == nil {
				return 0, false
			}
		}
	}
	v, ok := parseNumber(node.Text)
	if !ok {
		return 0, false
	}
	switch strings.ToLower(node.attr("unit")) {
	case "", "g", "gr", "grams":
	case "kg", "kgs":
		v *= 1000
	case "lb", "lbs":
		v *= 453.59237
	case "oz":
		v *= 28.349523125
	default:
		return 0, false
	}
	return int(math.Round(v)), true
}

// Dimensions reads <size unit="mm"><width/><height/><depth/></size> into
// "150x77x222mm".
func Dimensions(s string) (string, bool) {
	root, ok := parseFragment(s)
	if !ok {
		return "", false
	}
	size := root.find("size")
	if size == nil {
		size = root
	}
	parts := make([]string, 0, 3)
	for _, name := range []string{"width", "height", "depth"} {
		child := size.find(name)
		if child == nil {
			return "", false
		}
		text := strings.TrimSpace(child.Text)
		if _, ok := parseNumber(text); !ok {
			return "", false
		}
		parts = append(parts, text)
	}
	return fmt.Sprintf("%s%s", strings.Join(parts, "x"), size.attr("unit")), true
}

// Barcode returns the first non-empty <barcode> value.
func Barcode(s string) (string, bool) {
	root, ok := parseFragment(s)
	if !ok {
		return "", false
	}
	var walk func(n *xmlNode) string
	walk = func(n *xmlNode) string {
		if strings.EqualFold(n.XMLName.Local, "barcode") {
			if v := strings.TrimSpace(n.Text); v != "" {
				return v
			}
		}
		for i := range n.Children {
			if v := walk(&n.Children[i]); v != "" {
				return v
			}
		}
		return ""
	}
	v := walk(root)
	return v, v != ""
}
