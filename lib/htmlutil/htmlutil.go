package htmlutil

import (
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func collectTextNodes(node *html.Node, out *[]string) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		trimmed := strings.TrimSpace(node.Data)
		if trimmed != "" {
			*out = append(*out, trimmed)
		}
		return
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		collectTextNodes(child, out)
	}
}

// JoinedText trims every text node under the selection, drops the empty ones
// and joins the rest with `sep`. ("<b> 1.5 </b>T<i>涡轮增压</i>", " ") -> "1.5 T 涡轮增压"
func JoinedText(sel *goquery.Selection, sep string) string {
	var parts []string
	for _, node := range sel.Nodes {
		collectTextNodes(node, &parts)
	}
	return strings.Join(parts, sep)
}

// IsDecorativeGlyph reports icon-font codepoints (U+E600..U+E6FF) and the
// bullet marks the comparison tables use to draw standard/optional markers.
func IsDecorativeGlyph(r rune) bool {
	if r >= 0xE600 && r <= 0xE6FF {
		return true
	}
	switch r {
	case '●', '○', '※':
		return true
	}
	return false
}

// StripGlyphs removes decorative glyphs and trims the result.
func StripGlyphs(s string) string {
	s = strings.Map(func(r rune) rune {
		if IsDecorativeGlyph(r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// KeepPriceChars keeps digits, '.' and the unit glyph `unit`, dropping everything else.
func KeepPriceChars(s string, unit rune) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) || r == '.' || r == unit {
			return r
		}
		return -1
	}, s)
}
