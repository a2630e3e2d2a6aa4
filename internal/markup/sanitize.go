package markup

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// cleanPolicy keeps the formatting vocabulary the editor produces and the
// converters emit. Disallowed elements lose their tags; script and style
// lose their content as well.
var cleanPolicy = newCleanPolicy()

func newCleanPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("p", "div", "span", "br", "b", "strong", "i", "em", "u", "s", "del", "blockquote")
	p.AllowAttrs("class").OnElements("p", "div", "span")
	p.AllowAttrs("src", "alt").OnElements("img")
	p.AllowAttrs("href").OnElements("a")
	p.AllowStandardURLs()
	// Inline base64 payloads must survive sanitization so the image
	// extractor can still find and externalize them.
	p.AllowDataURIImages()
	return p
}

var brRe = regexp.MustCompile(`<br\s*/?>`)

// CleanHTML sanitizes arbitrary markup and guarantees typography
// classification on every paragraph, span and div. Steps, in order:
//
//  1. strip script/style elements entirely, drop unsafe tags/attributes
//  2. collapse a paragraph whose sole child is an unclassed span
//  3. fill fully empty paragraphs with a non-breaking space
//  4. inject the default font/size classes on elements lacking them
//  5. normalize line-break tags to one form
//
// CleanHTML is idempotent: step 4 only touches elements missing a class,
// and steps 2-3 reproduce their own output.
func CleanHTML(s string, cfg Config) string {
	cfg.defaults()

	s = cleanPolicy.Sanitize(s)

	nodes, err := parseFragment(s)
	if err != nil {
		return s
	}
	for _, n := range nodes {
		cleanNode(n, cfg)
	}
	return brRe.ReplaceAllString(renderNodes(nodes), "<br/>")
}

func cleanNode(n *html.Node, cfg Config) {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.P:
			collapseRedundantSpan(n)
			if isEmptyBlock(n) {
				fillWithNBSP(n)
			}
			applyTypography(n, cfg, false)
		case atom.Span, atom.Div:
			applyTypography(n, cfg, false)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		cleanNode(c, cfg)
	}
}

// collapseRedundantSpan unwraps <p><span>...</span></p> when the span is the
// paragraph's only child and carries no class. Some converters introduce this
// nesting; a classed span is meaningful and left alone.
func collapseRedundantSpan(p *html.Node) {
	child := p.FirstChild
	if child == nil || child != p.LastChild {
		return
	}
	if child.Type != html.ElementNode || child.DataAtom != atom.Span {
		return
	}
	if getAttr(child, "class") != "" {
		return
	}
	for c := child.FirstChild; c != nil; {
		next := c.NextSibling
		child.RemoveChild(c)
		p.InsertBefore(c, child)
		c = next
	}
	p.RemoveChild(child)
}

// isEmptyBlock reports whether the element has no content at all, counting
// whitespace-only text as nothing.
func isEmptyBlock(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.TextNode {
			return false
		}
		if strings.TrimSpace(c.Data) != "" {
			return false
		}
	}
	return true
}

// fillWithNBSP replaces the element's children with a single non-breaking
// space so downstream renderers do not drop the block.
func fillWithNBSP(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: "\u00a0"})
}

// applyTypography ensures the element's class attribute carries one font
// class and one size class. With force set, existing font/size classes are
// replaced instead of preserved.
func applyTypography(n *html.Node, cfg Config, force bool) {
	classes := strings.Fields(getAttr(n, "class"))
	kept := make([]string, 0, len(classes)+2)
	hasFont, hasSize := false, false
	for _, c := range classes {
		switch {
		case strings.HasPrefix(c, FontClassPrefix):
			if force {
				continue
			}
			hasFont = true
		case strings.HasPrefix(c, SizeClassPrefix):
			if force {
				continue
			}
			hasSize = true
		}
		kept = append(kept, c)
	}
	if !hasFont {
		kept = append(kept, cfg.FontClass())
	}
	if !hasSize {
		kept = append(kept, cfg.SizeClass())
	}
	setAttr(n, "class", strings.Join(kept, " "))
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func parseFragment(s string) ([]*html.Node, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	return html.ParseFragment(strings.NewReader(s), body)
}

func renderNodes(nodes []*html.Node) string {
	var buf bytes.Buffer
	for _, n := range nodes {
		if err := html.Render(&buf, n); err != nil {
			return buf.String()
		}
	}
	return buf.String()
}
