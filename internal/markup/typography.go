// Package markup normalizes chapter content: it sanitizes untrusted HTML and
// guarantees that every block and inline element carries typography
// classification (a font class and a size class).
package markup

import (
	stdhtml "html"
	"strings"
)

const (
	FontClassPrefix = "ql-font-"
	SizeClassPrefix = "ql-size-"

	DefaultFontFamily = "merriweather"
	DefaultFontSize   = "large"
)

// Config is the typography default applied wherever content carries none.
// It is threaded explicitly through the pipeline rather than read from
// package state, so callers can vary defaults per deployment.
type Config struct {
	FontFamily string
	FontSize   string
}

func (c *Config) defaults() {
	if c.FontFamily == "" {
		c.FontFamily = DefaultFontFamily
	}
	if c.FontSize == "" {
		c.FontSize = DefaultFontSize
	}
}

func (c Config) FontClass() string { return FontClassPrefix + c.FontFamily }
func (c Config) SizeClass() string { return SizeClassPrefix + c.FontSize }

func (c Config) classAttr() string {
	return c.FontClass() + " " + c.SizeClass()
}

// HasTypography reports whether content carries typography classification.
// The check is deliberately lenient: it tests for the presence of both
// markers anywhere in the string, not that every block carries them. A
// stricter per-element check would reformat mixed documents; the injection
// pass is idempotent so the lenient short-circuit is purely an optimization.
func HasTypography(s string) bool {
	return strings.Contains(s, FontClassPrefix) && strings.Contains(s, SizeClassPrefix)
}

// WrapParagraph builds a fully classed paragraph around escaped plain text.
// Converters emit one of these per logical source paragraph.
func WrapParagraph(text string, cfg Config) string {
	return WrapParagraphHTML(stdhtml.EscapeString(text), cfg)
}

// WrapParagraphHTML is WrapParagraph for inner content that is already markup.
func WrapParagraphHTML(inner string, cfg Config) string {
	cfg.defaults()
	cls := cfg.classAttr()
	var sb strings.Builder
	sb.WriteString(`<p class="`)
	sb.WriteString(cls)
	sb.WriteString(`"><span class="`)
	sb.WriteString(cls)
	sb.WriteString(`">`)
	sb.WriteString(inner)
	sb.WriteString(`</span></p>`)
	return sb.String()
}

// EmptyParagraph is the visual page-break marker: a classed paragraph holding
// a single non-breaking space, the same stable form CleanHTML produces for
// empty paragraphs.
func EmptyParagraph(cfg Config) string {
	return WrapParagraphHTML("\u00a0", cfg)
}
