package markup

import (
	stdhtml "html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var stripPolicy = bluemonday.StrictPolicy()

// Options control a single Format call.
type Options struct {
	// FontFamily/FontSize override the formatter default when non-empty.
	FontFamily string
	FontSize   string

	// PreserveHTML false strips all tags and returns plain text.
	PreserveHTML bool

	// AutoClean runs CleanHTML before the formatting check.
	AutoClean bool

	// ForceFormat injects the requested classes even when the content
	// already has typography, replacing existing font/size classes. Set
	// when the caller supplied an explicit font or size: the intent is to
	// override, not merely ensure presence.
	ForceFormat bool
}

// Formatter applies the effective font/size policy to prose content.
type Formatter struct {
	cfg Config
}

func NewFormatter(cfg Config) *Formatter {
	cfg.defaults()
	return &Formatter{cfg: cfg}
}

// Config returns the formatter's default typography.
func (f *Formatter) Config() Config { return f.cfg }

// Format returns markup guaranteed to carry typography classes throughout.
// Injection is skipped when the content already has typography, unless the
// caller forces an override; double-running injection is safe regardless,
// the short-circuit just avoids re-walking large chapters.
func (f *Formatter) Format(content string, opts Options) string {
	if !opts.PreserveHTML {
		return StripTags(content)
	}

	if opts.AutoClean {
		content = CleanHTML(content, f.cfg)
	}

	if opts.ForceFormat || !HasTypography(content) {
		content = injectTypography(content, f.effective(opts), opts.ForceFormat)
	}
	return content
}

// effective resolves the typography for one call: explicit request fields
// win over the formatter default.
func (f *Formatter) effective(opts Options) Config {
	cfg := f.cfg
	if opts.FontFamily != "" {
		cfg.FontFamily = opts.FontFamily
	}
	if opts.FontSize != "" {
		cfg.FontSize = opts.FontSize
	}
	return cfg
}

// StripTags removes all markup and returns the text content.
func StripTags(s string) string {
	return strings.TrimSpace(stdhtml.UnescapeString(stripPolicy.Sanitize(s)))
}

// injectTypography walks the fragment and classes every paragraph, span and
// div. It performs the same injection as CleanHTML step 4, parameterized by
// the requested typography.
func injectTypography(s string, cfg Config, force bool) string {
	nodes, err := parseFragment(s)
	if err != nil {
		return s
	}
	for _, n := range nodes {
		injectNode(n, cfg, force)
	}
	return renderNodes(nodes)
}

func injectNode(n *html.Node, cfg Config, force bool) {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.P, atom.Span, atom.Div:
			applyTypography(n, cfg, force)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		injectNode(c, cfg, force)
	}
}
