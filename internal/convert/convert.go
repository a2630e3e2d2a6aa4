// Package convert turns uploaded documents (plain text, word-processor
// archives, PDF) into paragraph HTML carrying typography classification.
package convert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"novelhub/internal/markup"
)

// Format identifies a supported source document type.
type Format string

const (
	FormatTXT  Format = "txt"
	FormatDoc  Format = "doc"
	FormatDocx Format = "docx"
	FormatPDF  Format = "pdf"
)

// ErrUnsupportedFormat rejects a file before any conversion attempt.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Detect returns the document format based on file extension.
func Detect(filename string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return FormatTXT, nil
	case ".doc":
		return FormatDoc, nil
	case ".docx":
		return FormatDocx, nil
	case ".pdf":
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// Extensions returns the upload allow-list.
func Extensions() []string {
	return []string{".docx", ".doc", ".txt", ".pdf"}
}

// Config configures a Converter.
type Config struct {
	// Typography is wrapped around every produced paragraph.
	Typography markup.Config

	// PDF paragraph-grouping heuristics. The defaults are empirical and
	// tunable; validate changes against representative sample documents.
	LineTolerance float64 // max vertical delta between runs of one paragraph
	WordGap       float64 // min horizontal gap that separates two words
	CharWidth     float64 // approximate glyph advance used to estimate run width

	// TempDir is the scratch space for PDF parsing ("" = system default).
	TempDir string

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.LineTolerance <= 0 {
		c.LineTolerance = 5.0
	}
	if c.WordGap <= 0 {
		c.WordGap = 6.0
	}
	if c.CharWidth <= 0 {
		c.CharWidth = 5.0
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Converter produces one HTML string of block-level paragraph elements,
// one per logical paragraph in the source.
type Converter struct {
	cfg Config
}

func New(cfg Config) *Converter {
	cfg.defaults()
	return &Converter{cfg: cfg}
}

// Convert dispatches on the declared format. Legacy and modern
// word-processor variants are handled identically. Conversion failures are
// wrapped and surfaced; they are not retried.
func (c *Converter) Convert(ctx context.Context, data []byte, format Format) (string, error) {
	var out string
	var err error
	switch format {
	case FormatTXT:
		out, err = c.convertText(data)
	case FormatDoc, FormatDocx:
		out, err = c.convertWord(data)
	case FormatPDF:
		out, err = c.convertPDF(data)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return "", fmt.Errorf("convert %s to html: %w", format, err)
	}
	c.cfg.Logger.Debug("converted document", "format", format, "bytes_in", len(data), "bytes_out", len(out))
	return out, nil
}
