// Package images externalizes inline base64 image payloads from chapter
// markup into durable files.
package images

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrMalformedDataURL means an img src did not match the expected
// data:<mime>;base64,<payload> shape. It aborts the whole batch.
var ErrMalformedDataURL = errors.New("malformed data url")

var (
	// editor markup may carry either quote style around src
	inlineImgRe = regexp.MustCompile(`<img[^>]+src=(?:"(data:[^"]*)"|'(data:[^']*)')[^>]*>`)
	dataURLRe   = regexp.MustCompile(`(?i)^data:([a-z0-9.+/-]+);base64,(.+)$`)
)

type Config struct {
	// Dir receives the decoded files; created if absent.
	Dir string

	// URLPrefix is the public prefix written back into the markup.
	URLPrefix string

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Dir == "" {
		c.Dir = "data/content-images"
	}
	if c.URLPrefix == "" {
		c.URLPrefix = "/content-images"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

type Extractor struct {
	cfg Config
}

func New(cfg Config) *Extractor {
	cfg.defaults()
	return &Extractor{cfg: cfg}
}

// ExtractInline replaces every embedded base64 img src with a durable URL,
// writing each decoded payload to the image directory. Extractions run
// concurrently and are jointly awaited; the rewritten markup is returned
// only after all of them succeed. On any failure the files written by
// succeeded siblings are removed again before the error propagates, so a
// failed call leaves no orphaned files behind.
func (e *Extractor) ExtractInline(ctx context.Context, content string) (string, error) {
	matches := inlineImgRe.FindAllStringSubmatchIndex(content, -1)
	if len(matches) == 0 {
		return content, nil
	}

	if err := os.MkdirAll(e.cfg.Dir, 0o755); err != nil {
		return "", fmt.Errorf("ensure image dir: %w", err)
	}

	type stored struct {
		url  string
		path string
	}
	results := make([]stored, len(matches))
	spans := make([][2]int, len(matches))

	g, _ := errgroup.WithContext(ctx)
	for i, m := range matches {
		i := i
		// one of the two quote-style groups matched
		start, end := m[2], m[3]
		if start < 0 {
			start, end = m[4], m[5]
		}
		spans[i] = [2]int{start, end}
		dataURL := content[start:end]
		g.Go(func() error {
			path, url, err := e.persist(dataURL)
			if err != nil {
				return err
			}
			results[i] = stored{url: url, path: path}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, r := range results {
			if r.path != "" {
				_ = os.Remove(r.path)
			}
		}
		return "", err
	}

	// Swap only the data-URL substring; the rest of each tag stays intact.
	var sb strings.Builder
	last := 0
	for i, span := range spans {
		sb.WriteString(content[last:span[0]])
		sb.WriteString(results[i].url)
		last = span[1]
	}
	sb.WriteString(content[last:])
	return sb.String(), nil
}

// persist decodes one data URL into a new file and returns its disk path
// and public URL.
func (e *Extractor) persist(dataURL string) (string, string, error) {
	m := dataURLRe.FindStringSubmatch(dataURL)
	if m == nil {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedDataURL, truncate(dataURL, 64))
	}

	raw, err := base64.StdEncoding.DecodeString(m[2])
	if err != nil {
		return "", "", fmt.Errorf("%w: decode base64: %v", ErrMalformedDataURL, err)
	}

	name := newFileName(extForMIME(strings.ToLower(m[1])))
	path := filepath.Join(e.cfg.Dir, name)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", "", fmt.Errorf("write image %s: %w", name, err)
	}

	e.cfg.Logger.Debug("externalized inline image", "file", name, "bytes", len(raw))
	return path, e.cfg.URLPrefix + "/" + name, nil
}

func extForMIME(mime string) string {
	switch mime {
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	default:
		return "jpg"
	}
}

// newFileName builds a collision-resistant name from a timestamp plus a
// short hash of the timestamp and a random value.
func newFileName(ext string) string {
	ts := time.Now().UnixNano()
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	sum := sha256.Sum256(append([]byte(strconv.FormatInt(ts, 10)), buf...))
	return fmt.Sprintf("%d-%x.%s", ts, sum[:4], ext)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
