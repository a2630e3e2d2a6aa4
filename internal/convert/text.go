package convert

import (
	"strings"

	"novelhub/internal/markup"
)

// convertText turns each non-empty line into one formatted paragraph.
// Blank lines are dropped, not represented as empty paragraphs.
func (c *Converter) convertText(data []byte) (string, error) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var sb strings.Builder
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		sb.WriteString(markup.WrapParagraph(line, c.cfg.Typography))
	}
	return sb.String(), nil
}
