package convert

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"novelhub/internal/markup"
)

// convertPDF iterates pages and groups positioned text runs into paragraphs:
// a new paragraph starts when the vertical position moves more than
// LineTolerance from the previous run; within a paragraph a space is
// inserted when the horizontal gap between runs exceeds WordGap. An empty
// paragraph marker separates pages, except after the last one.
//
// The temp file backing the parser is removed on success and failure alike.
func (c *Converter) convertPDF(data []byte) (string, error) {
	tmp, err := os.CreateTemp(c.cfg.TempDir, "novelhub-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	if _, err := tmp.Write(data); err != nil {
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind temp file: %w", err)
	}

	pdfCtx, err := api.ReadValidateAndOptimize(tmp, model.NewDefaultConfiguration())
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}

	var sb strings.Builder
	sawText := false
	for pageNr := 1; pageNr <= pdfCtx.PageCount; pageNr++ {
		runs := c.pageRuns(pdfCtx, pageNr)
		for _, para := range c.groupRuns(runs) {
			sb.WriteString(markup.WrapParagraph(para, c.cfg.Typography))
			sawText = true
		}
		if pageNr < pdfCtx.PageCount {
			sb.WriteString(markup.EmptyParagraph(c.cfg.Typography))
		}
	}

	if !sawText {
		return "", fmt.Errorf("no text content found in pdf")
	}
	return sb.String(), nil
}

// textRun is one text-show operation with its page position.
type textRun struct {
	text string
	x, y float64
}

func (c *Converter) pageRuns(pdfCtx *model.Context, pageNr int) []textRun {
	r, err := pdfcpu.ExtractPageContent(pdfCtx, pageNr)
	if err != nil {
		c.cfg.Logger.Debug("extract page content failed", "page", pageNr, "err", err)
		return nil
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return nil
	}
	return parseContentRuns(data, c.cfg.CharWidth)
}

// pdfStringRe matches PDF string literals, allowing escaped parentheses.
var pdfStringRe = regexp.MustCompile(`\(((?:[^()\\]|\\.)*)\)`)

// parseContentRuns walks content-stream operators, tracking the text
// position through Tm/Td/TD/TL/T* so each shown string carries coordinates.
func parseContentRuns(data []byte, charWidth float64) []textRun {
	var runs []textRun
	var x, y float64
	leading := 12.0

	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		fields := strings.Fields(string(line))

		switch {
		case bytes.HasSuffix(line, []byte("Tm")):
			// a b c d e f Tm: e,f set the text origin.
			if len(fields) >= 7 {
				ex, err1 := strconv.ParseFloat(fields[len(fields)-3], 64)
				ey, err2 := strconv.ParseFloat(fields[len(fields)-2], 64)
				if err1 == nil && err2 == nil {
					x, y = ex, ey
				}
			}
		case bytes.HasSuffix(line, []byte("TD")), bytes.HasSuffix(line, []byte("Td")):
			if len(fields) >= 3 {
				tx, err1 := strconv.ParseFloat(fields[len(fields)-3], 64)
				ty, err2 := strconv.ParseFloat(fields[len(fields)-2], 64)
				if err1 == nil && err2 == nil {
					x += tx
					y += ty
					if bytes.HasSuffix(line, []byte("TD")) && ty != 0 {
						leading = math.Abs(ty)
					}
				}
			}
		case bytes.HasSuffix(line, []byte("TL")):
			if len(fields) >= 2 {
				if l, err := strconv.ParseFloat(fields[len(fields)-2], 64); err == nil && l > 0 {
					leading = l
				}
			}
		case bytes.Equal(line, []byte("T*")):
			y -= leading
		}

		showsText := bytes.HasSuffix(line, []byte("Tj")) || bytes.HasSuffix(line, []byte("TJ")) ||
			(bytes.HasSuffix(line, []byte("'")) && bytes.Contains(line, []byte("(")))
		if !showsText {
			continue
		}
		if bytes.HasSuffix(line, []byte("'")) {
			y -= leading
		}

		var text strings.Builder
		for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
			text.WriteString(decodePDFString(m[1]))
		}
		t := text.String()
		if strings.TrimSpace(t) == "" {
			continue
		}
		runs = append(runs, textRun{text: t, x: x, y: y})
		x += charWidth * float64(len([]rune(t)))
	}

	return runs
}

// groupRuns applies the Y-continuity / X-gap heuristic.
func (c *Converter) groupRuns(runs []textRun) []string {
	var paras []string
	var cur strings.Builder

	flush := func() {
		if t := strings.TrimSpace(cur.String()); t != "" {
			paras = append(paras, t)
		}
		cur.Reset()
	}

	for i, r := range runs {
		if i == 0 {
			cur.WriteString(r.text)
			continue
		}
		prev := runs[i-1]
		if math.Abs(r.y-prev.y) > c.cfg.LineTolerance {
			flush()
			cur.WriteString(r.text)
			continue
		}
		prevEnd := prev.x + c.cfg.CharWidth*float64(len([]rune(prev.text)))
		if r.x-prevEnd > c.cfg.WordGap {
			cur.WriteByte(' ')
		}
		cur.WriteString(r.text)
	}
	flush()

	return paras
}

// decodePDFString resolves the escape sequences of a PDF string literal.
func decodePDFString(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			sb.WriteByte(raw[i])
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '\\', '(', ')':
			sb.WriteByte(raw[i])
		default:
			if raw[i] >= '0' && raw[i] <= '7' {
				// octal escape, up to three digits
				val := int(raw[i] - '0')
				for n := 0; n < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; n++ {
					i++
					val = val*8 + int(raw[i]-'0')
				}
				sb.WriteByte(byte(val))
			} else {
				sb.WriteByte(raw[i])
			}
		}
	}
	return sb.String()
}
