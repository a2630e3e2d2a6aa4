package convert

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	stdhtml "html"
	"io"
	"strings"

	"novelhub/internal/markup"
)

// convertWord parses a word-processor archive by reading word/document.xml.
// Headings are demoted to paragraphs carrying the same typography classes;
// bold/italic/underline/strike runs map to their inline equivalents; empty
// paragraphs are dropped. A legacy payload that is not a ZIP archive is a
// conversion error, not a different code path.
func (c *Converter) convertWord(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open word archive: %w", err)
	}

	var docFile *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", fmt.Errorf("word/document.xml not found in archive")
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", fmt.Errorf("open document.xml: %w", err)
	}
	defer rc.Close()

	return c.wordToHTML(rc)
}

type runProps struct {
	bold      bool
	italic    bool
	underline bool
	strike    bool
}

func (c *Converter) wordToHTML(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)

	var sb strings.Builder
	var para strings.Builder // inner markup of the current paragraph
	var text strings.Builder // visible text, used to drop empty segments
	var runText strings.Builder
	var run runProps
	var inPara, inRun, inText bool

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				inPara = true
				para.Reset()
				text.Reset()
			case "r":
				if inPara {
					inRun = true
					run = runProps{}
					runText.Reset()
				}
			case "b":
				if inRun {
					run.bold = xmlFlagOn(t)
				}
			case "i":
				if inRun {
					run.italic = xmlFlagOn(t)
				}
			case "u":
				if inRun {
					run.underline = xmlFlagOn(t)
				}
			case "strike":
				if inRun {
					run.strike = xmlFlagOn(t)
				}
			case "t":
				if inRun {
					inText = true
				}
			case "br":
				if !inPara {
					break
				}
				// a break inside a run splits its accumulated text so the
				// formatting wraps each segment separately
				if inRun && runText.Len() > 0 {
					para.WriteString(renderRun(runText.String(), run))
					text.WriteString(runText.String())
					runText.Reset()
				}
				para.WriteString("<br/>")
			}

		case xml.CharData:
			if inText {
				runText.Write(t)
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "r":
				if inRun {
					inRun = false
					if runText.Len() > 0 {
						para.WriteString(renderRun(runText.String(), run))
						text.WriteString(runText.String())
					}
				}
			case "p":
				if inPara {
					inPara = false
					if strings.TrimSpace(text.String()) != "" {
						sb.WriteString(markup.WrapParagraphHTML(para.String(), c.cfg.Typography))
					}
				}
			}
		}
	}

	return sb.String(), nil
}

// renderRun wraps escaped run text with the inline equivalents of its
// word-processor properties.
func renderRun(text string, props runProps) string {
	out := stdhtml.EscapeString(text)
	if props.strike {
		out = "<s>" + out + "</s>"
	}
	if props.underline {
		out = "<u>" + out + "</u>"
	}
	if props.italic {
		out = "<em>" + out + "</em>"
	}
	if props.bold {
		out = "<strong>" + out + "</strong>"
	}
	return out
}

// xmlFlagOn interprets a word-processor boolean property element: present
// means on unless w:val says otherwise.
func xmlFlagOn(el xml.StartElement) bool {
	for _, attr := range el.Attr {
		if attr.Name.Local == "val" {
			switch strings.ToLower(attr.Value) {
			case "0", "false", "none", "off":
				return false
			}
		}
	}
	return true
}
