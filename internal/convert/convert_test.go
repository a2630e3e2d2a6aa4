package convert

import (
	"context"
	"errors"
	"strings"
	"testing"

	"novelhub/internal/markup"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		filename string
		want     Format
		wantErr  bool
	}{
		{"chapter.txt", FormatTXT, false},
		{"Chapter One.DOCX", FormatDocx, false},
		{"legacy.doc", FormatDoc, false},
		{"scan.pdf", FormatPDF, false},
		{"notes.epub", "", true},
		{"noextension", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := Detect(tt.filename)
		if tt.wantErr {
			if !errors.Is(err, ErrUnsupportedFormat) {
				t.Errorf("Detect(%q) err = %v, want ErrUnsupportedFormat", tt.filename, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("Detect(%q) unexpected error: %v", tt.filename, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Detect(%q) = %q, want %q", tt.filename, got, tt.want)
		}
	}
}

func TestConvertUnknownFormat(t *testing.T) {
	c := New(Config{})
	if _, err := c.Convert(context.Background(), []byte("x"), Format("rtf")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestConvertText(t *testing.T) {
	c := New(Config{})
	out, err := c.Convert(context.Background(), []byte("Hello world\n\nGoodbye"), FormatTXT)
	if err != nil {
		t.Fatal(err)
	}
	cls := "ql-font-merriweather ql-size-large"
	want := `<p class="` + cls + `"><span class="` + cls + `">Hello world</span></p>` +
		`<p class="` + cls + `"><span class="` + cls + `">Goodbye</span></p>`
	if out != want {
		t.Fatalf("got %q\nwant %q", out, want)
	}
}

func TestConvertTextWindowsLineEndings(t *testing.T) {
	c := New(Config{})
	out, err := c.Convert(context.Background(), []byte("one\r\ntwo\rthree"), FormatTXT)
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(out, "<p "); n != 3 {
		t.Fatalf("expected 3 paragraphs, got %d: %q", n, out)
	}
}

func TestConvertTextEscapesMarkup(t *testing.T) {
	c := New(Config{})
	out, err := c.Convert(context.Background(), []byte("a <b> c"), FormatTXT)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "<b>") {
		t.Fatalf("source markup not escaped: %q", out)
	}
	if !strings.Contains(out, "a &lt;b&gt; c") {
		t.Fatalf("escaped text missing: %q", out)
	}
}

func TestConvertTextBlankLinesDropped(t *testing.T) {
	c := New(Config{})
	out, err := c.Convert(context.Background(), []byte("\n\n  \nonly\n\n"), FormatTXT)
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(out, "<p "); n != 1 {
		t.Fatalf("expected 1 paragraph, got %d: %q", n, out)
	}
	if strings.Contains(out, " ") {
		t.Fatalf("blank line produced an empty paragraph: %q", out)
	}
}

func TestConvertTextCustomTypography(t *testing.T) {
	c := New(Config{Typography: markup.Config{FontFamily: "lora", FontSize: "small"}})
	out, err := c.Convert(context.Background(), []byte("x"), FormatTXT)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "ql-font-lora ql-size-small") {
		t.Fatalf("custom typography missing: %q", out)
	}
}
