package convert

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"reflect"
	"strings"
	"testing"
)

// buildTestPDF assembles a minimal uncompressed PDF, one content stream per
// page, with the xref offsets computed while writing.
func buildTestPDF(t *testing.T, pageStreams []string) []byte {
	t.Helper()

	var objs []string
	objs = append(objs, "<< /Type /Catalog /Pages 2 0 R >>")
	kids := make([]string, len(pageStreams))
	for i := range pageStreams {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	objs = append(objs, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>",
		strings.Join(kids, " "), len(pageStreams)))
	objs = append(objs, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")
	for i, s := range pageStreams {
		objs = append(objs, fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>",
			5+2*i))
		objs = append(objs, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(s), s))
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs)+1)
	for i, body := range objs {
		offsets[i+1] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xrefPos := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objs)+1)
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= len(objs); i++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(objs)+1, xrefPos)
	return buf.Bytes()
}

func TestConvertPDFTwoPages(t *testing.T) {
	tempDir := t.TempDir()
	pdf := buildTestPDF(t, []string{
		"BT\n/F1 12 Tf\n1 0 0 1 72 720 Tm\n(First page text) Tj\nET",
		"BT\n/F1 12 Tf\n1 0 0 1 72 720 Tm\n(Second page text) Tj\nET",
	})

	c := New(Config{TempDir: tempDir})
	out, err := c.Convert(context.Background(), pdf, FormatPDF)
	if err != nil {
		t.Fatal(err)
	}

	first := strings.Index(out, "First page text")
	marker := strings.Index(out, " ")
	second := strings.Index(out, "Second page text")
	if first < 0 || second < 0 {
		t.Fatalf("page text missing: %q", out)
	}
	if n := strings.Count(out, " "); n != 1 {
		t.Fatalf("expected exactly 1 page-break marker, got %d: %q", n, out)
	}
	if !(first < marker && marker < second) {
		t.Fatalf("marker not between pages: %q", out)
	}
	if !strings.Contains(out, "ql-font-merriweather ql-size-large") {
		t.Fatalf("typography missing: %q", out)
	}

	entries, err := os.ReadDir(tempDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("temp file left behind: %d entries", len(entries))
	}
}

func TestConvertPDFSinglePageHasNoMarker(t *testing.T) {
	pdf := buildTestPDF(t, []string{
		"BT\n1 0 0 1 72 720 Tm\n(Only page) Tj\nET",
	})

	c := New(Config{TempDir: t.TempDir()})
	out, err := c.Convert(context.Background(), pdf, FormatPDF)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Only page") {
		t.Fatalf("page text missing: %q", out)
	}
	if strings.Contains(out, " ") {
		t.Fatalf("marker after last page: %q", out)
	}
}

func TestConvertPDFInvalidCleansTempDir(t *testing.T) {
	tempDir := t.TempDir()
	c := New(Config{TempDir: tempDir})

	if _, err := c.Convert(context.Background(), []byte("not a pdf at all"), FormatPDF); err == nil {
		t.Fatal("expected error for invalid pdf")
	}

	entries, err := os.ReadDir(tempDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("temp file left behind on failure: %d entries", len(entries))
	}
}

func TestParseContentRuns(t *testing.T) {
	stream := []byte(`BT
1 0 0 1 50 700 Tm
(Hello) Tj
1 0 0 1 85 700 Tm
(world) Tj
1 0 0 1 50 660 Tm
(Next) Tj
ET`)
	runs := parseContentRuns(stream, 5.0)
	want := []textRun{
		{text: "Hello", x: 50, y: 700},
		{text: "world", x: 85, y: 700},
		{text: "Next", x: 50, y: 660},
	}
	if !reflect.DeepEqual(runs, want) {
		t.Fatalf("got %+v, want %+v", runs, want)
	}
}

func TestParseContentRunsTdAndLeading(t *testing.T) {
	stream := []byte(`BT
20 TL
1 0 0 1 50 700 Tm
(a) Tj
0 -20 Td
(b) Tj
T*
(c) Tj
ET`)
	runs := parseContentRuns(stream, 5.0)
	if len(runs) != 3 {
		t.Fatalf("got %d runs: %+v", len(runs), runs)
	}
	if runs[1].y != 680 {
		t.Errorf("Td run y = %v, want 680", runs[1].y)
	}
	if runs[2].y != 660 {
		t.Errorf("T* run y = %v, want 660", runs[2].y)
	}
}

func TestParseContentRunsTJArray(t *testing.T) {
	stream := []byte(`1 0 0 1 10 100 Tm
[(He) -250 (llo)] TJ`)
	runs := parseContentRuns(stream, 5.0)
	if len(runs) != 1 || runs[0].text != "Hello" {
		t.Fatalf("got %+v", runs)
	}
}

func TestParseContentRunsEscapes(t *testing.T) {
	stream := []byte(`1 0 0 1 0 0 Tm
(a \(quoted\) \134 b) Tj`)
	runs := parseContentRuns(stream, 5.0)
	if len(runs) != 1 {
		t.Fatalf("got %+v", runs)
	}
	if runs[0].text != `a (quoted) \ b` {
		t.Fatalf("got %q", runs[0].text)
	}
}

func TestGroupRunsParagraphBreaks(t *testing.T) {
	c := New(Config{})
	runs := []textRun{
		{text: "Hello", x: 50, y: 700},
		{text: "world", x: 85, y: 700}, // gap 85-(50+25)=10 > WordGap: space
		{text: "still", x: 112, y: 698}, // y delta 2 within tolerance, gap 2: no space
		{text: "Next", x: 50, y: 660},  // y delta 38: new paragraph
	}
	got := c.groupRuns(runs)
	want := []string{"Hello worldstill", "Next"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestGroupRunsCustomTolerance(t *testing.T) {
	c := New(Config{LineTolerance: 50})
	runs := []textRun{
		{text: "a", x: 0, y: 700},
		{text: "b", x: 0, y: 660},
	}
	got := c.groupRuns(runs)
	if len(got) != 1 {
		t.Fatalf("tolerance 50 should merge lines 40 apart, got %v", got)
	}
}

func TestGroupRunsEmpty(t *testing.T) {
	c := New(Config{})
	if got := c.groupRuns(nil); len(got) != 0 {
		t.Fatalf("got %v", got)
	}
}

func TestDecodePDFString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`plain`, "plain"},
		{`line\nbreak`, "line\nbreak"},
		{`tab\there`, "tab\there"},
		{`\(paren\)`, "(paren)"},
		{`back\\slash`, `back\slash`},
		{`octal \101\102`, "octal AB"},
		{`trailing\`, `trailing\`},
	}
	for _, tt := range tests {
		if got := decodePDFString([]byte(tt.in)); got != tt.want {
			t.Errorf("decodePDFString(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
