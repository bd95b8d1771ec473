package enginetest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Letter and A4 are common page sizes in points.
var (
	Letter = [2]float64{612, 792}
	A4     = [2]float64{595, 842}
)

// BuildPDF returns a minimal uncompressed PDF with one page per entry in pages.
// Each entry is [width, height] in points. The cross-reference table carries
// exact byte offsets.
func BuildPDF(pages ...[2]float64) []byte {
	return buildPDF("", pages)
}

// BuildTitledPDF is BuildPDF with a document information dictionary
// carrying title.
func BuildTitledPDF(title string, pages ...[2]float64) []byte {
	return buildPDF(title, pages)
}

func buildPDF(title string, pages [][2]float64) []byte {
	var buf bytes.Buffer
	var offsets []int

	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")

	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", i+3)
	}

	obj("<< /Type /Catalog /Pages 2 0 R >>")
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)))
	for _, p := range pages {
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %s %s] /Resources << >> >>",
			formatNumber(p[0]), formatNumber(p[1])))
	}

	trailer := fmt.Sprintf("/Size %d /Root 1 0 R", len(offsets)+1)
	if title != "" {
		obj(fmt.Sprintf("<< /Title (%s) >>", escapeLiteral(title)))
		trailer = fmt.Sprintf("/Size %d /Root 1 0 R /Info %d 0 R", len(offsets)+1, len(offsets))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< %s >>\nstartxref\n%d\n%%%%EOF\n", trailer, xref)

	return buf.Bytes()
}

// WritePDF writes BuildPDF(pages...) to dir/name and returns the path.
func WritePDF(tb testing.TB, dir, name string, pages ...[2]float64) string {
	tb.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, BuildPDF(pages...), 0o600); err != nil {
		tb.Fatalf("write %s: %v", path, err)
	}
	return path
}

// WriteTitledPDF writes BuildTitledPDF(title, pages...) to dir/name and
// returns the path.
func WriteTitledPDF(tb testing.TB, dir, name, title string, pages ...[2]float64) string {
	tb.Helper()
	return WriteFile(tb, dir, name, BuildTitledPDF(title, pages...))
}

// WriteFile writes arbitrary bytes to dir/name and returns the path.
// Tests use it for damaged inputs.
func WriteFile(tb testing.TB, dir, name string, data []byte) string {
	tb.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		tb.Fatalf("write %s: %v", path, err)
	}
	return path
}

func formatNumber(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}

var literalEscaper = strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)

func escapeLiteral(s string) string {
	return literalEscaper.Replace(s)
}
