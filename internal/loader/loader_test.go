package loader

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fumiama/go-docx"
)

func TestForFile(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"book.txt", "*loader.TextLoader"},
		{"book.XHTML", "*loader.TextLoader"},
		{"book.htm", "*loader.TextLoader"},
		{"notes.markdown", "*loader.MarkdownLoader"},
		{"scan.pdf", "*loader.PDFLoader"},
		{"draft.docx", "*loader.DOCXLoader"},
	}
	for _, tc := range tests {
		l, err := ForFile(tc.name)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if got := typeName(l); got != tc.want {
			t.Errorf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
		if !IsSupportedExtension(tc.name) {
			t.Errorf("%s: expected extension to be supported", tc.name)
		}
	}

	if _, err := ForFile("sheet.csv"); err == nil {
		t.Error("expected error for unsupported extension")
	}
	if IsSupportedExtension("archive.epub") {
		t.Error("expected .epub to be unsupported")
	}
}

func typeName(l Loader) string {
	switch l.(type) {
	case *TextLoader:
		return "*loader.TextLoader"
	case *MarkdownLoader:
		return "*loader.MarkdownLoader"
	case *PDFLoader:
		return "*loader.PDFLoader"
	case *DOCXLoader:
		return "*loader.DOCXLoader"
	}
	return "unknown"
}

func TestTextLoader_PassThrough(t *testing.T) {
	in := "\xEF\xBB\xBF<p class=\"calibre1\">Olá <i>mundo</i></p>\n<img src='a.png'/>"
	got, err := (&TextLoader{}).Load(strings.NewReader(in), "book.html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "<p class=\"calibre1\">Olá <i>mundo</i></p>\n<img src='a.png'/>"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestMarkdownLoader(t *testing.T) {
	in := "# Capítulo\n\nUma ponte le-\nvadiça.\n\n![mapa](mapa.png)\n\n<div class=\"raw\">kept</div>\n"
	got, err := (&MarkdownLoader{}).Load(strings.NewReader(in), "book.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{
		"<h1>Capítulo</h1>",
		"<p>Uma ponte le-\nvadiça.</p>",
		`<img src="mapa.png" alt="mapa">`,
		`<div class="raw">kept</div>`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected output to contain %q, got %q", want, got)
		}
	}
}

func TestParagraphsHTML(t *testing.T) {
	in := "  First line\r\nsecond line  \n\n\n a < b & c \n"
	want := "<p>First line\nsecond line</p>\n<p>a &lt; b &amp; c</p>\n"
	if got := paragraphsHTML(in); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	if got := paragraphsHTML(" \n\t\n"); got != "" {
		t.Errorf("expected empty output for blank text, got %q", got)
	}
}

func TestPagesHTML(t *testing.T) {
	got := pagesHTML([]string{"page one", "   ", "page two\n\npara"})
	want := "<p>page one</p>\n" + PageBreak + "\n<p>page two</p>\n<p>para</p>\n"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestPDFLoader_InvalidInput(t *testing.T) {
	_, err := (&PDFLoader{}).Load(strings.NewReader("not a pdf"), "x.pdf")
	if err == nil {
		t.Fatal("expected error for invalid pdf")
	}
}

func TestDOCXLoader(t *testing.T) {
	w := docx.New().WithDefaultTheme()
	w.AddParagraph().AddText("Primeiro parágrafo & mais")
	w.AddParagraph()
	w.AddParagraph().AddText("Segundo")

	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		t.Fatalf("write docx: %v", err)
	}

	got, err := (&DOCXLoader{}).Load(&buf, "draft.docx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "<p>Primeiro parágrafo &amp; mais</p>\n<p>Segundo</p>\n"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestDOCXHeadingLevel(t *testing.T) {
	tests := []struct {
		style string
		want  int
	}{
		{"Heading1", 1},
		{"heading 3", 3},
		{"Heading 6", 6},
		{"Heading7", 0},
		{"Normal", 0},
		{"Heading", 0},
	}
	for _, tc := range tests {
		para := &docx.Paragraph{Properties: &docx.ParagraphProperties{Style: &docx.Style{Val: tc.style}}}
		if got := docxHeadingLevel(para); got != tc.want {
			t.Errorf("style %q: expected %d, got %d", tc.style, tc.want, got)
		}
	}
	if got := docxHeadingLevel(&docx.Paragraph{}); got != 0 {
		t.Errorf("expected 0 without properties, got %d", got)
	}
}
