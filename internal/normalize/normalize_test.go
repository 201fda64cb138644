package normalize

import (
	"errors"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/dgallion1/bookfix/internal/markup"
)

func newNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	n, err := New(markup.HTMLParser{}, DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return n
}

func TestNormalize_DropsEmptyWrappers(t *testing.T) {
	n := newNormalizer(t)
	got, err := n.Normalize(`<p class="x"> </p><i class="y"></i>Text   here`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Text here" {
		t.Errorf("expected %q, got %q", "Text here", got)
	}
}

func TestNormalize_Cases(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "merges adjacent italic runs",
			in:   `<p class="calibre1"><i class="calibre3">Uma</i> <i class="calibre3">frase</i></p>`,
			want: `<p class="calibre1"><i>Uma frase</i></p>`,
		},
		{
			name: "unifies class variant",
			in:   `<i class='calibre5'>ponte</i>`,
			want: `<i>ponte</i>`,
		},
		{
			name: "keeps other attributes",
			in:   `<i id="n1">nota</i>`,
			want: `<i id="n1">nota</i>`,
		},
		{
			name: "does not join runs without whitespace",
			in:   `<i>le</i><i>va</i>`,
			want: `<i>le</i><i>va</i>`,
		},
		{
			name: "empty paragraphs between paragraphs",
			in:   "<p>a</p>\n\n<p class=\"calibre2\"> </p>\n<p>b</p>",
			want: "<p>a</p> <p>b</p>",
		},
		{
			name: "nbsp paragraph is empty",
			in:   "<p>&nbsp;</p>x",
			want: "x",
		},
		{
			name: "empty italic between italics joins them",
			in:   `<i>a</i><i></i><i>b</i>`,
			want: `<i>a b</i>`,
		},
		{
			name: "paragraph holding only an image is kept",
			in:   `<p class="c"><img src="x.png"/></p>`,
			want: `<p class="c"><img src="x.png"/></p>`,
		},
		{
			name: "unclosed paragraph ending in a marker is kept",
			in:   `texto <p class="c"><img src="x.png">`,
			want: `texto <p class="c"><img src="x.png">`,
		},
		{
			name: "single newline is preserved",
			in:   "<p>a</p>\n<p>b</p>",
			want: "<p>a</p>\n<p>b</p>",
		},
		{
			name: "empty input",
			in:   "",
			want: "",
		},
	}

	n := newNormalizer(t)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := n.Normalize(tc.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestNormalize_InvalidInputIsFormatError(t *testing.T) {
	n := newNormalizer(t)
	_, err := n.Normalize("<p>\xff</p>")
	if !errors.Is(err, markup.ErrFormat) {
		t.Fatalf("expected markup.ErrFormat, got %v", err)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	n, err := New(markup.HTMLParser{}, Options{
		InlineTags: []string{"i", "b"},
		BlockTags:  []string{"p"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	alphabet := []string{
		"<p>", "</p>", `<p class="calibre2">`, "<i>", "</i>", `<i class="calibre3">`,
		"<b>", "</b>", " ", "  ", "\n", "\t", "word", "é", "&nbsp;", "&amp;",
		"<img src='a.png'>", "<br/>", "<!-- c -->", "<", ">",
	}
	rng := rand.New(rand.NewPCG(7, 11))

	for k := 0; k < 1000; k++ {
		var b strings.Builder
		for j := rng.IntN(30); j > 0; j-- {
			b.WriteString(alphabet[rng.IntN(len(alphabet))])
		}
		in := b.String()

		once, err := n.Normalize(in)
		if err != nil {
			t.Fatalf("normalize %q: unexpected error: %v", in, err)
		}
		twice, err := n.Normalize(once)
		if err != nil {
			t.Fatalf("normalize %q: unexpected error: %v", once, err)
		}
		if once != twice {
			t.Fatalf("not idempotent for %q:\n once  %q\n twice %q", in, once, twice)
		}
	}
}

func TestNew_RejectsBadTags(t *testing.T) {
	if _, err := New(markup.HTMLParser{}, Options{InlineTags: []string{"i>"}}); err == nil {
		t.Error("expected error for invalid inline tag")
	}
	if _, err := New(markup.HTMLParser{}, Options{BlockTags: []string{""}}); err == nil {
		t.Error("expected error for blank block tag")
	}
}

func TestCollapseWhitespace(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"a  b", "a b"},
		{"a\n\n\tb", "a b"},
		{"  lead and trail  ", "lead and trail"},
		{"single\nnewline", "single\nnewline"},
		{"a\u00a0\u00a0b", "a b"},
		{"a \u2003b", "a b"},
		{"a\u2028\u2029b", "a b"},
		{"keep\u00a0single", "keep\u00a0single"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := CollapseWhitespace(tc.in); got != tc.want {
			t.Errorf("CollapseWhitespace(%q): expected %q, got %q", tc.in, tc.want, got)
		}
		if again := CollapseWhitespace(CollapseWhitespace(tc.in)); again != tc.want {
			t.Errorf("CollapseWhitespace not idempotent for %q: got %q", tc.in, again)
		}
	}
}
