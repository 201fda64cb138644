// Package loader reads source documents and renders them as marked-up text
// ready for segmentation.
package loader

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
)

// Loader converts raw document bytes into marked-up text.
type Loader interface {
	Load(r io.Reader, filename string) (string, error)
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".html":     true,
	".htm":      true,
	".xhtml":    true,
	".md":       true,
	".markdown": true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the appropriate loader for a filename.
func ForFile(filename string) (Loader, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt", ".html", ".htm", ".xhtml":
		return &TextLoader{}, nil
	case ".md", ".markdown":
		return &MarkdownLoader{}, nil
	case ".pdf":
		return &PDFLoader{}, nil
	case ".docx":
		return &DOCXLoader{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %q", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// TextLoader passes text and HTML files through unchanged, minus a leading
// byte order mark.
type TextLoader struct{}

func (l *TextLoader) Load(r io.Reader, _ string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read text: %w", err)
	}
	return string(bytes.TrimPrefix(data, utf8BOM)), nil
}

// paragraphsHTML wraps each blank-line separated block of plain text in <p>.
// Lines inside a block are joined by a newline.
func paragraphsHTML(text string) string {
	var sb strings.Builder
	for _, block := range splitBlocks(text) {
		sb.WriteString("<p>")
		sb.WriteString(html.EscapeString(block))
		sb.WriteString("</p>\n")
	}
	return sb.String()
}

func splitBlocks(text string) []string {
	var blocks []string
	var current []string
	flush := func() {
		if len(current) > 0 {
			blocks = append(blocks, strings.Join(current, "\n"))
			current = current[:0]
		}
	}
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()
	return blocks
}
