package document

import (
	"bytes"
	"fmt"
	"html"

	"github.com/yuin/goldmark"
)

// MarkdownToHTML converts generated markdown to an HTML fragment.
func MarkdownToHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// PreviewHTML wraps the converted markdown in a minimal standalone page.
func PreviewHTML(title, md string) (string, error) {
	body, err := MarkdownToHTML(md)
	if err != nil {
		return "", fmt.Errorf("preview: %w", err)
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>%s</title>
<style>body{font-family:Arial,sans-serif;max-width:52rem;margin:2rem auto;line-height:1.5}</style>
</head><body>
%s</body></html>
`, html.EscapeString(title), body), nil
}
