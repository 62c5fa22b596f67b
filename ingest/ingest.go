// Package ingest turns uploaded syllabus PDFs into plain text.
package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	ErrNotPDF = errors.New("ingest: file is not a PDF")
	ErrNoText = errors.New("ingest: PDF has no extractable text")
)

var extraneousSpace = regexp.MustCompile(`[ \t]+`)

func IsPDF(b []byte) bool {
	return len(b) >= 5 && string(b[:5]) == "%PDF-"
}

// ExtractText returns the text of every page in page order, pages separated by a newline.
func ExtractText(data []byte) (text string, err error) {
	if !IsPDF(data) {
		return "", ErrNotPDF
	}
	// the reader panics on some malformed cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("ingest: malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("ingest: pdf reader: %w", err)
	}
	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("ingest: page %d: %w", i, err)
		}
		pages = append(pages, strings.TrimSpace(extraneousSpace.ReplaceAllString(content, " ")))
	}
	text = strings.TrimSpace(strings.Join(pages, "\n"))
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}
