package ingest

import (
	"errors"
	"strings"
	"testing"

	"auto_course_generator/document"
)

func TestExtractTextRejectsNonPDF(t *testing.T) {
	if _, err := ExtractText([]byte("hello")); !errors.Is(err, ErrNotPDF) {
		t.Fatalf("expected ErrNotPDF, got %v", err)
	}
}

func TestExtractTextMalformed(t *testing.T) {
	if _, err := ExtractText([]byte("%PDF-1.4\nnot really a pdf")); err == nil {
		t.Fatalf("expected error for truncated pdf")
	}
}

func TestExtractTextPageOrder(t *testing.T) {
	para := strings.Repeat("Filler text for the first part. ", 40)
	content := "Alpha\n\n" + strings.Repeat(para+"\n\n", 6) + "Omega"
	r, err := document.NewAssembler(document.Options{}).Flow(content)
	if err != nil {
		t.Fatalf("Flow: %v", err)
	}
	if r.Pages < 2 {
		t.Fatalf("fixture should span pages, got %d", r.Pages)
	}
	text, err := ExtractText(r.Bytes)
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	a, o := strings.Index(text, "Alpha"), strings.Index(text, "Omega")
	if a < 0 || o < 0 || a > o {
		t.Fatalf("page order lost: alpha=%d omega=%d", a, o)
	}
}
