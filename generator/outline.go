package generator

import (
	"errors"
	"regexp"
	"strings"
)

var (
	headingRe     = regexp.MustCompile(`(?m)^#\s+(.+)$`)
	courseTitleRe = regexp.MustCompile(`(?mi)^\W*course code and course title\W*:\s*(.+)$`)
)

// Outline is one revision of the generated course outline.
type Outline struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Summary returns the first limit bytes of the outline with whitespace collapsed.
func (o Outline) Summary(limit int) string {
	joined := strings.Join(strings.Fields(o.Text), " ")
	if len(joined) <= limit {
		return joined
	}
	return joined[:limit]
}

// ParseOutline validates a model reply as an outline document.
func ParseOutline(raw string) (Outline, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Outline{}, errors.New("model returned an empty outline")
	}
	return Outline{Title: extractTitle(text), Text: text}, nil
}

func extractTitle(md string) string {
	if m := courseTitleRe.FindStringSubmatch(md); len(m) >= 2 {
		return strings.TrimSpace(strings.Trim(m[1], "* "))
	}
	if m := headingRe.FindStringSubmatch(md); len(m) >= 2 {
		return strings.TrimSpace(m[1])
	}
	return ""
}
