// Package publisher writes rendered course documents to the output directory.
package publisher

import (
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"auto_course_generator/document"
	"auto_course_generator/logger"
)

const maxNameAttempts = 100

var unsafeNameRe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Artifact describes one written document.
type Artifact struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
	Pages       int    `json:"pages"`
}

// Publisher stores exported PDFs. Files are never overwritten.
type Publisher struct {
	dir string
	log *logger.Logger
}

func New(dir string, log *logger.Logger) (*Publisher, error) {
	if dir == "" {
		return nil, errors.New("publisher: output dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("publisher: create output dir: %w", err)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Publisher{dir: dir, log: log.With("service", "Publisher")}, nil
}

// FileName turns a course title into a safe PDF file name.
func FileName(title string) string {
	ascii, _ := document.Transliterate(title)
	name := strings.Trim(unsafeNameRe.ReplaceAllString(ascii, "_"), "._-")
	if name == "" {
		name = "course"
	}
	return name + ".pdf"
}

// ContentDisposition is the attachment header value for a download named name.
func ContentDisposition(name string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": name})
}

// Publish writes r under a name derived from title. An existing file with that name is
// kept and a numbered suffix is used instead.
func (p *Publisher) Publish(title string, r *document.Rendered) (Artifact, error) {
	if r == nil || len(r.Bytes) == 0 {
		return Artifact{}, errors.New("publisher: nothing to publish")
	}
	base := FileName(title)
	stem := strings.TrimSuffix(base, ".pdf")
	for i := 1; i <= maxNameAttempts; i++ {
		name := base
		if i > 1 {
			name = fmt.Sprintf("%s-%d.pdf", stem, i)
		}
		path := filepath.Join(p.dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return Artifact{}, fmt.Errorf("publisher: create %s: %w", name, err)
		}
		if _, err := f.Write(r.Bytes); err != nil {
			f.Close()
			os.Remove(path)
			return Artifact{}, fmt.Errorf("publisher: write %s: %w", name, err)
		}
		if err := f.Close(); err != nil {
			return Artifact{}, fmt.Errorf("publisher: close %s: %w", name, err)
		}
		p.log.Info("document published", "path", path, "pages", r.Pages, "bytes", len(r.Bytes))
		return Artifact{
			Name:        name,
			Path:        path,
			ContentType: document.MIMEType,
			Size:        len(r.Bytes),
			Pages:       r.Pages,
		}, nil
	}
	return Artifact{}, fmt.Errorf("publisher: no free file name for %q", base)
}
