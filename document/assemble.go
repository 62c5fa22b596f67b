// Package document lays generated course text out as paginated PDF documents.
package document

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-pdf/fpdf"

	"auto_course_generator/schedule"
)

// MIMEType is the content type of every rendered document.
const MIMEType = "application/pdf"

const (
	fontFamily   = "Arial"
	fontSize     = 12
	lineHeight   = 7.0
	sectionGap   = 3.0
	pageMargin   = 15.0
	bulletIndent = 5.0
)

var blankLineRe = regexp.MustCompile(`\n[ \t]*\n`)

// Layout selects how content is placed on the page.
type Layout int

const (
	Flow Layout = iota + 1
	Structured
)

func (l Layout) String() string {
	switch l {
	case Flow:
		return "flow"
	case Structured:
		return "structured"
	default:
		return "unknown"
	}
}

// Section is one laid-out block of a rendered document.
type Section struct {
	Text       string `json:"text"`
	Emphasized bool   `json:"emphasized"`
	// Page and EndPage are the 1-based pages the block starts and ends on.
	Page    int `json:"page,omitempty"`
	EndPage int `json:"end_page,omitempty"`
}

// ImageBox is where an image landed, in millimetres from the page's top left corner.
type ImageBox struct {
	Page int     `json:"page"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	W    float64 `json:"w"`
	H    float64 `json:"h"`
}

// Rendered is a finished PDF. It is not modified after Assemble returns.
type Rendered struct {
	Layout   Layout     `json:"layout"`
	Bytes    []byte     `json:"-"`
	Pages    int        `json:"pages"`
	Sections []Section  `json:"sections"`
	Images   []ImageBox `json:"images,omitempty"`
	// Dropped counts runes lost to ASCII transliteration.
	Dropped int `json:"dropped_runes"`
}

// Options configures an Assembler.
type Options struct {
	// Transliterate folds text to ASCII before layout (lossy). When false, text is mapped
	// to cp1252 instead and unmappable runes render as the translator's fallback.
	Transliterate bool
	// Title is drawn as a header on every page when set.
	Title string
}

// Assembler turns text, outline fields or schedules into PDFs.
type Assembler struct {
	opts Options
}

func NewAssembler(opts Options) *Assembler {
	return &Assembler{opts: opts}
}

// Assemble dispatches on content type: string with Flow, OutlineFields with Structured,
// schedule.Map with Flow.
func (a *Assembler) Assemble(content any, layout Layout) (*Rendered, error) {
	switch c := content.(type) {
	case string:
		if layout != Flow {
			return nil, &ValidationError{Field: "layout", Reason: "text content requires flow layout"}
		}
		return a.Flow(c)
	case OutlineFields:
		if layout != Structured {
			return nil, &ValidationError{Field: "layout", Reason: "outline fields require structured layout"}
		}
		return a.Structured(c)
	case schedule.Map:
		if layout != Flow {
			return nil, &ValidationError{Field: "layout", Reason: "schedules require flow layout"}
		}
		return a.Schedule(c)
	default:
		return nil, &ValidationError{Field: "content", Reason: fmt.Sprintf("unsupported content type %T", content)}
	}
}

// SplitSections splits text on blank lines, dropping empty blocks, and flags blocks that
// start with "**" or "Week" as emphasized.
func SplitSections(text string) []Section {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := blankLineRe.Split(text, -1)
	sections := make([]Section, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		sections = append(sections, Section{Text: p, Emphasized: isEmphasized(p)})
	}
	return sections
}

func isEmphasized(s string) bool {
	return strings.HasPrefix(s, "**") || strings.HasPrefix(s, "Week")
}

// Flow lays sections out top to bottom. A section that fits on one page is never split:
// when it does not fit in the remaining space it starts on a fresh page.
func (a *Assembler) Flow(content string) (*Rendered, error) {
	text, dropped := a.normalize(content)
	sections := SplitSections(text)
	if len(sections) == 0 {
		return nil, &ValidationError{Field: "content", Reason: "no sections to render"}
	}
	pdf := a.newPDF(a.opts.Title)
	if err := a.placeSections(pdf, sections); err != nil {
		return nil, err
	}
	return a.finish(pdf, Flow, sections, dropped)
}

// Schedule renders a schedule map as flow text followed by a Gantt chart page.
func (a *Assembler) Schedule(m schedule.Map) (*Rendered, error) {
	if err := m.Validate(); err != nil {
		return nil, &ValidationError{Field: "schedule", Reason: err.Error()}
	}
	text, dropped := a.normalize(m.Text())
	sections := SplitSections(text)
	pdf := a.newPDF(a.opts.Title)
	if err := a.placeSections(pdf, sections); err != nil {
		return nil, err
	}

	boxes, err := a.placeGantt(pdf, m)
	if err != nil {
		return nil, &RenderError{Section: len(sections), Err: err}
	}
	sections = append(sections, Section{
		Text:       "Gantt chart",
		Emphasized: true,
		Page:       boxes[0].Page,
		EndPage:    boxes[len(boxes)-1].Page,
	})
	r, err := a.finish(pdf, Flow, sections, dropped)
	if err != nil {
		return nil, err
	}
	r.Images = boxes
	return r, nil
}

// placeGantt draws the chart on landscape pages, splitting the weeks so every page's image
// fits between the header and the bottom margin.
func (a *Assembler) placeGantt(pdf *fpdf.Fpdf, m schedule.Map) ([]ImageBox, error) {
	size := pdf.GetPageSizeStr("A4")
	pdf.AddPageFormat("L", size)
	boxW, boxH := ganttBox(pdf)
	pxPerMM := schedule.GanttWidth / boxW
	chunks := m.Chunk(schedule.GanttRowsFor(boxH * pxPerMM))
	opts := fpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
	boxes := make([]ImageBox, 0, len(chunks))
	for i, chunk := range chunks {
		if i > 0 {
			pdf.AddPageFormat("L", size)
		}
		var chart bytes.Buffer
		if err := schedule.GanttPNG(chunk, &chart); err != nil {
			return nil, err
		}
		name := fmt.Sprintf("gantt-%d", i)
		pdf.RegisterImageOptionsReader(name, opts, &chart)
		w, h := fitImage(schedule.GanttWidth, float64(schedule.GanttHeight(chunk.Rows())), boxW, boxH)
		box := ImageBox{Page: pdf.PageNo(), X: pageMargin, Y: pdf.GetY(), W: w, H: h}
		pdf.ImageOptions(name, box.X, box.Y, w, h, false, opts, 0, "")
		if err := pdf.Error(); err != nil {
			return nil, err
		}
		boxes = append(boxes, box)
	}
	return boxes, nil
}

// ganttBox is the space left on the current page below the header.
func ganttBox(pdf *fpdf.Fpdf) (float64, float64) {
	pageW, pageH := pdf.GetPageSize()
	_, bottom := pdf.GetAutoPageBreak()
	return pageW - 2*pageMargin, pageH - pdf.GetY() - bottom
}

// fitImage scales an imgW x imgH image to the box width, shrinking further when it would
// be taller than the box. Aspect ratio is kept.
func fitImage(imgW, imgH, boxW, boxH float64) (float64, float64) {
	w, h := boxW, imgH*boxW/imgW
	if h > boxH {
		w, h = imgW*boxH/imgH, boxH
	}
	return w, h
}

func (a *Assembler) newPDF(title string) *fpdf.Fpdf {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	if title != "" {
		title, _ = a.normalize(title)
		tr := pdf.UnicodeTranslatorFromDescriptor("")
		pdf.SetHeaderFunc(func() {
			pdf.SetFont(fontFamily, "B", fontSize)
			pdf.CellFormat(0, 10, tr(title), "", 1, "C", false, 0, "")
			pdf.Ln(lineHeight)
		})
	}
	pdf.SetFont(fontFamily, "", fontSize)
	return pdf
}

func (a *Assembler) placeSections(pdf *fpdf.Fpdf, sections []Section) error {
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()
	contentTop := pdf.GetY()
	for i, s := range sections {
		style := ""
		if s.Emphasized {
			style = "B"
		}
		start, end, err := a.placeBlock(pdf, tr(stripBold(s.Text)), style, contentTop)
		if err != nil {
			return &RenderError{Section: i, Err: err}
		}
		sections[i].Page, sections[i].EndPage = start, end
	}
	return nil
}

// placeBlock keeps a block together unless it is taller than a full page. It returns the
// pages the block starts and ends on.
func (a *Assembler) placeBlock(pdf *fpdf.Fpdf, text, style string, contentTop float64) (int, int, error) {
	pdf.SetFont(fontFamily, style, fontSize)
	width, pageH := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	_, bottom := pdf.GetAutoPageBreak()
	lines := pdf.SplitLines([]byte(text), width-left-right)
	height := float64(len(lines)) * lineHeight
	usable := pageH - contentTop - bottom
	if height <= usable && pdf.GetY()+height > pageH-bottom {
		pdf.AddPage()
	}
	start := pdf.PageNo()
	pdf.MultiCell(0, lineHeight, text, "", "L", false)
	end := pdf.PageNo()
	pdf.Ln(sectionGap)
	return start, end, pdf.Error()
}

func (a *Assembler) finish(pdf *fpdf.Fpdf, layout Layout, sections []Section, dropped int) (*Rendered, error) {
	pages := pdf.PageCount()
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, &RenderError{Section: -1, Err: err}
	}
	return &Rendered{
		Layout:   layout,
		Bytes:    buf.Bytes(),
		Pages:    pages,
		Sections: sections,
		Dropped:  dropped,
	}, nil
}

func (a *Assembler) normalize(s string) (string, int) {
	if !a.opts.Transliterate {
		return s, 0
	}
	return Transliterate(s)
}

func stripBold(s string) string {
	return strings.ReplaceAll(s, "**", "")
}
