package document

import (
	"regexp"
	"strings"

	"github.com/go-pdf/fpdf"
)

// OutlineHeader is drawn centered at the top of every structured outline page.
const OutlineHeader = "Course Outline"

// ModuleSection is one module of a structured outline.
type ModuleSection struct {
	Title  string   `json:"title"`
	Hours  string   `json:"hours"`
	Topics []string `json:"topics"`
}

// OutlineFields is the fixed field set of a structured outline. A nil slice means the
// field was never supplied; an empty non-nil slice is a field that is present but empty.
type OutlineFields struct {
	Title      string          `json:"title"`
	Details    string          `json:"details,omitempty"`
	Objectives []string        `json:"objectives"`
	Outcomes   []string        `json:"outcomes"`
	Modules    []ModuleSection `json:"modules"`
	Textbooks  []string        `json:"textbooks"`
	References []string        `json:"references"`
	Evaluation []string        `json:"evaluation"`
}

// Validate reports the first missing field in render order.
func (f OutlineFields) Validate() error {
	switch {
	case strings.TrimSpace(f.Title) == "":
		return &ValidationError{Field: "Title"}
	case f.Objectives == nil:
		return &ValidationError{Field: "Objectives"}
	case f.Outcomes == nil:
		return &ValidationError{Field: "Outcomes"}
	case f.Modules == nil:
		return &ValidationError{Field: "Modules"}
	case f.Textbooks == nil:
		return &ValidationError{Field: "Textbooks"}
	case f.References == nil:
		return &ValidationError{Field: "References"}
	case f.Evaluation == nil:
		return &ValidationError{Field: "Evaluation"}
	}
	return nil
}

// Structured renders the outline as labeled blocks in a fixed order under a
// "Course Outline" page header.
func (a *Assembler) Structured(f OutlineFields) (*Rendered, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	f, dropped := a.normalizeFields(f)

	pdf := a.newPDF(OutlineHeader)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	var sections []Section
	block := func(title string, draw func()) error {
		start := pdf.PageNo()
		chapterTitle(pdf, tr(title))
		draw()
		sections = append(sections, Section{Text: title, Emphasized: true, Page: start, EndPage: pdf.PageNo()})
		pdf.Ln(sectionGap)
		if err := pdf.Error(); err != nil {
			return &RenderError{Section: len(sections) - 1, Err: err}
		}
		return nil
	}

	steps := []struct {
		title string
		draw  func()
	}{
		{f.Title, func() {
			if f.Details != "" {
				chapterBody(pdf, tr(f.Details))
			}
		}},
		{"Course Objectives", func() { bulletList(pdf, tr, f.Objectives) }},
		{"Course Outcomes", func() { bulletList(pdf, tr, f.Outcomes) }},
		{"Module Structure", func() {
			for _, m := range f.Modules {
				moduleSection(pdf, tr, m)
			}
		}},
		{"Textbooks", func() { bulletList(pdf, tr, f.Textbooks) }},
		{"Reference Books", func() { bulletList(pdf, tr, f.References) }},
		{"Mode of Evaluation", func() { bulletList(pdf, tr, f.Evaluation) }},
	}
	for _, s := range steps {
		if err := block(s.title, s.draw); err != nil {
			return nil, err
		}
	}
	return a.finish(pdf, Structured, sections, dropped)
}

func chapterTitle(pdf *fpdf.Fpdf, title string) {
	pdf.SetFont(fontFamily, "B", fontSize)
	pdf.MultiCell(0, 10, title, "", "L", false)
	pdf.Ln(sectionGap)
}

func chapterBody(pdf *fpdf.Fpdf, body string) {
	pdf.SetFont(fontFamily, "", fontSize)
	pdf.MultiCell(0, lineHeight, body, "", "L", false)
}

func bulletList(pdf *fpdf.Fpdf, tr func(string) string, items []string) {
	pdf.SetFont(fontFamily, "", fontSize)
	left, _, _, _ := pdf.GetMargins()
	for _, item := range items {
		pdf.SetX(left + bulletIndent)
		pdf.MultiCell(0, lineHeight, tr("• "+item), "", "L", false)
	}
}

func moduleSection(pdf *fpdf.Fpdf, tr func(string) string, m ModuleSection) {
	header := m.Title
	if m.Hours != "" {
		header += " - " + m.Hours
	}
	pdf.SetFont(fontFamily, "B", fontSize)
	pdf.MultiCell(0, lineHeight, tr(header), "", "L", false)
	bulletList(pdf, tr, m.Topics)
	pdf.Ln(sectionGap)
}

func (a *Assembler) normalizeFields(f OutlineFields) (OutlineFields, int) {
	if !a.opts.Transliterate {
		return f, 0
	}
	total := 0
	fold := func(s string) string {
		out, n := Transliterate(s)
		total += n
		return out
	}
	foldAll := func(items []string) []string {
		if items == nil {
			return nil
		}
		out := make([]string, len(items))
		for i, s := range items {
			out[i] = fold(s)
		}
		return out
	}
	out := OutlineFields{
		Title:      fold(f.Title),
		Details:    fold(f.Details),
		Objectives: foldAll(f.Objectives),
		Outcomes:   foldAll(f.Outcomes),
		Textbooks:  foldAll(f.Textbooks),
		References: foldAll(f.References),
		Evaluation: foldAll(f.Evaluation),
		Modules:    make([]ModuleSection, len(f.Modules)),
	}
	for i, m := range f.Modules {
		out.Modules[i] = ModuleSection{Title: fold(m.Title), Hours: fold(m.Hours), Topics: foldAll(m.Topics)}
	}
	return out, total
}

type outlineField int

const (
	fieldNone outlineField = iota
	fieldTitle
	fieldDetails
	fieldObjectives
	fieldOutcomes
	fieldModules
	fieldTextbooks
	fieldReferences
	fieldEvaluation
)

var sectionNames = map[string]outlineField{
	"course code and course title": fieldTitle,
	"course title":                 fieldTitle,
	"title":                        fieldTitle,
	"course details":               fieldDetails,
	"pre-requisite":                fieldDetails,
	"pre-requisites":               fieldDetails,
	"prerequisite":                 fieldDetails,
	"prerequisites":                fieldDetails,
	"syllabus version":             fieldDetails,
	"total lecture hours":          fieldDetails,
	"course objectives":            fieldObjectives,
	"objectives":                   fieldObjectives,
	"course outcomes":              fieldOutcomes,
	"outcomes":                     fieldOutcomes,
	"module structure":             fieldModules,
	"modules":                      fieldModules,
	"textbooks":                    fieldTextbooks,
	"text books":                   fieldTextbooks,
	"reference books":              fieldReferences,
	"references":                   fieldReferences,
	"mode of evaluation":           fieldEvaluation,
	"evaluation":                   fieldEvaluation,
}

var (
	headingRe  = regexp.MustCompile(`^#*\s*[*_]*([A-Za-z][A-Za-z /&-]*[A-Za-z])[*_]*\s*(?::[*_]*\s*(.*)|[*_]*\s*)$`)
	moduleRe   = regexp.MustCompile(`^Module\s+\d+\b`)
	bulletRe   = regexp.MustCompile(`^(?:[-*•]|\d+[.)])\s+`)
	emphasisRe = regexp.MustCompile(`\*+|__`)
)

// splitModuleHeader splits "Module N: <title> - <hours>" at the last spaced dash whose
// tail carries a digit, so hyphens inside the title survive. A header without an hours
// part is still a module.
func splitModuleHeader(item string) (title, hours string, ok bool) {
	if !moduleRe.MatchString(item) {
		return "", "", false
	}
	cut, width := -1, 0
	for _, sep := range []string{" - ", " – "} {
		if i := strings.LastIndex(item, sep); i > cut {
			cut, width = i, len(sep)
		}
	}
	if cut >= 0 {
		if tail := strings.TrimSpace(item[cut+width:]); strings.ContainsAny(tail, "0123456789") {
			return strings.TrimSpace(item[:cut]), tail, true
		}
	}
	return strings.TrimSpace(item), "", true
}

// ParseOutlineSections reads an outline written in the "**Heading**: ..." style the
// outline stages ask for. Sections that never appear stay nil so Structured can report
// them as missing.
func ParseOutlineSections(text string) OutlineFields {
	var (
		f       OutlineFields
		current = fieldNone
		details []string
	)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if !bulletRe.MatchString(line) {
			if m := headingRe.FindStringSubmatch(line); m != nil {
				name := strings.ToLower(strings.TrimSpace(m[1]))
				if field, ok := sectionNames[name]; ok {
					current = field
					rest := cleanItem(m[2])
					switch field {
					case fieldTitle:
						if rest != "" {
							f.Title = rest
						}
					case fieldDetails:
						if rest != "" {
							details = append(details, strings.TrimSpace(m[1])+": "+rest)
						}
					default:
						f.touch(field)
						if rest != "" {
							f.add(field, rest)
						}
					}
					continue
				}
			}
		}

		item := cleanItem(bulletRe.ReplaceAllString(line, ""))
		if item == "" {
			continue
		}
		if title, hours, ok := splitModuleHeader(item); ok {
			f.touch(fieldModules)
			current = fieldModules
			f.Modules = append(f.Modules, ModuleSection{Title: title, Hours: hours, Topics: []string{}})
			continue
		}
		switch current {
		case fieldTitle:
			if f.Title == "" {
				f.Title = item
			}
		case fieldDetails:
			details = append(details, item)
		case fieldModules:
			if len(f.Modules) == 0 {
				continue
			}
			last := &f.Modules[len(f.Modules)-1]
			if rest, ok := strings.CutPrefix(item, "Content:"); ok {
				for _, t := range strings.Split(rest, ",") {
					if t = strings.TrimSpace(t); t != "" {
						last.Topics = append(last.Topics, t)
					}
				}
				continue
			}
			last.Topics = append(last.Topics, item)
		case fieldNone:
			if f.Title == "" && strings.HasPrefix(strings.TrimSpace(raw), "#") {
				f.Title = item
			}
		default:
			f.add(current, item)
		}
	}
	if len(details) > 0 {
		f.Details = strings.Join(details, "\n")
	}
	return f
}

func (f *OutlineFields) touch(field outlineField) {
	switch field {
	case fieldObjectives:
		if f.Objectives == nil {
			f.Objectives = []string{}
		}
	case fieldOutcomes:
		if f.Outcomes == nil {
			f.Outcomes = []string{}
		}
	case fieldModules:
		if f.Modules == nil {
			f.Modules = []ModuleSection{}
		}
	case fieldTextbooks:
		if f.Textbooks == nil {
			f.Textbooks = []string{}
		}
	case fieldReferences:
		if f.References == nil {
			f.References = []string{}
		}
	case fieldEvaluation:
		if f.Evaluation == nil {
			f.Evaluation = []string{}
		}
	}
}

func (f *OutlineFields) add(field outlineField, item string) {
	switch field {
	case fieldObjectives:
		f.Objectives = append(f.Objectives, item)
	case fieldOutcomes:
		f.Outcomes = append(f.Outcomes, item)
	case fieldTextbooks:
		f.Textbooks = append(f.Textbooks, item)
	case fieldReferences:
		f.References = append(f.References, item)
	case fieldEvaluation:
		f.Evaluation = append(f.Evaluation, item)
	}
}

func cleanItem(s string) string {
	return strings.TrimSpace(emphasisRe.ReplaceAllString(s, ""))
}
