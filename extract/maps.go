package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var numberRe = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// ModuleLessons is one module and its lessons, in reply order.
type ModuleLessons struct {
	Module  string   `json:"module"`
	Lessons []string `json:"lessons"`
}

// ModuleLessonMap is an ordered module -> lessons mapping.
type ModuleLessonMap []ModuleLessons

// Validate enforces non-empty unique module names and non-empty lesson lists.
func (m ModuleLessonMap) Validate() error {
	if len(m) == 0 {
		return &DecodeError{Reason: "module lesson map is empty"}
	}
	seen := map[string]bool{}
	for _, ml := range m {
		if strings.TrimSpace(ml.Module) == "" {
			return &DecodeError{Reason: "module name is empty"}
		}
		if seen[ml.Module] {
			return &DecodeError{Reason: fmt.Sprintf("duplicate module %q", ml.Module)}
		}
		seen[ml.Module] = true
		if len(ml.Lessons) == 0 {
			return &DecodeError{Reason: fmt.Sprintf("module %q has no lessons", ml.Module)}
		}
		for _, l := range ml.Lessons {
			if strings.TrimSpace(l) == "" {
				return &DecodeError{Reason: fmt.Sprintf("module %q has an empty lesson name", ml.Module)}
			}
		}
	}
	return nil
}

func (m ModuleLessonMap) LessonCount() int {
	n := 0
	for _, ml := range m {
		n += len(ml.Lessons)
	}
	return n
}

// ModuleDuration is one module and its allotted hours.
type ModuleDuration struct {
	Module string  `json:"module"`
	Hours  float64 `json:"hours"`
}

// ModuleDurationMap is an ordered module -> hours mapping.
type ModuleDurationMap []ModuleDuration

func (m ModuleDurationMap) Total() float64 {
	var total float64
	for _, md := range m {
		total += md.Hours
	}
	return total
}

// Decoder turns replies into typed maps. DefaultHours is used when a duration carries
// no numeric token.
type Decoder struct {
	DefaultHours float64
}

func NewDecoder(defaultHours float64) Decoder {
	return Decoder{DefaultHours: defaultHours}
}

// ModuleLessons decodes a module -> lessons reply. A bare string value counts as a
// single lesson; anything else that is not a non-empty list fails.
func (d Decoder) ModuleLessons(responseText string) (ModuleLessonMap, error) {
	v, err := Extract(responseText)
	if err != nil {
		return nil, err
	}
	out := make(ModuleLessonMap, 0, len(v.Entries))
	for _, e := range v.Entries {
		var lessons []string
		switch e.Kind {
		case KindList:
			for _, l := range e.List {
				if l = strings.TrimSpace(l); l != "" {
					lessons = append(lessons, l)
				}
			}
		case KindString:
			if s := strings.TrimSpace(e.Text); s != "" {
				lessons = []string{s}
			}
		}
		if len(lessons) == 0 {
			return nil, &DecodeError{Excerpt: responseText, Reason: fmt.Sprintf("module %q has no lessons", e.Key)}
		}
		out = append(out, ModuleLessons{Module: e.Key, Lessons: lessons})
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// ModuleDurations decodes a module -> duration reply, normalizing every value to hours.
func (d Decoder) ModuleDurations(responseText string) (ModuleDurationMap, error) {
	v, err := Extract(responseText)
	if err != nil {
		return nil, err
	}
	out := make(ModuleDurationMap, 0, len(v.Entries))
	for _, e := range v.Entries {
		out = append(out, ModuleDuration{Module: e.Key, Hours: d.Hours(e)})
	}
	return out, nil
}

// Hours normalizes a duration entry: a number, a string such as "5 hours", or a list whose
// first element with a positive numeric token wins. Falls back to DefaultHours.
func (d Decoder) Hours(e Entry) float64 {
	switch e.Kind {
	case KindNumber:
		if e.Number > 0 {
			return e.Number
		}
	case KindString:
		if h, ok := parseHours(e.Text); ok {
			return h
		}
	case KindList:
		for _, item := range e.List {
			if h, ok := parseHours(item); ok {
				return h
			}
		}
	}
	return d.DefaultHours
}

func parseHours(s string) (float64, bool) {
	tok := numberRe.FindString(s)
	if tok == "" {
		return 0, false
	}
	h, err := strconv.ParseFloat(tok, 64)
	if err != nil || h <= 0 {
		return 0, false
	}
	return h, true
}
