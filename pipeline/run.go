// Package pipeline drives a course from parameters to exported documents as an explicit
// state machine. Every operation takes a Run and returns a new one; the input is never
// modified.
package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"auto_course_generator/document"
	"auto_course_generator/extract"
	"auto_course_generator/generator"
	"auto_course_generator/schedule"
)

type State string

const (
	Collecting       State = "collecting"
	OutlineGenerated State = "outline_generated"
	AwaitingDecision State = "awaiting_decision"
	Expanding        State = "expanding"
	Exported         State = "exported"
)

// Source records how the outline was produced.
type Source string

const (
	SourcePrompt Source = "prompt"
	SourcePDF    Source = "pdf"
)

// Pseudo-stages that do not talk to the model but can still fail.
const (
	StageIngest   generator.Stage = "ingest"
	StageAssemble generator.Stage = "assemble"
	StagePersist  generator.Stage = "persist"
)

// LessonContent is the expanded text of one lesson.
type LessonContent struct {
	Module string `json:"module"`
	Lesson string `json:"lesson"`
	Text   string `json:"text"`
}

// Run is the full state of one course generation session.
type Run struct {
	ID     string                     `json:"id"`
	State  State                      `json:"state"`
	Source Source                     `json:"source,omitempty"`
	Params generator.CourseParameters `json:"params"`

	SourceText string `json:"-"`
	// Outlines holds every revision, oldest first. The last one is current.
	Outlines []generator.Outline     `json:"outlines,omitempty"`
	Lessons  extract.ModuleLessonMap `json:"lessons,omitempty"`
	Contents []LessonContent         `json:"contents,omitempty"`

	Durations extract.ModuleDurationMap `json:"durations,omitempty"`
	Slots     []schedule.Slot           `json:"slots,omitempty"`
	Schedule  schedule.Map              `json:"schedule,omitempty"`

	History          []generator.Turn   `json:"-"`
	Document         *document.Rendered `json:"document,omitempty"`
	ScheduleDocument *document.Rendered `json:"schedule_document,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

func NewRun(id string) Run {
	return Run{ID: id, State: Collecting}
}

// Outline returns the latest outline revision.
func (r Run) Outline() (generator.Outline, bool) {
	if len(r.Outlines) == 0 {
		return generator.Outline{}, false
	}
	return r.Outlines[len(r.Outlines)-1], true
}

// Expanded reports whether lesson content has been generated.
func (r Run) Expanded() bool {
	return len(r.Contents) > 0
}

// CurrentDocument is the expanded course content when lessons were expanded, otherwise
// the latest outline revision.
func (r Run) CurrentDocument() string {
	if r.Expanded() {
		var sb strings.Builder
		module := ""
		for _, c := range r.Contents {
			if c.Module != module {
				module = c.Module
				sb.WriteString("**" + module + "**\n\n")
			}
			sb.WriteString(strings.TrimSpace(c.Text))
			sb.WriteString("\n\n")
		}
		return strings.TrimSpace(sb.String())
	}
	if o, ok := r.Outline(); ok {
		return o.Text
	}
	return ""
}

// Title names the course for document headers and file names.
func (r Run) Title() string {
	if o, ok := r.Outline(); ok && o.Title != "" {
		return o.Title
	}
	if r.Params.Name != "" {
		return r.Params.Name
	}
	return "course"
}

// clone copies every slice so appends on the result never reach the original.
func (r Run) clone() Run {
	out := r
	out.Outlines = append([]generator.Outline(nil), r.Outlines...)
	out.Lessons = append(extract.ModuleLessonMap(nil), r.Lessons...)
	out.Contents = append([]LessonContent(nil), r.Contents...)
	out.Durations = append(extract.ModuleDurationMap(nil), r.Durations...)
	out.Slots = append([]schedule.Slot(nil), r.Slots...)
	out.Schedule = append(schedule.Map(nil), r.Schedule...)
	out.History = append([]generator.Turn(nil), r.History...)
	return out
}

// ErrInvalidTransition is wrapped by every TransitionError.
var ErrInvalidTransition = errors.New("operation not allowed in current state")

// TransitionError rejects an operation that the current state does not permit.
type TransitionError struct {
	From State
	Op   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("pipeline: %s: %v (state %s)", e.Op, ErrInvalidTransition, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// StageError reports a failed stage with the offending text, if any, for the operator.
type StageError struct {
	Stage   generator.Stage
	Excerpt string
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline: stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func require(r Run, op string, allowed ...State) error {
	for _, s := range allowed {
		if r.State == s {
			return nil
		}
	}
	return &TransitionError{From: r.State, Op: op}
}
