package generator

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func sampleParams() CourseParameters {
	return CourseParameters{
		Name:          "Intro to Graphs",
		AudienceLevel: Bachelors,
		Difficulty:    Beginner,
		ModuleCount:   3,
		Duration:      "12 weeks",
		Credit:        "3",
	}
}

func TestComposeOutlineIsDeterministic(t *testing.T) {
	in := Input{Course: sampleParams(), FullOutline: true}
	a, err := Compose(StageOutline, in)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	b, err := Compose(StageOutline, in)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if a != b {
		t.Fatalf("compose is not deterministic")
	}
	for _, want := range []string{"Intro to Graphs", "Bachelors", "Beginner", "**Number of Modules**: 3", "12 weeks", "Network Flow Algorithms"} {
		if !strings.Contains(a, want) {
			t.Fatalf("outline prompt missing %q", want)
		}
	}
}

func TestComposeOutlineShortVariantOmitsChecklist(t *testing.T) {
	got, err := Compose(StageOutline, Input{Course: sampleParams()})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if strings.Contains(got, "Network Flow Algorithms") {
		t.Fatalf("short variant should not embed the topic checklist")
	}
}

func TestComposeLessonHasSevenParts(t *testing.T) {
	got, err := Compose(StageExpandLesson, Input{Course: sampleParams(), ModuleName: "Module 1", LessonName: "BFS"})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if !strings.Contains(got, "lesson 'BFS' which is part of the module 'Module 1' in the course 'Intro to Graphs'") {
		t.Fatalf("lesson prompt missing interpolation: %s", got)
	}
	for i := 1; i <= 7; i++ {
		if !strings.Contains(got, strings.TrimSpace(string(rune('0'+i)))+") ") {
			t.Fatalf("missing part %d", i)
		}
	}
	if strings.Contains(got, "8) ") {
		t.Fatalf("unexpected eighth part")
	}
	if !strings.Contains(got, "blank line at the end") {
		t.Fatalf("missing trailing blank line requirement")
	}
}

func TestComposeRescheduleFormatsDate(t *testing.T) {
	start := time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)
	got, err := Compose(StageReschedule, Input{ModuleContent: "Module 1: Graph basics", HoursAllocated: 7.5, StartDate: start})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	for _, want := range []string{"Start date: 2025-03-04", "Hours allocated: 7.5", `"date_range"`, `"objectives"`} {
		if !strings.Contains(got, want) {
			t.Fatalf("reschedule prompt missing %q", want)
		}
	}
}

func TestComposeRejectsMissingInputs(t *testing.T) {
	cases := map[Stage]Input{
		StageExpandLesson: {Course: sampleParams()},
		StageModify:       {Outline: "x"},
		StageReschedule:   {ModuleContent: "x"},
		StageExtract:      {},
		StageTabulate:     {},
		StageRestructure:  {},
	}
	for stage, in := range cases {
		if _, err := Compose(stage, in); err == nil {
			t.Fatalf("%s: expected error", stage)
		}
	}
}

func TestComposeUnknownStage(t *testing.T) {
	_, err := Compose(Stage("bogus"), Input{})
	if !errors.Is(err, ErrUnknownStage) {
		t.Fatalf("expected ErrUnknownStage, got %v", err)
	}
}

func TestFormatModuleChangesKeepsOrder(t *testing.T) {
	got := FormatModuleChanges([]string{"B", "A", "C"}, map[string]string{"A": "add labs", "B": "shorten", "C": " "})
	want := "- B: shorten\n- A: add labs"
	if got != want {
		t.Fatalf("got %q", got)
	}
}

func TestParseOutlineTitle(t *testing.T) {
	o, err := ParseOutline("\n**Course Code and Course Title**: CS201 - Intro to Graphs\n\n**Pre-requisite**: none\n")
	if err != nil {
		t.Fatalf("ParseOutline: %v", err)
	}
	if o.Title != "CS201 - Intro to Graphs" {
		t.Fatalf("title = %q", o.Title)
	}
	if _, err := ParseOutline("   "); err == nil {
		t.Fatalf("expected error on empty outline")
	}
}

func TestCourseParametersValidate(t *testing.T) {
	p := sampleParams()
	if err := p.Validate(); err != nil {
		t.Fatalf("valid params rejected: %v", err)
	}
	p.ModuleCount = 0
	if err := p.Validate(); err == nil {
		t.Fatalf("expected module count error")
	}
	p = sampleParams()
	p.Difficulty = "Expert"
	if err := p.Validate(); err == nil {
		t.Fatalf("expected difficulty error")
	}
}
