package schedule

import (
	"bytes"
	"image/png"
	"strings"
	"testing"
	"time"

	"auto_course_generator/extract"
)

func day(s string) time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

const twoWeeks = "```json\n" + `{
  "Week 1": {"date_range": ["2025-01-06", "2025-01-12"], "topics": ["Graphs"], "activities": ["Lab"], "objectives": ["Define graphs"]},
  "Week 2": {"date_range": ["2025-01-13", "2025-01-19"], "topics": ["BFS"], "activities": [], "objectives": ["Run BFS"]}
}` + "\n```"

func TestDecodeKeepsWeekOrder(t *testing.T) {
	ms, err := Decode("Module 1", twoWeeks)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(ms.Entries) != 2 || ms.Entries[0].WeekLabel != "Week 1" || ms.Entries[1].WeekLabel != "Week 2" {
		t.Fatalf("unexpected entries %+v", ms.Entries)
	}
	if !ms.Entries[1].Start.Equal(day("2025-01-13")) {
		t.Fatalf("start = %v", ms.Entries[1].Start)
	}
}

func TestDecodeRejectsOverlap(t *testing.T) {
	reply := `{"Week 1": {"date_range": ["2025-01-06", "2025-01-12"]}, "Week 2": {"date_range": ["2025-01-12", "2025-01-18"]}}`
	if _, err := Decode("M", reply); !extract.IsDecodeError(err) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

func TestDecodeRejectsBadDates(t *testing.T) {
	cases := []string{
		`{"Week 1": {"date_range": ["06/01/2025", "12/01/2025"]}}`,
		`{"Week 1": {"date_range": ["2025-01-12", "2025-01-06"]}}`,
		`{"Week 1": {"date_range": ["2025-01-06"]}}`,
		`{"Week 1": "soon"}`,
	}
	for _, c := range cases {
		if _, err := Decode("M", c); !extract.IsDecodeError(err) {
			t.Fatalf("%s: expected DecodeError, got %v", c, err)
		}
	}
}

func TestPlanBucketsWholeWeeks(t *testing.T) {
	durations := extract.ModuleDurationMap{{Module: "A", Hours: 5}, {Module: "B", Hours: 3}, {Module: "C", Hours: 0.5}}
	slots := Plan(durations, day("2025-01-06"), 3)
	want := []struct {
		weeks      int
		start, end string
	}{
		{2, "2025-01-06", "2025-01-19"},
		{1, "2025-01-20", "2025-01-26"},
		{1, "2025-01-27", "2025-02-02"},
	}
	for i, w := range want {
		s := slots[i]
		if s.Weeks != w.weeks || !s.Start.Equal(day(w.start)) || !s.End.Equal(day(w.end)) {
			t.Fatalf("slot %d = %+v", i, s)
		}
	}
}

func TestMapValidateInvariant(t *testing.T) {
	m := Map{{Module: "A", Entries: []Entry{
		{WeekLabel: "Week 1", Start: day("2025-01-06"), End: day("2025-01-12")},
		{WeekLabel: "Week 2", Start: day("2025-01-13"), End: day("2025-01-19")},
	}}}
	if err := m.Validate(); err != nil {
		t.Fatalf("valid map rejected: %v", err)
	}
	m[0].Entries[1].Start = day("2025-01-10")
	if err := m.Validate(); err == nil {
		t.Fatalf("expected overlap error")
	}
}

func TestTextBlocks(t *testing.T) {
	ms, err := Decode("Module 1", twoWeeks)
	if err != nil {
		t.Fatal(err)
	}
	text := Map{ms}.Text()
	blocks := strings.Split(text, "\n\n")
	if len(blocks) != 3 {
		t.Fatalf("blocks = %d: %q", len(blocks), text)
	}
	if blocks[0] != "**Module 1**" || !strings.HasPrefix(blocks[1], "Week 1 (2025-01-06 to 2025-01-12)") {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestGanttPNG(t *testing.T) {
	ms, err := Decode("Module 1", twoWeeks)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := GanttPNG(Map{ms}, &buf); err != nil {
		t.Fatalf("GanttPNG: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if img.Bounds().Dx() != GanttWidth {
		t.Fatalf("width = %d", img.Bounds().Dx())
	}
	if err := GanttPNG(nil, &buf); err == nil {
		t.Fatalf("expected error for empty schedule")
	}
}

func TestChunkKeepsOrderAndBound(t *testing.T) {
	ms1, err := Decode("Module 1", twoWeeks)
	if err != nil {
		t.Fatal(err)
	}
	ms2 := ModuleSchedule{Module: "Module 2", Entries: []Entry{
		{WeekLabel: "Week 3", Start: day("2025-01-20"), End: day("2025-01-26")},
		{WeekLabel: "Week 4", Start: day("2025-01-27"), End: day("2025-02-02")},
		{WeekLabel: "Week 5", Start: day("2025-02-03"), End: day("2025-02-09")},
	}}
	m := Map{ms1, ms2}
	chunks := m.Chunk(2)
	if len(chunks) != 3 {
		t.Fatalf("chunks = %d", len(chunks))
	}
	var labels []string
	for i, c := range chunks {
		if c.Rows() > 2 {
			t.Fatalf("chunk %d has %d rows", i, c.Rows())
		}
		if err := c.Validate(); err != nil {
			t.Fatalf("chunk %d: %v", i, err)
		}
		for _, ms := range c {
			for _, e := range ms.Entries {
				labels = append(labels, ms.Module+"/"+e.WeekLabel)
			}
		}
	}
	want := "Module 1/Week 1,Module 1/Week 2,Module 2/Week 3,Module 2/Week 4,Module 2/Week 5"
	if got := strings.Join(labels, ","); got != want {
		t.Fatalf("order = %s", got)
	}
	if m.Rows() != 5 || len(m.Chunk(0)) != 5 {
		t.Fatalf("rows = %d", m.Rows())
	}
}

func TestGanttRowsFor(t *testing.T) {
	for _, rows := range []int{1, 10, 24} {
		if got := GanttRowsFor(float64(GanttHeight(rows))); got != rows {
			t.Fatalf("GanttRowsFor(height(%d)) = %d", rows, got)
		}
	}
	if GanttRowsFor(10) != 1 {
		t.Fatalf("tiny heights still fit one row")
	}
}
