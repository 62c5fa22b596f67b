// Package schedule models week-wise module schedules and the date arithmetic behind them.
package schedule

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"auto_course_generator/extract"
)

const DateLayout = "2006-01-02"

// Entry is one week of a module schedule.
type Entry struct {
	WeekLabel  string    `json:"week_label"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Topics     []string  `json:"topics"`
	Activities []string  `json:"activities"`
	Objectives []string  `json:"objectives"`
}

// ModuleSchedule is the ordered weeks of one module.
type ModuleSchedule struct {
	Module  string  `json:"module"`
	Entries []Entry `json:"entries"`
}

// Map is module -> weeks in course order.
type Map []ModuleSchedule

// Validate checks that every range has start <= end and that, within a module, ranges
// are increasing and do not overlap.
func (m Map) Validate() error {
	for _, ms := range m {
		if err := ms.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (ms ModuleSchedule) Validate() error {
	if len(ms.Entries) == 0 {
		return fmt.Errorf("module %q: schedule has no weeks", ms.Module)
	}
	for i, e := range ms.Entries {
		if e.End.Before(e.Start) {
			return fmt.Errorf("module %q: %s ends before it starts", ms.Module, e.WeekLabel)
		}
		if i > 0 && !e.Start.After(ms.Entries[i-1].End) {
			return fmt.Errorf("module %q: %s overlaps %s", ms.Module, e.WeekLabel, ms.Entries[i-1].WeekLabel)
		}
	}
	return nil
}

// Span returns the first start and last end across the map.
func (m Map) Span() (time.Time, time.Time) {
	var first, last time.Time
	for _, ms := range m {
		for _, e := range ms.Entries {
			if first.IsZero() || e.Start.Before(first) {
				first = e.Start
			}
			if e.End.After(last) {
				last = e.End
			}
		}
	}
	return first, last
}

// Rows counts week entries across the map.
func (m Map) Rows() int {
	n := 0
	for _, ms := range m {
		n += len(ms.Entries)
	}
	return n
}

// Chunk splits the map into consecutive pieces of at most maxRows weeks each. A module
// whose weeks straddle a boundary appears in both pieces.
func (m Map) Chunk(maxRows int) []Map {
	if maxRows < 1 {
		maxRows = 1
	}
	var (
		out  []Map
		cur  Map
		rows int
	)
	for _, ms := range m {
		entries := ms.Entries
		for len(entries) > 0 {
			if rows == maxRows {
				out = append(out, cur)
				cur, rows = nil, 0
			}
			n := min(maxRows-rows, len(entries))
			cur = append(cur, ModuleSchedule{Module: ms.Module, Entries: entries[:n:n]})
			entries = entries[n:]
			rows += n
		}
	}
	if rows > 0 {
		out = append(out, cur)
	}
	return out
}

// Text renders the map as blank-line separated blocks: a bold module header followed by
// one block per week.
func (m Map) Text() string {
	var blocks []string
	for _, ms := range m {
		blocks = append(blocks, "**"+ms.Module+"**")
		for _, e := range ms.Entries {
			var sb strings.Builder
			label := e.WeekLabel
			if !strings.HasPrefix(label, "Week") {
				label = "Week " + label
			}
			sb.WriteString(fmt.Sprintf("%s (%s to %s)", label, e.Start.Format(DateLayout), e.End.Format(DateLayout)))
			writeList(&sb, "Topics", e.Topics)
			writeList(&sb, "Activities", e.Activities)
			writeList(&sb, "Objectives", e.Objectives)
			blocks = append(blocks, sb.String())
		}
	}
	return strings.Join(blocks, "\n\n")
}

func writeList(sb *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	sb.WriteString("\n" + label + ": " + strings.Join(items, "; "))
}

type rawEntry struct {
	DateRange  []string `json:"date_range"`
	Topics     []string `json:"topics"`
	Activities []string `json:"activities"`
	Objectives []string `json:"objectives"`
}

// Decode parses a reschedule reply for module. Week order follows the reply; a reply that
// breaks the date-range invariant is a decode failure.
func Decode(module, reply string) (ModuleSchedule, error) {
	obj, err := extract.Locate(reply)
	if err != nil {
		return ModuleSchedule{}, err
	}
	ms := ModuleSchedule{Module: module}
	var failure error
	obj.ForEach(func(k, v gjson.Result) bool {
		label := extract.CleanKey(k.String())
		var raw rawEntry
		if !v.IsObject() {
			failure = &extract.DecodeError{Excerpt: obj.Raw, Reason: fmt.Sprintf("%s is not an object", label)}
			return false
		}
		if err := json.Unmarshal([]byte(v.Raw), &raw); err != nil {
			failure = &extract.DecodeError{Excerpt: v.Raw, Reason: fmt.Sprintf("%s has malformed fields", label), Err: err}
			return false
		}
		if len(raw.DateRange) != 2 {
			failure = &extract.DecodeError{Excerpt: v.Raw, Reason: fmt.Sprintf("%s date_range must hold two dates", label)}
			return false
		}
		start, err1 := time.Parse(DateLayout, strings.TrimSpace(raw.DateRange[0]))
		end, err2 := time.Parse(DateLayout, strings.TrimSpace(raw.DateRange[1]))
		if err1 != nil || err2 != nil {
			failure = &extract.DecodeError{Excerpt: v.Raw, Reason: fmt.Sprintf("%s dates must use YYYY-MM-DD", label)}
			return false
		}
		ms.Entries = append(ms.Entries, Entry{
			WeekLabel:  label,
			Start:      start,
			End:        end,
			Topics:     raw.Topics,
			Activities: raw.Activities,
			Objectives: raw.Objectives,
		})
		return true
	})
	if failure != nil {
		return ModuleSchedule{}, failure
	}
	if err := ms.Validate(); err != nil {
		return ModuleSchedule{}, &extract.DecodeError{Excerpt: obj.Raw, Reason: "schedule violates date ordering", Err: err}
	}
	return ms, nil
}

// Slot is the calendar window allotted to one module.
type Slot struct {
	Module string    `json:"module"`
	Hours  float64   `json:"hours"`
	Weeks  int       `json:"weeks"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}

// Plan buckets modules into consecutive whole weeks starting at start. Each module gets
// ceil(hours/hoursPerWeek) weeks, at least one.
func Plan(durations extract.ModuleDurationMap, start time.Time, hoursPerWeek float64) []Slot {
	if hoursPerWeek <= 0 {
		hoursPerWeek = 1
	}
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	slots := make([]Slot, 0, len(durations))
	cursor := start
	for _, d := range durations {
		weeks := int(math.Ceil(d.Hours / hoursPerWeek))
		if weeks < 1 {
			weeks = 1
		}
		end := cursor.AddDate(0, 0, 7*weeks-1)
		slots = append(slots, Slot{Module: d.Module, Hours: d.Hours, Weeks: weeks, Start: cursor, End: end})
		cursor = end.AddDate(0, 0, 1)
	}
	return slots
}
