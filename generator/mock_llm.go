package generator

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
)

var (
	lessonNameRe = regexp.MustCompile(`lesson '([^']+)' which is part of the module '([^']+)'`)
	startDateRe  = regexp.MustCompile(`Start date: (\d{4}-\d{2}-\d{2})`)
)

// MockLLM is an offline stand-in for local runs; it never calls an external model and
// answers each stage with a small well-formed reply.
type MockLLM struct{}

func (m MockLLM) Complete(_ context.Context, prompt Prompt) (string, error) {
	var sb strings.Builder
	switch prompt.Stage {
	case StageOutline:
		sb.WriteString("Generate a complete course outline using exactly these inputs:\n\n")
		sb.WriteString(prompt.User)
	case StageTabulate, StageModify, StageRestructure:
		sb.WriteString("**Course Code and Course Title**: MOCK101 - Sample Course\n\n")
		sb.WriteString("**Pre-requisite**: None\n\n")
		sb.WriteString("**Course Objectives**:\n- Understand the fundamentals\n- Apply core techniques\n\n")
		sb.WriteString("**Course Outcomes**:\n- Explain the core ideas\n\n")
		sb.WriteString("**Module Structure**:\n\n")
		sb.WriteString("**Module 1: Foundations - 4 hours**\n- Orientation\n- Key Terms\n\n")
		sb.WriteString("**Module 2: Practice - 6 hours**\n- Guided Exercises\n- Case Study\n\n")
		sb.WriteString("**Textbooks**:\n- Sample Text, 1st ed.\n\n")
		sb.WriteString("**Reference Books**:\n- Further Reading, 2nd ed.\n\n")
		sb.WriteString("**Mode of Evaluation**:\n- Quizzes 40%\n- Final exam 60%\n")
	case StageExtract:
		sb.WriteString("```json\n")
		sb.WriteString(`{"Module 1: Foundations": ["Orientation", "Key Terms"], "Module 2: Practice": ["Guided Exercises", "Case Study"]}`)
		sb.WriteString("\n```")
	case StageDurations:
		sb.WriteString(`{"Module 1: Foundations": "4 hours", "Module 2: Practice": "6 hours"}`)
	case StageExpandLesson:
		lesson, module := "Lesson", "Module"
		if m := lessonNameRe.FindStringSubmatch(prompt.User); m != nil {
			lesson, module = m[1], m[2]
		}
		sb.WriteString(fmt.Sprintf("**%s**\n\n", lesson))
		sb.WriteString(fmt.Sprintf("This lesson belongs to %s and introduces its context.\n\n", module))
		sb.WriteString("Key terms are defined with examples.\n\n")
		sb.WriteString("Summary: the main ideas are recapped.\n")
	case StageReschedule:
		return mockSchedule(prompt.User), nil
	default:
		return "", errors.New("mock llm: unknown stage")
	}
	return sb.String(), nil
}

func mockSchedule(user string) string {
	start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	if m := startDateRe.FindStringSubmatch(user); m != nil {
		if t, err := time.Parse(DateLayout, m[1]); err == nil {
			start = t
		}
	}
	var parts []string
	for i := 0; i < 2; i++ {
		from := start.AddDate(0, 0, 7*i)
		to := from.AddDate(0, 0, 6)
		parts = append(parts, fmt.Sprintf(`"Week %d": {"date_range": ["%s", "%s"], "topics": ["Topic %d"], "activities": ["Activity %d"], "objectives": ["Objective %d"]}`,
			i+1, from.Format(DateLayout), to.Format(DateLayout), i+1, i+1, i+1))
	}
	return "```json\n{" + strings.Join(parts, ", ") + "}\n```"
}

// ScriptedLLM replays canned replies in order, or delegates to Respond when set.
// Every prompt it receives is recorded in Calls.
type ScriptedLLM struct {
	mu      sync.Mutex
	Replies []string
	Respond func(Prompt) (string, error)
	Calls   []Prompt
}

func (s *ScriptedLLM) Complete(ctx context.Context, prompt Prompt) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	s.Calls = append(s.Calls, prompt)
	respond := s.Respond
	var reply string
	var exhausted bool
	if respond == nil {
		if len(s.Replies) == 0 {
			exhausted = true
		} else {
			reply, s.Replies = s.Replies[0], s.Replies[1:]
		}
	}
	s.mu.Unlock()

	if respond != nil {
		return respond(prompt)
	}
	if exhausted {
		return "", errors.New("scripted llm: no replies left")
	}
	return reply, nil
}

// CallCount returns the number of prompts received so far.
func (s *ScriptedLLM) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Calls)
}
