package generator

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DateLayout is the calendar format mandated for schedule dates.
const DateLayout = "2006-01-02"

var ErrUnknownStage = errors.New("unknown stage")

// Prompt is the message set sent to the LLM for one exchange.
type Prompt struct {
	Stage   Stage
	System  string
	User    string
	History []Message
}

// Message is one prior turn replayed to stateless chat APIs.
type Message struct {
	Role    string
	Content string
}

// topicChecklist is embedded in the full outline variant.
var topicChecklist = []string{
	"**Algorithm Design Paradigms**: Greedy Techniques, Backtracking Techniques, Dynamic Programming, Branch & Bound Techniques",
	"**String Matching Algorithms**",
	"**Shortest Path Algorithms**: All-pairs shortest path algorithms",
	"**Network Flow Algorithms**",
	"**Computational Geometry**: Line Segments, Convex Hull finding algorithms",
	"**Randomized Algorithms**",
	"**Complexity Classification**: Approximation algorithms",
}

const tablerPersona = `You are Tabler, a tool designed to generate detailed and flexible course outlines for educational purposes. Given a user input topic, develop a comprehensive course outline including the following structured sections:

**Course Code and Course Title**: Clearly state the course code and title.
**Pre-requisite**: Mention any prerequisite knowledge required for the course.
**Syllabus Version**: Indicate the version of the syllabus.
**Total Lecture Hours**: Sum of the lecture hours for all modules.
**Course Objectives**: Provide a concise list of objectives capturing the main learning goals of the course.
**Course Outcomes**: List the anticipated learning outcomes, focusing on skills and competencies students should acquire.
**Module Structure**: Present each module in the following format:
   - **Module [Module Number]: [Module Name] - [Number of Hours]**
     - **Content**: Include a variable number of subtopics based on the module's complexity, ranging from 4-10 or more where relevant.
**Textbooks**: List primary textbooks, including authors and publication details.
**Reference Books**: Provide a list of additional reference materials.
**Mode of Evaluation**: List the assessment components and their weightage.

Ensure that the structure is followed exactly. Separate every section with a blank line.`

const dictatorPersona = `You are DICTator, a tool that converts course outlines to a JSON object.
You will be given textual information about a course outline. Identify every module and the lessons (subtopics) it contains.
Return a single JSON object whose keys are module names and whose values are arrays of lesson names, for example:
{"Module 1: Introduction": ["Lesson A", "Lesson B"], "Module 2: Basics": ["Lesson C"]}
Return only the JSON object inside a json fenced block, nothing else. Use double quotes.`

const weekPersona = `You are DICTator, a tool that converts module details to a JSON object.
You will be given textual information about a course outline. Extract only the modules and their respective durations.
For example, if the information contains "Module 1: Introduction - Duration: 5 hours" and "Module 2: Basics of Python - Duration: 10 hours", return:
{"Module 1": "5 hours", "Module 2": "10 hours"}
Return only the JSON object, nothing else.`

const prompterPersona = `You are Prompter, the world's best Prompt Engineer.`

const coursifyPersona = `You are Coursify, an AI assistant specialized in generating high-quality educational content for online courses.`

const schedulerPersona = `You are a course scheduler. You only answer with JSON objects.`

const restructurePersona = `You are an AI assistant that restructures raw syllabus text into a formal course outline.`

// SystemPrompt returns the persona preamble for stage.
func SystemPrompt(stage Stage) string {
	switch stage {
	case StageOutline:
		return prompterPersona
	case StageTabulate, StageModify:
		return tablerPersona
	case StageExtract:
		return dictatorPersona
	case StageDurations:
		return weekPersona
	case StageExpandLesson:
		return coursifyPersona
	case StageReschedule:
		return schedulerPersona
	case StageRestructure:
		return restructurePersona
	default:
		return ""
	}
}

// Compose builds the instruction text for stage. It is pure: identical inputs yield
// byte-identical output.
func Compose(stage Stage, in Input) (string, error) {
	switch stage {
	case StageOutline:
		return composeOutline(in), nil
	case StageTabulate:
		if strings.TrimSpace(in.GeneratedPrompt) == "" {
			return "", errors.New("tabulate: generated prompt is empty")
		}
		return in.GeneratedPrompt, nil
	case StageExtract, StageDurations:
		if strings.TrimSpace(in.Outline) == "" {
			return "", fmt.Errorf("%s: outline is empty", stage)
		}
		return in.Outline, nil
	case StageModify:
		return composeModify(in)
	case StageExpandLesson:
		return composeLesson(in)
	case StageReschedule:
		return composeReschedule(in)
	case StageRestructure:
		return composeRestructure(in)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStage, stage)
	}
}

func composeOutline(in Input) string {
	p := in.Course
	var sb strings.Builder
	sb.WriteString("I am using another GenAI tool, Tabler, to generate a comprehensive course outline for trainers and professionals in automated course content creation. Your task is to use **only** the following inputs:\n\n")
	sb.WriteString(fmt.Sprintf("1. **Course Name**: %s\n", p.Name))
	sb.WriteString(fmt.Sprintf("2. **Target Audience Education Level**: %s\n", p.AudienceLevel))
	sb.WriteString(fmt.Sprintf("3. **Course Difficulty Level**: %s\n", p.Difficulty))
	sb.WriteString(fmt.Sprintf("4. **Number of Modules**: %d\n", p.ModuleCount))
	sb.WriteString(fmt.Sprintf("5. **Course Duration**: %s\n", p.Duration))
	sb.WriteString(fmt.Sprintf("6. **Course Credit**: %s\n", p.Credit))
	if in.FullOutline {
		sb.WriteString("\nIn addition, generate modules based on below topics:\n\n")
		for _, t := range topicChecklist {
			sb.WriteString("- " + t + "\n")
		}
	}
	sb.WriteString("\nYour goal is to create a detailed and structured prompt for Tabler that strictly follows these inputs. ")
	sb.WriteString("Ensure that the generated prompt clearly mentions each input field")
	if in.FullOutline {
		sb.WriteString(" and reflects the specified topics accurately")
	}
	sb.WriteString(". Additionally, verify that the provided course name is relevant and appropriate for the content; it should not be nonsensical or gibberish.")
	return sb.String()
}

func composeModify(in Input) (string, error) {
	if strings.TrimSpace(in.Outline) == "" {
		return "", errors.New("modify: outline is empty")
	}
	if strings.TrimSpace(in.Modifications) == "" {
		return "", errors.New("modify: modifications are empty")
	}
	var sb strings.Builder
	sb.WriteString(`I have provided you with the "course outline" and "modifications". `)
	sb.WriteString("Your task is to modify the existing course outline using the modifications provided, and give the complete modified course outline as the output.\n")
	sb.WriteString("modifications:\n")
	sb.WriteString(in.Modifications)
	sb.WriteString("\ncourse outline:\n")
	sb.WriteString(in.Outline)
	return sb.String(), nil
}

var lessonStructure = []string{
	"Introduce the topic and provide context, explaining its relevance and importance within the broader course and domain, as an instructor would do in a classroom setting.",
	"Define and clarify key terms, concepts, and principles related to the topic, with detailed explanations, analogies, and examples to aid comprehension.",
	"Present thorough, step-by-step explanations of the concepts, using real-world scenarios and analogies to ensure learners grasp the material.",
	"Discuss real-world applications, case studies, or scenarios that demonstrate the practical implications of the topic.",
	"Incorporate interactive elements, such as reflective questions, exercises, or problem-solving activities, to engage learners and reinforce their understanding.",
	"Seamlessly integrate relevant tangential concepts or background information so learners have the necessary foundational knowledge.",
	"Close with a concise summary of the lesson that recaps the key takeaways.",
}

func composeLesson(in Input) (string, error) {
	if strings.TrimSpace(in.LessonName) == "" || strings.TrimSpace(in.ModuleName) == "" {
		return "", errors.New("expand lesson: lesson and module names are required")
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Generate detailed content for the lesson '%s' which is part of the module '%s' in the course '%s'. ", in.LessonName, in.ModuleName, in.Course.Name))
	sb.WriteString("Provide a comprehensive and learner-friendly exploration of this specific topic, covering all relevant concepts, theories, and practical applications, as if you were an experienced instructor teaching the material. ")
	sb.WriteString("Follow Bloom's Taxonomy, progressively building from foundational concepts to higher-order thinking and application.\n\n")
	sb.WriteString("Structure your response in exactly these parts, in this order:\n\n")
	for i, part := range lessonStructure {
		sb.WriteString(fmt.Sprintf("%d) %s\n", i+1, part))
	}
	sb.WriteString("\nFormat the output using Markdown. Separate paragraphs with blank lines.\n")
	sb.WriteString("Note: Add a blank line at the end of the course content.")
	return sb.String(), nil
}

func composeReschedule(in Input) (string, error) {
	if strings.TrimSpace(in.ModuleContent) == "" {
		return "", errors.New("reschedule: module content is empty")
	}
	if in.HoursAllocated <= 0 {
		return "", errors.New("reschedule: hours allocated must be positive")
	}
	if in.StartDate.IsZero() {
		return "", errors.New("reschedule: start date is required")
	}
	var sb strings.Builder
	sb.WriteString("Create a week-wise teaching schedule for the module below.\n\n")
	sb.WriteString("Module content:\n")
	sb.WriteString(in.ModuleContent)
	sb.WriteString("\n\nHours allocated: ")
	sb.WriteString(strconv.FormatFloat(in.HoursAllocated, 'f', -1, 64))
	sb.WriteString("\nStart date: ")
	sb.WriteString(in.StartDate.Format(DateLayout))
	sb.WriteString("\n\nReturn a JSON object whose keys are week labels (\"Week 1\", \"Week 2\", ...) in order. Each value is an object with the keys:\n")
	sb.WriteString("- \"date_range\": an array of two dates [start, end]\n")
	sb.WriteString("- \"topics\": an array of strings\n")
	sb.WriteString("- \"activities\": an array of strings\n")
	sb.WriteString("- \"objectives\": an array of strings\n")
	sb.WriteString("All dates use the YYYY-MM-DD format. The first week starts on the start date; weeks must not overlap and must be in increasing order.")
	return sb.String(), nil
}

var restructureSections = []string{
	"**Course Code and Course Title**: Clearly extract or identify the course code and title from the content.",
	"**Pre-requisite**: Identify and mention any prerequisite knowledge required for the course if mentioned in the content.",
	"**Syllabus Version**: Indicate the version of the syllabus if available in the content.",
	"**Total Lecture Hours**: Calculate and sum up the total lecture hours mentioned across all modules in the content.",
	"**Course Objectives**: Extract a concise list of objectives capturing the main learning goals of the course.",
	"**Course Outcomes**: List the anticipated learning outcomes, focusing on skills and competencies that students should acquire after completing the course.",
	"**Module Structure**: Present each module as **Module [Number]: [Name] - [Hours]** followed by 4-10 subtopics.",
	"**Textbooks**: Extract a list of primary textbooks with authors and publication details.",
	"**Reference Books**: Provide a list of additional reference materials or suggested readings, including authors and publication details.",
	"**Mode of Evaluation**: List the assessment components and their weightage if mentioned in the content.",
}

func composeRestructure(in Input) (string, error) {
	if strings.TrimSpace(in.SourceText) == "" {
		return "", errors.New("restructure: source text is empty")
	}
	var sb strings.Builder
	sb.WriteString("The input content is a raw parsed text from a PDF document. Restructure this text into a formal, well-organized format with the following sections. Follow this structure strictly:\n\n")
	for _, s := range restructureSections {
		sb.WriteString(s + "\n\n")
	}
	sb.WriteString("Here's the input text to restructure:\n")
	sb.WriteString(in.SourceText)
	sb.WriteString("\n\nPlease maintain the same content and meaning but organize it strictly in the specified format. Ensure all sections are covered, even if they need to be inferred from the provided content.")
	return sb.String(), nil
}

// FormatModuleChanges renders per-module modification requests in module order.
func FormatModuleChanges(order []string, changes map[string]string) string {
	var sb strings.Builder
	for _, module := range order {
		c := strings.TrimSpace(changes[module])
		if c == "" {
			continue
		}
		sb.WriteString(fmt.Sprintf("- %s: %s\n", module, c))
	}
	return strings.TrimRight(sb.String(), "\n")
}
