package generator

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// AudienceLevel is the education level of the target learners.
type AudienceLevel string

const (
	Bachelors AudienceLevel = "Bachelors"
	Masters   AudienceLevel = "Masters"
)

// Difficulty is the course difficulty level.
type Difficulty string

const (
	Beginner     Difficulty = "Beginner"
	Intermediate Difficulty = "Intermediate"
	Advanced     Difficulty = "Advanced"
)

func ParseAudienceLevel(s string) (AudienceLevel, error) {
	for _, l := range []AudienceLevel{Bachelors, Masters} {
		if strings.EqualFold(strings.TrimSpace(s), string(l)) {
			return l, nil
		}
	}
	return "", fmt.Errorf("unknown audience level %q", s)
}

func ParseDifficulty(s string) (Difficulty, error) {
	for _, d := range []Difficulty{Beginner, Intermediate, Advanced} {
		if strings.EqualFold(strings.TrimSpace(s), string(d)) {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown difficulty %q", s)
}

// CourseParameters is the operator input for one generation run.
type CourseParameters struct {
	Name          string        `json:"name"`
	AudienceLevel AudienceLevel `json:"audience_level"`
	Difficulty    Difficulty    `json:"difficulty"`
	ModuleCount   int           `json:"module_count"`
	Duration      string        `json:"duration"`
	Credit        string        `json:"credit"`
}

func (p CourseParameters) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("course name is required")
	}
	if _, err := ParseAudienceLevel(string(p.AudienceLevel)); err != nil {
		return err
	}
	if _, err := ParseDifficulty(string(p.Difficulty)); err != nil {
		return err
	}
	if p.ModuleCount < 1 {
		return fmt.Errorf("module count must be >= 1, got %d", p.ModuleCount)
	}
	return nil
}

// Summary is the one-line form recorded in the conversation log.
func (p CourseParameters) Summary() string {
	return fmt.Sprintf("Course Name: %s\nTarget Audience Edu Level: %s\nDifficulty Level: %s\nNo. of Modules: %d\nCourse Duration: %s\nCourse Credit: %s",
		p.Name, p.AudienceLevel, p.Difficulty, p.ModuleCount, p.Duration, p.Credit)
}

// Role identifies the author of a turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one entry of the append-only conversation log.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Stage     Stage     `json:"stage,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Stage names one exchange with the model.
type Stage string

const (
	// StageOutline turns CourseParameters into tailored outline instructions.
	StageOutline Stage = "outline"
	// StageTabulate answers those instructions with the outline document.
	StageTabulate     Stage = "tabulate"
	StageExtract      Stage = "extract"
	StageExpandLesson Stage = "expand_lesson"
	StageModify       Stage = "modify"
	StageDurations    Stage = "durations"
	StageReschedule   Stage = "reschedule"
	StageRestructure  Stage = "restructure"
)

// Input carries every value a stage template may interpolate. Each stage reads only
// the fields it declares.
type Input struct {
	Course      CourseParameters
	FullOutline bool

	GeneratedPrompt string
	Outline         string
	Modifications   string

	ModuleName string
	LessonName string

	ModuleContent  string
	HoursAllocated float64
	StartDate      time.Time

	SourceText string
}
