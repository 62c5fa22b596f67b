package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"auto_course_generator/config"
	"auto_course_generator/document"
	"auto_course_generator/extract"
	"auto_course_generator/generator"
	"auto_course_generator/ingest"
	"auto_course_generator/logger"
	"auto_course_generator/schedule"
	"auto_course_generator/store"
)

// Options tunes stage behavior.
type Options struct {
	MaxParallelLessons int
	HoursPerWeek       float64
	FullOutline        bool
}

func OptionsFromConfig(c config.PipelineConfig) Options {
	return Options{
		MaxParallelLessons: c.MaxParallelLessons,
		HoursPerWeek:       c.HoursPerWeek,
		FullOutline:        c.FullOutline,
	}
}

// Deps are the collaborators a Pipeline drives.
type Deps struct {
	Driver    *generator.Driver
	Decoder   extract.Decoder
	Assembler *document.Assembler
	Store     store.ConversationStore
	Log       *logger.Logger
}

type Pipeline struct {
	driver    *generator.Driver
	decoder   extract.Decoder
	assembler *document.Assembler
	store     store.ConversationStore
	log       *logger.Logger
	opts      Options
	now       func() time.Time
}

func New(deps Deps, opts Options) (*Pipeline, error) {
	if deps.Driver == nil {
		return nil, errors.New("pipeline: driver is required")
	}
	if deps.Assembler == nil {
		return nil, errors.New("pipeline: assembler is required")
	}
	if deps.Store == nil {
		deps.Store = store.NewMemoryStore()
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.Decoder.DefaultHours <= 0 {
		deps.Decoder = extract.NewDecoder(config.DefaultDurationHours)
	}
	if opts.MaxParallelLessons <= 0 {
		opts.MaxParallelLessons = config.DefaultMaxParallelLessons
	}
	if opts.HoursPerWeek <= 0 {
		opts.HoursPerWeek = config.DefaultHoursPerWeek
	}
	return &Pipeline{
		driver:    deps.Driver,
		decoder:   deps.Decoder,
		assembler: deps.Assembler,
		store:     deps.Store,
		log:       deps.Log.With("service", "Pipeline"),
		opts:      opts,
		now:       time.Now,
	}, nil
}

// drive runs one stage and persists the grown history. On failure next keeps its history.
func (p *Pipeline) drive(ctx context.Context, next *Run, stage generator.Stage, in generator.Input) (string, error) {
	start := p.now()
	reply, history, err := p.driver.DriveStage(ctx, stage, in, next.History)
	if err != nil {
		p.log.Warn("stage failed", "stage", stage, "session_id", next.ID, "elapsed", p.now().Sub(start), "error", err)
		return "", &StageError{Stage: stage, Err: err}
	}
	next.History = history
	p.log.Info("stage complete", "stage", stage, "session_id", next.ID, "elapsed", p.now().Sub(start))
	if err := p.persist(ctx, *next); err != nil {
		return reply, err
	}
	return reply, nil
}

func (p *Pipeline) persist(ctx context.Context, r Run) error {
	if err := p.store.Save(ctx, r.ID, r.History); err != nil {
		p.log.Error("history save failed", "session_id", r.ID, "error", err)
		return &StageError{Stage: StagePersist, Err: err}
	}
	return nil
}

func (p *Pipeline) touch(r *Run) {
	r.UpdatedAt = p.now().UTC()
}

// GenerateOutline asks the model for tailored outline instructions, then for the outline.
func (p *Pipeline) GenerateOutline(ctx context.Context, run Run, params generator.CourseParameters) (Run, error) {
	if err := require(run, "generate outline", Collecting); err != nil {
		return run, err
	}
	if err := params.Validate(); err != nil {
		return run, &StageError{Stage: generator.StageOutline, Err: err}
	}
	next := run.clone()
	in := generator.Input{Course: params, FullOutline: p.opts.FullOutline}
	prompt, err := p.drive(ctx, &next, generator.StageOutline, in)
	if err != nil {
		return next, err
	}
	in.GeneratedPrompt = prompt
	reply, err := p.drive(ctx, &next, generator.StageTabulate, in)
	if err != nil {
		return next, err
	}
	outline, err := generator.ParseOutline(reply)
	if err != nil {
		return next, &StageError{Stage: generator.StageTabulate, Excerpt: reply, Err: err}
	}
	next.Params = params
	next.Source = SourcePrompt
	next.Outlines = append(next.Outlines, outline)
	next.State = OutlineGenerated
	p.touch(&next)
	return next, nil
}

// GenerateFromPDF restructures an uploaded syllabus into an outline.
func (p *Pipeline) GenerateFromPDF(ctx context.Context, run Run, file []byte) (Run, error) {
	if err := require(run, "generate from pdf", Collecting); err != nil {
		return run, err
	}
	text, err := ingest.ExtractText(file)
	if err != nil {
		return run, &StageError{Stage: StageIngest, Err: err}
	}
	next := run.clone()
	reply, err := p.drive(ctx, &next, generator.StageRestructure, generator.Input{SourceText: text})
	if err != nil {
		return next, err
	}
	outline, err := generator.ParseOutline(reply)
	if err != nil {
		return next, &StageError{Stage: generator.StageRestructure, Excerpt: reply, Err: err}
	}
	next.SourceText = text
	next.Source = SourcePDF
	if next.Params.Name == "" {
		next.Params.Name = outline.Title
	}
	next.Outlines = append(next.Outlines, outline)
	next.State = OutlineGenerated
	p.touch(&next)
	return next, nil
}

// RequestChanges moves the run to the modification prompt.
func (p *Pipeline) RequestChanges(run Run) (Run, error) {
	if err := require(run, "request changes", OutlineGenerated); err != nil {
		return run, err
	}
	next := run.clone()
	next.State = AwaitingDecision
	p.touch(&next)
	return next, nil
}

// Revise applies operator modifications to the latest outline. The result becomes the
// current revision.
func (p *Pipeline) Revise(ctx context.Context, run Run, modifications string) (Run, error) {
	if err := require(run, "revise", AwaitingDecision); err != nil {
		return run, err
	}
	current, _ := run.Outline()
	next := run.clone()
	reply, err := p.drive(ctx, &next, generator.StageModify, generator.Input{
		Outline:       current.Text,
		Modifications: modifications,
	})
	if err != nil {
		return next, err
	}
	outline, err := generator.ParseOutline(reply)
	if err != nil {
		return next, &StageError{Stage: generator.StageModify, Excerpt: reply, Err: err}
	}
	next.Outlines = append(next.Outlines, outline)
	next.State = OutlineGenerated
	p.touch(&next)
	return next, nil
}

// ModuleChanges formats per-module requests in the order modules appear in the outline.
func ModuleChanges(run Run, changes map[string]string) string {
	var order []string
	if o, ok := run.Outline(); ok {
		for _, m := range document.ParseOutlineSections(o.Text).Modules {
			order = append(order, m.Title)
		}
	}
	known := map[string]bool{}
	for _, m := range order {
		known[m] = true
	}
	var extra []string
	for m := range changes {
		if !known[m] {
			extra = append(extra, m)
		}
	}
	sort.Strings(extra)
	return generator.FormatModuleChanges(append(order, extra...), changes)
}

// RevisionRequest combines per-module changes with free-text modifications, one per line.
func RevisionRequest(run Run, changes map[string]string, modifications string) string {
	var parts []string
	if len(changes) > 0 {
		if c := ModuleChanges(run, changes); c != "" {
			parts = append(parts, c)
		}
	}
	if m := strings.TrimSpace(modifications); m != "" {
		parts = append(parts, m)
	}
	return strings.Join(parts, "\n")
}

// Accept extracts the module lesson map from the latest outline. A reply that cannot be
// decoded leaves the run in OutlineGenerated and surfaces the raw text.
func (p *Pipeline) Accept(ctx context.Context, run Run) (Run, error) {
	if err := require(run, "accept", OutlineGenerated); err != nil {
		return run, err
	}
	current, _ := run.Outline()
	next := run.clone()
	reply, err := p.drive(ctx, &next, generator.StageExtract, generator.Input{Outline: current.Text})
	if err != nil {
		return next, err
	}
	lessons, err := p.decoder.ModuleLessons(reply)
	if err != nil {
		return next, &StageError{Stage: generator.StageExtract, Excerpt: reply, Err: err}
	}
	next.Lessons = lessons
	next.Contents = nil
	next.State = Expanding
	p.touch(&next)
	return next, nil
}

// AcceptLessons takes an operator-corrected lesson map in place of the extract stage.
func (p *Pipeline) AcceptLessons(run Run, lessons extract.ModuleLessonMap) (Run, error) {
	if err := require(run, "accept lessons", OutlineGenerated); err != nil {
		return run, err
	}
	if err := lessons.Validate(); err != nil {
		return run, &StageError{Stage: generator.StageExtract, Err: err}
	}
	next := run.clone()
	next.Lessons = append(extract.ModuleLessonMap(nil), lessons...)
	next.Contents = nil
	next.State = Expanding
	p.touch(&next)
	return next, nil
}

// Expand generates every lesson as a bounded batch and joins before returning.
func (p *Pipeline) Expand(ctx context.Context, run Run) (Run, error) {
	if err := require(run, "expand", Expanding); err != nil {
		return run, err
	}
	var (
		tasks    []generator.Task
		contents []LessonContent
	)
	for _, ml := range run.Lessons {
		for _, lesson := range ml.Lessons {
			tasks = append(tasks, generator.Task{
				Stage: generator.StageExpandLesson,
				Input: generator.Input{Course: run.Params, ModuleName: ml.Module, LessonName: lesson},
			})
			contents = append(contents, LessonContent{Module: ml.Module, Lesson: lesson})
		}
	}
	if len(tasks) == 0 {
		return run, &StageError{Stage: generator.StageExpandLesson, Err: errors.New("no lessons to expand")}
	}

	next := run.clone()
	start := p.now()
	replies, history, err := p.driver.DriveBatch(ctx, tasks, next.History, p.opts.MaxParallelLessons)
	next.History = history
	if err != nil {
		p.log.Warn("stage failed", "stage", generator.StageExpandLesson, "session_id", next.ID, "lessons", len(tasks), "error", err)
		if perr := p.persist(ctx, next); perr != nil {
			p.log.Warn("partial history not saved", "session_id", next.ID, "error", perr)
		}
		return next, &StageError{Stage: generator.StageExpandLesson, Err: err}
	}
	for i := range contents {
		contents[i].Text = replies[i]
	}
	next.Contents = contents
	p.touch(&next)
	p.log.Info("stage complete", "stage", generator.StageExpandLesson, "session_id", next.ID, "lessons", len(tasks), "elapsed", p.now().Sub(start))
	if err := p.persist(ctx, next); err != nil {
		return next, err
	}
	return next, nil
}

// BuildSchedule allots hours per module, asks for a week-wise plan of each module from its
// slot start, and renders the schedule document. The state does not change.
func (p *Pipeline) BuildSchedule(ctx context.Context, run Run, start time.Time) (Run, error) {
	if err := require(run, "build schedule", OutlineGenerated, Expanding); err != nil {
		return run, err
	}
	if start.IsZero() {
		return run, &StageError{Stage: generator.StageReschedule, Err: errors.New("start date is required")}
	}
	current, _ := run.Outline()
	next := run.clone()
	reply, err := p.drive(ctx, &next, generator.StageDurations, generator.Input{Outline: current.Text})
	if err != nil {
		return next, err
	}
	durations, err := p.decoder.ModuleDurations(reply)
	if err != nil {
		return next, &StageError{Stage: generator.StageDurations, Excerpt: reply, Err: err}
	}
	p.log.Info("durations allotted", "session_id", next.ID, "modules", len(durations), "total_hours", durations.Total())

	slots := schedule.Plan(durations, start, p.opts.HoursPerWeek)
	fields := document.ParseOutlineSections(current.Text)
	m := make(schedule.Map, 0, len(slots))
	for _, slot := range slots {
		reply, err := p.drive(ctx, &next, generator.StageReschedule, generator.Input{
			ModuleContent:  moduleContent(run, fields, slot.Module),
			HoursAllocated: slot.Hours,
			StartDate:      slot.Start,
		})
		if err != nil {
			return next, err
		}
		ms, err := schedule.Decode(slot.Module, reply)
		if err != nil {
			return next, &StageError{Stage: generator.StageReschedule, Excerpt: reply, Err: err}
		}
		m = append(m, ms)
	}

	rendered, err := p.assembler.Schedule(m)
	if err != nil {
		return next, &StageError{Stage: StageAssemble, Err: err}
	}
	next.Durations = durations
	next.Slots = slots
	next.Schedule = m
	next.ScheduleDocument = rendered
	p.touch(&next)
	return next, nil
}

// Export assembles the current document as a flow PDF.
func (p *Pipeline) Export(run Run) (Run, error) {
	if err := require(run, "export", OutlineGenerated, Expanding); err != nil {
		return run, err
	}
	return p.export(run)
}

// Regenerate re-assembles the current document of an exported run.
func (p *Pipeline) Regenerate(run Run) (Run, error) {
	if err := require(run, "regenerate", Exported); err != nil {
		return run, err
	}
	return p.export(run)
}

func (p *Pipeline) export(run Run) (Run, error) {
	start := p.now()
	rendered, err := p.assembler.Flow(run.CurrentDocument())
	if err != nil {
		return run, &StageError{Stage: StageAssemble, Err: err}
	}
	next := run.clone()
	next.Document = rendered
	next.State = Exported
	p.touch(&next)
	p.log.Info("document assembled", "session_id", next.ID, "pages", rendered.Pages, "sections", len(rendered.Sections),
		"dropped_runes", rendered.Dropped, "elapsed", p.now().Sub(start))
	if rendered.Dropped > 0 {
		p.log.Warn("transliteration dropped characters", "session_id", next.ID, "dropped_runes", rendered.Dropped)
	}
	return next, nil
}

// OutlineDocument renders the latest outline as a structured "Course Outline" PDF.
func (p *Pipeline) OutlineDocument(run Run) (*document.Rendered, error) {
	current, ok := run.Outline()
	if !ok {
		return nil, &TransitionError{From: run.State, Op: "outline document"}
	}
	rendered, err := p.assembler.Structured(document.ParseOutlineSections(current.Text))
	if err != nil {
		return nil, &StageError{Stage: StageAssemble, Excerpt: current.Summary(200), Err: err}
	}
	return rendered, nil
}

// Reset starts a new course in the same session. History is kept; use ClearHistory to
// drop it.
func (p *Pipeline) Reset(run Run) Run {
	next := NewRun(run.ID)
	next.History = append([]generator.Turn(nil), run.History...)
	p.touch(&next)
	return next
}

// ClearHistory deletes the stored conversation. State and artifacts are unchanged.
func (p *Pipeline) ClearHistory(ctx context.Context, run Run) (Run, error) {
	if err := p.store.Clear(ctx, run.ID); err != nil {
		return run, &StageError{Stage: StagePersist, Err: err}
	}
	next := run.clone()
	next.History = nil
	p.touch(&next)
	return next, nil
}

// LoadHistory restores a run's history from the store.
func (p *Pipeline) LoadHistory(ctx context.Context, run Run) (Run, error) {
	history, err := p.store.Load(ctx, run.ID)
	if err != nil {
		return run, &StageError{Stage: StagePersist, Err: err}
	}
	next := run.clone()
	next.History = history
	return next, nil
}

func moduleContent(run Run, fields document.OutlineFields, module string) string {
	key := normalizeModule(module)
	for _, ml := range run.Lessons {
		if normalizeModule(ml.Module) == key {
			return fmt.Sprintf("%s\nLessons:\n- %s", ml.Module, strings.Join(ml.Lessons, "\n- "))
		}
	}
	for _, m := range fields.Modules {
		if normalizeModule(m.Title) == key {
			if len(m.Topics) == 0 {
				return m.Title
			}
			return fmt.Sprintf("%s\nTopics:\n- %s", m.Title, strings.Join(m.Topics, "\n- "))
		}
	}
	return module
}

func normalizeModule(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(extract.CleanKey(s)), " "))
}
