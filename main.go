package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"auto_course_generator/config"
	"auto_course_generator/document"
	"auto_course_generator/extract"
	"auto_course_generator/generator"
	"auto_course_generator/logger"
	"auto_course_generator/pipeline"
	"auto_course_generator/publisher"
	"auto_course_generator/server"
	"auto_course_generator/store"
)

func main() {
	configPath := flag.String("config", "config/config.json", "path to config.json or config.yaml")
	serve := flag.Bool("serve", false, "start web server")
	addr := flag.String("addr", "", "http listen address when --serve (overrides config.server_addr)")
	name := flag.String("name", "", "course name")
	audience := flag.String("audience", "Bachelors", "audience level (Bachelors or Masters)")
	difficulty := flag.String("difficulty", "Beginner", "difficulty (Beginner, Intermediate, Advanced)")
	modules := flag.Int("modules", 4, "number of modules")
	duration := flag.String("duration", "", "course duration, e.g. \"12 weeks\"")
	credit := flag.String("credit", "", "course credit")
	pdfPath := flag.String("pdf", "", "restructure an existing outline PDF instead of generating from parameters")
	expand := flag.Bool("expand", false, "expand every lesson into full content before export")
	start := flag.String("start", "", "build a schedule starting at this date (YYYY-MM-DD)")
	outlinePDF := flag.Bool("outline-pdf", false, "also publish the structured outline PDF")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(err)
	}
	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		fatal(err)
	}
	defer log.Sync()

	p, pub, err := build(cfg, log)
	if err != nil {
		fatal(err)
	}

	// Web server mode
	if *serve {
		srv, err := server.New(p, pub, log)
		if err != nil {
			fatal(err)
		}
		listen := cfg.ServerAddr
		if *addr != "" {
			listen = *addr
		}
		log.Info("starting web server", "addr", listen)
		if err := http.ListenAndServe(listen, srv.Routes()); err != nil {
			fatal(err)
		}
		return
	}

	if *pdfPath == "" && *name == "" {
		fatal(fmt.Errorf("--name or --pdf is required"))
	}

	ctx := context.Background()
	run := pipeline.NewRun(uuid.NewString())
	if *pdfPath != "" {
		data, err := os.ReadFile(*pdfPath)
		if err != nil {
			fatal(err)
		}
		log.Info("[cli] restructuring outline", "pdf", *pdfPath)
		run, err = p.GenerateFromPDF(ctx, run, data)
		if err != nil {
			fatal(err)
		}
	} else {
		params, err := parseParams(*name, *audience, *difficulty, *modules, *duration, *credit)
		if err != nil {
			fatal(err)
		}
		log.Info("[cli] generating outline", "course", params.Name)
		run, err = p.GenerateOutline(ctx, run, params)
		if err != nil {
			fatal(err)
		}
	}

	if *outlinePDF {
		rendered, err := p.OutlineDocument(run)
		if err != nil {
			fatal(err)
		}
		artifact, err := pub.Publish("outline "+run.Title(), rendered)
		if err != nil {
			fatal(err)
		}
		fmt.Println(artifact.Path)
	}

	if *start != "" {
		day, err := time.Parse(generator.DateLayout, *start)
		if err != nil {
			fatal(fmt.Errorf("--start must be YYYY-MM-DD: %w", err))
		}
		run, err = p.BuildSchedule(ctx, run, day)
		if err != nil {
			fatal(err)
		}
		artifact, err := pub.Publish("schedule "+run.Title(), run.ScheduleDocument)
		if err != nil {
			fatal(err)
		}
		fmt.Println(artifact.Path)
	}

	if *expand {
		run, err = p.Accept(ctx, run)
		if err != nil {
			fatal(err)
		}
		run, err = p.Expand(ctx, run)
		if err != nil {
			fatal(err)
		}
	}

	run, err = p.Export(run)
	if err != nil {
		fatal(err)
	}
	artifact, err := pub.Publish(run.Title(), run.Document)
	if err != nil {
		fatal(err)
	}
	log.Info("[cli] export done", "path", artifact.Path, "pages", artifact.Pages)
	fmt.Println(artifact.Path)
}

func build(cfg config.Config, log *logger.Logger) (*pipeline.Pipeline, *publisher.Publisher, error) {
	llm, err := buildLLM(cfg)
	if err != nil {
		return nil, nil, err
	}
	driver, err := generator.NewDriver(llm, log)
	if err != nil {
		return nil, nil, err
	}
	history, err := store.Open(cfg.Database, log)
	if err != nil {
		return nil, nil, err
	}
	p, err := pipeline.New(pipeline.Deps{
		Driver:    driver,
		Decoder:   extract.NewDecoder(cfg.Pipeline.DefaultDurationHours),
		Assembler: document.NewAssembler(document.Options{Transliterate: cfg.Pipeline.TransliterateEnabled()}),
		Store:     history,
		Log:       log,
	}, pipeline.OptionsFromConfig(cfg.Pipeline))
	if err != nil {
		return nil, nil, err
	}
	pub, err := publisher.New(cfg.OutputDir, log)
	if err != nil {
		return nil, nil, err
	}
	return p, pub, nil
}

func parseParams(name, audience, difficulty string, modules int, duration, credit string) (generator.CourseParameters, error) {
	level, err := generator.ParseAudienceLevel(audience)
	if err != nil {
		return generator.CourseParameters{}, err
	}
	diff, err := generator.ParseDifficulty(difficulty)
	if err != nil {
		return generator.CourseParameters{}, err
	}
	params := generator.CourseParameters{
		Name:          name,
		AudienceLevel: level,
		Difficulty:    diff,
		ModuleCount:   modules,
		Duration:      duration,
		Credit:        credit,
	}
	return params, params.Validate()
}

func buildLLM(cfg config.Config) (generator.LLMClient, error) {
	settings := &generator.LLMSettings{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
	}
	switch cfg.LLM.Provider {
	case "openai", "gemini":
		return generator.NewOpenAILLMFromConfig(settings)
	case "deepseek":
		// DeepSeek exposes an OpenAI-compatible endpoint; base_url must point at it.
		if cfg.LLM.BaseURL == "" {
			return nil, fmt.Errorf("llm provider deepseek requires base_url (OpenAI-compatible endpoint)")
		}
		return generator.NewOpenAILLMFromConfig(settings)
	case "mock":
		return generator.MockLLM{}, nil
	default:
		return nil, fmt.Errorf("llm provider %s not supported", cfg.LLM.Provider)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
