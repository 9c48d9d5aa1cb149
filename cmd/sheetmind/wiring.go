package main

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"sheetmind/internal/config"
	"sheetmind/internal/embedding"
	"sheetmind/internal/engine"
	"sheetmind/internal/executor"
	"sheetmind/internal/planner"
	"sheetmind/internal/provider"
	"sheetmind/internal/router"
	"sheetmind/internal/sheet"
	"sheetmind/internal/skills"
	"sheetmind/internal/store"
	"sheetmind/internal/telemetry"
)

// runtime bundles everything a command needs, so PostRun can close it.
type runtime struct {
	engine   *engine.Engine
	router   *router.Router
	cache    *store.IntentCache
	registry *skills.Registry
	recorder *telemetry.Recorder
}

func (r *runtime) close() {
	if r.recorder != nil {
		r.recorder.Close()
	}
	if r.registry != nil {
		_ = r.registry.Close()
	}
	if r.cache != nil {
		_ = r.cache.Close()
	}
}

// buildRuntime wires the full pipeline from config. Missing pieces degrade:
// no API key still yields a working heuristic-only router.
func buildRuntime(cfg *config.Config) (*runtime, error) {
	rt := &runtime{}

	registry, err := skills.NewRegistry(&cfg.Skills)
	if err != nil {
		return nil, fmt.Errorf("skill registry: %w", err)
	}
	rt.registry = registry

	var gemini *provider.GeminiClient
	if cfg.LLM.APIKey != "" {
		gemini = provider.NewGeminiClient(provider.GeminiConfig{
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.GetLLMTimeout(),
		})
	} else {
		logger.Warn("no API key configured, classification degrades to heuristics")
	}

	eng, err := embedding.NewEngine(embedding.Config{
		Provider:       cfg.Embedding.Provider,
		OllamaEndpoint: cfg.Embedding.OllamaEndpoint,
		OllamaModel:    cfg.Embedding.OllamaModel,
		GenAIAPIKey:    cfg.Embedding.GenAIAPIKey,
		GenAIModel:     cfg.Embedding.GenAIModel,
		Dimensions:     cfg.Embedding.Dimensions,
	})
	if err != nil {
		logger.Warn("embedding engine unavailable, cache tier disabled", zap.Error(err))
		eng = nil
	}

	cache, err := store.NewIntentCache(cfg.Routing.CachePath)
	if err != nil {
		logger.Warn("intent cache unavailable, cache tier disabled", zap.Error(err))
		cache = nil
	}
	rt.cache = cache

	rt.recorder = telemetry.NewRecorder(&router.LearningSink{
		Engine: eng,
		Cache:  cache,
		Next:   telemetry.LogSink{},
	})

	var ai provider.StructuredGenerator
	var text provider.TextGenerator
	var agent *executor.Executor
	if gemini != nil {
		ai = gemini
		text = gemini
		agent = executor.New(gemini, gemini, &cfg.Executor)
	}

	var caches []*store.IntentCache
	if cache != nil {
		caches = append(caches, cache)
	}
	rt.router = router.New(eng, ai, registry, rt.recorder, &cfg.Routing, caches...)
	rt.engine = engine.New(rt.router, registry, text, planner.NewParser(cfg.Routing.OverrideConfidence), agent)
	return rt, nil
}

// loadContext builds the data context from the workbook flag, or an empty
// sheet when none was given.
func loadContext() (*sheet.DataContext, error) {
	if workbook == "" {
		return sheet.NewDataContext(sheet.ContextInput{}), nil
	}
	start := time.Now()
	ctx, err := sheet.BuildContextFromWorkbook(workbook, sheetName)
	if err != nil {
		return nil, fmt.Errorf("read workbook: %w", err)
	}
	logger.Debug("workbook context built",
		zap.String("path", workbook),
		zap.Int("columns", len(ctx.DataColumns)),
		zap.Duration("took", time.Since(start)))
	return ctx, nil
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
