package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/db-inlee/paper-digest-agent/internal/artifact"
	"github.com/db-inlee/paper-digest-agent/internal/llm"
	"github.com/db-inlee/paper-digest-agent/internal/parse"
	"github.com/db-inlee/paper-digest-agent/internal/pipeline"
	"github.com/db-inlee/paper-digest-agent/internal/registry"
	"github.com/db-inlee/paper-digest-agent/internal/stage"
	"github.com/db-inlee/paper-digest-agent/internal/store"
	"github.com/db-inlee/paper-digest-agent/pkg/arxiv"
)

// pipelineEnv holds the wired components the run/daily/serve commands use.
type pipelineEnv struct {
	Artifacts    *artifact.Store
	Registry     *registry.Registry
	History      store.Store
	Machine      *pipeline.Machine
	Orchestrator *pipeline.Orchestrator
	Arxiv        *arxiv.Client
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.History != nil {
		_ = pe.History.Close()
	}
}

// initPipeline wires the artifact store, job history, LLM client, parser
// chain, and the state machine. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	artifacts, err := artifact.NewStore(cfg.Data.Dir)
	if err != nil {
		return nil, err
	}

	history, err := store.New(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "init job history")
	}

	client, err := llm.New(llm.ProviderConfig{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
	})
	if err != nil {
		history.Close()
		return nil, err
	}
	zap.L().Info("llm client ready",
		zap.String("provider", cfg.LLM.Provider),
		zap.String("model", client.ModelName()),
	)

	prompts := stage.DefaultPrompts()
	if cfg.Pipeline.PromptFile != "" {
		prompts, err = stage.LoadPrompts(cfg.Pipeline.PromptFile)
		if err != nil {
			history.Close()
			return nil, err
		}
		zap.L().Info("prompt overrides loaded", zap.String("file", cfg.Pipeline.PromptFile))
	}

	var parsers []parse.Parser
	if cfg.Parser.BaseURL != "" {
		httpClient := &http.Client{Timeout: time.Duration(cfg.Parser.TimeoutSecs) * time.Second}
		parsers = append(parsers, parse.NewServiceParser(cfg.Parser.BaseURL,
			parse.WithHTTPClient(httpClient)))
	} else {
		zap.L().Warn("no parser service configured, papers degrade to abstract-only analysis")
	}
	chain := parse.NewChain(parsers...)

	runner := stage.NewRunner(client, prompts)
	machine := pipeline.NewMachine(runner, chain, artifacts,
		pipeline.WithMaxRetries(cfg.Pipeline.MaxRetries),
		pipeline.WithStageAttempts(cfg.Pipeline.StageAttempts),
	)
	reg := registry.New()
	orchestrator := pipeline.NewOrchestrator(machine, reg, artifacts,
		pipeline.WithConcurrency(cfg.Pipeline.Concurrency),
		pipeline.WithJobArchiver(history),
	)

	return &pipelineEnv{
		Artifacts:    artifacts,
		Registry:     reg,
		History:      history,
		Machine:      machine,
		Orchestrator: orchestrator,
		Arxiv:        arxiv.NewClient(arxiv.WithBaseURL(cfg.Arxiv.BaseURL)),
	}, nil
}
