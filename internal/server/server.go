// Package server exposes the pipeline over HTTP: trigger endpoints that
// respond immediately with a job to poll, and read endpoints over the
// artifact store.
package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/db-inlee/paper-digest-agent/internal/artifact"
	"github.com/db-inlee/paper-digest-agent/internal/model"
	"github.com/db-inlee/paper-digest-agent/internal/pipeline"
	"github.com/db-inlee/paper-digest-agent/internal/registry"
	"github.com/db-inlee/paper-digest-agent/internal/report"
	"github.com/db-inlee/paper-digest-agent/internal/store"
)

// Trigger starts pipeline work asynchronously; *pipeline.Orchestrator
// satisfies it.
type Trigger interface {
	StartBatch(ctx context.Context, papers []model.Paper, opts pipeline.BatchOptions) (*model.PipelineJob, error)
	StartOne(ctx context.Context, paper model.Paper, date string) (*model.PipelineJob, error)
}

// Resolver turns an arXiv id or URL into paper metadata.
type Resolver interface {
	Resolve(ctx context.Context, ref string) (*model.Paper, error)
}

// Server is the HTTP API over the pipeline.
type Server struct {
	trigger   Trigger
	resolver  Resolver
	registry  *registry.Registry
	artifacts *artifact.Store
	assembler *report.Assembler
	history   store.Store // nil disables /jobs
}

// New wires a Server. history may be nil.
func New(trigger Trigger, resolver Resolver, reg *registry.Registry, artifacts *artifact.Store, history store.Store) *Server {
	return &Server{
		trigger:   trigger,
		resolver:  resolver,
		registry:  reg,
		artifacts: artifacts,
		assembler: report.NewAssembler(artifacts),
		history:   history,
	}
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", s.handleHealth)

	r.Post("/pipeline/run", s.handlePipelineRun)
	r.Get("/pipeline/status", s.handlePipelineStatus)

	r.Post("/papers/add", s.handlePaperAdd)
	r.Get("/papers/add/status", s.handlePaperAddStatus)
	r.Get("/papers", s.handlePaperList)
	r.Get("/papers/{arxivID}", s.handlePaperDetail)
	r.Get("/papers/{arxivID}/report", s.handlePaperReport)

	if s.history != nil {
		r.Get("/jobs", s.handleJobList)
	}
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type pipelineRunRequest struct {
	IDs   []string `json:"ids"`
	Date  string   `json:"date,omitempty"`
	Force bool     `json:"force,omitempty"`
}

func (s *Server) handlePipelineRun(w http.ResponseWriter, r *http.Request) {
	var req pipelineRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids is required")
		return
	}

	papers := make([]model.Paper, 0, len(req.IDs))
	for _, id := range req.IDs {
		paper, err := s.resolver.Resolve(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusBadRequest, eris.Wrapf(err, "resolve %s", id).Error())
			return
		}
		papers = append(papers, *paper)
	}

	job, err := s.trigger.StartBatch(r.Context(), papers, pipeline.BatchOptions{Date: req.Date, Force: req.Force})
	if err != nil {
		if eris.Is(err, registry.ErrAlreadyRunning) {
			writeError(w, http.StatusConflict, "pipeline already running")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handlePipelineStatus(w http.ResponseWriter, _ *http.Request) {
	job, err := s.registry.Status(model.GlobalScope)
	if err != nil {
		// No run yet, and nothing retired: the pipeline is idle.
		writeJSON(w, http.StatusOK, map[string]string{"state": "idle"})
		return
	}
	writeJSON(w, http.StatusOK, job)
}

type paperAddRequest struct {
	Ref  string `json:"ref"` // arXiv id or URL
	Date string `json:"date,omitempty"`
}

func (s *Server) handlePaperAdd(w http.ResponseWriter, r *http.Request) {
	var req paperAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Ref == "" {
		writeError(w, http.StatusBadRequest, "ref is required")
		return
	}

	paper, err := s.resolver.Resolve(r.Context(), req.Ref)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := s.trigger.StartOne(r.Context(), *paper, req.Date)
	if err != nil {
		if eris.Is(err, registry.ErrAlreadyRunning) {
			writeError(w, http.StatusConflict, "paper already being analyzed")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

// handlePaperAddStatus lists in-flight and recently finished per-paper
// jobs, newest running first. With ?arxiv_id= it narrows to one paper.
func (s *Server) handlePaperAddStatus(w http.ResponseWriter, r *http.Request) {
	if arxivID := r.URL.Query().Get("arxiv_id"); arxivID != "" {
		job, err := s.registry.Status(arxivID)
		if err != nil {
			writeError(w, http.StatusNotFound, "no job for paper")
			return
		}
		writeJSON(w, http.StatusOK, job)
		return
	}

	jobs := []model.PipelineJob{}
	for _, job := range s.registry.Running() {
		if job.Scope != model.GlobalScope {
			jobs = append(jobs, job)
		}
	}
	for _, job := range s.registry.Recent() {
		if job.Scope != model.GlobalScope {
			jobs = append(jobs, job)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (s *Server) handlePaperList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"slugs": s.artifacts.ListSlugs()})
}

func (s *Server) handlePaperDetail(w http.ResponseWriter, r *http.Request) {
	arxivID := chi.URLParam(r, "arxivID")
	rec, err := s.assembler.Assemble(arxivID)
	if err != nil {
		if eris.Is(err, artifact.ErrNotFound) {
			writeError(w, http.StatusNotFound, "paper not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handlePaperReport(w http.ResponseWriter, r *http.Request) {
	arxivID := chi.URLParam(r, "arxivID")
	md, err := s.artifacts.Report(arxivID)
	if err != nil {
		if eris.Is(err, artifact.ErrNotFound) {
			writeError(w, http.StatusNotFound, "report not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(md))
}

func (s *Server) handleJobList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.JobFilter{
		State:   model.JobState(q.Get("state")),
		ArxivID: q.Get("arxiv_id"),
		Date:    q.Get("date"),
	}
	jobs, err := s.history.ListJobs(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if jobs == nil {
		jobs = []model.PipelineJob{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}
