// Package server exposes the service over HTTP: JSON endpoints, HTML
// reports and a websocket that streams step progress.
package server

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/priyansh1913/open-deep-research-web/internal/config"
	"github.com/priyansh1913/open-deep-research-web/internal/history"
	"github.com/priyansh1913/open-deep-research-web/internal/logger"
	"github.com/priyansh1913/open-deep-research-web/internal/models"
	"github.com/priyansh1913/open-deep-research-web/internal/service"
)

// maxBodyBytes bounds request bodies; follow-ups carry a whole report.
const maxBodyBytes = 4 << 20

// API is the service surface used by the handlers. *service.Service implements it.
type API interface {
	RunResearchObserved(ctx context.Context, topic string, fast bool, observe service.Observer) (models.PipelineResult, error)
	RunFollowUp(ctx context.Context, req models.FollowUpRequest) (models.StepResult, error)
	FollowUpQuestions(ctx context.Context, topic, report string) ([]string, error)
	RunImageGenerationObserved(ctx context.Context, req models.ImageRequest, observe service.Observer) (models.PipelineResult, error)
	RefinePrompt(ctx context.Context, prompt string) (string, error)
	GetRun(ctx context.Context, id string) (models.PipelineResult, error)
	ListRuns(ctx context.Context, opts history.ListOptions) ([]history.RunSummary, error)
}

// Server routes HTTP requests to the API.
type Server struct {
	api      API
	cfg      config.ServerConfig
	logger   logger.Logger
	markdown goldmark.Markdown
	upgrader websocket.Upgrader
	origins  map[string]bool
}

// New creates a Server.
func New(api API, cfg config.ServerConfig, log logger.Logger) *Server {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	s := &Server{
		api:      api,
		cfg:      cfg,
		logger:   log,
		markdown: goldmark.New(goldmark.WithExtensions(extension.GFM)),
		origins:  make(map[string]bool),
	}
	for _, o := range cfg.AllowedOrigins {
		s.origins[strings.TrimRight(o, "/")] = true
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.originAllowed(origin)
		},
	}
	return s
}

// Handler returns the routed handler with CORS and request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("POST /api/research", s.handleResearch)
	mux.HandleFunc("POST /api/follow-up", s.handleFollowUp)
	mux.HandleFunc("POST /api/follow-up-questions", s.handleFollowUpQuestions)
	mux.HandleFunc("POST /api/generate-image", s.handleGenerateImage)
	mux.HandleFunc("POST /api/refine-prompt", s.handleRefinePrompt)
	mux.HandleFunc("GET /api/runs", s.handleListRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.handleGetRun)
	mux.HandleFunc("GET /api/runs/{id}/report", s.handleReport)
	mux.HandleFunc("GET /api/stream", s.handleStream)

	return s.withLogging(s.withCORS(mux))
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("listening on %s", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	s.logger.Infof("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) originAllowed(origin string) bool {
	return s.origins["*"] || s.origins[strings.TrimRight(origin, "/")]
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			h.Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack is needed by the websocket upgrader.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	r.status = http.StatusSwitchingProtocols
	return http.NewResponseController(r.ResponseWriter).Hijack()
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debugf("%s %s %d (%s)", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps service errors to status codes. The body uses a
// {"detail": ...} shape.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		code = http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		code = http.StatusNotFound
	default:
		s.logger.Errorf("request failed: %v", err)
	}
	writeJSON(w, code, map[string]string{"detail": err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: malformed JSON body: %v", models.ErrInvalidInput, err)
	}
	return nil
}

// researchResponse keeps the "report" key web clients already read.
type researchResponse struct {
	ID       string              `json:"id"`
	Report   string              `json:"report"`
	Status   models.StepStatus   `json:"status"`
	Steps    []models.StepResult `json:"steps"`
	Metadata models.Metadata     `json:"metadata"`
}

func newResearchResponse(res models.PipelineResult) researchResponse {
	return researchResponse{
		ID:       res.ID,
		Report:   res.Artifact,
		Status:   res.Status,
		Steps:    res.Steps,
		Metadata: res.Metadata,
	}
}

func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	var req models.ResearchRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	res, err := s.api.RunResearchObserved(r.Context(), req.Topic, req.Fast, nil)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newResearchResponse(res))
}

type followUpResponse struct {
	Answer     string            `json:"answer"`
	Status     models.StepStatus `json:"status"`
	Diagnostic string            `json:"diagnostic,omitempty"`
}

func (s *Server) handleFollowUp(w http.ResponseWriter, r *http.Request) {
	var req models.FollowUpRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	step, err := s.api.RunFollowUp(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, followUpResponse{Answer: step.Output, Status: step.Status, Diagnostic: step.Diagnostic})
}

func (s *Server) handleFollowUpQuestions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Topic  string `json:"topic"`
		Report string `json:"report"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	questions, err := s.api.FollowUpQuestions(r.Context(), req.Topic, req.Report)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"questions": questions})
}

// imageResponse mirrors the image_base64/prompt/fallback shape of the web client.
type imageResponse struct {
	ID          string              `json:"id"`
	ImageBase64 string              `json:"image_base64"`
	Prompt      string              `json:"prompt"`
	Fallback    bool                `json:"fallback"`
	Status      models.StepStatus   `json:"status"`
	Steps       []models.StepResult `json:"steps"`
	Metadata    models.Metadata     `json:"metadata"`
}

func newImageResponse(res models.PipelineResult) imageResponse {
	fallback := true
	if fin, ok := res.Step(models.StepFinalize); ok {
		fallback = !fin.OK()
	}
	return imageResponse{
		ID:          res.ID,
		ImageBase64: base64.StdEncoding.EncodeToString(res.Image),
		Prompt:      res.Artifact,
		Fallback:    fallback,
		Status:      res.Status,
		Steps:       res.Steps,
		Metadata:    res.Metadata,
	}
}

func (s *Server) handleGenerateImage(w http.ResponseWriter, r *http.Request) {
	var req models.ImageRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	res, err := s.api.RunImageGenerationObserved(r.Context(), req, nil)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newImageResponse(res))
}

func (s *Server) handleRefinePrompt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	refined, err := s.api.RefinePrompt(r.Context(), req.Prompt)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"original_prompt": req.Prompt, "refined_prompt": refined})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	opts := history.ListOptions{Kind: r.URL.Query().Get("kind")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(w, fmt.Errorf("%w: limit must be a non-negative integer", models.ErrInvalidInput))
			return
		}
		opts.Limit = n
	}
	runs, err := s.api.ListRuns(r.Context(), opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	res, err := s.api.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	res, err := s.api.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	page, err := RenderReportHTML(s.markdown, res)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}
