// Package gateway exposes the router over HTTP: message handling, health,
// the skill administrative surface, routing stats, and the approval queue.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/securebot-ai/securebot/pkg/approvals"
	"github.com/securebot-ai/securebot/pkg/audit"
	"github.com/securebot-ai/securebot/pkg/collab"
	"github.com/securebot-ai/securebot/pkg/logger"
	"github.com/securebot-ai/securebot/pkg/router"
	"github.com/securebot-ai/securebot/pkg/skills"
	"github.com/securebot-ai/securebot/pkg/version"
)

// QueryRouter resolves a message to a routing decision
type QueryRouter interface {
	Route(ctx context.Context, query string, injected []collab.SearchResult) router.Decision
}

// SkillRegistry is the administrative view of the registry
type SkillRegistry interface {
	List() []*skills.Skill
	Len() int
	Reload(ctx context.Context) error
}

// Pinger reports whether the local model backend is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyChecker reports whether the intent classifier finished warm-up
type ReadyChecker interface {
	Ready() bool
}

// Auditor persists routing decisions and serves aggregates
type Auditor interface {
	Record(ctx context.Context, entry audit.Entry) error
	Stats(ctx context.Context) (*audit.Stats, error)
}

// ServerConfig holds the HTTP listener configuration
type ServerConfig struct {
	Host string
	Port int
}

// Validate checks the listener configuration
func (c *ServerConfig) Validate() error {
	if c.Host == "" {
		return errors.New("host cannot be empty")
	}
	if c.Port < 1 || c.Port > 65535 {
		return errors.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	return nil
}

// Server is the gateway HTTP service
type Server struct {
	mux        *mux.Router
	config     *ServerConfig
	server     *http.Server
	queries    QueryRouter
	registry   SkillRegistry
	approvals  *approvals.Queue
	auditor    Auditor
	ollama     Pinger
	classifier ReadyChecker
}

// NewServer creates the gateway over the given collaborators. auditor,
// ollama, and classifier may be nil; the matching surfaces then report
// reduced information instead of failing.
func NewServer(config *ServerConfig, queries QueryRouter, registry SkillRegistry, queue *approvals.Queue, auditor Auditor, ollama Pinger, classifier ReadyChecker) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid server configuration")
	}

	s := &Server{
		mux:        mux.NewRouter(),
		config:     config,
		queries:    queries,
		registry:   registry,
		approvals:  queue,
		auditor:    auditor,
		ollama:     ollama,
		classifier: classifier,
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/message", s.handleMessage).Methods("POST")
	s.mux.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.mux.HandleFunc("/skills", s.handleListSkills).Methods("GET")
	s.mux.HandleFunc("/skills/reload", s.handleReloadSkills).Methods("POST")
	s.mux.HandleFunc("/stats", s.handleStats).Methods("GET")
	s.mux.HandleFunc("/approvals/request", s.handleCreateApproval).Methods("POST")
	s.mux.HandleFunc("/approvals/status/{id}", s.handleApprovalStatus).Methods("GET")
	s.mux.HandleFunc("/approvals/resolve/{id}", s.handleResolveApproval).Methods("POST")

	s.mux.Use(s.loggingMiddleware)
}

type messageRequest struct {
	Text          string                `json:"text"`
	Channel       string                `json:"channel"`
	UserID        string                `json:"user_id"`
	SearchResults []collab.SearchResult `json:"search_results,omitempty"`
}

type messageResponse struct {
	Status   string                 `json:"status"`
	Response string                 `json:"response"`
	Metadata map[string]interface{} `json:"metadata"`
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid message payload", err)
		return
	}
	if req.Text == "" {
		s.writeError(w, http.StatusBadRequest, "text is required", nil)
		return
	}

	ctx := r.Context()
	decision := s.queries.Route(ctx, req.Text, req.SearchResults)

	if s.auditor != nil {
		entry := audit.Entry{
			Intent:       string(decision.Intent),
			Method:       decision.Method,
			Engine:       decision.Engine,
			SkillUsed:    decision.SkillUsed,
			SkillCreated: decision.SkillCreated,
			Cost:         decision.Cost,
			DurationMS:   decision.Duration.Milliseconds(),
		}
		if err := s.auditor.Record(ctx, entry); err != nil {
			logger.G(ctx).WithError(err).Warn("failed to record routing decision")
		}
	}

	// Worst-case failures still answer 200 with apology text; the status
	// field tells callers the router could not route.
	status := "success"
	if decision.Method == router.MethodError {
		status = "error"
	}

	s.writeJSON(w, messageResponse{
		Status:   status,
		Response: decision.Response,
		Metadata: map[string]interface{}{
			"intent":                  string(decision.Intent),
			"confidence":              decision.Confidence,
			"method":                  decision.Method,
			"engine":                  decision.Engine,
			"cost":                    decision.Cost,
			"skill_used":              decision.SkillUsed,
			"skill_created":           decision.SkillCreated,
			"search_used":             len(req.SearchResults) > 0,
			"search_results_count":    len(req.SearchResults),
			"processing_time_seconds": decision.Duration.Seconds(),
			"channel":                 req.Channel,
			"timestamp":               time.Now().Format(time.RFC3339),
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	health := map[string]interface{}{
		"status":           "ok",
		"version":          version.Version,
		"skills_available": s.registry.Len(),
	}

	if s.classifier != nil {
		health["classifier_ready"] = s.classifier.Ready()
	}

	if s.ollama != nil {
		if err := s.ollama.Ping(ctx); err != nil {
			health["status"] = "degraded"
			health["ollama"] = "unreachable"
		} else {
			health["ollama"] = "ok"
		}
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		health["memory_used_percent"] = vm.UsedPercent
	}
	if uptime, err := host.Uptime(); err == nil {
		health["host_uptime_seconds"] = uptime
	}

	s.writeJSON(w, health)
}

type skillSummary struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Triggers    []string `json:"triggers"`
	Mode        string   `json:"execution_mode"`
}

func (s *Server) handleListSkills(w http.ResponseWriter, _ *http.Request) {
	all := s.registry.List()
	summaries := make([]skillSummary, 0, len(all))
	for _, skill := range all {
		summaries = append(summaries, skillSummary{
			Name:        skill.Name,
			Description: skill.Description,
			Triggers:    skill.Triggers,
			Mode:        string(skill.Mode),
		})
	}
	s.writeJSON(w, map[string]interface{}{
		"status": "success",
		"count":  len(summaries),
		"skills": summaries,
	})
}

func (s *Server) handleReloadSkills(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Reload(r.Context()); err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to reload skills", err)
		return
	}
	s.writeJSON(w, map[string]interface{}{
		"status": "success",
		"count":  s.registry.Len(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":           "success",
		"skills_available": s.registry.Len(),
		"timestamp":        time.Now().Format(time.RFC3339),
	}

	if s.auditor != nil {
		stats, err := s.auditor.Stats(r.Context())
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, "failed to load stats", err)
			return
		}
		response["routing"] = stats
	}

	s.writeJSON(w, response)
}

type approvalRequest struct {
	Rationale string `json:"rationale"`
	Needs     string `json:"needs"`
	Type      string `json:"request_type"`
}

func (s *Server) handleCreateApproval(w http.ResponseWriter, r *http.Request) {
	var req approvalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid approval payload", err)
		return
	}

	created, err := s.approvals.Create(req.Rationale, req.Needs, approvals.RequestType(req.Type))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to create approval request", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(created); err != nil {
		logger.G(r.Context()).WithError(err).Error("failed to encode approval response")
	}
}

func (s *Server) handleApprovalStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	req, err := s.approvals.Get(id)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "approval request not found", err)
		return
	}
	s.writeJSON(w, req)
}

type resolvePayload struct {
	Resolution string `json:"resolution"`
}

func (s *Server) handleResolveApproval(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var payload resolvePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid resolution payload", err)
		return
	}

	resolved, err := s.approvals.Resolve(id, payload.Resolution)
	switch {
	case errors.Is(err, approvals.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "approval request not found", err)
	case errors.Is(err, approvals.ErrAlreadyResolved):
		s.writeError(w, http.StatusConflict, "approval request already resolved", err)
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, "failed to resolve approval request", err)
	default:
		s.writeJSON(w, resolved)
	}
}

// Handler exposes the route table, primarily for tests
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start runs the server until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    address,
		Handler: s.mux,
	}

	go func() {
		logger.G(ctx).WithField("address", address).Info("gateway listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.G(ctx).WithError(err).Error("gateway server error")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		logger.G(r.Context()).WithFields(map[string]interface{}{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rw.statusCode,
			"duration": time.Since(start),
		}).Info("HTTP request")
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.G(context.TODO()).WithError(err).Error("failed to encode JSON response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string, err error) {
	if err != nil {
		logger.G(context.TODO()).WithError(err).Error(message)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	response := map[string]interface{}{
		"error":   message,
		"status":  statusCode,
		"success": false,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.G(context.TODO()).WithError(err).Error("failed to encode error response")
	}
}
