// Package gateway exposes the assistant over HTTP: a chat endpoint for
// conversational turns, direct search endpoints that skip the planner, and
// health endpoints for operators.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	voyago "github.com/voyago/voyago"
	"github.com/voyago/voyago/registry"
)

// Dispatcher runs conversational turns.
type Dispatcher interface {
	ProcessTurn(ctx context.Context, conversationID, message string) (*voyago.TurnResult, error)
}

// Config configures the HTTP server.
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server is the HTTP front door.
type Server struct {
	dispatcher Dispatcher
	router     voyago.CapabilityRouter
	registry   *registry.Registry
	logger     *slog.Logger
	httpServer *http.Server
	shutdown   time.Duration
}

// New builds the server and its routes.
func New(cfg Config, dispatcher Dispatcher, router voyago.CapabilityRouter, reg *registry.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{
		dispatcher: dispatcher,
		router:     router,
		registry:   reg,
		logger:     logger,
		shutdown:   cfg.ShutdownTimeout,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/services", s.handleServiceHealth)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("POST /api/flights/search", s.handleCapabilityPost("search_flights"))
	mux.HandleFunc("POST /api/hotels/search", s.handleCapabilityPost("search_hotels"))
	mux.HandleFunc("GET /api/weather", s.handleWeather)

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Run serves until ctx is cancelled, then drains connections.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("gateway listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdown)
	defer cancel()
	s.logger.Info("gateway shutting down")
	return s.httpServer.Shutdown(shutdownCtx)
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "voyago",
		"endpoints": []string{
			"POST /api/chat",
			"POST /api/flights/search",
			"POST /api/hotels/search",
			"GET /api/weather",
			"GET /health",
			"GET /health/services",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// handleServiceHealth reports the registry's view of every backend. The
// response is built from the last probe cycle; no probes run on this path.
func (s *Server) handleServiceHealth(w http.ResponseWriter, r *http.Request) {
	endpoints := s.registry.Snapshot()
	services := make(map[string]any, len(endpoints))
	allHealthy := true
	for _, ep := range endpoints {
		if ep.Health != registry.HealthHealthy {
			allHealthy = false
		}
		entry := map[string]any{
			"status":       string(ep.Health),
			"last_checked": ep.LastChecked.UTC().Format(time.RFC3339),
		}
		if !ep.LastFailure.IsZero() {
			entry["last_failure"] = ep.LastFailure.UTC().Format(time.RFC3339)
			entry["consecutive_failures"] = ep.ConsecutiveFailures
		}
		services[ep.Name] = entry
	}

	status := "ok"
	if !allHealthy {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   status,
		"services": services,
	})
}

type chatRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
}

type chatResponse struct {
	ConversationID string              `json:"conversation_id"`
	Reply          string              `json:"reply"`
	Results        []voyago.ToolResult `json:"results,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	if req.ConversationID == "" {
		req.ConversationID = uuid.NewString()
	}

	result, err := s.dispatcher.ProcessTurn(r.Context(), req.ConversationID, req.Message)
	if err != nil {
		s.logger.Error("chat turn failed", "conversation_id", req.ConversationID, "error", err)
		writeError(w, statusForError(err), "the assistant could not complete this turn")
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		ConversationID: result.ConversationID,
		Reply:          result.Reply,
		Results:        result.Results,
	})
}

// handleCapabilityPost serves a direct structured search: the JSON body is
// the argument map and the call goes through the same health-aware routing
// as planner-driven invocations.
func (s *Server) handleCapabilityPost(capability string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var args map[string]any
		if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		s.invokeCapability(w, r, capability, args)
	}
}

func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	city := r.URL.Query().Get("city")
	if city == "" {
		writeError(w, http.StatusBadRequest, "city query parameter is required")
		return
	}
	args := map[string]any{"city": city}
	if r.URL.Query().Get("forecast") == "true" {
		args["forecast"] = true
	}
	s.invokeCapability(w, r, "get_weather", args)
}

func (s *Server) invokeCapability(w http.ResponseWriter, r *http.Request, capability string, args map[string]any) {
	payload, err := s.router.Route(r.Context(), capability, args)
	if err != nil {
		kind := voyago.ClassifyError(err)
		s.logger.Warn("direct capability call failed",
			"capability", capability, "kind", string(kind), "error", err)
		writeJSON(w, statusForError(err), map[string]any{
			"error": string(kind),
		})
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func statusForError(err error) int {
	switch voyago.ClassifyError(err) {
	case voyago.KindInvalidParameters:
		return http.StatusBadRequest
	case voyago.KindUnknownCapability:
		return http.StatusNotFound
	case voyago.KindUnavailable:
		return http.StatusServiceUnavailable
	case voyago.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
