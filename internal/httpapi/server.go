package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/vygeek/vybuddy/internal/config"
	"github.com/vygeek/vybuddy/internal/escalation"
	"github.com/vygeek/vybuddy/internal/history"
	"github.com/vygeek/vybuddy/internal/observability"
	"github.com/vygeek/vybuddy/internal/orchestrator"
	"github.com/vygeek/vybuddy/internal/records"
	"github.com/vygeek/vybuddy/internal/stream"
)

// Processor is the single entry point behind every transport.
type Processor interface {
	ProcessRequest(ctx context.Context, req orchestrator.Request) orchestrator.Result
}

type Server struct {
	cfg        config.Config
	processor  Processor
	history    history.Store
	records    records.Store
	escalation *escalation.Service
	hub        *stream.Hub
	deliverer  *stream.Deliverer
	logger     *logrus.Logger
	metrics    *observability.Metrics
	upgrader   websocket.Upgrader
}

func New(cfg config.Config, processor Processor, hist history.Store, rec records.Store,
	esc *escalation.Service, hub *stream.Hub, deliverer *stream.Deliverer,
	logger *logrus.Logger, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:        cfg,
		processor:  processor,
		history:    hist,
		records:    rec,
		escalation: esc,
		hub:        hub,
		deliverer:  deliverer,
		logger:     logger,
		metrics:    metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/api/v1/chat", s.handleChat)
	r.Get("/api/v1/history/{sessionID}", s.handleGetHistory)
	r.Delete("/api/v1/history/{sessionID}", s.handleClearHistory)
	r.Post("/api/v1/feedback", s.handleFeedback)
	r.Post("/api/v1/bridge/events", s.handleBridgeEvents)

	r.Get("/ws/{sessionID}", s.handleSessionWS)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "vybuddy",
		"components": map[string]string{
			"history":  backendName(s.cfg.RedisURL != "", "redis", "memory"),
			"records":  backendName(s.cfg.DatabaseURL != "", "postgres", "memory"),
			"helpdesk": backendName(s.cfg.OdooURL != "", "odoo", "mock"),
			"bridge":   bridgeName(s.cfg),
			"llm":      backendName(s.cfg.LLMGatewayURL != "", "gateway", "mock"),
		},
	})
}

func backendName(configured bool, real, fallback string) string {
	if configured {
		return real
	}
	return fallback
}

func bridgeName(cfg config.Config) string {
	switch {
	case cfg.SlackBotToken != "":
		return "slack"
	case cfg.DiscordBotToken != "":
		return "discord"
	default:
		return "mock"
	}
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	UserName  string `json:"user_name"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		respondError(w, http.StatusBadRequest, "missing_message", "message is required")
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "session_id is required")
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		req.UserID = "anonymous"
	}

	result := s.processor.ProcessRequest(r.Context(), orchestrator.Request{
		Message:   req.Message,
		SessionID: req.SessionID,
		UserID:    req.UserID,
		UserName:  req.UserName,
	})
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if strings.TrimSpace(sessionID) == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "session id is required")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
			return
		}
		if n > 0 {
			limit = n
		}
	}

	msgs, err := s.records.Messages(r.Context(), sessionID, limit)
	if err != nil {
		s.metrics.CollaboratorErrors.WithLabelValues("records").Inc()
		respondError(w, http.StatusInternalServerError, "history_unavailable", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"history":    msgs,
	})
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if strings.TrimSpace(sessionID) == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "session id is required")
		return
	}
	if err := s.history.Clear(r.Context(), sessionID); err != nil {
		s.metrics.CollaboratorErrors.WithLabelValues("history").Inc()
		respondError(w, http.StatusInternalServerError, "clear_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"status":     "cleared",
	})
}

type feedbackRequest struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "session_id is required")
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		respondError(w, http.StatusBadRequest, "invalid_rating", "rating must be between 1 and 5")
		return
	}

	if err := s.records.SaveFeedback(r.Context(), records.Feedback{
		SessionID: req.SessionID,
		UserID:    req.UserID,
		Rating:    req.Rating,
		Comment:   req.Comment,
	}); err != nil {
		s.metrics.CollaboratorErrors.WithLabelValues("records").Inc()
		respondError(w, http.StatusInternalServerError, "feedback_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"status": "saved"})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
