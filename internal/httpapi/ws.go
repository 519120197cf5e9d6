package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/vygeek/vybuddy/internal/orchestrator"
	"github.com/vygeek/vybuddy/internal/stream"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsReadLimit    = 1 << 20
)

// wsSink adapts one websocket connection to the delivery channel interface.
// Writes are serialized: the per-session processing loop and the bridge
// reply path both push into the same connection.
type wsSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSink) Send(event stream.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return s.conn.WriteJSON(event)
}

type wsInbound struct {
	Message  string `json:"message"`
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
}

// handleSessionWS runs the persistent chat channel. Messages on one
// connection are processed strictly in order: the read loop does not pick up
// the next message until the previous exchange has been delivered, which
// serializes history writes per session.
func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(chi.URLParam(r, "sessionID"))
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "session id is required")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sink := &wsSink{conn: conn}
	if replaced := s.hub.Register(sessionID, sink); replaced != nil {
		if old, ok := replaced.(*wsSink); ok {
			_ = old.conn.Close()
		}
	}
	defer s.hub.Unregister(sessionID, sink)

	s.logger.WithField("session_id", sessionID).Info("websocket connected")

	conn.SetReadLimit(wsReadLimit)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		s.metrics.WSMessages.WithLabelValues("inbound").Inc()

		var in wsInbound
		if err := json.Unmarshal(data, &in); err != nil || strings.TrimSpace(in.Message) == "" {
			_ = sink.Send(stream.Event{
				Type:    stream.TypeError,
				Message: "Message invalide. Envoyez un objet JSON avec un champ \"message\".",
			})
			continue
		}
		if strings.TrimSpace(in.UserID) == "" {
			in.UserID = "anonymous"
		}

		result := s.processor.ProcessRequest(r.Context(), orchestrator.Request{
			Message:   in.Message,
			SessionID: sessionID,
			UserID:    in.UserID,
			UserName:  in.UserName,
		})

		// The turn is already persisted; delivery failures only mean the
		// client is gone.
		s.deliverer.Deliver(r.Context(), sink, result.Message, result.Agent, result.Metadata)
		s.metrics.WSMessages.WithLabelValues("outbound").Inc()
	}

	s.logger.WithField("session_id", sessionID).Info("websocket disconnected")
}
