package stream

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/vygeek/vybuddy/internal/observability"
)

// Hub tracks the live delivery channel of each session. A session has at
// most one sink; a new registration replaces the previous one so a page
// reload does not leave a stale connection receiving events.
type Hub struct {
	mu      sync.RWMutex
	sinks   map[string]Sink
	logger  *logrus.Logger
	metrics *observability.Metrics
}

func NewHub(logger *logrus.Logger, metrics *observability.Metrics) *Hub {
	return &Hub{
		sinks:   make(map[string]Sink),
		logger:  logger,
		metrics: metrics,
	}
}

// Register installs the sink for a session and returns the sink it replaced,
// if any, so the caller can close the underlying connection.
func (h *Hub) Register(sessionID string, sink Sink) (replaced Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	replaced = h.sinks[sessionID]
	h.sinks[sessionID] = sink
	if replaced == nil {
		h.metrics.ActiveStreams.Inc()
	} else {
		h.logger.WithField("session_id", sessionID).Info("replaced existing delivery channel")
	}
	return replaced
}

// Unregister removes the sink only if it is still the session's current one,
// so a replaced connection's deferred cleanup cannot evict its successor.
func (h *Hub) Unregister(sessionID string, sink Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sinks[sessionID] != sink {
		return
	}
	delete(h.sinks, sessionID)
	h.metrics.ActiveStreams.Dec()
}

// Sink returns the session's live channel, or nil when none is connected.
func (h *Hub) Sink(sessionID string) Sink {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sinks[sessionID]
}

// Push sends one event to the session's live channel. Returns false when the
// session has no channel or the send failed; both are non-fatal.
func (h *Hub) Push(sessionID string, event Event) bool {
	sink := h.Sink(sessionID)
	if sink == nil {
		return false
	}
	if err := sink.Send(event); err != nil {
		h.logger.WithFields(logrus.Fields{
			"session_id": sessionID,
			"error":      err,
		}).Debug("push to delivery channel failed")
		return false
	}
	h.metrics.StreamEvents.WithLabelValues(event.Type).Inc()
	return true
}
