package escalation

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vygeek/vybuddy/internal/bridge"
	"github.com/vygeek/vybuddy/internal/history"
	"github.com/vygeek/vybuddy/internal/observability"
	"github.com/vygeek/vybuddy/internal/records"
	"github.com/vygeek/vybuddy/internal/stream"
)

const (
	StatusOpen   = "open"
	StatusClosed = "closed"

	stateKey        = "human_support"
	threadKeyPrefix = "human_support_thread"
)

// State is the escalation record of one session. At most one open escalation
// exists per session; the (channel, thread) pair maps back to the session
// through a reverse index for the lifetime of the escalation.
type State struct {
	Status         string     `json:"status"`
	SessionID      string     `json:"session_id"`
	UserID         string     `json:"user_id"`
	UserName       string     `json:"user_name"`
	Channel        string     `json:"channel"`
	ThreadTS       string     `json:"thread_ts"`
	StartedAt      time.Time  `json:"started_at"`
	LastActivityAt time.Time  `json:"last_activity_at"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
}

// StartResult reports whether Start opened a new escalation or found one
// already running.
type StartResult struct {
	AlreadyActive bool
	State         State
}

// Service drives human handoff: it opens a thread in the support workspace,
// relays user messages into it, and routes human replies back to the
// session's live delivery channel.
type Service struct {
	bridge  bridge.Bridge
	store   history.Store
	records records.Store
	hub     *stream.Hub
	channel string
	ttl     time.Duration
	logger  *logrus.Logger
	metrics *observability.Metrics

	now func() time.Time
}

func NewService(b bridge.Bridge, store history.Store, rec records.Store, hub *stream.Hub,
	supportChannel string, ttl time.Duration, logger *logrus.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		bridge:  b,
		store:   store,
		records: rec,
		hub:     hub,
		channel: supportChannel,
		ttl:     ttl,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

func threadKey(channel, threadTS string) string {
	return fmt.Sprintf("%s:%s:%s", threadKeyPrefix, channel, threadTS)
}

// StateOf returns the session's escalation record, or nil when none exists.
func (s *Service) StateOf(ctx context.Context, sessionID string) (*State, error) {
	var state State
	found, err := s.store.GetValue(ctx, sessionID, stateKey, &state)
	if err != nil || !found {
		return nil, err
	}
	return &state, nil
}

// IsEscalated reports whether the session is currently handled by a human.
// Store failures degrade to false: the bot path keeps working.
func (s *Service) IsEscalated(ctx context.Context, sessionID string) bool {
	state, err := s.StateOf(ctx, sessionID)
	if err != nil {
		s.logger.WithFields(logrus.Fields{"session_id": sessionID, "error": err}).Error("escalation state read failed")
		return false
	}
	return state != nil && state.Status == StatusOpen
}

// Start opens an escalation. Idempotent: a second call on an open session
// reports AlreadyActive without opening a second thread.
func (s *Service) Start(ctx context.Context, sessionID, userID, userName, initialMessage string) (StartResult, error) {
	if s.channel == "" {
		return StartResult{}, fmt.Errorf("support channel is not configured")
	}
	if s.IsEscalated(ctx, sessionID) {
		s.logger.WithField("session_id", sessionID).Info("escalation already active")
		return StartResult{AlreadyActive: true}, nil
	}

	displayName := userName
	if displayName == "" {
		displayName = userID
	}

	notification := fmt.Sprintf(
		"🚨 *Nouvelle demande d'escalade VyBuddy*\n*Utilisateur* : %s\n*Email* : %s\n*Session* : `%s`\n*Message* : %s\n\n_Répondez dans ce fil pour parler avec la personne._",
		displayName, userID, sessionID, initialMessage)

	posted, err := s.bridge.Post(ctx, s.channel, notification, "")
	if err != nil {
		s.metrics.CollaboratorErrors.WithLabelValues("bridge").Inc()
		return StartResult{}, fmt.Errorf("post escalation notification: %w", err)
	}

	now := s.now().UTC()
	state := State{
		Status:         StatusOpen,
		SessionID:      sessionID,
		UserID:         userID,
		UserName:       displayName,
		Channel:        posted.Channel,
		ThreadTS:       posted.Thread,
		StartedAt:      now,
		LastActivityAt: now,
	}

	if err := s.store.SetValue(ctx, sessionID, stateKey, state, s.ttl); err != nil {
		return StartResult{}, fmt.Errorf("persist escalation state: %w", err)
	}
	if err := s.store.SetKey(ctx, threadKey(posted.Channel, posted.Thread), sessionID, s.ttl); err != nil {
		return StartResult{}, fmt.Errorf("persist thread index: %w", err)
	}

	s.metrics.EscalationEvents.WithLabelValues("started").Inc()
	s.logger.WithFields(logrus.Fields{
		"session_id": sessionID,
		"channel":    posted.Channel,
		"thread_ts":  posted.Thread,
	}).Info("escalation started")

	// First user message goes straight into the fresh thread. Best effort:
	// the escalation is already open either way.
	if _, err := s.bridge.Post(ctx, posted.Channel,
		fmt.Sprintf("*%s* : %s", displayName, initialMessage), posted.Thread); err != nil {
		s.logger.WithFields(logrus.Fields{"session_id": sessionID, "error": err}).Warn("initial message relay failed")
	}

	return StartResult{State: state}, nil
}

// ForwardUserMessage relays a user message into the open escalation thread.
// Returns false without error when the session is not escalated.
func (s *Service) ForwardUserMessage(ctx context.Context, sessionID, userID, userName, text string) (bool, error) {
	state, err := s.StateOf(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if state == nil || state.Status != StatusOpen {
		return false, nil
	}

	displayName := userName
	if displayName == "" {
		displayName = userID
	}
	if _, err := s.bridge.Post(ctx, state.Channel,
		fmt.Sprintf("*%s* : %s", displayName, text), state.ThreadTS); err != nil {
		s.metrics.CollaboratorErrors.WithLabelValues("bridge").Inc()
		return false, fmt.Errorf("relay user message: %w", err)
	}

	state.LastActivityAt = s.now().UTC()
	if err := s.store.SetValue(ctx, sessionID, stateKey, state, s.ttl); err != nil {
		s.logger.WithFields(logrus.Fields{"session_id": sessionID, "error": err}).Warn("activity refresh failed")
	}

	s.metrics.EscalationEvents.WithLabelValues("forwarded").Inc()
	return true, nil
}

// SessionByThread recovers which session a workspace thread belongs to.
func (s *Service) SessionByThread(ctx context.Context, channel, threadTS string) (string, error) {
	sessionID, found, err := s.store.GetKey(ctx, threadKey(channel, threadTS))
	if err != nil || !found {
		return "", err
	}
	return sessionID, nil
}

// HandleBridgeReply processes a human reply from the support workspace. The
// message is persisted as a human-typed transcript entry and pushed to the
// session's live channel as a terminal stream event, bypassing generation
// entirely. Returns false when the thread maps to no known session; such
// events are dropped, not fatal.
func (s *Service) HandleBridgeReply(ctx context.Context, ev bridge.Event) (bool, error) {
	sessionID, err := s.SessionByThread(ctx, ev.Channel, ev.Thread)
	if err != nil {
		return false, err
	}
	if sessionID == "" {
		s.logger.WithFields(logrus.Fields{"channel": ev.Channel, "thread_ts": ev.Thread}).Debug("bridge reply for unknown thread dropped")
		return false, nil
	}

	state, err := s.StateOf(ctx, sessionID)
	if err != nil || state == nil {
		return false, err
	}

	responderName := ev.UserID
	responderEmail := ""
	if info, err := s.bridge.LookupUser(ctx, ev.UserID); err == nil && info.Name != "" {
		responderName = info.Name
		responderEmail = info.Email
	}

	if err := s.records.SaveMessage(ctx, records.Message{
		SessionID: sessionID,
		UserID:    responderEmail,
		Type:      records.TypeHuman,
		Content:   ev.Text,
		Agent:     "human_support",
		Metadata: map[string]any{
			"channel":       ev.Channel,
			"thread_ts":     ev.Thread,
			"responder":     responderName,
			"responder_id":  ev.UserID,
			"human_support": true,
		},
	}); err != nil {
		s.logger.WithFields(logrus.Fields{"session_id": sessionID, "error": err}).Error("human reply persistence failed")
	}

	s.hub.Push(sessionID, stream.Event{
		Type:    stream.TypeEnd,
		Message: ev.Text,
		Agent:   "human_support",
		Metadata: map[string]any{
			"human_support": true,
			"responder":     responderName,
		},
	})

	state.LastActivityAt = s.now().UTC()
	if err := s.store.SetValue(ctx, sessionID, stateKey, state, s.ttl); err != nil {
		s.logger.WithFields(logrus.Fields{"session_id": sessionID, "error": err}).Warn("activity refresh failed")
	}

	s.metrics.EscalationEvents.WithLabelValues("human_reply").Inc()
	s.logger.WithFields(logrus.Fields{
		"session_id": sessionID,
		"responder":  responderName,
	}).Info("human reply forwarded to session")
	return true, nil
}

// Stop closes the escalation and removes the reverse index. No-op when the
// session has no escalation record.
func (s *Service) Stop(ctx context.Context, sessionID string) error {
	state, err := s.StateOf(ctx, sessionID)
	if err != nil || state == nil {
		return err
	}

	now := s.now().UTC()
	state.Status = StatusClosed
	state.ClosedAt = &now

	if err := s.store.SetValue(ctx, sessionID, stateKey, state, s.ttl); err != nil {
		return fmt.Errorf("persist closed state: %w", err)
	}
	if err := s.store.DeleteKey(ctx, threadKey(state.Channel, state.ThreadTS)); err != nil {
		s.logger.WithFields(logrus.Fields{"session_id": sessionID, "error": err}).Warn("thread index removal failed")
	}

	s.metrics.EscalationEvents.WithLabelValues("stopped").Inc()
	s.logger.WithField("session_id", sessionID).Info("escalation closed")
	return nil
}
