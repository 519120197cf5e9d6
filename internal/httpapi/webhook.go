package httpapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vygeek/vybuddy/internal/bridge"
)

const signatureWindow = 5 * time.Minute

type bridgeEventEnvelope struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
	Event     struct {
		Type     string `json:"type"`
		Channel  string `json:"channel"`
		ThreadTS string `json:"thread_ts"`
		User     string `json:"user"`
		Text     string `json:"text"`
		Subtype  string `json:"subtype"`
		BotID    string `json:"bot_id"`
	} `json:"event"`
}

// handleBridgeEvents receives inbound workspace events. Signed requests
// only; bot echoes and non-thread messages are acknowledged and dropped, so
// the workspace does not retry them.
func (s *Server) handleBridgeEvents(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	defer r.Body.Close()

	if !s.verifySignature(r, body) {
		respondError(w, http.StatusUnauthorized, "invalid_signature", "signature verification failed")
		return
	}

	var envelope bridgeEventEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_event", err.Error())
		return
	}

	// Endpoint ownership handshake.
	if envelope.Type == "url_verification" {
		respondJSON(w, http.StatusOK, map[string]string{"challenge": envelope.Challenge})
		return
	}

	ev := envelope.Event
	if ev.BotID != "" || ev.Subtype == "bot_message" || ev.ThreadTS == "" || ev.Text == "" {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	handled, err := s.escalation.HandleBridgeReply(r.Context(), bridge.Event{
		Channel: ev.Channel,
		Thread:  ev.ThreadTS,
		UserID:  ev.User,
		Text:    ev.Text,
		Subtype: ev.Subtype,
	})
	if err != nil {
		s.metrics.CollaboratorErrors.WithLabelValues("escalation").Inc()
		s.logger.WithFields(logrus.Fields{"channel": ev.Channel, "error": err}).Error("bridge event handling failed")
		// Acknowledge anyway: retries would hit the same failure.
	}

	status := "ignored"
	if handled {
		status = "forwarded"
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": status})
}

// verifySignature checks the workspace HMAC: hex(hmac_sha256(secret,
// "v0:{timestamp}:{body}")) with a bounded timestamp window against replay.
// Unsigned deployments (empty secret) accept everything, for local use.
func (s *Server) verifySignature(r *http.Request, body []byte) bool {
	secret := s.cfg.SlackSigningSecret
	if secret == "" {
		return true
	}

	timestamp := r.Header.Get("X-Signature-Timestamp")
	signature := r.Header.Get("X-Signature")
	if timestamp == "" || signature == "" {
		return false
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	age := time.Since(time.Unix(ts, 0))
	if age > signatureWindow || age < -signatureWindow {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "v0:%s:%s", timestamp, body)
	expected := "v0=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
