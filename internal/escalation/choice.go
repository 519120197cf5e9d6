package escalation

import (
	"context"
	"strings"
	"time"

	"github.com/vygeek/vybuddy/internal/history"
)

const pendingChoiceKey = "pending_choice"

// PendingChoice is the withheld exchange saved while the user decides
// between human handoff and ticket creation.
type PendingChoice struct {
	OriginalMessage string `json:"original_message"`
	AgentResponse   string `json:"agent_response"`
	AgentName       string `json:"agent_name"`
}

// Choice is the parse of the user's answer to the handoff prompt.
type Choice int

const (
	ChoiceUnrecognized Choice = iota
	ChoiceHuman
	ChoiceTicket
)

// Keyword tables for parsing the user's answer. Configuration data: extend
// the lists, don't special-case the matching.
var (
	humanChoiceKeywords = []string{
		"humain", "human", "personne", "collègue", "collegue", "quelqu'un",
		"parler à", "parler a", "parler avec", "équipe", "equipe", "vraie personne",
		"support humain", "un agent",
	}

	ticketChoiceKeywords = []string{
		"ticket", "odoo", "créer le ticket", "creer le ticket", "ouvrir un ticket",
	}

	complexityPhrases = []string{
		"complexe", "compliqué", "persiste", "toujours pas", "malgré",
		"plusieurs tentatives", "rien ne fonctionne", "rien n'a fonctionné",
		"épuisé", "après diagnostic", "depuis plusieurs",
	}
)

// ParseChoice classifies the user's answer. Human wins on ambiguity:
// handing off to a person is the safer misread of "je veux parler à
// quelqu'un du ticket".
func ParseChoice(text string) Choice {
	lower := strings.ToLower(text)
	for _, kw := range humanChoiceKeywords {
		if strings.Contains(lower, kw) {
			return ChoiceHuman
		}
	}
	for _, kw := range ticketChoiceKeywords {
		if strings.Contains(lower, kw) {
			return ChoiceTicket
		}
	}
	return ChoiceUnrecognized
}

// IsLongDiagnostic reports whether the conversation has gone on long enough
// that a ticket suggestion should become an explicit human-vs-ticket choice:
// at least 3 prior turns, or at least 2 prior bot turns asking questions, or
// a reply signalling complexity.
func IsLongDiagnostic(turns []history.Turn, reply string) bool {
	if len(turns) >= 3 {
		return true
	}

	questions := 0
	for _, t := range turns {
		if strings.Contains(t.Bot, "?") {
			questions++
		}
	}
	if questions >= 2 {
		return true
	}

	replyLower := strings.ToLower(reply)
	for _, phrase := range complexityPhrases {
		if strings.Contains(replyLower, phrase) {
			return true
		}
	}
	return false
}

// SetPendingChoice stores the withheld exchange until the user answers or
// the TTL lapses.
func (s *Service) SetPendingChoice(ctx context.Context, sessionID string, choice PendingChoice, ttl time.Duration) error {
	return s.store.SetValue(ctx, sessionID, pendingChoiceKey, choice, ttl)
}

// PendingChoiceOf returns the stored choice, or nil when none is pending.
func (s *Service) PendingChoiceOf(ctx context.Context, sessionID string) (*PendingChoice, error) {
	var pc PendingChoice
	found, err := s.store.GetValue(ctx, sessionID, pendingChoiceKey, &pc)
	if err != nil || !found {
		return nil, err
	}
	return &pc, nil
}

// ClearPendingChoice consumes the stored choice.
func (s *Service) ClearPendingChoice(ctx context.Context, sessionID string) error {
	return s.store.DeleteValue(ctx, sessionID, pendingChoiceKey)
}
