package tickets

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/vygeek/vybuddy/internal/history"
	"github.com/vygeek/vybuddy/internal/llm"
)

// Result is the validation verdict for one exchange.
type Result struct {
	ShouldCreate bool    `json:"should_create"`
	Reason       string  `json:"reason"`
	Confidence   float64 `json:"confidence"`
}

// Input is the full context the validator decides on.
type Input struct {
	Message   string
	Reply     string
	Agent     string
	History   []history.Turn
	Suggested bool
}

// Validator decides whether an exchange warrants opening a helpdesk ticket.
// The decision is an ordered cascade of deterministic rules; only when none
// of them fires conclusively does a backend arbitration call run. Rules 3
// and 4 exist to stop premature tickets while the agent is still collecting
// information, which makes this the most conservative path in the service.
type Validator struct {
	client llm.Client
	logger *logrus.Logger
}

func NewValidator(client llm.Client, logger *logrus.Logger) *Validator {
	return &Validator{client: client, logger: logger}
}

var (
	greetingExclusions = []string{"salutation", "bonjour", "hello", "hi"}

	contextExclusions = []string{
		"au revoir", "goodbye", "question simple", "information générale",
		"déjà résolu", "problème résolu", "ça fonctionne", "c'est bon", "ok",
	}

	technicalKeywords = []string{"wifi", "réseau", "connexion", "problème", "erreur", "bug"}

	questionIndicators = []string{
		"?", "pouvez-vous", "pourriez-vous", "auriez-vous", "avez-vous", "j'aurais besoin",
		"quel est", "quelle est", "quels sont", "quelles sont", "comment", "où", "quand",
		"pouvez vous", "pourriez vous", "auriez vous", "avez vous",
		"me donner", "me dire", "me confirmer", "me préciser", "me renseigner", "me fournir",
	}

	actionIndicators = []string{
		"je m'occupe", "je vais créer", "je vais faire", "je crée", "je fais",
		"création", "créer", "faire", "je vous confirme", "je confirme",
		"notre équipe", "l'équipe va", "on va créer", "on va faire",
		"un ticket va être créé", "ticket sera créé", "ticket va être créé",
		"notre équipe s'en occupe", "parfait", "super", "c'est noté", "merci",
	}

	humanInterventionKeywords = []string{
		"créer", "boucle", "adresse email", "compte", "accès", "licence",
		"installation", "logiciel", "ticket",
	}

	arbitrationJSONPattern = regexp.MustCompile(`(?s)\{[^{}]*"should_create"[^{}]*\}`)
)

// ShouldCreate runs the cascade. Deterministic for a given input except for
// the final arbitration call, and never returns an error: arbitration
// failures degrade to a conservative default.
func (v *Validator) ShouldCreate(ctx context.Context, in Input) Result {
	messageLower := strings.ToLower(in.Message)
	replyLower := strings.ToLower(in.Reply)

	// Rule 1: trivial greetings and closed conversations.
	if r, ok := v.checkExclusions(messageLower, replyLower, in.Message); ok {
		return r
	}

	// Rule 2: too short to carry a request, and not technical.
	if len(strings.Fields(in.Message)) <= 3 && !containsAny(messageLower, technicalKeywords) {
		return Result{Reason: "Message trop court et non technique", Confidence: 0.8}
	}

	// Rule 3: a detected request archetype with missing required fields
	// blocks ticket creation regardless of any other signal.
	label := detectArchetype(in.Message, in.History)
	var missing []string
	if label != "" {
		missing = missingFields(label, in.Message, in.Reply, in.History)
		if len(missing) > 0 {
			return Result{
				Reason:     fmt.Sprintf("Informations manquantes pour cette demande: %s", strings.Join(missing, ", ")),
				Confidence: 0.92,
			}
		}
	}

	asking := containsAny(replyLower, questionIndicators)
	acting := containsAny(replyLower, actionIndicators)

	// Rule 4: the agent is still gathering information.
	if asking && !acting {
		return Result{
			Reason:     "L'agent pose encore des questions pour obtenir les informations nécessaires",
			Confidence: 0.95,
		}
	}

	// Rule 5: the agent committed to an action that needs a human.
	if acting && !asking &&
		(containsAny(replyLower, humanInterventionKeywords) || containsAny(messageLower, humanInterventionKeywords)) {
		if label != "" {
			return Result{
				ShouldCreate: true,
				Reason:       fmt.Sprintf("Toutes les informations nécessaires sont collectées (%s)", label),
				Confidence:   0.95,
			}
		}
		return Result{
			ShouldCreate: true,
			Reason:       "L'agent confirme une action nécessitant une intervention humaine",
			Confidence:   0.9,
		}
	}

	// Rule 6: arbitration by the generation backend.
	return v.arbitrate(ctx, in, label)
}

func (v *Validator) checkExclusions(messageLower, replyLower, message string) (Result, bool) {
	for _, kw := range greetingExclusions {
		if (strings.Contains(messageLower, kw) || strings.Contains(replyLower, kw)) &&
			len(strings.Fields(message)) <= 2 {
			return Result{Reason: "Message exclu: " + kw, Confidence: 0.9}, true
		}
	}
	for _, kw := range contextExclusions {
		if strings.Contains(messageLower, kw) || strings.Contains(replyLower, kw) {
			// An agent already committed to an action overrides the closure
			// signal ("c'est bon, je vais créer le ticket").
			if !containsAny(replyLower, actionIndicators) {
				return Result{Reason: "Message exclu: " + kw, Confidence: 0.9}, true
			}
		}
	}
	return Result{}, false
}

func (v *Validator) arbitrate(ctx context.Context, in Input, label string) Result {
	raw, err := v.client.Complete(ctx, llm.Request{
		Backend: llm.BackendOpenAI,
		Prompt:  buildArbitrationPrompt(in, label),
	})
	if err != nil {
		return v.conservative(in, err)
	}

	match := arbitrationJSONPattern.FindString(raw)
	if match == "" {
		match = raw
	}
	var r Result
	if err := json.Unmarshal([]byte(match), &r); err != nil {
		return v.conservative(in, err)
	}
	if r.Reason == "" {
		r.Reason = "Évaluation par arbitrage"
	}
	if r.Confidence < 0 {
		r.Confidence = 0
	}
	if r.Confidence > 1 {
		r.Confidence = 1
	}

	v.logger.WithFields(logrus.Fields{
		"should_create": r.ShouldCreate,
		"confidence":    r.Confidence,
		"agent":         in.Agent,
	}).Info("ticket arbitration result")
	return r
}

// conservative is the last-resort default: only create when the agent itself
// suggested a ticket and the message carries enough substance.
func (v *Validator) conservative(in Input, cause error) Result {
	v.logger.WithFields(logrus.Fields{"agent": in.Agent, "error": cause}).Warn("ticket arbitration failed")
	return Result{
		ShouldCreate: in.Suggested && len(strings.Fields(in.Message)) > 5,
		Reason:       "Arbitrage indisponible, décision conservatrice basée sur la suggestion de l'agent",
		Confidence:   0.5,
	}
}

func buildArbitrationPrompt(in Input, label string) string {
	var b strings.Builder
	b.WriteString("Vous êtes un validateur de tickets de support IT. Déterminez si un ticket doit être créé dans le helpdesk.\n")

	if label != "" {
		fmt.Fprintf(&b, "\nTYPE DE DEMANDE DÉTECTÉ: %s (informations requises présentes)\n", label)
	}

	b.WriteString(`
Règles de validation:
1. Créer un ticket si l'agent confirme qu'il va créer/faire quelque chose nécessitant une intervention humaine (compte, boucle email, accès, licence, installation), si l'utilisateur demande explicitement un ticket, ou si le problème persiste après diagnostic.
2. NE PAS créer de ticket si le problème est résolu, s'il s'agit d'une simple question d'information, ou si l'agent pose encore des questions pour collecter des informations.
`)

	fmt.Fprintf(&b, "\nMessage utilisateur: %s\n\nRéponse de l'agent (%s): %s\n\nHistorique récent:\n%s\n\nL'agent a-t-il suggéré un ticket? %t\n",
		in.Message, in.Agent, in.Reply, historyContext(in.History), in.Suggested)

	b.WriteString(`
Répondez UNIQUEMENT au format JSON:
{"should_create": true/false, "reason": "explication", "confidence": 0.0-1.0}`)
	return b.String()
}

func historyContext(turns []history.Turn) string {
	chrono := history.Chronological(turns)
	if len(chrono) > 5 {
		chrono = chrono[len(chrono)-5:]
	}
	if len(chrono) == 0 {
		return "Aucun historique"
	}
	parts := make([]string, 0, len(chrono))
	for _, t := range chrono {
		parts = append(parts, fmt.Sprintf("User: %s\nBot: %s", t.User, t.Bot))
	}
	return strings.Join(parts, "\n")
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
