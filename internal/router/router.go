package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/vygeek/vybuddy/internal/history"
	"github.com/vygeek/vybuddy/internal/llm"
)

// Decision selects the domain handler and generation backend for one message.
type Decision struct {
	Intent     string      `json:"intent"`
	Backend    llm.Backend `json:"llm"`
	Agent      string      `json:"agent"`
	Confidence float64     `json:"confidence"`

	// Source reports whether the decision came from the classifier or the
	// keyword fallback. Not part of the wire shape.
	Source string `json:"-"`
}

const (
	SourceLLM      = "llm"
	SourceFallback = "fallback"
)

// The closed set of domain handlers. Anything else is remapped to knowledge.
const (
	AgentNetwork   = "network"
	AgentMacOS     = "macos"
	AgentWorkspace = "workspace"
	AgentKnowledge = "knowledge"
)

var knownAgents = map[string]bool{
	AgentNetwork:   true,
	AgentMacOS:     true,
	AgentWorkspace: true,
	AgentKnowledge: true,
}

var errUnparseableDecision = errors.New("classifier output is not a routing decision")

var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*?\}`)

// Router classifies inbound messages into a domain and backend choice.
type Router struct {
	client llm.Client
	logger *logrus.Logger
}

func New(client llm.Client, logger *logrus.Logger) *Router {
	return &Router{client: client, logger: logger}
}

/// Route never fails: a classifier error or unparseable output falls back to
// the keyword table, which always yields a decision.
func (r *Router) Route(ctx context.Context, message string, recent []history.Turn) Decision {
	decision, err := r.classify(ctx, message, recent)
	if err != nil {
		r.logger.WithFields(logrus.Fields{"error": err}).Warn("classifier routing failed, using keyword fallback")
		decision = fallbackRoute(message)
	}
	return sanitize(decision)
}

func (r *Router) classify(ctx context.Context, message string, recent []history.Turn) (Decision, error) {
	prompt := buildClassifierPrompt(message, recent)

	raw, err := r.client.Complete(ctx, llm.Request{Backend: llm.BackendOpenAI, Prompt: prompt})
	if err != nil {
		return Decision{}, fmt.Errorf("classifier call: %w", err)
	}

	match := jsonObjectPattern.FindString(raw)
	if match == "" {
		return Decision{}, errUnparseableDecision
	}

	var decision Decision
	if err := json.Unmarshal([]byte(match), &decision); err != nil {
		return Decision{}, fmt.Errorf("%w: %v", errUnparseableDecision, err)
	}
	if strings.TrimSpace(decision.Agent) == "" {
		return Decision{}, errUnparseableDecision
	}
	decision.Source = SourceLLM
	return decision, nil
}

func buildClassifierPrompt(message string, recent []history.Turn) string {
	var historyContext strings.Builder
	chrono := history.Chronological(recent)
	if len(chrono) > 5 {
		chrono = chrono[len(chrono)-5:]
	}
	for _, t := range chrono {
		fmt.Fprintf(&historyContext, "User: %s\nBot: %s\n", t.User, t.Bot)
	}
	ctx := historyContext.String()
	if ctx == "" {
		ctx = "Aucun historique"
	}

	return fmt.Sprintf(`Analysez l'intention de l'utilisateur d'un support IT interne et déterminez:
1. Le type de problème (wifi, macos, workspace, knowledge, autre)
2. Le backend de génération le plus adapté (openai, anthropic, gemini)
3. L'agent spécialisé à utiliser

Règles de routage:
- Problèmes WiFi/Réseau -> agent network avec anthropic
- Problèmes MacOS -> agent macos avec openai
- Problèmes Google Workspace -> agent workspace avec gemini
- Problèmes Timesheet (application web, PAS un problème MacBook) -> agent knowledge avec anthropic
- Questions procédures/connaissances -> agent knowledge avec anthropic
- Autres -> agent knowledge avec openai

Message utilisateur: %s

Historique récent:
%s

Répondez au format JSON:
{"intent": "wifi|macos|workspace|knowledge|other", "llm": "openai|anthropic|gemini", "agent": "network|macos|workspace|knowledge", "confidence": 0.0-1.0}`, message, ctx)
}

// sanitize enforces the hard fallback invariant: every decision names one of
// the four domain handlers, with a confidence inside [0,1].
func sanitize(d Decision) Decision {
	d.Agent = strings.ToLower(strings.TrimSpace(d.Agent))
	if !knownAgents[d.Agent] {
		d.Agent = AgentKnowledge
	}
	d.Backend = llm.NormalizeBackend(string(d.Backend))
	if d.Intent == "" {
		d.Intent = "other"
	}
	if d.Confidence < 0 {
		d.Confidence = 0
	}
	if d.Confidence > 1 {
		d.Confidence = 1
	}
	return d
}
