package agents

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/vygeek/vybuddy/internal/history"
	"github.com/vygeek/vybuddy/internal/knowledge"
	"github.com/vygeek/vybuddy/internal/llm"
)

// Request carries one inbound message into a domain handler.
type Request struct {
	Message   string
	SessionID string
	UserID    string
	History   []history.Turn
	Backend   llm.Backend
	OnToken   llm.DeltaHandler
}

// Response is a domain handler's reply. NeedsTicket is derived from the
// marker the generation prompt asks for, stripped from the visible text.
type Response struct {
	Message     string
	NeedsTicket bool
	Agent       string
}

// Agent is one of the four interchangeable domain handlers.
type Agent interface {
	Name() string
	Process(ctx context.Context, req Request) (Response, error)
}

const historyContextTurns = 5

var ticketMarkerPattern = regexp.MustCompile(`(?i)needs_ticket:\s*true`)

var ticketSignals = []string{
	"needs_ticket: true",
	"créer un ticket",
	"ticket sera créé",
}

// domainAgent is the shared implementation behind all four handlers: build
// the domain instruction set, augment with retrieved documents, call the
// chosen backend, and derive the ticket suggestion from the raw reply.
type domainAgent struct {
	name         string
	systemPrompt string
	apology      string
	topK         int
	client       llm.Client
	searcher     knowledge.Searcher
	logger       *logrus.Logger
}

// Deps groups the collaborators shared by every domain handler.
type Deps struct {
	Client   llm.Client
	Searcher knowledge.Searcher
	TopK     int
	Logger   *logrus.Logger
}

func (a *domainAgent) Name() string { return a.name }

func (a *domainAgent) Process(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	prompt := a.buildPrompt(ctx, req)

	raw, err := a.generate(ctx, llm.Request{
		Backend: req.Backend,
		System:  a.systemPrompt,
		Prompt:  prompt,
	}, req.OnToken)
	if err != nil {
		// Backend failures never escape a handler: the user gets a fixed
		// apology and the ticket path takes over.
		a.logger.WithFields(logrus.Fields{
			"agent":      a.name,
			"session_id": req.SessionID,
			"error":      err,
		}).Error("generation backend failed")
		return Response{Message: a.apology, NeedsTicket: true, Agent: a.name}, nil
	}

	text, needsTicket := extractTicketSuggestion(raw)

	a.logger.WithFields(logrus.Fields{
		"agent":        a.name,
		"session_id":   req.SessionID,
		"needs_ticket": needsTicket,
	}).Info("domain agent response")

	return Response{Message: text, NeedsTicket: needsTicket, Agent: a.name}, nil
}

func (a *domainAgent) generate(ctx context.Context, req llm.Request, onToken llm.DeltaHandler) (string, error) {
	if onToken != nil {
		if streamer, ok := a.client.(llm.Streamer); ok {
			return streamer.Stream(ctx, req, onToken)
		}
	}
	return a.client.Complete(ctx, req)
}

func (a *domainAgent) buildPrompt(ctx context.Context, req Request) string {
	conversation := buildConversationContext(req.History)
	if conversation == "" {
		conversation = "Aucun historique"
	}

	knowledgeContext := a.searchKnowledge(ctx, req.Message)
	if knowledgeContext == "" {
		knowledgeContext = "Aucune documentation spécifique trouvée."
	}

	return fmt.Sprintf(`Contexte de la conversation:
%s

Base de connaissances pertinente:
%s

Message actuel de l'utilisateur: %s

Répondez de manière chaleureuse, personnelle et concise (2-4 phrases). Si vous avez besoin d'informations, posez UNE seule question à la fois. Si le problème nécessite une intervention humaine ou persiste après diagnostic, proposez gentiment de créer un ticket et terminez par "needs_ticket: true".`,
		conversation, knowledgeContext, req.Message)
}

// searchKnowledge is best effort: a vector store failure degrades to an
// answer without retrieved documents.
func (a *domainAgent) searchKnowledge(ctx context.Context, query string) string {
	docs, err := a.searcher.Search(ctx, query, a.topK)
	if err != nil {
		a.logger.WithFields(logrus.Fields{"agent": a.name, "error": err}).Warn("knowledge search failed")
		return ""
	}
	return knowledge.Context(docs)
}

func buildConversationContext(turns []history.Turn) string {
	chrono := history.Chronological(turns)
	if len(chrono) > historyContextTurns {
		chrono = chrono[len(chrono)-historyContextTurns:]
	}
	parts := make([]string, 0, len(chrono))
	for _, t := range chrono {
		parts = append(parts, fmt.Sprintf("Utilisateur: %s\nAssistant: %s", t.User, t.Bot))
	}
	return strings.Join(parts, "\n")
}

// extractTicketSuggestion scans the raw reply for the ticket marker, then
// removes the marker so it never reaches the user.
func extractTicketSuggestion(raw string) (text string, needsTicket bool) {
	lower := strings.ToLower(raw)
	for _, signal := range ticketSignals {
		if strings.Contains(lower, signal) {
			needsTicket = true
			break
		}
	}
	text = strings.TrimSpace(ticketMarkerPattern.ReplaceAllString(raw, ""))
	return text, needsTicket
}
