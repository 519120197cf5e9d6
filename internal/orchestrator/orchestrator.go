package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vygeek/vybuddy/internal/escalation"
	"github.com/vygeek/vybuddy/internal/history"
	"github.com/vygeek/vybuddy/internal/llm"
	"github.com/vygeek/vybuddy/internal/observability"
	"github.com/vygeek/vybuddy/internal/policy"
	"github.com/vygeek/vybuddy/internal/records"
	"github.com/vygeek/vybuddy/internal/router"
)

const technicalDifficultyReply = "Je rencontre un petit problème technique de mon côté. Pouvez-vous réessayer dans quelques instants ? Si le problème persiste, n'hésitez pas à créer un nouveau chat ou à contacter le support directement."

const choicePrompt = `Je vois que nous avons passé un moment sur ce problème. Deux options s'offrent à vous :
1. Parler directement à un collègue de l'équipe support (répondez "collègue" ou "humain")
2. Créer un ticket pour un suivi par notre équipe (répondez "ticket")

Que préférez-vous ?`

// Request is one inbound user message.
type Request struct {
	Message   string
	SessionID string
	UserID    string
	UserName  string
	OnToken   llm.DeltaHandler
}

// Result is the reply handed back to the transport layer for delivery.
type Result struct {
	Message  string         `json:"message"`
	Agent    string         `json:"agent"`
	Metadata map[string]any `json:"metadata"`
}

// Orchestrator is the single entry point behind every transport: it runs the
// short-circuits, the escalation and pending-choice gates, the router, the
// pipeline, and the long-diagnostic gate, then persists the exchange.
type Orchestrator struct {
	router           *router.Router
	pipeline         *Pipeline
	historyStore     history.Store
	recordsStore     records.Store
	escalation       *escalation.Service
	historyReadLimit int
	pendingChoiceTTL time.Duration
	logger           *logrus.Logger
	metrics          *observability.Metrics
}

func New(rt *router.Router, pipeline *Pipeline, historyStore history.Store, recordsStore records.Store,
	esc *escalation.Service, historyReadLimit int, pendingChoiceTTL time.Duration,
	logger *logrus.Logger, metrics *observability.Metrics) *Orchestrator {
	return &Orchestrator{
		router:           rt,
		pipeline:         pipeline,
		historyStore:     historyStore,
		recordsStore:     recordsStore,
		escalation:       esc,
		historyReadLimit: historyReadLimit,
		pendingChoiceTTL: pendingChoiceTTL,
		logger:           logger,
		metrics:          metrics,
	}
}

// ProcessRequest handles one message end to end. It never returns an error:
// anything escaping the inner handlers becomes a fixed technical-difficulty
// reply under the "system" label, and the session's processing loop lives on.
func (o *Orchestrator) ProcessRequest(ctx context.Context, req Request) (result Result) {
	started := time.Now()
	defer func() {
		o.metrics.ObserveRequestLatency(time.Since(started))
		if r := recover(); r != nil {
			o.logger.WithFields(logrus.Fields{
				"session_id": req.SessionID,
				"panic":      r,
			}).Error("orchestration panic")
			result = Result{
				Message:  technicalDifficultyReply,
				Agent:    "system",
				Metadata: map[string]any{"error": fmt.Sprint(r)},
			}
		}
	}()

	if reply, ok := checkIdentity(req.Message); ok {
		return o.finish(ctx, req, reply, "system", map[string]any{"type": "identity"})
	}
	if reply, ok := checkGreeting(req.Message); ok {
		return o.finish(ctx, req, reply, "system", map[string]any{"type": "greeting"})
	}

	// An escalated session belongs to a human: relay and stay out of the way.
	if o.escalation.IsEscalated(ctx, req.SessionID) {
		return o.relayToHuman(ctx, req)
	}

	if pc, err := o.escalation.PendingChoiceOf(ctx, req.SessionID); err == nil && pc != nil {
		return o.resolveChoice(ctx, req, *pc)
	} else if err != nil {
		o.logger.WithFields(logrus.Fields{"session_id": req.SessionID, "error": err}).Error("pending choice read failed")
	}

	turns, err := o.historyStore.History(ctx, req.SessionID, o.historyReadLimit)
	if err != nil {
		o.metrics.CollaboratorErrors.WithLabelValues("history").Inc()
		o.logger.WithFields(logrus.Fields{"session_id": req.SessionID, "error": err}).Error("history read failed")
		turns = nil
	}

	decision := o.router.Route(ctx, req.Message, turns)
	o.metrics.RoutingDecisions.WithLabelValues(decision.Agent, decision.Source).Inc()
	o.logger.WithFields(logrus.Fields{
		"session_id": req.SessionID,
		"intent":     decision.Intent,
		"backend":    decision.Backend,
		"agent":      decision.Agent,
	}).Info("routing decision")

	out := o.pipeline.Run(ctx, PipelineInput{
		Message:   req.Message,
		SessionID: req.SessionID,
		UserID:    req.UserID,
		History:   turns,
		Decision:  decision,
		OnToken:   req.OnToken,
	})

	// Long-diagnostic gate: a suggested-but-uncreated ticket on a long
	// conversation becomes an explicit human-vs-ticket choice.
	if out.TicketSuggested && !out.TicketCreated && escalation.IsLongDiagnostic(turns, out.Message) {
		if err := o.escalation.SetPendingChoice(ctx, req.SessionID, escalation.PendingChoice{
			OriginalMessage: req.Message,
			AgentResponse:   out.Message,
			AgentName:       out.Agent,
		}, o.pendingChoiceTTL); err != nil {
			o.logger.WithFields(logrus.Fields{"session_id": req.SessionID, "error": err}).Error("pending choice store failed")
		} else {
			return o.finish(ctx, req, choicePrompt, out.Agent, map[string]any{"pending_choice": true})
		}
	}

	metadata := map[string]any{"needs_ticket": out.TicketSuggested}
	if out.TicketCreated {
		metadata["ticket_created"] = true
		metadata["ticket_id"] = out.TicketID
	}
	return o.finish(ctx, req, out.Message, out.Agent, metadata)
}

// relayToHuman forwards the message into the escalation thread and confirms
// to the user without generating anything.
func (o *Orchestrator) relayToHuman(ctx context.Context, req Request) Result {
	forwarded, err := o.escalation.ForwardUserMessage(ctx, req.SessionID, req.UserID, req.UserName, req.Message)
	if err != nil {
		o.logger.WithFields(logrus.Fields{"session_id": req.SessionID, "error": err}).Error("escalation relay failed")
	}
	if !forwarded {
		// State changed under us (TTL expiry between the check and the
		// relay): fall back to a fresh bot exchange next message.
		return Result{
			Message:  technicalDifficultyReply,
			Agent:    "system",
			Metadata: map[string]any{"human_support": true},
		}
	}

	o.saveRecord(ctx, req, records.TypeUser, req.Message, "", map[string]any{"human_support": true})
	return Result{
		Message:  "Votre message a été transmis à notre équipe support. Un collègue vous répondra dans cette conversation.",
		Agent:    "human_support",
		Metadata: map[string]any{"human_support": true, "forwarded": true},
	}
}

// resolveChoice handles the user's answer to the human-vs-ticket prompt.
// Human handoff wins on ambiguity; an unrecognized answer re-prompts and
// leaves the pending state in place.
func (o *Orchestrator) resolveChoice(ctx context.Context, req Request, pc escalation.PendingChoice) Result {
	switch escalation.ParseChoice(req.Message) {
	case escalation.ChoiceHuman:
		o.clearChoice(ctx, req.SessionID)
		res, err := o.escalation.Start(ctx, req.SessionID, req.UserID, req.UserName, pc.OriginalMessage)
		if err != nil {
			o.logger.WithFields(logrus.Fields{"session_id": req.SessionID, "error": err}).Error("escalation start failed")
			return o.finish(ctx, req,
				"Je n'ai pas réussi à joindre l'équipe support pour le moment. Souhaitez-vous que je crée un ticket à la place ?",
				"system", map[string]any{"human_support": false})
		}
		reply := "C'est noté ! J'ai transmis votre demande à un collègue de l'équipe support. Il vous répondra directement dans cette conversation."
		if res.AlreadyActive {
			reply = "Un collègue de l'équipe support suit déjà cette conversation. Vous pouvez continuer à écrire ici."
		}
		return o.finish(ctx, req, reply, "system", map[string]any{"human_support": true})

	case escalation.ChoiceTicket:
		o.clearChoice(ctx, req.SessionID)
		return o.forceTicket(ctx, req, pc)

	default:
		// Not consumed: the next message gets another chance.
		return o.finish(ctx, req,
			"Je n'ai pas compris votre choix. Répondez \"collègue\" pour parler à quelqu'un de l'équipe support, ou \"ticket\" pour créer un ticket de suivi.",
			"system", map[string]any{"pending_choice": true})
	}
}

// forceTicket creates a ticket from the stored exchange, bypassing the
// validator: the user explicitly asked for it.
func (o *Orchestrator) forceTicket(ctx context.Context, req Request, pc escalation.PendingChoice) Result {
	turns, err := o.historyStore.History(ctx, req.SessionID, o.historyReadLimit)
	if err != nil {
		turns = nil
	}

	ticket, err := o.pipeline.createTicket(ctx, PipelineInput{
		Message:   pc.OriginalMessage,
		SessionID: req.SessionID,
		UserID:    req.UserID,
		History:   turns,
	}, pc.AgentName)
	if err != nil {
		o.metrics.TicketsCreated.WithLabelValues("failed").Inc()
		o.logger.WithFields(logrus.Fields{"session_id": req.SessionID, "error": err}).Error("forced ticket creation failed")
		return o.finish(ctx, req,
			"Une erreur est survenue lors de la création du ticket. Veuillez contacter le support directement.",
			"system", map[string]any{"ticket_created": false})
	}

	o.metrics.TicketsCreated.WithLabelValues("created").Inc()
	reply := fmt.Sprintf("C'est fait ! Un ticket a été créé (ID: %d). Notre équipe va vous contacter prochainement.", ticket.ID)
	return o.finish(ctx, req, reply, pc.AgentName, map[string]any{
		"ticket_created": true,
		"ticket_id":      ticket.ID,
	})
}

// finish persists the exchange and assembles the result. Persistence
// failures are logged, never surfaced: the user still gets the reply.
func (o *Orchestrator) finish(ctx context.Context, req Request, reply, agent string, metadata map[string]any) Result {
	if err := o.historyStore.Append(ctx, req.SessionID, history.Turn{User: req.Message, Bot: reply}); err != nil {
		o.metrics.CollaboratorErrors.WithLabelValues("history").Inc()
		o.logger.WithFields(logrus.Fields{"session_id": req.SessionID, "error": err}).Error("history append failed")
	}

	o.saveRecord(ctx, req, records.TypeUser, req.Message, "", nil)
	o.saveRecord(ctx, req, records.TypeBot, reply, agent, metadata)

	return Result{Message: reply, Agent: agent, Metadata: metadata}
}

func (o *Orchestrator) saveRecord(ctx context.Context, req Request, msgType, content, agent string, metadata map[string]any) {
	redacted, changed := policy.RedactPII(content)
	if changed {
		if metadata == nil {
			metadata = map[string]any{}
		}
		metadata["redacted"] = true
	}
	if err := o.recordsStore.SaveMessage(ctx, records.Message{
		SessionID: req.SessionID,
		UserID:    req.UserID,
		Type:      msgType,
		Content:   redacted,
		Agent:     agent,
		Metadata:  metadata,
	}); err != nil {
		o.metrics.CollaboratorErrors.WithLabelValues("records").Inc()
		o.logger.WithFields(logrus.Fields{"session_id": req.SessionID, "error": err}).Error("transcript persistence failed")
	}
}

func (o *Orchestrator) clearChoice(ctx context.Context, sessionID string) {
	if err := o.escalation.ClearPendingChoice(ctx, sessionID); err != nil {
		o.logger.WithFields(logrus.Fields{"session_id": sessionID, "error": err}).Warn("pending choice clear failed")
	}
}
