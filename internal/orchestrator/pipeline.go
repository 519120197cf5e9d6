package orchestrator

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/vygeek/vybuddy/internal/agents"
	"github.com/vygeek/vybuddy/internal/history"
	"github.com/vygeek/vybuddy/internal/llm"
	"github.com/vygeek/vybuddy/internal/observability"
	"github.com/vygeek/vybuddy/internal/records"
	"github.com/vygeek/vybuddy/internal/router"
	"github.com/vygeek/vybuddy/internal/tickets"
)

// Pipeline is the fixed processing graph behind every routed message: a
// conditional entry picks one domain node, and every domain node feeds the
// single terminal ticket node. The shape guarantees ticket validation is
// never bypassed and the graph never aborts mid-way.
type Pipeline struct {
	agents    map[string]agents.Agent
	validator *tickets.Validator
	creator   tickets.Creator
	records   records.Store
	logger    *logrus.Logger
	metrics   *observability.Metrics
}

func NewPipeline(agentSet map[string]agents.Agent, validator *tickets.Validator, creator tickets.Creator,
	rec records.Store, logger *logrus.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		agents:    agentSet,
		validator: validator,
		creator:   creator,
		records:   rec,
		logger:    logger,
		metrics:   metrics,
	}
}

// PipelineInput is the state threaded through the graph for one message.
type PipelineInput struct {
	Message   string
	SessionID string
	UserID    string
	History   []history.Turn
	Decision  router.Decision
	OnToken   llm.DeltaHandler
}

// PipelineOutput is the terminal state after the ticket node.
type PipelineOutput struct {
	Message         string
	Agent           string
	TicketSuggested bool
	TicketCreated   bool
	TicketID        int64
}

// Run executes entry → domain node → ticket node.
func (p *Pipeline) Run(ctx context.Context, in PipelineInput) PipelineOutput {
	resp := p.domainNode(ctx, in)
	return p.ticketNode(ctx, in, resp)
}

// domainNode dispatches to the routed handler. The router only emits known
// labels, but an unmapped label still lands on the knowledge handler rather
// than dropping the message.
func (p *Pipeline) domainNode(ctx context.Context, in PipelineInput) agents.Response {
	agent, ok := p.agents[in.Decision.Agent]
	if !ok {
		p.logger.WithField("agent", in.Decision.Agent).Warn("unmapped routing label, using knowledge handler")
		agent = p.agents[router.AgentKnowledge]
	}

	resp, err := agent.Process(ctx, agents.Request{
		Message:   in.Message,
		SessionID: in.SessionID,
		UserID:    in.UserID,
		History:   in.History,
		Backend:   in.Decision.Backend,
		OnToken:   in.OnToken,
	})
	if err != nil {
		// Handlers convert backend failures themselves; anything reaching
		// here is unexpected, but the graph continues regardless.
		p.logger.WithFields(logrus.Fields{
			"agent":      agent.Name(),
			"session_id": in.SessionID,
			"error":      err,
		}).Error("domain node failed")
		return agents.Response{
			Message: "Une erreur est survenue lors du traitement de votre demande. Veuillez réessayer ou contacter le support si le problème persiste.",
			Agent:   agent.Name(),
		}
	}
	return resp
}

// ticketNode always runs after the domain node: it validates the exchange
// and, when authorized, opens the ticket and appends the reference to the
// reply. Creation failures append an apology, never an internal error.
func (p *Pipeline) ticketNode(ctx context.Context, in PipelineInput, resp agents.Response) PipelineOutput {
	out := PipelineOutput{
		Message:         resp.Message,
		Agent:           resp.Agent,
		TicketSuggested: resp.NeedsTicket,
	}

	verdict := p.validator.ShouldCreate(ctx, tickets.Input{
		Message:   in.Message,
		Reply:     resp.Message,
		Agent:     resp.Agent,
		History:   in.History,
		Suggested: resp.NeedsTicket,
	})
	p.metrics.TicketValidations.WithLabelValues(validationOutcome(verdict.ShouldCreate)).Inc()

	if !verdict.ShouldCreate {
		p.logger.WithFields(logrus.Fields{
			"session_id": in.SessionID,
			"reason":     verdict.Reason,
			"confidence": verdict.Confidence,
			"suggested":  resp.NeedsTicket,
		}).Info("ticket not created after validation")
		return out
	}

	ticket, err := p.createTicket(ctx, in, resp.Agent)
	if err != nil {
		p.metrics.TicketsCreated.WithLabelValues("failed").Inc()
		p.metrics.CollaboratorErrors.WithLabelValues("helpdesk").Inc()
		p.logger.WithFields(logrus.Fields{"session_id": in.SessionID, "error": err}).Error("ticket creation failed")
		out.Message += "\n\nUne erreur est survenue lors de la création du ticket. Veuillez contacter le support directement."
		return out
	}

	out.TicketCreated = true
	out.TicketID = ticket.ID
	out.Message += fmt.Sprintf("\n\nUn ticket a été créé (ID: %d). Notre équipe va vous contacter prochainement.", ticket.ID)

	p.metrics.TicketsCreated.WithLabelValues("created").Inc()
	p.logger.WithFields(logrus.Fields{
		"ticket_id":  ticket.ID,
		"session_id": in.SessionID,
		"reason":     verdict.Reason,
		"confidence": verdict.Confidence,
	}).Info("ticket created after validation")
	return out
}

func (p *Pipeline) createTicket(ctx context.Context, in PipelineInput, agent string) (tickets.Ticket, error) {
	ticket, err := p.creator.Create(ctx, tickets.CreateRequest{
		UserID:      in.UserID,
		SessionID:   in.SessionID,
		Description: in.Message,
		History:     in.History,
		Agent:       agent,
	})
	if err != nil {
		return tickets.Ticket{}, err
	}

	// Mirror the reference locally; the helpdesk remains the source of truth.
	if err := p.records.SaveTicketRecord(ctx, records.TicketRecord{
		ExternalID:  fmt.Sprintf("%d", ticket.ID),
		SessionID:   in.SessionID,
		UserID:      in.UserID,
		Description: in.Message,
		Agent:       agent,
		Status:      ticket.Status,
	}); err != nil {
		p.logger.WithFields(logrus.Fields{"ticket_id": ticket.ID, "error": err}).Warn("ticket record mirror failed")
	}
	return ticket, nil
}

func validationOutcome(shouldCreate bool) string {
	if shouldCreate {
		return "create"
	}
	return "skip"
}
