package agents

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/vygeek/vybuddy/internal/history"
	"github.com/vygeek/vybuddy/internal/knowledge"
	"github.com/vygeek/vybuddy/internal/llm"
)

type scriptedClient struct {
	reply      string
	err        error
	lastPrompt string
}

func (c *scriptedClient) Complete(_ context.Context, req llm.Request) (string, error) {
	c.lastPrompt = req.Prompt
	return c.reply, c.err
}

func testDeps(client llm.Client) Deps {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return Deps{
		Client:   client,
		Searcher: knowledge.NewMockSearcher(nil),
		TopK:     2,
		Logger:   logger,
	}
}

func TestProcessStripsTicketMarker(t *testing.T) {
	client := &scriptedClient{reply: "Je vais créer un ticket pour vous. needs_ticket: true"}
	agent := NewNetwork(testDeps(client))

	resp, err := agent.Process(context.Background(), Request{Message: "le wifi est mort", Backend: llm.BackendAnthropic})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if !resp.NeedsTicket {
		t.Fatalf("NeedsTicket = false, want true")
	}
	if strings.Contains(strings.ToLower(resp.Message), "needs_ticket") {
		t.Fatalf("marker not stripped from reply: %q", resp.Message)
	}
	if resp.Agent != "network" {
		t.Fatalf("Agent = %q, want network", resp.Agent)
	}
}

func TestProcessPlainQuestionNoTicket(t *testing.T) {
	client := &scriptedClient{reply: "Sur quel réseau êtes-vous actuellement ?"}
	agent := NewNetwork(testDeps(client))

	resp, err := agent.Process(context.Background(), Request{Message: "mon wifi ne fonctionne plus", Backend: llm.BackendAnthropic})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if resp.NeedsTicket {
		t.Fatalf("NeedsTicket = true, want false for a plain diagnostic question")
	}
	if !strings.Contains(resp.Message, "?") {
		t.Fatalf("diagnostic reply should contain a question: %q", resp.Message)
	}
}

func TestProcessBackendFailureYieldsApology(t *testing.T) {
	client := &scriptedClient{err: errors.New("gateway timeout")}
	agent := NewWorkspace(testDeps(client))

	resp, err := agent.Process(context.Background(), Request{Message: "accès drive", Backend: llm.BackendGemini})
	if err != nil {
		t.Fatalf("Process() error = %v, backend failures must not propagate", err)
	}
	if !resp.NeedsTicket {
		t.Fatalf("NeedsTicket = false, want true on backend failure")
	}
	if resp.Message == "" || strings.Contains(resp.Message, "gateway timeout") {
		t.Fatalf("reply must be a fixed apology, got %q", resp.Message)
	}
	if resp.Agent != "workspace" {
		t.Fatalf("Agent = %q, want workspace", resp.Agent)
	}
}

func TestProcessIncludesRecentHistoryInPrompt(t *testing.T) {
	client := &scriptedClient{reply: "ok"}
	agent := NewMacOS(testDeps(client))

	hist := []history.Turn{
		{User: "safari plante", Bot: "avez-vous redémarré ?"},
	}
	if _, err := agent.Process(context.Background(), Request{Message: "oui, toujours pareil", History: hist, Backend: llm.BackendOpenAI}); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if !strings.Contains(client.lastPrompt, "safari plante") {
		t.Fatalf("prompt missing history context: %q", client.lastPrompt)
	}
	if !strings.Contains(client.lastPrompt, "oui, toujours pareil") {
		t.Fatalf("prompt missing current message: %q", client.lastPrompt)
	}
}

func TestAllReturnsTheFourDomains(t *testing.T) {
	agents := All(testDeps(&scriptedClient{reply: "ok"}))
	for _, name := range []string{"network", "macos", "workspace", "knowledge"} {
		a, ok := agents[name]
		if !ok {
			t.Fatalf("missing domain handler %q", name)
		}
		if a.Name() != name {
			t.Fatalf("Name() = %q, want %q", a.Name(), name)
		}
	}
	if len(agents) != 4 {
		t.Fatalf("len(agents) = %d, want 4", len(agents))
	}
}
