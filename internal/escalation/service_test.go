package escalation

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vygeek/vybuddy/internal/bridge"
	"github.com/vygeek/vybuddy/internal/history"
	"github.com/vygeek/vybuddy/internal/observability"
	"github.com/vygeek/vybuddy/internal/records"
	"github.com/vygeek/vybuddy/internal/stream"
)

var (
	testMetricsOnce sync.Once
	testMetrics     *observability.Metrics
)

func metricsForTest() *observability.Metrics {
	testMetricsOnce.Do(func() {
		testMetrics = observability.NewMetrics("vybuddy_escalation_test")
	})
	return testMetrics
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type fixture struct {
	service *Service
	bridge  *bridge.MockBridge
	store   *history.InMemoryStore
	records *records.InMemoryStore
	hub     *stream.Hub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	b := bridge.NewMockBridge()
	store := history.NewInMemoryStore(100, time.Hour)
	rec := records.NewInMemoryStore()
	hub := stream.NewHub(quietLogger(), metricsForTest())
	svc := NewService(b, store, rec, hub, "support-it", 12*time.Hour, quietLogger(), metricsForTest())
	return &fixture{service: svc, bridge: b, store: store, records: rec, hub: hub}
}

type collectingSink struct {
	mu     sync.Mutex
	events []stream.Event
}

func (c *collectingSink) Send(e stream.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func TestStartOpensThreadAndIndex(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.service.Start(ctx, "sess-1", "alice@vygeek.com", "Alice", "plus de wifi depuis ce matin")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if res.AlreadyActive {
		t.Fatalf("AlreadyActive = true on first start")
	}
	if res.State.Status != StatusOpen {
		t.Fatalf("Status = %q, want open", res.State.Status)
	}
	// Notification plus the relayed first message.
	if f.bridge.PostCount() != 2 {
		t.Fatalf("PostCount() = %d, want 2", f.bridge.PostCount())
	}
	if !strings.Contains(f.bridge.Posts[0].Text, "alice@vygeek.com") {
		t.Fatalf("notification missing user email: %q", f.bridge.Posts[0].Text)
	}

	sessionID, err := f.service.SessionByThread(ctx, res.State.Channel, res.State.ThreadTS)
	if err != nil {
		t.Fatalf("SessionByThread() error = %v", err)
	}
	if sessionID != "sess-1" {
		t.Fatalf("SessionByThread() = %q, want sess-1", sessionID)
	}
}

func TestStartIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.service.Start(ctx, "sess-1", "alice@vygeek.com", "Alice", "premier message"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	posts := f.bridge.PostCount()

	res, err := f.service.Start(ctx, "sess-1", "alice@vygeek.com", "Alice", "deuxième message")
	if err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	if !res.AlreadyActive {
		t.Fatalf("AlreadyActive = false on second start")
	}
	if f.bridge.PostCount() != posts {
		t.Fatalf("second start posted to the bridge, thread duplicated")
	}
}

func TestForwardRequiresOpenEscalation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	forwarded, err := f.service.ForwardUserMessage(ctx, "sess-1", "alice@vygeek.com", "Alice", "toujours là ?")
	if err != nil {
		t.Fatalf("ForwardUserMessage() error = %v", err)
	}
	if forwarded {
		t.Fatalf("forwarded = true without an open escalation")
	}

	if _, err := f.service.Start(ctx, "sess-1", "alice@vygeek.com", "Alice", "premier message"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	forwarded, err = f.service.ForwardUserMessage(ctx, "sess-1", "alice@vygeek.com", "Alice", "toujours là ?")
	if err != nil {
		t.Fatalf("ForwardUserMessage() error = %v", err)
	}
	if !forwarded {
		t.Fatalf("forwarded = false with an open escalation")
	}
	last := f.bridge.Posts[len(f.bridge.Posts)-1]
	if last.Thread == "" || !strings.Contains(last.Text, "toujours là ?") {
		t.Fatalf("relayed message = %+v, want text inside the thread", last)
	}
}

func TestHandleBridgeReplyReachesSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.service.Start(ctx, "sess-1", "alice@vygeek.com", "Alice", "plus de wifi")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	sink := &collectingSink{}
	f.hub.Register("sess-1", sink)
	f.bridge.Users["U42"] = bridge.UserInfo{Name: "Bob Support", Email: "bob@vygeek.com"}

	handled, err := f.service.HandleBridgeReply(ctx, bridge.Event{
		Channel: res.State.Channel,
		Thread:  res.State.ThreadTS,
		UserID:  "U42",
		Text:    "Bonjour, je regarde ça tout de suite.",
	})
	if err != nil {
		t.Fatalf("HandleBridgeReply() error = %v", err)
	}
	if !handled {
		t.Fatalf("handled = false for a known thread")
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.events) != 1 {
		t.Fatalf("len(events) = %d, want 1 terminal event", len(sink.events))
	}
	ev := sink.events[0]
	if ev.Type != stream.TypeEnd || ev.Agent != "human_support" {
		t.Fatalf("event = %+v, want stream_end from human_support", ev)
	}

	msgs, err := f.records.Messages(ctx, "sess-1", 10)
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(msgs) != 1 || msgs[0].Type != records.TypeHuman {
		t.Fatalf("persisted messages = %+v, want one human-typed entry", msgs)
	}
}

func TestHandleBridgeReplyUnknownThreadDropped(t *testing.T) {
	f := newFixture(t)

	handled, err := f.service.HandleBridgeReply(context.Background(), bridge.Event{
		Channel: "C999",
		Thread:  "1700000000.000999",
		UserID:  "U42",
		Text:    "qui est là ?",
	})
	if err != nil {
		t.Fatalf("HandleBridgeReply() error = %v", err)
	}
	if handled {
		t.Fatalf("handled = true for an unknown thread")
	}
}

func TestStopClosesAndRemovesIndex(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.service.Start(ctx, "sess-1", "alice@vygeek.com", "Alice", "plus de wifi")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := f.service.Stop(ctx, "sess-1"); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if f.service.IsEscalated(ctx, "sess-1") {
		t.Fatalf("IsEscalated = true after Stop")
	}
	state, err := f.service.StateOf(ctx, "sess-1")
	if err != nil {
		t.Fatalf("StateOf() error = %v", err)
	}
	if state == nil || state.Status != StatusClosed || state.ClosedAt == nil {
		t.Fatalf("state = %+v, want closed with timestamp", state)
	}

	sessionID, err := f.service.SessionByThread(ctx, res.State.Channel, res.State.ThreadTS)
	if err != nil {
		t.Fatalf("SessionByThread() error = %v", err)
	}
	if sessionID != "" {
		t.Fatalf("reverse index still present after Stop")
	}

	// A fresh start after closure opens a brand new thread.
	res2, err := f.service.Start(ctx, "sess-1", "alice@vygeek.com", "Alice", "nouveau problème")
	if err != nil {
		t.Fatalf("restart error = %v", err)
	}
	if res2.AlreadyActive {
		t.Fatalf("AlreadyActive = true after a closed escalation")
	}
	if res2.State.ThreadTS == res.State.ThreadTS {
		t.Fatalf("restart reused the closed thread")
	}
}

func TestPendingChoiceLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pc, err := f.service.PendingChoiceOf(ctx, "sess-1")
	if err != nil {
		t.Fatalf("PendingChoiceOf() error = %v", err)
	}
	if pc != nil {
		t.Fatalf("pending choice present before being set")
	}

	want := PendingChoice{
		OriginalMessage: "mon wifi ne fonctionne plus",
		AgentResponse:   "Je peux créer un ticket pour vous.",
		AgentName:       "network",
	}
	if err := f.service.SetPendingChoice(ctx, "sess-1", want, time.Hour); err != nil {
		t.Fatalf("SetPendingChoice() error = %v", err)
	}

	pc, err = f.service.PendingChoiceOf(ctx, "sess-1")
	if err != nil {
		t.Fatalf("PendingChoiceOf() error = %v", err)
	}
	if pc == nil || *pc != want {
		t.Fatalf("PendingChoiceOf() = %+v, want %+v", pc, want)
	}

	if err := f.service.ClearPendingChoice(ctx, "sess-1"); err != nil {
		t.Fatalf("ClearPendingChoice() error = %v", err)
	}
	pc, err = f.service.PendingChoiceOf(ctx, "sess-1")
	if err != nil {
		t.Fatalf("PendingChoiceOf() error = %v", err)
	}
	if pc != nil {
		t.Fatalf("pending choice survived ClearPendingChoice")
	}
}

func TestParseChoice(t *testing.T) {
	cases := []struct {
		text string
		want Choice
	}{
		{"je préfère parler à un collègue", ChoiceHuman},
		{"collègue", ChoiceHuman},
		{"un humain svp", ChoiceHuman},
		{"créez le ticket", ChoiceTicket},
		{"ouvrir un ticket odoo", ChoiceTicket},
		{"je veux parler à quelqu'un du ticket", ChoiceHuman}, // human wins on ambiguity
		{"euh je ne sais pas", ChoiceUnrecognized},
		{"", ChoiceUnrecognized},
	}
	for _, tc := range cases {
		if got := ParseChoice(tc.text); got != tc.want {
			t.Fatalf("ParseChoice(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestIsLongDiagnostic(t *testing.T) {
	long := []history.Turn{
		{User: "a", Bot: "b"}, {User: "c", Bot: "d"}, {User: "e", Bot: "f"},
	}
	if !IsLongDiagnostic(long, "réponse") {
		t.Fatalf("three turns must count as long")
	}

	questions := []history.Turn{
		{User: "a", Bot: "Avez-vous redémarré ?"},
		{User: "b", Bot: "L'icône WiFi est-elle visible ?"},
	}
	if !IsLongDiagnostic(questions, "réponse") {
		t.Fatalf("two questioning turns must count as long")
	}

	if !IsLongDiagnostic(nil, "Le problème persiste malgré nos tentatives, je propose un ticket.") {
		t.Fatalf("complexity phrasing must count as long")
	}

	short := []history.Turn{{User: "a", Bot: "b"}}
	if IsLongDiagnostic(short, "Voici la solution.") {
		t.Fatalf("one plain turn must not count as long")
	}
}
