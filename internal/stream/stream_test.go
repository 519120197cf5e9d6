package stream

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/vygeek/vybuddy/internal/observability"
)

var (
	testMetricsOnce sync.Once
	testMetrics     *observability.Metrics
)

// Prometheus collectors register globally, so the suite shares one set.
func metricsForTest() *observability.Metrics {
	testMetricsOnce.Do(func() {
		testMetrics = observability.NewMetrics("vybuddy_stream_test")
	})
	return testMetrics
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	failAt int // fail sends once len(events) reaches this, 0 disables
}

func (s *recordingSink) Send(e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAt > 0 && len(s.events) >= s.failAt {
		return errors.New("connection closed")
	}
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func newDeliverer(size int) *Deliverer {
	return NewDeliverer(size, 0, quietLogger(), metricsForTest())
}

func TestDeliverFramesTheReply(t *testing.T) {
	sink := &recordingSink{}
	text := strings.Repeat("a", 100)

	newDeliverer(48).Deliver(context.Background(), sink, text, "network", map[string]any{"k": "v"})

	events := sink.snapshot()
	if len(events) != 5 { // start + 3 fragments + end
		t.Fatalf("len(events) = %d, want 5", len(events))
	}
	if events[0].Type != TypeStart {
		t.Fatalf("first event = %q, want stream_start", events[0].Type)
	}
	var rebuilt strings.Builder
	for _, e := range events[1 : len(events)-1] {
		if e.Type != TypeFragment {
			t.Fatalf("middle event = %q, want stream", e.Type)
		}
		rebuilt.WriteString(e.Content)
	}
	if rebuilt.String() != text {
		t.Fatalf("fragments do not reassemble the reply")
	}
	last := events[len(events)-1]
	if last.Type != TypeEnd || last.Message != text || last.Agent != "network" {
		t.Fatalf("terminal event = %+v", last)
	}
}

func TestDeliverSplitsOnRuneBoundaries(t *testing.T) {
	sink := &recordingSink{}
	text := strings.Repeat("é", 10)

	newDeliverer(3).Deliver(context.Background(), sink, text, "knowledge", nil)

	var rebuilt strings.Builder
	for _, e := range sink.snapshot() {
		if e.Type == TypeFragment {
			rebuilt.WriteString(e.Content)
		}
	}
	if rebuilt.String() != text {
		t.Fatalf("accented text corrupted by fragmentation: %q", rebuilt.String())
	}
}

func TestDeliverEmptyTextStillTerminates(t *testing.T) {
	sink := &recordingSink{}

	newDeliverer(48).Deliver(context.Background(), sink, "", "system", nil)

	events := sink.snapshot()
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want start and end only", len(events))
	}
	if events[1].Type != TypeEnd {
		t.Fatalf("terminal event = %q", events[1].Type)
	}
}

func TestDeliverMidStreamFailureStillSendsEnd(t *testing.T) {
	sink := &recordingSink{failAt: 2} // start + first fragment succeed, then fail
	text := strings.Repeat("b", 200)

	newDeliverer(48).Deliver(context.Background(), sink, text, "macos", nil)

	// Start and the first fragment got through; the second fragment failed,
	// delivery gave up, and the stream_end attempt failed on the same dead
	// channel. Deliver must return quietly either way.
	events := sink.snapshot()
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2 (delivery must abandon after a failed send)", len(events))
	}
}

func TestDeliverEndAttemptedAfterFailure(t *testing.T) {
	var sent []Event
	fails := 0
	sink := SinkFunc(func(e Event) error {
		if e.Type == TypeFragment {
			fails++
			return errors.New("closed")
		}
		sent = append(sent, e)
		return nil
	})

	newDeliverer(10).Deliver(context.Background(), sink, "un long message de diagnostic", "network", nil)

	if fails != 1 {
		t.Fatalf("fragment sends after first failure = %d, want delivery abandoned after one", fails)
	}
	if len(sent) != 2 || sent[1].Type != TypeEnd {
		t.Fatalf("events = %+v, want start then end", sent)
	}
}

func TestHubReplaceAndUnregister(t *testing.T) {
	hub := NewHub(quietLogger(), metricsForTest())

	first := &recordingSink{}
	second := &recordingSink{}

	if replaced := hub.Register("s1", first); replaced != nil {
		t.Fatalf("Register() replaced = %v on a fresh session", replaced)
	}
	if replaced := hub.Register("s1", second); replaced != Sink(first) {
		t.Fatalf("Register() must return the replaced sink")
	}

	// The replaced connection's cleanup must not evict the new one.
	hub.Unregister("s1", first)
	if hub.Sink("s1") != Sink(second) {
		t.Fatalf("stale unregister evicted the current sink")
	}

	hub.Unregister("s1", second)
	if hub.Sink("s1") != nil {
		t.Fatalf("sink still present after unregister")
	}
}

func TestHubPush(t *testing.T) {
	hub := NewHub(quietLogger(), metricsForTest())

	if hub.Push("ghost", Event{Type: TypeEnd}) {
		t.Fatalf("Push() = true for a session with no channel")
	}

	sink := &recordingSink{}
	hub.Register("s2", sink)
	if !hub.Push("s2", Event{Type: TypeEnd, Message: "réponse humaine", Agent: "human_support"}) {
		t.Fatalf("Push() = false with a live channel")
	}
	events := sink.snapshot()
	if len(events) != 1 || events[0].Agent != "human_support" {
		t.Fatalf("events = %+v", events)
	}
}
