package stream

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vygeek/vybuddy/internal/observability"
)

// Deliverer replays an already-generated reply as a paced fragment stream.
// The reply is complete before delivery begins, so slicing is purely for
// perceived responsiveness on the client side.
type Deliverer struct {
	fragmentSize int
	pause        time.Duration
	logger       *logrus.Logger
	metrics      *observability.Metrics
}

func NewDeliverer(fragmentSize int, pause time.Duration, logger *logrus.Logger, metrics *observability.Metrics) *Deliverer {
	if fragmentSize <= 0 {
		fragmentSize = 48
	}
	return &Deliverer{fragmentSize: fragmentSize, pause: pause, logger: logger, metrics: metrics}
}

// Deliver emits stream_start, the fragments, and a terminal stream_end
// carrying the full text. A failed send abandons the remaining fragments but
// stream_end is still attempted exactly once, so the client's waiting
// indicator is always released. Send errors never propagate: the turn is
// already persisted by the caller and a gone client is not an error.
func (d *Deliverer) Deliver(ctx context.Context, sink Sink, text, agent string, metadata map[string]any) {
	if sink == nil {
		return
	}

	end := Event{Type: TypeEnd, Message: text, Agent: agent, Metadata: metadata}

	if err := d.send(sink, Event{Type: TypeStart, Agent: agent}); err != nil {
		d.logger.WithField("error", err).Debug("delivery channel closed at stream start")
		d.send(sink, end)
		return
	}

	for _, fragment := range sliceFragments(text, d.fragmentSize) {
		if ctx.Err() != nil {
			break
		}
		if err := d.send(sink, Event{Type: TypeFragment, Content: fragment, Agent: agent}); err != nil {
			d.logger.WithField("error", err).Debug("delivery channel closed mid-stream")
			break
		}
		if d.pause > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(d.pause):
			}
		}
	}

	d.send(sink, end)
}

func (d *Deliverer) send(sink Sink, event Event) error {
	if err := sink.Send(event); err != nil {
		return err
	}
	d.metrics.StreamEvents.WithLabelValues(event.Type).Inc()
	return nil
}

// sliceFragments cuts on rune boundaries so multi-byte characters are never
// split across fragments.
func sliceFragments(text string, size int) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	fragments := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		fragments = append(fragments, string(runes[start:end]))
	}
	return fragments
}
