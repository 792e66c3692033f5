package chat

import (
	"context"

	"github.com/upb/llm-chat-gateway/services/thinkstream"
)

// EventType tags a stream event.
type EventType string

const (
	EventText      EventType = "text"
	EventReasoning EventType = "reasoning"
	EventDone      EventType = "done"
	EventError     EventType = "error"
)

// Event is one item of a turn's event stream. Result is set on EventDone and
// Err on EventError.
type Event struct {
	Type   EventType   `json:"type"`
	Text   string      `json:"text,omitempty"`
	Result *TurnResult `json:"result,omitempty"`
	Err    error       `json:"-"`
}

// StreamTurn runs req as a streaming turn and reports it as ordered events:
// zero or more text and reasoning events, then exactly one done or error
// event, after which the channel is closed. req.OnDelta is replaced.
//
// The caller must drain the channel until it is closed.
func (m *Manager) StreamTurn(ctx context.Context, req TurnRequest) <-chan Event {
	out := make(chan Event, 16)

	go func() {
		defer close(out)

		splitter := thinkstream.New()
		forward := func(segs []thinkstream.Segment) {
			for _, seg := range segs {
				typ := EventText
				if seg.Reasoning {
					typ = EventReasoning
				}
				out <- Event{Type: typ, Text: seg.Text}
			}
		}

		req.OnDelta = func(text string) {
			forward(splitter.Segments(text))
		}

		res, err := m.SendTurn(ctx, req)
		if err != nil {
			out <- Event{Type: EventError, Err: err}
			return
		}

		content, reasoning := splitter.Finish()
		if reasoning != "" {
			out <- Event{Type: EventReasoning, Text: reasoning}
		}
		if content != "" {
			out <- Event{Type: EventText, Text: content}
		}
		out <- Event{Type: EventDone, Result: res}
	}()

	return out
}
