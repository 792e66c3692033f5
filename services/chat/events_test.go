package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/llm-chat-gateway/services/transport"
)

func collect(ch <-chan Event) []Event {
	var events []Event
	for e := range ch {
		events = append(events, e)
	}
	return events
}

func TestStreamTurn_TagsEventsInOrder(t *testing.T) {
	fp := &fakeProvider{deltas: []string{"<thi", "nk>plan</think>ans", "wer"}}
	m := newFakeManager(t, fp)
	cred := fakeCredential()
	cred.DefaultModel = "m"

	events := collect(m.StreamTurn(context.Background(), userTurn(cred)))
	require.Len(t, events, 4)
	assert.Equal(t, Event{Type: EventReasoning, Text: "plan"}, events[0])
	assert.Equal(t, Event{Type: EventText, Text: "ans"}, events[1])
	assert.Equal(t, Event{Type: EventText, Text: "wer"}, events[2])

	last := events[3]
	assert.Equal(t, EventDone, last.Type)
	require.NotNil(t, last.Result)
	assert.Equal(t, "answer", last.Result.Content)
	assert.Equal(t, "plan", last.Result.Reasoning)
	assert.True(t, fp.lastParams.Stream)
}

func TestStreamTurn_FlushesUnterminatedReasoning(t *testing.T) {
	fp := &fakeProvider{deltas: []string{"a<think>b</th"}}
	m := newFakeManager(t, fp)
	cred := fakeCredential()
	cred.DefaultModel = "m"

	events := collect(m.StreamTurn(context.Background(), userTurn(cred)))
	require.Len(t, events, 4)
	assert.Equal(t, Event{Type: EventText, Text: "a"}, events[0])
	assert.Equal(t, Event{Type: EventReasoning, Text: "b"}, events[1])
	assert.Equal(t, Event{Type: EventReasoning, Text: "</th"}, events[2])
	assert.Equal(t, EventDone, events[3].Type)
}

func TestStreamTurn_ErrorIsTerminal(t *testing.T) {
	boom := errors.New("boom")
	m := newFakeManager(t, &fakeProvider{chatErr: boom})
	cred := fakeCredential()
	cred.DefaultModel = "m"

	events := collect(m.StreamTurn(context.Background(), userTurn(cred)))
	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0].Type)
	assert.ErrorIs(t, events[0].Err, boom)
}

func TestStreamTurn_CancelledBeforeStart(t *testing.T) {
	fp := &fakeProvider{deltas: []string{"x"}}
	m := newFakeManager(t, fp)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	events := collect(m.StreamTurn(ctx, userTurn(fakeCredential())))
	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0].Type)
	assert.True(t, transport.IsCancelled(events[0].Err))
	assert.Zero(t, fp.chatCalls)
}
