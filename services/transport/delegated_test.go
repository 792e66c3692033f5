package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/llm-chat-gateway/services"
	"go.uber.org/zap"
)

type hostFunc func(ctx context.Context, channel string, req *Request) (*Response, error)

func (f hostFunc) Dispatch(ctx context.Context, channel string, req *Request) (*Response, error) {
	return f(ctx, channel, req)
}

func newStreamingServer(t *testing.T, parts []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, _ := w.(http.Flusher)
		for _, p := range parts {
			_, _ = w.Write([]byte(p))
			if flusher != nil {
				flusher.Flush()
			}
		}
	}))
}

func TestDelegated_StreamsChunksThroughBus(t *testing.T) {
	parts := []string{
		"data: {\"choices\":[{\"delta\":{\"content\":\"he\"}}]}\n\n",
		"data: {\"choices\":[{\"delta\":{\"content\":\"llo\"}}]}\n\n",
		"data: [DONE]\n\n",
	}
	server := newStreamingServer(t, parts)
	defer server.Close()

	bus := NewBus()
	host := NewLocalHost(server.Client(), bus, 16, zap.NewNop())
	d := NewDelegated(host, bus, zap.NewNop())

	var channel string
	d.newChannel = func() string {
		channel = ChannelPrefix + "test"
		return channel
	}

	var mu sync.Mutex
	var chunks []string
	resp, err := d.Do(context.Background(), &Request{URL: server.URL, Stream: true}, func(chunk string) {
		mu.Lock()
		defer mu.Unlock()
		assert.LessOrEqual(t, len(chunk), 16)
		chunks = append(chunks, chunk)
	})

	require.NoError(t, err)
	want := strings.Join(parts, "")
	assert.Equal(t, want, string(resp.Data))
	assert.Equal(t, want, strings.Join(chunks, ""))
	assert.Greater(t, len(chunks), 1)
	assert.Equal(t, 0, bus.Subscribers(channel))
}

func TestDelegated_NonStreamingSkipsSubscription(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	bus := NewBus()
	var gotChannel string
	host := NewLocalHost(server.Client(), bus, 0, nil)
	d := NewDelegated(hostFunc(func(ctx context.Context, channel string, req *Request) (*Response, error) {
		gotChannel = channel
		return host.Dispatch(ctx, channel, req)
	}), bus, nil)

	resp, err := d.Do(context.Background(), &Request{URL: server.URL}, nil)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(resp.Data))
	assert.Empty(t, gotChannel)
}

func TestDelegated_Non2xxReleasesSubscription(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down"}}`))
	}))
	defer server.Close()

	bus := NewBus()
	d := NewDelegated(NewLocalHost(server.Client(), bus, 0, nil), bus, nil)
	d.newChannel = func() string { return "transport:429" }

	called := false
	_, err := d.Do(context.Background(), &Request{URL: server.URL, Stream: true}, func(string) { called = true })

	assert.Equal(t, http.StatusTooManyRequests, StatusCode(err))
	assert.False(t, called)
	assert.Equal(t, 0, bus.Subscribers("transport:429"))
}

func TestDelegated_HostErrorReleasesSubscription(t *testing.T) {
	bus := NewBus()
	boom := NewRequestError(errors.New("tls handshake failure"))
	d := NewDelegated(hostFunc(func(ctx context.Context, channel string, req *Request) (*Response, error) {
		assert.Equal(t, 1, bus.Subscribers(channel))
		return nil, boom
	}), bus, nil)
	d.newChannel = func() string { return "transport:err" }

	_, err := d.Do(context.Background(), &Request{URL: "https://api.openai.com", Stream: true}, func(string) {})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, bus.Subscribers("transport:err"))
}

func TestDelegated_CancelledBeforeDispatch(t *testing.T) {
	dispatched := false
	bus := NewBus()
	d := NewDelegated(hostFunc(func(context.Context, string, *Request) (*Response, error) {
		dispatched = true
		return &Response{Status: 200, OK: true}, nil
	}), bus, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Do(ctx, &Request{URL: "https://api.openai.com", Stream: true}, func(string) {})
	assert.True(t, IsCancelled(err))
	assert.False(t, dispatched)
}

func TestDelegated_NoChunksAfterCancel(t *testing.T) {
	bus := NewBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan struct{}, 1)
	d := NewDelegated(hostFunc(func(hctx context.Context, channel string, req *Request) (*Response, error) {
		require.NoError(t, bus.Publish(hctx, channel, "first"))
		<-received
		cancel()
		_ = bus.Publish(hctx, channel, "second")
		return &Response{Status: 200, OK: true, Data: []byte("firstsecond")}, nil
	}), bus, nil)
	d.newChannel = func() string { return "transport:cancel" }

	var chunks []string
	_, err := d.Do(ctx, &Request{URL: "https://api.openai.com", Stream: true}, func(chunk string) {
		chunks = append(chunks, chunk)
		received <- struct{}{}
	})

	assert.True(t, IsCancelled(err))
	assert.Equal(t, []string{"first"}, chunks)
	assert.Equal(t, 0, bus.Subscribers("transport:cancel"))
}

func TestLocalHost_RechecksURLGate(t *testing.T) {
	host := NewLocalHost(nil, NewBus(), 0, nil)

	_, err := host.Dispatch(context.Background(), "", &Request{URL: "http://example.com/v1"})
	assert.ErrorIs(t, err, services.ErrURLNotAllowed)
}

func TestLocalHost_RefusesRedirectToDisallowedHost(t *testing.T) {
	var hits int
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer target.Close()

	disallowed := strings.Replace(target.URL, "127.0.0.1", "127.0.0.2", 1)
	server := redirectServer(t, disallowed+"/v1/chat/completions")

	host := NewLocalHost(server.Client(), NewBus(), 0, nil)
	_, err := host.Dispatch(context.Background(), "", &Request{URL: server.URL, Body: []byte(`{}`)})

	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrURLNotAllowed)
	assert.Equal(t, 0, StatusCode(err))
	assert.Zero(t, hits)
}
