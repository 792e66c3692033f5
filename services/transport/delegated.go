package transport

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/upb/llm-chat-gateway/services/security"
	"github.com/upb/llm-chat-gateway/services/secrets"
	"go.uber.org/zap"
)

const (
	// ChannelPrefix namespaces per-request event channels.
	ChannelPrefix = "transport:"

	// DefaultChunkSize is the read size a LocalHost publishes per chunk.
	DefaultChunkSize = 4096
)

// Host executes calls on behalf of Delegated. When channel is non-empty the
// host publishes body chunks of 2xx responses to it before returning.
type Host interface {
	Dispatch(ctx context.Context, channel string, req *Request) (*Response, error)
}

// Delegated hands calls to a privileged Host. Cancellation is checked before
// dispatch and forwarded to the host, but once the call is in flight the host
// may still complete it.
type Delegated struct {
	host       Host
	bridge     Bridge
	logger     *zap.Logger
	newChannel func() string
}

// NewDelegated creates a Delegated transport.
func NewDelegated(host Host, bridge Bridge, logger *zap.Logger) *Delegated {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Delegated{
		host:   host,
		bridge: bridge,
		logger: logger,
		newChannel: func() string {
			return ChannelPrefix + uuid.NewString()
		},
	}
}

// Do implements Transport.
func (d *Delegated) Do(ctx context.Context, req *Request, onChunk ChunkFunc) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, Cancelled(err)
	}

	if !req.Stream || onChunk == nil {
		resp, err := d.host.Dispatch(ctx, "", req)
		return d.finish(ctx, resp, err)
	}

	channel := d.newChannel()
	sub := d.bridge.Subscribe(channel)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for {
			select {
			case chunk := <-sub.C:
				if ctx.Err() != nil {
					continue
				}
				onChunk(chunk)
			case <-sub.Done:
				return
			}
		}
	}()
	release := func() {
		sub.Unsubscribe()
		<-drained
	}

	resp, err := d.dispatch(ctx, channel, req, release)
	return d.finish(ctx, resp, err)
}

// dispatch runs the host call and releases the subscription on every exit
// path, including a panicking host.
func (d *Delegated) dispatch(ctx context.Context, channel string, req *Request, release func()) (*Response, error) {
	defer release()
	d.logger.Debug("delegating transport call",
		zap.String("channel", channel),
		zap.String("url", secrets.MaskAllSecrets(req.URL)),
	)
	return d.host.Dispatch(ctx, channel, req)
}

func (d *Delegated) finish(ctx context.Context, resp *Response, err error) (*Response, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, Cancelled(ctxErr)
	}
	if err != nil {
		return nil, err
	}
	return settle(resp)
}

// LocalHost is the in-process privileged executor behind Delegated. It
// re-checks the URL gate, performs the HTTP call and publishes body chunks
// to the request's channel as they are read.
type LocalHost struct {
	client    *http.Client
	publisher Publisher
	chunkSize int
	logger    *zap.Logger
}

// NewLocalHost creates a LocalHost. chunkSize <= 0 uses DefaultChunkSize.
// Like Direct, it only follows redirects the gate allows.
func NewLocalHost(client *http.Client, publisher Publisher, chunkSize int, logger *zap.Logger) *LocalHost {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalHost{client: gatedClient(client), publisher: publisher, chunkSize: chunkSize, logger: logger}
}

// Dispatch implements Host.
func (h *LocalHost) Dispatch(ctx context.Context, channel string, req *Request) (*Response, error) {
	if err := security.AssertURLAllowed(req.URL); err != nil {
		return nil, err
	}

	var emit func(string) error
	if channel != "" && h.publisher != nil {
		emit = func(chunk string) error {
			return h.publisher.Publish(ctx, channel, chunk)
		}
	}

	resp, err := execute(ctx, h.client, req, h.chunkSize, emit)
	if err != nil {
		h.logger.Warn("host call failed",
			zap.String("url", secrets.MaskAllSecrets(req.URL)),
			zap.Error(err),
		)
		return nil, err
	}
	return resp, nil
}
