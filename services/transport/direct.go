package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/upb/llm-chat-gateway/services/secrets"
	"github.com/upb/llm-chat-gateway/services/security"
	"go.uber.org/zap"
)

// Direct issues calls from the current process with an http.Client. It has no
// incremental delivery: a streaming caller receives the whole body as one chunk.
type Direct struct {
	client *http.Client
	logger *zap.Logger
}

// maxRedirects matches the net/http default.
const maxRedirects = 10

// NewDirect creates a Direct transport. A nil client uses a client with a
// 60 second timeout. Redirects are only followed to URLs the gate allows.
func NewDirect(client *http.Client, logger *zap.Logger) *Direct {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Direct{client: gatedClient(client), logger: logger}
}

// gatedClient returns a copy of client whose redirects pass through
// security.AssertURLAllowed. The caller's client is not modified.
func gatedClient(client *http.Client) *http.Client {
	var c http.Client
	if client != nil {
		c = *client
	} else {
		c.Timeout = 60 * time.Second
	}
	next := c.CheckRedirect
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if err := security.AssertURLAllowed(req.URL.String()); err != nil {
			return err
		}
		if next != nil {
			return next(req, via)
		}
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		return nil
	}
	return &c
}

// Do implements Transport.
func (d *Direct) Do(ctx context.Context, req *Request, onChunk ChunkFunc) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, Cancelled(err)
	}

	start := time.Now()
	resp, err := execute(ctx, d.client, req, 0, nil)
	if err != nil {
		d.logger.Debug("transport call failed",
			zap.String("method", req.Method),
			zap.String("url", secrets.MaskAllSecrets(req.URL)),
			zap.Error(err),
		)
		return nil, err
	}
	d.logger.Debug("transport call settled",
		zap.String("method", req.Method),
		zap.String("url", secrets.MaskAllSecrets(req.URL)),
		zap.Int("status", resp.Status),
		zap.Duration("duration", time.Since(start)),
	)

	resp, err = settle(resp)
	if err != nil {
		return nil, err
	}
	if req.Stream && onChunk != nil && ctx.Err() == nil {
		onChunk(string(resp.Data))
	}
	return resp, nil
}

// execute performs the HTTP exchange. When emit is set and the status is 2xx,
// the body is read in chunkSize pieces and each piece is handed to emit as it
// arrives; the full body is always returned in Response.Data.
func execute(ctx context.Context, client *http.Client, req *Request, chunkSize int, emit func(string) error) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, NewRequestError(err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if req.Body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	httpResp, err := client.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, Cancelled(ctxErr)
		}
		return nil, NewRequestError(err)
	}
	defer httpResp.Body.Close()

	resp := &Response{
		Status:  httpResp.StatusCode,
		OK:      isOK(httpResp.StatusCode),
		Headers: httpResp.Header,
	}

	if emit == nil || !resp.OK {
		data, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return nil, readError(ctx, err)
		}
		resp.Data = data
		return resp, nil
	}

	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	var all bytes.Buffer
	buf := make([]byte, chunkSize)
	for {
		n, err := httpResp.Body.Read(buf)
		if n > 0 {
			all.Write(buf[:n])
			if emitErr := emit(string(buf[:n])); emitErr != nil {
				return nil, Cancelled(emitErr)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, readError(ctx, err)
		}
	}
	resp.Data = all.Bytes()
	return resp, nil
}

func readError(ctx context.Context, err error) *Error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Cancelled(ctxErr)
	}
	return NewRequestError(err)
}
