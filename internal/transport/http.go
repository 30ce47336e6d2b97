// ABOUTME: HTTP implementation of the Invoker interface.
// ABOUTME: Resolves backend names to URLs and POSTs JSON payloads with a bounded timeout.

package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// MaxResponseBodySize is the maximum allowed size for backend response bodies (1MB).
const MaxResponseBodySize = 1 << 20

// defaultCallTimeout bounds a single round trip when no timeout is configured.
const defaultCallTimeout = 30 * time.Second

// HTTPInvoker invokes backends over HTTP. Each configured backend name
// maps to a single URL that accepts POSTed JSON envelopes.
type HTTPInvoker struct {
	endpoints map[string]string
	client    *http.Client
	timeout   time.Duration
	logger    *slog.Logger
}

// NewHTTPInvoker creates an HTTPInvoker for the given backend name → URL
// map. timeout bounds each call; zero means the default.
func NewHTTPInvoker(endpoints map[string]string, timeout time.Duration, logger *slog.Logger) *HTTPInvoker {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	eps := make(map[string]string, len(endpoints))
	for name, url := range endpoints {
		eps[name] = url
	}
	return &HTTPInvoker{
		endpoints: eps,
		client:    &http.Client{},
		timeout:   timeout,
		logger:    logger.With("component", "transport"),
	}
}

// Invoke POSTs payload to the backend's URL and returns the response body.
// Resolution failures, connection errors, non-2xx statuses, and timeouts
// all surface as *TransportError.
func (t *HTTPInvoker) Invoke(ctx context.Context, backendID string, payload []byte) ([]byte, error) {
	url, ok := t.endpoints[backendID]
	if !ok {
		return nil, &TransportError{
			Backend: backendID,
			Kind:    KindUnreachable,
			Err:     fmt.Errorf("no endpoint configured"),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &TransportError{Backend: backendID, Kind: KindUnreachable, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &TransportError{Backend: backendID, Kind: classify(err), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBodySize))
	if err != nil {
		return nil, &TransportError{Backend: backendID, Kind: classify(err), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TransportError{
			Backend: backendID,
			Kind:    KindUnreachable,
			Err:     fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	t.logger.Debug("backend call completed",
		"backend", backendID,
		"duration", time.Since(start),
		"response_bytes", len(body),
	)
	return body, nil
}

// classify maps a client error to a transport error kind.
func classify(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindUnreachable
}
