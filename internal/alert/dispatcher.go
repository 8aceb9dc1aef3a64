package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"situationcord.app/relay/internal/model"
)

// ErrDispatchFailed wraps every failure to deliver an alert to the primary sink.
var ErrDispatchFailed = errors.New("alert dispatch failed")

// Dispatcher delivers one alert. Mirrors the pipeline's dispatcher contract.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg model.IncomingMessage, analysis model.AnalysisResult) error
}

// HTTPDispatcher posts the flattened alert as JSON to a fixed endpoint.
type HTTPDispatcher struct {
	endpoint string
	client   *http.Client
}

func NewHTTPDispatcher(endpoint string, timeout time.Duration) *HTTPDispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPDispatcher{
		endpoint: endpoint,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Dispatch treats network errors and non-2xx responses as failures.
func (d *HTTPDispatcher) Dispatch(ctx context.Context, msg model.IncomingMessage, analysis model.AnalysisResult) error {
	body, err := json.Marshal(Flatten(msg, analysis))
	if err != nil {
		return fmt.Errorf("%w: encoding payload: %w", ErrDispatchFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: building request: %w", ErrDispatchFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDispatchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: endpoint returned %d: %s", ErrDispatchFailed, resp.StatusCode, bytes.TrimSpace(snippet))
	}

	slog.DebugContext(ctx, "alert posted", "status", resp.StatusCode)
	return nil
}

// MultiDispatcher sends to a primary sink and best-effort mirrors.
// Only the primary's failure is returned.
type MultiDispatcher struct {
	primary Dispatcher
	mirrors []Dispatcher
}

func NewMultiDispatcher(primary Dispatcher, mirrors ...Dispatcher) *MultiDispatcher {
	return &MultiDispatcher{primary: primary, mirrors: mirrors}
}

func (m *MultiDispatcher) Dispatch(ctx context.Context, msg model.IncomingMessage, analysis model.AnalysisResult) error {
	if err := m.primary.Dispatch(ctx, msg, analysis); err != nil {
		return err
	}

	for _, mirror := range m.mirrors {
		if err := mirror.Dispatch(ctx, msg, analysis); err != nil {
			slog.WarnContext(ctx, "alert mirror failed", "error", err)
		}
	}
	return nil
}
