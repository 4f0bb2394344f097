package forwarder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// DefaultTimeout bounds a single relay attempt.
const DefaultTimeout = 5 * time.Second

// ReasonTimeout is the Result.Error value reported when the instance does
// not answer within the timeout.
const ReasonTimeout = "Timeout"

// EventsPath is the path instances receive relayed Slack events on.
const EventsPath = "/slack/events"

// Result is the outcome of a relay attempt. Failures are data, never errors.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Forwarder relays verified Slack events to the instance serving the team.
// It does not retry.
type Forwarder struct {
	client  *http.Client
	timeout time.Duration
}

// Option configures a Forwarder.
type Option func(*Forwarder)

// WithHTTPClient sets the HTTP client used for relaying.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Forwarder) {
		f.client = client
	}
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(timeout time.Duration) Option {
	return func(f *Forwarder) {
		f.timeout = timeout
	}
}

// New creates a Forwarder.
func New(opts ...Option) *Forwarder {
	f := &Forwarder{
		client:  &http.Client{},
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Forward POSTs payload to https://{domain}/slack/events, copying the given
// headers so the instance can verify the Slack signature itself.
func (f *Forwarder) Forward(ctx context.Context, domain string, payload []byte, headers http.Header) Result {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	url := "https://" + domain + EventsPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Result{Error: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	for name, values := range headers {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return Result{Error: ReasonTimeout}
		}
		return Result{Error: err.Error()}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{Error: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}

	return Result{Success: true}
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
