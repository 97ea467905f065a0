// Package report hands finished run metadata to external collaborators.
package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/reelfeed/reelfeed/internal/domain"
)

const (
	userAgent      = "reelfeed/1.0"
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 2048
)

// Notifier receives finished runs.
type Notifier interface {
	Notify(ctx context.Context, run *domain.RunMetadata) error
}

// Config selects the notifiers to build. Empty endpoints are skipped.
type Config struct {
	NtfyTopic  string
	WebhookURL string
	Timeout    time.Duration
}

// New builds a notifier from cfg. With no endpoint configured it returns
// Noop.
func New(cfg Config) Notifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := &http.Client{Timeout: timeout}

	var out Multi
	if topic := strings.TrimSpace(cfg.NtfyTopic); topic != "" {
		out = append(out, &Ntfy{Endpoint: topic, Client: client})
	}
	if hook := strings.TrimSpace(cfg.WebhookURL); hook != "" {
		out = append(out, &Webhook{URL: hook, Client: client})
	}

	switch len(out) {
	case 0:
		return Noop{}
	case 1:
		return out[0]
	default:
		return out
	}
}

// Noop discards runs.
type Noop struct{}

// Notify implements Notifier.
func (Noop) Notify(context.Context, *domain.RunMetadata) error { return nil }

// Multi fans a run out to every notifier and joins their errors.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, run *domain.RunMetadata) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, run); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func post(ctx context.Context, client *http.Client, endpoint string, body io.Reader, header http.Header) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	for k, v := range header {
		req.Header[k] = v
	}

	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%s returned %d: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
