package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/reelfeed/reelfeed/internal/domain"
)

// Webhook posts the full run metadata as JSON for an external renderer.
type Webhook struct {
	URL    string
	Client *http.Client
}

// Notify implements Notifier.
func (w *Webhook) Notify(ctx context.Context, run *domain.RunMetadata) error {
	body, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode run: %w", err)
	}
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	return post(ctx, w.Client, w.URL, bytes.NewReader(body), header)
}
