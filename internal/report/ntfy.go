package report

import (
	"context"
	"net/http"
	"strings"

	"github.com/reelfeed/reelfeed/internal/domain"
)

// Ntfy pushes a text summary to an ntfy topic URL.
type Ntfy struct {
	Endpoint string
	Client   *http.Client
}

// Notify implements Notifier.
func (n *Ntfy) Notify(ctx context.Context, run *domain.RunMetadata) error {
	header := http.Header{}
	header.Set("Content-Type", "text/plain; charset=utf-8")
	header.Set("Title", Title(run))
	header.Set("Tags", strings.Join([]string{"reelfeed", run.Kind, string(run.Status)}, ","))
	if run.Status != domain.RunCompleted {
		header.Set("Priority", "high")
	}
	return post(ctx, n.Client, n.Endpoint, strings.NewReader(Summary(run)), header)
}
