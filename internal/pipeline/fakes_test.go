package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/reelfeed/reelfeed/internal/domain"
	domainerrors "github.com/reelfeed/reelfeed/internal/errors"
	"github.com/reelfeed/reelfeed/internal/identity"
	"github.com/reelfeed/reelfeed/internal/normalize"
	"github.com/reelfeed/reelfeed/internal/store"
	"github.com/reelfeed/reelfeed/internal/upsert"
)

// fakeUpstream serves a change feed and detail payloads from memory.
type fakeUpstream struct {
	mu         sync.Mutex
	feeds      map[domain.EntityType][][]int // pages of ids
	feedErr    map[domain.EntityType]map[int]error
	missing    map[domain.Candidate]bool
	failing    map[domain.Candidate]bool
	titles     map[domain.Candidate]string
	detailHits map[domain.Candidate]int
	served     map[domain.Candidate][]byte // last payload, as a response cache would hold it
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		feeds:      map[domain.EntityType][][]int{},
		feedErr:    map[domain.EntityType]map[int]error{},
		missing:    map[domain.Candidate]bool{},
		failing:    map[domain.Candidate]bool{},
		titles:     map[domain.Candidate]string{},
		detailHits: map[domain.Candidate]int{},
		served:     map[domain.Candidate][]byte{},
	}
}

func (f *fakeUpstream) factory() UpstreamFactory {
	return func() Upstream { return f }
}

func (f *fakeUpstream) failPage(et domain.EntityType, page int, err error) {
	if f.feedErr[et] == nil {
		f.feedErr[et] = map[int]error{}
	}
	f.feedErr[et][page] = err
}

func (f *fakeUpstream) Fetch(_ context.Context, path string, params url.Values) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if path != "changes" {
		return nil, fmt.Errorf("unexpected path %q", path)
	}
	et := domain.EntityType(params.Get("type"))
	page, _ := strconv.Atoi(params.Get("page"))
	if err := f.feedErr[et][page]; err != nil {
		return nil, err
	}

	pages := f.feeds[et]
	var results []map[string]any
	if page >= 1 && page <= len(pages) {
		for _, id := range pages[page-1] {
			results = append(results, map[string]any{"id": id})
		}
	}
	return json.Marshal(map[string]any{"page": page, "total_pages": len(pages), "results": results})
}

// Detail answers from the last served payload when there is one.
func (f *fakeUpstream) Detail(ctx context.Context, et domain.EntityType, sourceID string) ([]byte, error) {
	f.mu.Lock()
	body, ok := f.served[domain.Candidate{SourceID: sourceID, EntityType: et}]
	f.mu.Unlock()
	if ok {
		return body, nil
	}
	return f.Refresh(ctx, et, sourceID)
}

func (f *fakeUpstream) Refresh(_ context.Context, et domain.EntityType, sourceID string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c := domain.Candidate{SourceID: sourceID, EntityType: et}
	f.detailHits[c]++
	if f.missing[c] {
		return nil, domainerrors.NotFoundf("%s", c)
	}
	if f.failing[c] {
		return nil, domainerrors.Wrap(errors.New("503"), domainerrors.CodeExhausted, "gave up")
	}

	title := f.titles[c]
	if title == "" {
		title = fmt.Sprintf("%s %s", et, sourceID)
	}
	id, _ := strconv.Atoi(sourceID)
	payload := map[string]any{
		"id":           id,
		"popularity":   10.0,
		"vote_average": 7.0,
		"vote_count":   100,
		"genres":       []map[string]any{{"id": 18, "name": "Drama"}},
	}
	switch et {
	case domain.EntityTV:
		payload["name"] = title
		payload["first_air_date"] = "2020-01-01"
	default:
		payload["title"] = title
		payload["release_date"] = "2020-01-01"
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	f.served[c] = body
	return body, nil
}

func (f *fakeUpstream) hits(c domain.Candidate) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.detailHits[c]
}

func ids(from, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = from + i
	}
	return out
}

type recordingNotifier struct {
	mu   sync.Mutex
	runs []*domain.RunMetadata
}

func (n *recordingNotifier) Notify(_ context.Context, run *domain.RunMetadata) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.runs = append(n.runs, run)
	return nil
}

type testEnv struct {
	store    *store.Store
	upstream *fakeUpstream
	notifier *recordingNotifier
	runner   *Runner
}

func setupTestEnv(t *testing.T, jobs []Job, mutate ...func(*Config)) *testEnv {
	t.Helper()

	s, err := store.New(store.Options{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	scheme, err := identity.New("tmdb")
	require.NoError(t, err)

	env := &testEnv{
		store:    s,
		upstream: newFakeUpstream(),
		notifier: &recordingNotifier{},
	}
	clock := time.Date(2026, 10, 18, 2, 0, 0, 0, time.UTC)
	seq := 0
	cfg := Config{
		Jobs:       jobs,
		Upstream:   env.upstream.factory(),
		Normalizer: normalize.NewCached(normalize.New("tmdb", scheme, nil), nil, 0),
		Writer:     upsert.New(s, upsert.Options{}),
		Runs:       s,
		Notifier:   env.notifier,
		Now:        func() time.Time { return clock },
		NewID: func() string {
			seq++
			return fmt.Sprintf("run-%d", seq)
		},
	}
	for _, m := range mutate {
		m(&cfg)
	}
	env.runner = NewRunner(cfg)
	return env
}

func movieJob() Job {
	return Job{Name: "movies", EntityType: domain.EntityMovie, Enabled: true, WindowDays: 1, BatchSize: 20}
}

func tvJob() Job {
	return Job{Name: "tv", EntityType: domain.EntityTV, Enabled: true, WindowDays: 1, BatchSize: 20}
}
