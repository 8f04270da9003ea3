package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kevinmichaelchen/repofeed/internal/config"
	"github.com/kevinmichaelchen/repofeed/internal/feed"
	"github.com/kevinmichaelchen/repofeed/internal/models"
	"github.com/kevinmichaelchen/repofeed/internal/pipeline"
	"github.com/kevinmichaelchen/repofeed/internal/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

type fakeLoader struct {
	refreshed atomic.Int64
	cancelled atomic.Bool
	next      pipeline.State
	delay     time.Duration
}

func (f *fakeLoader) Load(context.Context) pipeline.State { return f.next }

func (f *fakeLoader) Refresh(ctx context.Context) pipeline.State {
	f.refreshed.Add(1)
	time.Sleep(f.delay)
	if ctx.Err() != nil {
		f.cancelled.Store(true)
	}
	return f.next
}

func stateOf(source pipeline.Source, repos ...models.Repo) pipeline.State {
	return pipeline.State{Repos: repos, Source: source, Stats: feed.Summarize(repos)}
}

func newTestServer(t *testing.T, loader *fakeLoader, initial pipeline.State) *Server {
	t.Helper()
	r, err := render.New(render.Options{DateStyle: config.DateStyleLong, Title: "Projects"})
	require.NoError(t, err)
	return New(loader, r, initial)
}

func doRequest(t *testing.T, s *Server, method, target string) (*http.Response, string) {
	t.Helper()
	resp, err := s.App().Test(httptest.NewRequest(method, target, nil))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func sampleRepos() []models.Repo {
	return []models.Repo{
		{Name: "nespreso_api", Language: strPtr("Python"), Stars: 1200, UpdatedAt: "2024-06-01T00:00:00Z"},
		{Name: "site", Language: strPtr("HTML"), UpdatedAt: "2024-01-01T00:00:00Z"},
	}
}

func TestPage(t *testing.T) {
	s := newTestServer(t, &fakeLoader{}, stateOf(pipeline.SourceAPI, sampleRepos()...))

	resp, body := doRequest(t, s, http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, body, "nespreso_api")
	assert.Contains(t, body, "site")
	assert.Contains(t, body, `<dd id="statStars">1.2K</dd>`)
	assert.Contains(t, body, `action="/refresh"`)
}

func TestPageSearch(t *testing.T) {
	s := newTestServer(t, &fakeLoader{}, stateOf(pipeline.SourceAPI, sampleRepos()...))

	_, body := doRequest(t, s, http.MethodGet, "/?q=PYTHON")
	assert.Equal(t, 1, strings.Count(body, `class="repoCard"`))
	assert.Contains(t, body, "nespreso_api")
	assert.Contains(t, body, `value="PYTHON"`)
}

func TestGridFragment(t *testing.T) {
	s := newTestServer(t, &fakeLoader{}, stateOf(pipeline.SourceAPI, sampleRepos()...))

	resp, body := doRequest(t, s, http.MethodGet, "/repos?q=html")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, body, "<!doctype html>")
	assert.Equal(t, 1, strings.Count(body, `class="repoCard"`))
	assert.Contains(t, body, "site")

	_, body = doRequest(t, s, http.MethodGet, "/repos?q=rust")
	assert.Contains(t, body, "No repos found")
}

func TestUnavailableState(t *testing.T) {
	s := newTestServer(t, &fakeLoader{}, pipeline.State{Source: pipeline.SourceUnavailable})

	_, body := doRequest(t, s, http.MethodGet, "/repos")
	assert.Contains(t, body, "Repos unavailable")
}

func TestRefreshReplacesState(t *testing.T) {
	loader := &fakeLoader{next: stateOf(pipeline.SourceAPI, models.Repo{Name: "fresh"})}
	s := newTestServer(t, loader, stateOf(pipeline.SourceCache, sampleRepos()...))

	resp, _ := doRequest(t, s, http.MethodPost, "/refresh")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
	assert.Equal(t, int64(1), loader.refreshed.Load())

	_, body := doRequest(t, s, http.MethodGet, "/repos")
	assert.Contains(t, body, "fresh")
	assert.NotContains(t, body, "nespreso_api")
	assert.Equal(t, pipeline.SourceAPI, s.State().Source)
}

func TestConcurrentRefreshesShareOneLoad(t *testing.T) {
	loader := &fakeLoader{next: stateOf(pipeline.SourceAPI), delay: 50 * time.Millisecond}
	s := newTestServer(t, loader, pipeline.State{})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Refresh(context.Background())
		}()
	}
	wg.Wait()

	assert.Less(t, loader.refreshed.Load(), int64(5))
}

func TestRefreshOutlivesCancelledCaller(t *testing.T) {
	loader := &fakeLoader{next: stateOf(pipeline.SourceAPI, models.Repo{Name: "fresh"}), delay: 20 * time.Millisecond}
	s := newTestServer(t, loader, pipeline.State{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	st := s.Refresh(ctx)
	assert.False(t, loader.cancelled.Load())
	assert.Equal(t, pipeline.SourceAPI, st.Source)
	assert.Equal(t, pipeline.SourceAPI, s.State().Source)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, &fakeLoader{}, pipeline.State{})

	resp, body := doRequest(t, s, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body)

	doRequest(t, s, http.MethodGet, "/")
	resp, body = doRequest(t, s, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "repofeed_render_total")
}
