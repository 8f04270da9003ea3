package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/kevinmichaelchen/repofeed/internal/cache"
	"github.com/kevinmichaelchen/repofeed/internal/config"
	"github.com/kevinmichaelchen/repofeed/internal/feed"
	"github.com/kevinmichaelchen/repofeed/internal/metrics"
	"github.com/kevinmichaelchen/repofeed/internal/models"
	log "github.com/sirupsen/logrus"
)

// Source says where the repos in a State came from.
type Source string

const (
	SourceCache       Source = "cache"
	SourceAPI         Source = "api"
	SourceFallback    Source = "fallback"
	SourceStatic      Source = "static"
	SourceUnavailable Source = "unavailable"
)

// Fetcher is satisfied by *github.Client.
type Fetcher interface {
	FetchAll(ctx context.Context, username string) ([]models.Repo, error)
}

type Options struct {
	Username     string
	Limit        int
	UseAPI       bool
	ExcludeForks bool
	// Policy is config.PolicyStatic or config.PolicyPlaceholder.
	Policy string
}

// OptionsFromConfig maps the environment configuration onto pipeline options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Username:     cfg.GitHubUsername,
		Limit:        cfg.RepoLimit,
		UseAPI:       cfg.UseGitHubAPI,
		ExcludeForks: cfg.ExcludeForks,
		Policy:       cfg.FallbackPolicy,
	}
}

// State is the result of one load: the repos to display and how they were
// obtained. Err holds the fetch error when Source is fallback or unavailable.
type State struct {
	Repos    []models.Repo
	Source   Source
	Stats    feed.Stats
	Err      error
	LoadedAt time.Time
}

// Unavailable reports whether the placeholder card should replace the grid.
func (s State) Unavailable() bool {
	return s.Source == SourceUnavailable
}

// Search filters the displayed repos. It never touches the network.
func (s State) Search(query string) []models.Repo {
	return feed.Search(s.Repos, query)
}

type Feed struct {
	opts     Options
	store    *cache.Store
	gh       Fetcher
	fallback []models.Repo
	now      func() time.Time
}

func New(opts Options, store *cache.Store, gh Fetcher, fallback []models.Repo) *Feed {
	return &Feed{opts: opts, store: store, gh: gh, fallback: fallback, now: time.Now}
}

func (f *Feed) cacheKey() string {
	return cache.Key(f.opts.Username)
}

// Load resolves the repo list from cache, GitHub or the fallback policy and
// applies the display transforms. It always returns a renderable State.
func (f *Feed) Load(ctx context.Context) State {
	logger := log.WithField("username", f.opts.Username)

	if !f.opts.UseAPI {
		logger.Debug("GitHub API disabled, using static list")
		return f.finish(f.fallback, SourceStatic, nil)
	}

	repos, source, err := f.loadRepos(ctx, logger)
	if err != nil {
		metrics.Fallbacks.WithLabelValues(f.opts.Policy).Inc()
		logger.WithFields(log.Fields{
			"policy": f.opts.Policy,
			"error":  err,
		}).Warn("Fetching repos failed, using fallback")

		if f.opts.Policy == config.PolicyPlaceholder {
			return State{Source: SourceUnavailable, Err: err, LoadedAt: f.now()}
		}
		return f.finish(f.fallback, SourceFallback, err)
	}
	return f.finish(repos, source, nil)
}

// Refresh drops the cached entry and loads again. A failing refresh ends in
// the same state a failing first load would.
func (f *Feed) Refresh(ctx context.Context) State {
	if err := f.store.Invalidate(ctx, f.cacheKey()); err != nil {
		metrics.CacheWriteErrors.Inc()
		log.WithError(err).Warn("Could not invalidate cache")
	}
	return f.Load(ctx)
}

func (f *Feed) loadRepos(ctx context.Context, logger *log.Entry) ([]models.Repo, Source, error) {
	key := f.cacheKey()

	cached, err := f.store.Load(ctx, key)
	if err == nil {
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		logger.WithField("repos", len(cached)).Debug("Cache hit")
		return cached, SourceCache, nil
	}
	metrics.CacheLookups.WithLabelValues(lookupResult(err)).Inc()
	if errors.Is(err, cache.ErrCorrupt) {
		logger.WithError(err).Warn("Ignoring unreadable cache entry")
	} else {
		logger.WithError(err).Debug("Cache miss")
	}

	repos, err := f.gh.FetchAll(ctx, f.opts.Username)
	if err != nil {
		metrics.Fetches.WithLabelValues("error").Inc()
		return nil, "", err
	}
	metrics.Fetches.WithLabelValues("ok").Inc()
	logger.WithField("repos", len(repos)).Info("Fetched repos from GitHub")

	if err := f.store.Save(ctx, key, repos); err != nil {
		metrics.CacheWriteErrors.Inc()
		logger.WithError(err).Warn("Could not cache repos")
	}
	return repos, SourceAPI, nil
}

func (f *Feed) finish(repos []models.Repo, source Source, err error) State {
	if f.opts.ExcludeForks {
		repos = feed.WithoutForks(repos)
	}
	repos = feed.SelectAndOrder(repos, f.opts.Limit)
	return State{
		Repos:    repos,
		Source:   source,
		Stats:    feed.Summarize(repos),
		Err:      err,
		LoadedAt: f.now(),
	}
}

func lookupResult(err error) string {
	switch {
	case errors.Is(err, cache.ErrExpired):
		return "expired"
	case errors.Is(err, cache.ErrCorrupt):
		return "corrupt"
	default:
		return "miss"
	}
}
