package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/kevinmichaelchen/repofeed/internal/cache"
	"github.com/kevinmichaelchen/repofeed/internal/config"
	"github.com/kevinmichaelchen/repofeed/internal/feed"
	"github.com/kevinmichaelchen/repofeed/internal/github"
	"github.com/kevinmichaelchen/repofeed/internal/models"
	"github.com/kevinmichaelchen/repofeed/internal/pipeline"
	"github.com/kevinmichaelchen/repofeed/internal/render"
	"github.com/kevinmichaelchen/repofeed/internal/server"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// logLevel overrides LOG_LEVEL when set on the command line.
var logLevel string

func main() {
	root := &cobra.Command{
		Use:          "repofeed",
		Short:        "GitHub repositories → HTML project cards",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	root.AddCommand(buildCmd(), serveCmd(), searchCmd(), statsCmd(), refreshCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// app bundles everything a command needs. Close releases the cache backend.
type app struct {
	cfg      *config.Config
	store    *cache.Store
	feed     *pipeline.Feed
	renderer *render.Renderer
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		log.WithError(err).Warn("Closing cache")
	}
}

func setup(ctx context.Context, ephemeral bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if ephemeral {
		cfg.CacheBackend = "memory"
	}

	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	log.SetLevel(lvl)

	fallback, err := loadFallback(cfg)
	if err != nil {
		return nil, err
	}

	renderer, err := render.New(render.Options{DateStyle: cfg.DateStyle, Title: cfg.SiteTitle})
	if err != nil {
		return nil, err
	}

	store, err := cache.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	gh := github.NewClient(cfg.GitHubToken, github.WithBaseURL(cfg.GitHubAPIURL))
	return &app{
		cfg:      cfg,
		store:    store,
		feed:     pipeline.New(pipeline.OptionsFromConfig(cfg), store, gh, fallback),
		renderer: renderer,
	}, nil
}

func loadFallback(cfg *config.Config) ([]models.Repo, error) {
	if cfg.FallbackFile != "" {
		return feed.LoadFallback(cfg.FallbackFile)
	}
	return feed.Fallback()
}

func describe(st pipeline.State) string {
	msg := fmt.Sprintf("%d repos (source: %s)", len(st.Repos), st.Source)
	if st.Err != nil {
		msg += fmt.Sprintf("; GitHub unavailable: %v", st.Err)
	}
	return msg
}

func buildCmd() *cobra.Command {
	var out string
	var refresh bool

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Render the project page to a static HTML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := setup(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			var st pipeline.State
			if refresh {
				st = a.feed.Refresh(ctx)
			} else {
				st = a.feed.Load(ctx)
			}

			var buf bytes.Buffer
			if err := a.renderer.Page(&buf, render.PageData{
				GridData: render.GridData{Repos: st.Repos, Unavailable: st.Unavailable()},
				Stats:    st.Stats,
			}); err != nil {
				return fmt.Errorf("rendering page: %w", err)
			}

			if dir := filepath.Dir(out); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return err
				}
			}
			if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", out, err)
			}
			fmt.Printf("Wrote %s: %s\n", out, describe(st))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "public/index.html", "Output HTML file")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Re-fetch from GitHub (ignores cache)")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr string
	var ephemeral bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the project page with search and refresh",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := setup(ctx, ephemeral)
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = a.cfg.ListenAddr
			}

			initial := a.feed.Load(ctx)
			fmt.Printf("Loaded %s\n", describe(initial))

			srv := server.New(a.feed, a.renderer, initial)
			fiberApp := srv.App()

			g, gCtx := errgroup.WithContext(ctx)
			g.Go(func() error {
				log.WithField("addr", addr).Info("repofeed listening")
				return fiberApp.Listen(addr)
			})
			g.Go(func() error {
				<-gCtx.Done()
				fmt.Println("Gracefully shutting down...")
				return fiberApp.ShutdownWithTimeout(10 * time.Second)
			})

			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default $LISTEN_ADDR or :8080)")
	cmd.Flags().BoolVar(&ephemeral, "ephemeral", false, "Keep the cache in memory only")
	return cmd
}

func searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search [query]",
		Short: "Filter the displayed repos by name, description or language",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := setup(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			query := args[0]
			st := a.feed.Load(ctx)
			results := st.Search(query)

			if len(results) == 0 {
				fmt.Println("No results found")
				return nil
			}

			fmt.Printf("%d results for %q:\n\n", len(results), query)
			for i, r := range results {
				fmt.Printf("%d. %s  ★ %s  %s\n", i+1, r.Name, render.CompactNumber(r.Stars), render.FormatDate(r.UpdatedAt, a.cfg.DateStyle))
				fmt.Printf("   %s\n", r.HTMLURL)
				if d := r.DescriptionOr(""); d != "" {
					fmt.Printf("   %s\n", d)
				}
				if l := r.LanguageOr(""); l != "" {
					fmt.Printf("   Language: %s\n", l)
				}
				fmt.Println()
			}
			return nil
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show repo count, star total and last update",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := setup(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			st := a.feed.Load(ctx)
			fmt.Printf("Source:   %s\n", st.Source)
			fmt.Printf("Repos:    %d\n", st.Stats.Repos)
			fmt.Printf("Stars:    %s\n", render.CompactNumber(st.Stats.Stars))
			fmt.Printf("Updated:  %s\n", render.FormatDate(st.Stats.LastUpdated, a.cfg.DateStyle))
			if len(st.Repos) > 0 {
				names := make([]string, len(st.Repos))
				for i, r := range st.Repos {
					names[i] = r.Name
				}
				fmt.Printf("Shown:    %s\n", strings.Join(names, ", "))
			}
			return nil
		},
	}
}

func refreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Drop the cached GitHub response and fetch again",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := setup(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			fmt.Printf("Refreshing %s...\n", cache.Key(a.cfg.GitHubUsername))
			st := a.feed.Refresh(ctx)
			fmt.Printf("Loaded %s\n", describe(st))
			return nil
		},
	}
}
