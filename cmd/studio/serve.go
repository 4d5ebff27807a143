package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"studio/internal/bus"
	"studio/internal/cache"
	"studio/internal/form"
	"studio/internal/handler"
	"studio/internal/logging"
	"studio/internal/maintenance"
	"studio/internal/navigation"
	"studio/internal/server"
	"studio/internal/store"
	"studio/internal/watch"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the studio service",
	Long: `Opens the page store, wires the cache tiers, navigation history,
handler dispatch and HTTP boundary, and serves until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	logging.Boot("store open at %s", st.Path())

	b := bus.New()

	meta := cache.NewMetadataManager(st, cache.Policy{
		TTL: cfg.Cache.MetadataTTLDuration(),
	})
	pages := cache.NewPageCache(st, cache.Policy{
		Debounce: cfg.Cache.FlushDebounceDuration(),
		Capacity: cfg.Cache.RecentLimit,
	})
	if err := pages.Initialize(); err != nil {
		return fmt.Errorf("warm page cache: %w", err)
	}
	defer pages.Close()

	preloader := cache.NewPreloader(st, cache.Policy{
		TTL:      cfg.Cache.PreloadTTLDuration(),
		Capacity: cfg.Cache.PreloadCapacity,
	})

	history := navigation.NewHistoryManager(b, cfg.History.MaxSize)
	defer history.Close()

	forms := form.NewManager()
	elements := handler.NewElementRegistry(b)

	dispatcher := handler.NewDispatcher(handler.Deps{
		Bus:            b,
		History:        history,
		Metadata:       meta,
		Preloader:      preloader,
		Forms:          forms,
		Elements:       elements,
		ResolveBaseURL: cfg.Server.ResolveBaseURL,
		ScriptTimeout:  cfg.Script.TimeoutDuration(),
	})
	logging.Boot("handlers registered: %v", dispatcher.Registry().Names())

	if cfg.Watch.Enabled {
		w := watch.New(cfg.Storage.Path, b, meta, cfg.Watch.DebounceDuration())
		if err := w.Start(); err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
		defer w.Stop()
	}

	if cfg.Maintenance.Enabled {
		j := maintenance.New(cfg.Maintenance.Schedule, pages, preloader)
		if err := j.Start(); err != nil {
			return fmt.Errorf("start janitor: %w", err)
		}
		defer j.Stop()
	}

	srv := server.New(meta, server.Options{
		Addr:            cfg.Server.Addr,
		ShutdownTimeout: cfg.Server.ShutdownTimeoutDuration(),
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx) })

	logging.Boot("studio up on %s", cfg.Server.Addr)
	err = g.Wait()
	logging.Boot("shutting down")
	return err
}
