package cli

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/soyeahso/orchestrator/internal/hooks"
	"github.com/soyeahso/orchestrator/internal/llm"
	"github.com/soyeahso/orchestrator/internal/server"
	"github.com/soyeahso/orchestrator/internal/store"
	"github.com/soyeahso/orchestrator/internal/webapp"
)

// runServe starts the orchestrator server and blocks until SIGINT/SIGTERM
// or a fatal error.
func runServe(ctx context.Context, o *options) error {
	if err := o.validate(); err != nil {
		return err
	}
	log := o.log
	cfg := o.cfg

	// Best effort; a failure is logged inside Select.
	o.selector(log).Select(cfg.Runtime.Policy)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	agentsDir, err := o.resolveAgentsDir()
	if err != nil {
		return err
	}

	hookMgr := hooks.NewManager(log)
	registry := llm.NewRegistryFromConfig(cfg.Models, log)

	deps := webapp.Deps{
		Models: registry,
		Hooks:  hookMgr,
		Log:    log,
	}

	if cfg.Trace.TraceEnabled() {
		dbPath := store.MemoryPath
		if cfg.Trace.Store == "sqlite" {
			if err := o.paths.EnsureDirs(); err != nil {
				return fmt.Errorf("creating data directories: %w", err)
			}
			dbPath = filepath.Join(o.paths.Data, "traces.db")
		}
		db, err := store.Open(ctx, dbPath, log)
		if err != nil {
			return fmt.Errorf("opening trace store: %w", err)
		}
		defer db.Close()
		deps.Traces = store.NewTraceStore(db)
	}

	app, err := webapp.New(ctx, webapp.Options{
		AgentsDir:    agentsDir,
		AllowOrigins: cfg.Server.AllowOrigins,
		Web:          cfg.Server.WebEnabled(),
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		AccessLog:    cfg.Server.AccessLogEnabled(),
	}, deps)
	if err != nil {
		return err
	}

	srv := server.New(server.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ShutdownTimeout: time.Duration(cfg.Server.ShutdownSeconds) * time.Second,
	}, app, log, server.WithHooks(hookMgr))

	if o.onReady != nil {
		go func() {
			select {
			case <-srv.Ready():
				o.onReady(srv)
			case <-ctx.Done():
			}
		}()
	}

	return srv.Run(ctx)
}
