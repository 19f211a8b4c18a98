package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/soundline/pricesync/internal/automation"
	"github.com/soundline/pricesync/internal/catalog"
	"github.com/soundline/pricesync/internal/extract"
	"github.com/soundline/pricesync/internal/fetch"
	"github.com/soundline/pricesync/internal/parser"
	"github.com/soundline/pricesync/internal/reconcile"
	"github.com/soundline/pricesync/internal/store"
	"github.com/soundline/pricesync/internal/validate"
	"github.com/soundline/pricesync/internal/workflow"
	"github.com/soundline/pricesync/pkg/opencart"
)

// env holds the initialized store, catalog client, and fetch client shared
// by the process/reconcile/serve commands.
type env struct {
	Store   store.Store
	Catalog opencart.Client
	Fetch   *fetch.Client
}

// Close releases resources held by the environment.
func (e *env) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv sets up the store and the catalog client. Callers should defer
// env.Close().
func initEnv(ctx context.Context) (*env, error) {
	st, err := store.New(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	client := opencart.NewClient(cfg.Catalog.BaseURL, cfg.Catalog.BasicToken,
		opencart.WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.Catalog.TimeoutSecs) * time.Second,
		}),
		opencart.WithRateLimit(cfg.Catalog.RatePerSec),
	)

	return &env{
		Store:   st,
		Catalog: client,
		Fetch:   fetch.New(cfg.Fetch),
	}, nil
}

// newManager builds the workflow manager on top of an initialized
// environment. Automation is attached only when requested; dry-run still
// goes through the automator so the summary reports what would be created.
func newManager(e *env, fast, automate bool) *workflow.Manager {
	engine := reconcile.NewEngine(catalog.NewAdapter(e.Catalog), cfg.Reconcile)

	var automator *automation.Automator
	if automate {
		automator = automation.New(e.Catalog, cfg.Automation)
		if cfg.Automation.DryRun {
			zap.L().Info("automation in dry-run mode, no products will be created")
		}
	}

	return workflow.NewManager(workflow.Deps{
		Store:        e.Store,
		Extractor:    extract.NewService(cfg.Extract),
		Parser:       parser.New(cfg.Parser),
		Validator:    validate.New(cfg.Validate),
		Orchestrator: reconcile.NewOrchestrator(engine, cfg.Reconcile),
		Automator:    automator,
		CacheTTL:     time.Duration(cfg.Reconcile.CacheTTLMinutes) * time.Minute,
		Fast:         fast,
	})
}
