// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Postwright Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/postwright/postwright/internal/config"
	"github.com/postwright/postwright/internal/dispatch"
	"github.com/postwright/postwright/internal/integrations"
	"github.com/postwright/postwright/internal/registry"
	"github.com/postwright/postwright/internal/scheduler"
	"github.com/postwright/postwright/internal/server"
	"github.com/postwright/postwright/internal/store"
	_ "github.com/postwright/postwright/internal/store/redisstore" // register redis backend
	_ "github.com/postwright/postwright/internal/store/sqlstore"   // register sqlite and mysql backends
	"github.com/postwright/postwright/internal/telemetry"
	"github.com/postwright/postwright/internal/validator"
	"github.com/postwright/postwright/pkg/capability"
	pwerr "github.com/postwright/postwright/pkg/errors"
)

// App holds all wired subsystems and manages their lifecycle.
type App struct {
	Catalog   *registry.Catalog
	Scheduler *scheduler.Scheduler
	Server    *server.Server
	Store     store.Store

	shutdownTimeout time.Duration
	closers         []func() error
}

// WireApp creates all subsystems and wires them together.
func WireApp(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{shutdownTimeout: cfg.Scheduler.ShutdownTimeout}

	// 1. Store (run ledger, persisted activations).
	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	app.Store = st
	app.closers = append(app.closers, st.Close)

	// 2. Telemetry fan-out. The ledger observer is closed before the store so
	// invocations abandoned at shutdown cannot append to a closed database.
	ledger := telemetry.NewLedgerObserver(st.Runs())
	app.closers = append(app.closers, ledger.Close)
	observers := []telemetry.Observer{
		telemetry.NewLogObserver(slog.Default()),
		ledger,
	}
	if amqpCfg := cfg.TelemetryAMQP(); amqpCfg.URL != "" {
		pub, err := telemetry.DialAMQP(amqpCfg)
		if err != nil {
			slog.Warn("telemetry broker unavailable, failure records will not be published",
				"exchange", amqpCfg.Exchange,
				"error", err)
		} else {
			observers = append(observers, pub)
			app.closers = append(app.closers, pub.Close)
		}
	}
	observer := telemetry.Multi(observers...)

	// 3. Catalog with configured and persisted overrides.
	catalog, err := buildCatalog(ctx, cfg, observer, st.Activations())
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Catalog = catalog

	v := validator.New(catalog)
	values := cfg.PlugValues()
	if err := checkPlugValues(v, values); err != nil {
		_ = app.Close()
		return nil, err
	}
	disableUnconfiguredPlugs(v, values)

	// 4. Dispatcher. Every built-in integration type gets a dry-run client
	// until real platform clients are registered.
	d := dispatch.NewStatic()
	for _, typ := range integrations.Types() {
		d.Register(dispatch.NewLogIntegration(typ, slog.Default()))
	}

	// 5. Scheduler and PostPlug runner.
	app.Scheduler = scheduler.New(catalog,
		scheduler.WithDispatcher(d),
		scheduler.WithObserver(observer),
		scheduler.WithValues(values),
		scheduler.WithValidator(v),
	)
	runner := dispatch.NewPostPlugRunner(v, d, observer)

	// 6. Admin HTTP server.
	services, err := server.NewServices(v, runner, app.Scheduler, st)
	if err != nil {
		_ = app.Close()
		return nil, pwerr.Errorf(pwerr.CodeCLISetupFailure, "creating services: %w", err)
	}
	app.Server, err = server.New(server.Config{
		ListenAddr:  cfg.Networking.Listen,
		CORSOrigins: cfg.Networking.CORSOrigins,
		Version:     version,
	}, services)
	if err != nil {
		_ = app.Close()
		return nil, pwerr.Errorf(pwerr.CodeCLISetupFailure, "creating server: %w", err)
	}

	return app, nil
}

// Run starts the scheduler and the HTTP server and blocks until ctx is
// cancelled. In-flight invocations get the configured shutdown timeout to
// finish.
func (a *App) Run(ctx context.Context) error {
	if err := a.Scheduler.Start(ctx); err != nil {
		return err
	}

	serveErr := a.Server.Start(ctx)

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.shutdownTimeout)
	defer cancel()
	stopErr := a.Scheduler.Stop(stopCtx)

	return errors.Join(serveErr, stopErr)
}

// Close releases all resources held by the app, most recent first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// openStore ensures the data directory exists and opens the configured
// backend.
func openStore(cfg *config.Config) (store.Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return nil, pwerr.Errorf(pwerr.CodeCLISetupFailure, "creating data directory: %w", err)
	}
	st, err := store.Open(cfg.StoreConfig(), cfg.DataDir)
	if err != nil {
		return nil, pwerr.Errorf(pwerr.CodeCLISetupFailure, "opening %s store: %w", cfg.Storage.Backend, err)
	}
	return st, nil
}

// buildCatalog builds the catalog of built-in integrations, then applies
// overrides from configuration followed by those persisted at runtime, so a
// runtime change wins over the file. activations may be nil.
func buildCatalog(ctx context.Context, cfg *config.Config, observer telemetry.Observer, activations store.ActivationStore) (*registry.Catalog, error) {
	catalog, err := registry.Build(ctx, integrations.Builtin(), registry.WithObserver(observer))
	if err != nil {
		return nil, pwerr.Errorf(pwerr.CodeCLISetupFailure, "building catalog: %w", err)
	}

	for _, o := range cfg.Overrides() {
		applyOverride(catalog, o.Kind, o.Identifier, o.Disabled, "config")
	}

	if activations != nil {
		persisted, err := activations.List(ctx)
		if err != nil {
			return nil, pwerr.Errorf(pwerr.CodeCLISetupFailure, "loading persisted activations: %w", err)
		}
		for _, a := range persisted {
			applyOverride(catalog, a.Kind, a.Identifier, a.Disabled, "store")
		}
	}

	return catalog, nil
}

func applyOverride(catalog *registry.Catalog, kind capability.Kind, id string, disabled bool, source string) {
	if err := catalog.SetDisabled(kind, id, disabled); err != nil {
		slog.Warn("ignoring activation override for unknown capability",
			"kind", string(kind),
			"identifier", id,
			"source", source)
		return
	}
	if disabled {
		slog.Info("capability disabled", "kind", string(kind), "identifier", id, "source", source)
	}
}

// checkPlugValues validates configured Plug values against each Plug's
// fields. Values for unknown Plugs are rejected.
func checkPlugValues(v *validator.Validator, values map[string]map[string]string) error {
	var errs []error
	for id, vals := range values {
		if !v.Catalog().Has(capability.KindPlug, id) {
			errs = append(errs, pwerr.Errorf(pwerr.CodeCLIInputInvalid, "plugs.%s: unknown plug", id))
			continue
		}
		if err := v.CheckFields(capability.KindPlug, id, vals); err != nil {
			errs = append(errs, pwerr.Errorf(pwerr.CodeCLIInputInvalid, "plugs.%s.values: %w", id, err))
		}
	}
	if len(errs) > 0 {
		return pwerr.Wrap(errors.Join(errs...), pwerr.CodeCLIInputInvalid, "invalid plug values")
	}
	return nil
}

// disableUnconfiguredPlugs disables, for this process only, every Plug whose
// declared fields are not satisfied by its configured values. The change is
// not persisted: configuring the values and restarting arms the Plug again.
func disableUnconfiguredPlugs(v *validator.Validator, values map[string]map[string]string) {
	for _, e := range v.Catalog().Plugs() {
		id := e.Identifier()
		if len(e.Descriptor().Fields) == 0 || e.Disabled() {
			continue
		}
		if _, ok := values[id]; ok {
			continue
		}
		if err := v.CheckFields(capability.KindPlug, id, map[string]string{}); err != nil {
			_ = v.Catalog().SetDisabled(capability.KindPlug, id, true)
			slog.Warn("plug disabled until its values are configured",
				"plug", id,
				"owner", e.Owner(),
				"config_key", "plugs."+id+".values",
				"error", err)
		}
	}
}
