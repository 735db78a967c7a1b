package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/zkemail/paytox/internal/app/claims"
	"github.com/zkemail/paytox/internal/app/claimstore"
	"github.com/zkemail/paytox/internal/app/config"
	"github.com/zkemail/paytox/internal/app/database"
	"github.com/zkemail/paytox/internal/app/engine"
	"github.com/zkemail/paytox/internal/app/ens"
	"github.com/zkemail/paytox/internal/app/handlers"
	"github.com/zkemail/paytox/internal/app/handshake"
	"github.com/zkemail/paytox/internal/app/logaudit"
	"github.com/zkemail/paytox/internal/app/pipeline"
	"github.com/zkemail/paytox/internal/app/platform"
	"github.com/zkemail/paytox/internal/app/relay"
	"github.com/zkemail/paytox/internal/app/remote"
	appbuilder "github.com/zkemail/paytox/pkg/app_builder"
	"github.com/zkemail/paytox/pkg/logger"
	"github.com/zkemail/paytox/pkg/rabbitmq"
)

const serviceName = "paytox-server"

type builder = appbuilder.AppBuilder[config.PaytoxConfigJson, config.PaytoxConfig]

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		handler    *handlers.Handler
		logHandler *logaudit.Handler
		workers    []rabbitmq.WorkerService
	)

	app := appbuilder.New[config.PaytoxConfigJson, config.PaytoxConfig]().
		InitLogger(logger.GlobalLoggerConfig{}).
		LoadConfig(config.GetenvDefault("PAYTOX_CONFIG", "config.json")).
		InitRabbitmqConnection(ctx).
		InitRabbitmqRegistries().
		Extend(func(a *builder) {
			// ----- RABBITMQ LOGGING SINK -----
			if logPublisher := a.Publishers.GetPublisher(config.LogPublisher); logPublisher != nil {
				logger.AddSinkToLoggerInstance(a.Logger, rabbitmq.CreateRabbitmqLoggerSink(serviceName, logPublisher))
			}
		}).
		Extend(func(a *builder) {
			cfg := a.Config

			// ----- DATABASE -----
			models := append(claimstore.Models(), logaudit.Models()...)
			db, err := database.ConnectToDatabase(cfg.DatabaseConf, a.Logger, models...)
			if err != nil {
				a.Logger.Fatalf(err, "Failed to connect to database")
			}
			a.OnShutdown(func() error { return database.Close(db) })
			outcomes := claimstore.NewOutcomeRepository(db)
			ledger := claimstore.NewLedgerRepository(db)

			// ----- LOG AUDIT -----
			logs := logaudit.NewRepository(db)
			logHandler = logaudit.NewHandler(logs)
			if consumer := a.Consumers.GetConsumer(config.LogConsumer); consumer != nil {
				// dedicated logger: the default one publishes into the queue this worker drains
				workers = append(workers, logaudit.NewSinkWorker(consumer, logs, serviceName, logger.New().WithOutput(os.Stdout)))
			}

			// ----- PROVERS + RELAY -----
			deps := pipeline.Deps{
				Engine: engine.NewLoader(engine.WithLogger(a.Logger)),
				Remote: remote.New(cfg.ProverConf.RemoteTimeout, a.Logger),
			}
			if cfg.RelayConf.RPCURL != "" && cfg.RelayConf.BundlerURL != "" {
				r, closeRelay, err := relay.Dial(ctx, cfg.RelayConf, a.Logger)
				if err != nil {
					a.Logger.Fatalf(err, "Failed to dial relay endpoints")
				}
				a.OnShutdown(func() error { closeRelay(); return nil })
				deps.Relay = r
			} else {
				a.Logger.Warn("Relay RPC endpoints not configured, on-chain submission disabled")
			}

			// ----- ENS -----
			var names handlers.NameResolver
			networks, closeNetworks, err := ens.DialNetworks(ctx, cfg.EnsConf)
			if err != nil {
				a.Logger.Errorf(err, "Failed to dial ENS networks, name resolution disabled")
			} else {
				a.OnShutdown(func() error { closeNetworks(); return nil })
				if len(networks) > 0 {
					names = ens.NewResolver(networks, a.Logger)
				}
			}

			// ----- PLATFORMS + HANDSHAKES -----
			platforms, err := platform.NewRegistry(cfg.PlatformsConf...)
			if err != nil {
				a.Logger.Fatalf(err, "Invalid platform overrides")
			}
			handshakes := handshake.NewRegistry(cfg.RestConf.PublicOrigin, cfg.AuthConf.WindowTTL,
				handshake.WithRegistryLogger(a.Logger),
				handshake.WithCompletionHook(func(h *handshake.Handshake, out handshake.Outcome) {
					a.Logger.Infof("Handshake %s finished: %s", h.ID, out.State)
				}),
			)

			// ----- CLAIM SESSIONS -----
			var events claims.EventHandler = claims.NewLedgerWriter(ledger)
			if publisher := a.Publishers.GetPublisher(config.ClaimEventsPublisher); publisher != nil {
				events = claims.NewQueuePublisher(publisher)
				if consumer := a.Consumers.GetConsumer(config.ClaimEventsConsumer); consumer != nil {
					workers = append(workers, claims.NewLedgerConsumer(consumer, claims.NewLedgerWriter(ledger), a.Logger))
				} else {
					a.Logger.Warn("Claim events are published but nothing consumes them into the ledger")
				}
			}
			manager := claims.NewManager(deps,
				claims.WithEnvironment(pipeline.Environment{
					Workers:  cfg.ProverConf.Workers,
					CacheDir: cfg.ProverConf.CacheDir,
				}),
				claims.WithHandlers(events),
				claims.WithLogger(a.Logger),
			)
			a.OnShutdown(func() error { manager.Close(); return nil })

			// ----- WORKERS -----
			workers = append(workers, claims.NewJanitor(cfg.JanitorConf, manager, handshakes, outcomes, a.Logger))

			handler = handlers.NewHandler(handlers.Deps{
				Platforms:    platforms,
				Claims:       manager,
				Handshakes:   handshakes,
				AuthURLs:     platform.NewAuthURLBuilder(cfg.AuthConf.BackendURL, cfg.AuthConf.ClientID, cfg.AuthConf.RedirectURL),
				Outcomes:     outcomes,
				Ledger:       ledger,
				Names:        names,
				SecureCookie: cfg.RestConf.SecureCookie,
				Logger:       a.Logger,
			})
		})

	app.AddWorkerServices(workers...).
		AddGinRoutes(handler.Routes()...).
		AddGinRoutes(logHandler.Routes()...).
		InitGinRouter()

	if err := app.Build().Start(ctx); err != nil {
		app.Logger.Fatal(err, "Application stopped with error")
	}
	app.Logger.Info("Application stopped")
}
