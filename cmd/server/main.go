package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/esperancehsu/Gestion-Presence/internal/adapters/auth/token"
	"github.com/esperancehsu/Gestion-Presence/internal/adapters/cache"
	"github.com/esperancehsu/Gestion-Presence/internal/adapters/grpc/interceptor"
	"github.com/esperancehsu/Gestion-Presence/internal/adapters/http/handler"
	"github.com/esperancehsu/Gestion-Presence/internal/adapters/repository/postgres"
	"github.com/esperancehsu/Gestion-Presence/internal/core/access"
	"github.com/esperancehsu/Gestion-Presence/internal/core/employee"
	"github.com/esperancehsu/Gestion-Presence/internal/core/presence"
	"github.com/esperancehsu/Gestion-Presence/internal/core/report"
	"github.com/esperancehsu/Gestion-Presence/internal/core/user"
	"github.com/esperancehsu/Gestion-Presence/internal/platform/authz"
	"github.com/esperancehsu/Gestion-Presence/internal/platform/config"
	pg "github.com/esperancehsu/Gestion-Presence/internal/platform/db/postgres"
	"github.com/esperancehsu/Gestion-Presence/internal/platform/logging"
	"github.com/esperancehsu/Gestion-Presence/internal/platform/metrics"
	"github.com/esperancehsu/Gestion-Presence/internal/platform/server"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults to CONFIG_PATH env or assets/local.yaml)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(effectiveConfigPath(*configPath))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize logger")
	}

	dbPool, err := pg.NewPool(ctx, cfg.Database, pg.WithQueryLogger(logger))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize database pool")
	}
	defer dbPool.Close()

	rules, err := authz.LoadRoleRules(cfg.Authz.PolicyPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load role rules")
	}
	policy := access.NewPolicy(rules)
	txManager := pg.NewTransactionManager(dbPool, pg.IsolationFromConfig(cfg.Database))
	m := metrics.New()

	employeeSvc := employee.NewService(postgres.NewEmployeeRepository(dbPool), policy, nil, txManager)
	presenceSvc := presence.NewService(postgres.NewPresenceRepository(dbPool), policy, presence.LocalClock(cfg.Server.Location), txManager)
	reportSvc := report.NewService(postgres.NewReportRepository(dbPool), policy, nil, txManager)

	var actors user.ActorResolver = user.NewService(postgres.NewUserRepository(dbPool), rules, txManager)
	if cfg.Redis.Enabled() {
		client, err := cache.NewClient(ctx, cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer client.Close()
		actors = cache.NewActorCache(client, actors, cfg.Redis.ActorCacheTTL,
			cache.WithObserver(m),
			cache.WithLogger(logger.With().Str("component", "actor_cache").Logger()),
		)
		logger.Info().Str("addr", cfg.Redis.Addr).Dur("ttl", cfg.Redis.ActorCacheTTL).Msg("actor cache enabled")
	}

	authn, err := token.New(cfg.Auth.Secret, cfg.Auth.Issuer)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize authenticator")
	}

	router := handler.NewRouter(handler.RouterParams{
		Logger:             logger,
		Authenticator:      authn,
		Actors:             actors,
		Employees:          employeeSvc,
		Presences:          presenceSvc,
		Reports:            reportSvc,
		Metrics:            m,
		RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
		Ready:              dbPool.Ping,
	})

	grpcLogger := logger.With().Str("component", "grpc").Logger()
	srv := server.New(cfg.Server, router, logger,
		grpc.ChainUnaryInterceptor(interceptor.UnaryLogger(grpcLogger)),
		grpc.ChainStreamInterceptor(interceptor.StreamLogger(grpcLogger)),
	)
	logger.Info().
		Str("http_addr", cfg.Server.HTTPAddr).
		Str("grpc_addr", cfg.Server.GRPCAddr).
		Str("timezone", cfg.Server.Location.String()).
		Msg("starting server")

	if err := srv.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server stopped with error")
	}
}

func effectiveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("CONFIG_PATH"); env != "" {
		return env
	}
	return "assets/local.yaml"
}
