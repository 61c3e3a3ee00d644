package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"catalog/internal/account"
	accounthandler "catalog/internal/account/handler"
	accountmetrics "catalog/internal/account/metrics"
	"catalog/internal/auth"
	"catalog/internal/collection"
	collectionhandler "catalog/internal/collection/handler"
	"catalog/internal/dropengine"
	dropenginehandler "catalog/internal/dropengine/handler"
	dropenginemetrics "catalog/internal/dropengine/metrics"
	"catalog/internal/memberships"
	membershipshandler "catalog/internal/memberships/handler"
	"catalog/internal/node"
	nodehandler "catalog/internal/node/handler"
	nodemetrics "catalog/internal/node/metrics"
	"catalog/internal/payments"
	"catalog/internal/platform/config"
	"catalog/internal/platform/httpserver"
	"catalog/internal/platform/logger"
	"catalog/internal/platform/postgres"
	"catalog/internal/platform/redis"
	httptransport "catalog/internal/transport/http"
	"catalog/pkg/domain"
	"catalog/pkg/platform/audit"
	"catalog/pkg/platform/audit/publisher"
	auditmem "catalog/pkg/platform/audit/store/memory"
)

const (
	nodeCacheSize   = 4096
	engineAddress   = domain.Address("0xcatalog-drop-engine")
	defaultOwner    = domain.Address("0xcatalog-operator")
	shutdownTimeout = 10 * time.Second
)

// main wires stores, services, and transport, then runs the server until a
// signal arrives. Business logic lives in the internal services.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(cfg.PostgresURL)
	if err != nil {
		log.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
	}

	redisClient, err := redis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var auditor audit.Emitter = auditmem.NewInMemoryStore()
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := publisher.NewKafka(ctx, cfg.KafkaBrokers, cfg.AuditTopic, publisher.WithLogger(log))
		if err != nil {
			log.Error("kafka connection failed", "error", err)
			os.Exit(1)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := kafka.Close(flushCtx); err != nil {
				log.Error("kafka flush failed", "error", err)
			}
		}()
		auditor = kafka
	}

	accountMetrics := accountmetrics.New()
	var accountStore account.Store = account.NewInMemoryStore()
	var nodeStore node.Store = node.NewInMemoryStore()
	if db != nil {
		accountPG := account.NewPostgres(db)
		nodePG := node.NewPostgres(db)
		if err := accountPG.Migrate(ctx); err != nil {
			log.Error("account schema migration failed", "error", err)
			os.Exit(1)
		}
		if err := nodePG.Migrate(ctx); err != nil {
			log.Error("node schema migration failed", "error", err)
			os.Exit(1)
		}
		accountStore = accountPG
		nodeStore = nodePG
	}
	if redisClient != nil {
		accountStore = account.NewCachedStore(accountStore, redisClient, config.ResolveCacheTTL, accountMetrics)
	}

	accountOpts := []account.Option{
		account.WithLogger(log),
		account.WithAuditor(auditor),
		account.WithMetrics(accountMetrics),
	}
	if cfg.TrustedIssuerMode {
		accountOpts = append(accountOpts, account.WithTrustedIssuerMode(domain.Address(cfg.IssuerAdmin)))
	}
	accounts, err := account.New(accountStore, accountOpts...)
	if err != nil {
		log.Error("account service init failed", "error", err)
		os.Exit(1)
	}

	nodeMetrics := nodemetrics.New()
	cachedNodeStore, err := node.NewCachedStore(nodeStore, nodeCacheSize, nodeMetrics)
	if err != nil {
		log.Error("node cache init failed", "error", err)
		os.Exit(1)
	}
	nodes, err := node.New(cachedNodeStore, accounts,
		node.WithLogger(log),
		node.WithAuditor(auditor),
		node.WithMetrics(nodeMetrics),
	)
	if err != nil {
		log.Error("node service init failed", "error", err)
		os.Exit(1)
	}

	collections, err := collection.New(collection.NewInMemoryStore(), nodes,
		collection.WithLogger(log),
		collection.WithAuditor(auditor),
	)
	if err != nil {
		log.Error("collection service init failed", "error", err)
		os.Exit(1)
	}

	engineOwner := domain.Address(cfg.EngineOwner)
	if engineOwner.IsZero() {
		engineOwner = defaultOwner
	}
	ledger := payments.NewLedger()
	engine, err := dropengine.New(engineAddress, collections, ledger,
		dropengine.WithLogger(log),
		dropengine.WithAuditor(auditor),
		dropengine.WithMetrics(dropenginemetrics.New()),
		dropengine.WithOwner(engineOwner),
	)
	if err != nil {
		log.Error("drop engine init failed", "error", err)
		os.Exit(1)
	}
	collections.RegisterEngine(engine)

	rosters, err := memberships.New(memberships.NewInMemoryStore(), nodes,
		memberships.WithLogger(log),
		memberships.WithAuditor(auditor),
	)
	if err != nil {
		log.Error("memberships service init failed", "error", err)
		os.Exit(1)
	}

	jwtService := auth.NewJWTService(cfg.JWTSigningKey, "catalog")
	router := httptransport.NewRouter(jwtService, log,
		accounthandler.New(accounts, log),
		nodehandler.New(nodes, log),
		collectionhandler.New(collections, log),
		dropenginehandler.New(engine, log),
		membershipshandler.New(rosters, log),
	)
	srv := httpserver.New(cfg.Addr, router)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting catalog server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
