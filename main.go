package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/errgroup"

	"github.com/Billy-Davies-2/nba-predictor-ui/internal/cache"
	"github.com/Billy-Davies-2/nba-predictor-ui/internal/clickhouse"
	"github.com/Billy-Davies-2/nba-predictor-ui/internal/config"
	"github.com/Billy-Davies-2/nba-predictor-ui/internal/dal"
	"github.com/Billy-Davies-2/nba-predictor-ui/internal/form"
	grpcserver "github.com/Billy-Davies-2/nba-predictor-ui/internal/grpc"
	"github.com/Billy-Davies-2/nba-predictor-ui/internal/handlers"
	"github.com/Billy-Davies-2/nba-predictor-ui/internal/history"
	"github.com/Billy-Davies-2/nba-predictor-ui/internal/logger"
	"github.com/Billy-Davies-2/nba-predictor-ui/internal/metrics"
	"github.com/Billy-Davies-2/nba-predictor-ui/internal/mocks"
	"github.com/Billy-Davies-2/nba-predictor-ui/internal/predictor"
	"github.com/Billy-Davies-2/nba-predictor-ui/internal/pubsub"
	"github.com/Billy-Davies-2/nba-predictor-ui/web"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Initialize logger first
	logger.Init()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Info("Starting NBA predictor UI", "environment", cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	health := handlers.NewHealthHandlers()

	store := openStore(cfg)
	defer store.Close()
	health.Add("database", true, store.Ping)

	// Pub/sub: embedded NATS in development, real NATS JetStream otherwise
	var upstream pubsub.Upstream
	if cfg.IsDevelopment() {
		embedded, err := pubsub.NewEmbeddedNATSPubSub(pubsub.EmbeddedNATSOptions{
			Subject:    cfg.NATS.Subject,
			StreamName: pubsub.DefaultStreamName,
		})
		if err != nil {
			logger.Error("Failed to initialize embedded NATS", "error", err)
			log.Fatalf("Failed to initialize embedded NATS: %v", err)
		}
		defer embedded.Close()
		upstream = embedded
		logger.Info("Embedded NATS server ready", "url", embedded.ServerURL())
	} else {
		natsBus, err := pubsub.NewNATSPubSub(cfg.NATS.URL, cfg.NATS.Subject)
		if err != nil {
			logger.Error("Failed to initialize NATS", "error", err)
			log.Fatalf("Failed to initialize NATS: %v", err)
		}
		defer natsBus.Close()
		upstream = natsBus
		health.Add("nats", true, func(context.Context) error {
			if !natsBus.Connected() {
				return errors.New("not connected")
			}
			return nil
		})
		logger.Info("Connected to NATS", "url", cfg.NATS.URL)
	}
	bus := pubsub.NewWithUpstream(upstream)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Local stand-in for the prediction service
	if cfg.Predictor.MockBackend {
		lis, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			log.Fatalf("Failed to listen for mock backend: %v", err)
		}
		mockServer := &http.Server{Handler: mocks.NewPredictionBackend().Handler(), ReadHeaderTimeout: 5 * time.Second}
		cfg.Predictor.BaseURL = "http://" + lis.Addr().String()
		g.Go(func() error { return serveHTTP(ctx, mockServer, lis) })
		logger.Info("Mock prediction backend listening", "url", cfg.Predictor.BaseURL)
	}

	opts := []predictor.Option{predictor.WithTimeout(cfg.Predictor.Timeout.Duration)}
	if cfg.Predictor.TokenURL != "" {
		opts = append(opts, predictor.WithClientCredentials(ctx, &clientcredentials.Config{
			ClientID:     cfg.Predictor.ClientID,
			ClientSecret: cfg.Predictor.ClientSecret,
			TokenURL:     cfg.Predictor.TokenURL,
			Scopes:       cfg.Predictor.Scopes,
		}))
		logger.Info("Using OAuth2 client credentials for the prediction service", "token_url", cfg.Predictor.TokenURL)
	}
	client := predictor.NewClient(cfg.Predictor.BaseURL, opts...)
	logger.Info("Prediction service configured", "base_url", client.BaseURL())

	var p form.Predictor = m.InstrumentPredictor(client)

	if cfg.Redis.Addr != "" {
		rdb, err := cache.ConnectRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Error("Failed to connect to Redis", "error", err, "address", cfg.Redis.Addr)
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer rdb.Close()
		p = cache.NewPredictor(p, rdb, cfg.Redis.TTL.Duration, m)
		health.Add("redis", false, rdb.Ping)
		logger.Info("Prediction cache enabled", "address", cfg.Redis.Addr, "ttl", cfg.Redis.TTL.Duration)
	}

	recorderOpts := []history.Option{history.WithObserver(m)}
	var stats handlers.WinCounter = store
	if cfg.ClickHouse.Addr != "" {
		ch, err := clickhouse.NewClient(ctx, cfg.ClickHouse.Addr, cfg.ClickHouse.Database, cfg.ClickHouse.User, cfg.ClickHouse.Password)
		if err != nil {
			logger.Error("Failed to initialize ClickHouse", "error", err, "address", cfg.ClickHouse.Addr)
			log.Fatalf("Failed to initialize ClickHouse: %v", err)
		}
		defer ch.Close()
		recorderOpts = append(recorderOpts, history.WithSink(ch))
		stats = ch
		health.Add("clickhouse", false, ch.Ping)
		logger.Info("Connected to ClickHouse", "address", cfg.ClickHouse.Addr, "database", cfg.ClickHouse.Database)
	} else {
		logger.Info("ClickHouse not configured, stats come from the history store")
	}

	recorder := history.NewRecorder(p, store, bus, recorderOpts...)

	registry := form.NewRegistry(recorder, cfg.SessionTTL.Duration)
	registry.OnSweep(func(n int) { m.ActiveSessions.Set(float64(n)) })

	tmpl, err := web.Templates()
	if err != nil {
		logger.Error("Failed to parse templates", "error", err)
		log.Fatalf("Failed to parse templates: %v", err)
	}
	logger.Info("Templates loaded successfully")

	pages := handlers.NewPageHandlers(registry, tmpl, bus, !cfg.IsDevelopment())
	api := handlers.NewAPIHandlers(recorder, client, store, stats, bus).WithSSEGauge(m.SSEClients)

	// Set up HTTP routes
	mux := http.NewServeMux()

	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServerFS(web.Static())))

	// Pages
	mux.HandleFunc("/", pages.Index)
	mux.HandleFunc("/predict", pages.Submit)
	mux.HandleFunc("/reset", pages.Reset)

	// API
	mux.HandleFunc("/api/teams", api.ListTeams)
	mux.HandleFunc("/api/predict", api.Predict)
	mux.HandleFunc("/api/backend/health", api.BackendHealth)
	mux.HandleFunc("/api/history", api.History)
	mux.HandleFunc("/api/stats", api.Stats)

	// SSE for realtime updates
	mux.HandleFunc("/api/events", api.EventsSSE)

	// Health and metrics
	mux.HandleFunc("/api/health", health.Health)
	mux.HandleFunc("/healthz", health.Liveness)
	mux.HandleFunc("/readyz", health.Readiness)
	mux.Handle("/metrics", metrics.Handler(reg))

	httpLis, err := net.Listen("tcp", "0.0.0.0:"+cfg.Port)
	if err != nil {
		logger.Error("Failed to listen", "error", err, "port", cfg.Port)
		log.Fatalf("Failed to listen: %v", err)
	}
	httpServer := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		// Canceled on shutdown so open event streams return
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	grpcLis, err := net.Listen("tcp", "0.0.0.0:"+cfg.GRPCPort)
	if err != nil {
		logger.Error("Failed to listen for gRPC", "error", err, "port", cfg.GRPCPort)
		log.Fatalf("Failed to listen for gRPC: %v", err)
	}
	grpcSrv := grpcserver.NewServer(client, m.SetBackendUp)

	g.Go(func() error {
		logger.Info("Server starting", "address", httpLis.Addr().String())
		return serveHTTP(ctx, httpServer, httpLis)
	})
	g.Go(func() error {
		go func() {
			<-ctx.Done()
			grpcSrv.Stop()
		}()
		return grpcSrv.Serve(grpcLis)
	})
	g.Go(func() error {
		return grpcSrv.RunProbe(ctx, cfg.HealthProbeInterval.Duration)
	})
	g.Go(func() error {
		return registry.Run(ctx, time.Minute)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped")
}

func openStore(cfg *config.Config) dal.PredictionStore {
	switch cfg.Database.Driver {
	case "sqlite":
		store, err := dal.NewSQLiteDAL(cfg.Database.SQLiteFile)
		if err != nil {
			logger.Error("Failed to initialize SQLite", "error", err)
			log.Fatalf("Failed to initialize SQLite: %v", err)
		}
		logger.Info("Connected to SQLite database", "file", cfg.Database.SQLiteFile)
		return store
	case "postgres":
		store, err := dal.NewPostgresDAL(cfg.Database.URL)
		if err != nil {
			logger.Error("Failed to initialize Postgres", "error", err)
			log.Fatalf("Failed to initialize Postgres: %v", err)
		}
		logger.Info("Connected to Postgres database")
		return store
	default:
		logger.Info("Using in-memory data store")
		return dal.NewMemoryDAL()
	}
}

// serveHTTP runs srv until ctx is canceled, then shuts it down gracefully
func serveHTTP(ctx context.Context, srv *http.Server, lis net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(lis)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
