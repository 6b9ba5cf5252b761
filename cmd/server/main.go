package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/cryptocandle/dashboard-engine/internal/analysis"
	"github.com/cryptocandle/dashboard-engine/internal/config"
	"github.com/cryptocandle/dashboard-engine/internal/marketdata"
	"github.com/cryptocandle/dashboard-engine/internal/metrics"
	"github.com/cryptocandle/dashboard-engine/internal/model"
	"github.com/cryptocandle/dashboard-engine/internal/news"
	"github.com/cryptocandle/dashboard-engine/internal/paper"
	"github.com/cryptocandle/dashboard-engine/internal/screener"
	"github.com/cryptocandle/dashboard-engine/internal/store"
	"github.com/cryptocandle/dashboard-engine/internal/ws"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	switch {
	case cfg.Storage.DatabaseURL != "":
		pool, err := pgxpool.New(context.Background(), cfg.Storage.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)

		pg, err := store.NewPostgresStore(context.Background(), pool)
		if err != nil {
			slog.Error("database migration failed", "err", err)
			os.Exit(1)
		}
		st = pg
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if cfg.Storage.RedisURL != "" {
			opt, err := redis.ParseURL(cfg.Storage.RedisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, time.Duration(cfg.Storage.CacheTTLSec)*time.Second)
			slog.Info("Redis cache enabled")
		}

	case cfg.Storage.SQLitePath != "":
		sq, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			slog.Error("sqlite open failed", "path", cfg.Storage.SQLitePath, "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, func() { sq.Close() })
		st = sq
		slog.Info("using SQLite store", "path", cfg.Storage.SQLitePath)

	default:
		slog.Warn("no DATABASE_URL or SQLITE_PATH set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- WebSocket hub ---
	wsHub := ws.NewHub()
	go wsHub.Run()

	// --- Services ---
	paperSvc := paper.NewService(st, decimal.NewFromFloat(cfg.Paper.InitialBalance), wsHub)

	mdClient := marketdata.NewClient(
		cfg.MarketData.StocksBaseURL,
		cfg.MarketData.CryptoBaseURL,
		cfg.MarketData.CryptoAPIKey,
		time.Duration(cfg.MarketData.TimeoutSec)*time.Second,
	)
	mdHandlers := marketdata.NewHandlers(mdClient, cfg.MarketData.PopularSymbols)

	technical := analysis.NewTechnicalAnalyzer()
	var analyzer analysis.Analyzer = technical
	if cfg.Analysis.OpenAIAPIKey != "" {
		analyzer = analysis.NewOpenAIAnalyzer(
			cfg.Analysis.OpenAIBaseURL, cfg.Analysis.OpenAIAPIKey, cfg.Analysis.Model, technical)
		slog.Info("OpenAI analysis enabled", "model", cfg.Analysis.Model)
	} else {
		slog.Info("OPENAI_API_KEY not set, using technical analysis only")
	}
	analysisHandler := analysis.NewHandler(analyzer)

	screenerHandler := screener.NewHandler(screener.QuoteSourceFunc(
		func(ctx context.Context) ([]model.Quote, error) {
			return mdClient.PopularQuotes(ctx, cfg.MarketData.PopularSymbols), nil
		}))

	newsHandler := news.NewHandler(news.NewClient(cfg.News.RSSBaseURL, 10*time.Second))

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(time.Duration(cfg.Server.RequestTimeoutSec) * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"dashboard-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time trade and price events.
		r.Get("/ws", wsHub.HandleWS)

		// Paper trading: orders, portfolio, history, watchlists.
		paperSvc.Routes(r)

		// Market data proxy.
		mdHandlers.Routes(r)

		// Analysis, screener, news.
		r.Post("/analyze", analysisHandler.Analyze)
		r.Post("/screener", screenerHandler.Screen)
		r.Get("/news", newsHandler.Feed)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("dashboard-engine listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down dashboard-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("dashboard-engine stopped")
}
