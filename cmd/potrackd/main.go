package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/oluwaseun-a/po-tracker/internal/common"
	"github.com/oluwaseun-a/po-tracker/internal/export"
	"github.com/oluwaseun-a/po-tracker/internal/extract"
	"github.com/oluwaseun-a/po-tracker/internal/llm"
	"github.com/oluwaseun-a/po-tracker/internal/llm/openai"
	"github.com/oluwaseun-a/po-tracker/internal/pipeline"
	"github.com/oluwaseun-a/po-tracker/internal/repository"
	"github.com/oluwaseun-a/po-tracker/internal/server"
)

func main() {
	zlog, _ := zap.NewProduction()
	defer func() { _ = zlog.Sync() }()
	slogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(slogger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		zlog.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := repository.Open(ctx, repository.Config{
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, slogger)
	if err != nil {
		zlog.Fatal("database connect failed", zap.Error(err))
	}
	defer pool.Close()
	if err := repository.EnsureSchema(ctx, pool); err != nil {
		zlog.Fatal("schema setup failed", zap.Error(err))
	}

	var structurer llm.Structurer
	if !slices.Contains(cfg.Ingest.FeatureFlags, pipeline.FlagDeterministicStructuring) {
		client, err := openai.New(openai.Config{
			BaseURL:         cfg.LLM.BaseURL,
			APIKey:          cfg.LLM.APIKey,
			Model:           cfg.LLM.Model,
			Temperature:     cfg.LLM.Temperature,
			Timeout:         cfg.LLM.Timeout,
			LenientOptional: cfg.LLM.LenientOptional,
		}, slogger)
		if err != nil {
			zlog.Fatal("openai client setup failed", zap.Error(err))
		}
		structurer = client
	}

	proc, err := pipeline.New(pipeline.Config{
		TempDir:      cfg.Ingest.TempDir,
		Structurer:   structurer,
		FeatureFlags: cfg.Ingest.FeatureFlags,
		Extract: extract.Config{
			Pdftotext: cfg.Ingest.PdftotextBin,
			MaxPages:  cfg.Ingest.MaxPDFPages,
		},
		Logger: slogger,
	})
	if err != nil {
		zlog.Fatal("pipeline setup failed", zap.Error(err))
	}

	// Scratch files from a previous crashed run are orphans by definition.
	if err := proc.Scratch().CleanupAll(); err != nil {
		zlog.Warn("startup scratch cleanup incomplete", zap.Error(err))
	}

	orders := repository.NewOrderRepository(pool, slogger)
	exporter := export.NewService(orders, slogger)
	handler := server.NewHandler(proc, orders, exporter, cfg.Ingest.MaxUploadMB, zlog)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		zlog.Info("http server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zlog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Warn("http shutdown incomplete", zap.Error(err))
	}
}
