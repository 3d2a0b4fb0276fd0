package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/FundProjects/fundnova"
	"github.com/FundProjects/fundnova/api"
	"github.com/FundProjects/fundnova/internal/config"
	"github.com/FundProjects/fundnova/sudoapi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/natefinch/lumberjack.v2"
)

func serve() error {
	fmt.Printf("Starting fundnova %s\n", fundnova.Version)

	logDir := config.Common.LogDir
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("couldn't create log dir: %w", err)
	}
	accessLog := log.New(&lumberjack.Logger{
		Filename: path.Join(logDir, "access.log"),
	}, "", 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	base, err := sudoapi.InitializeBaseAPI(ctx)
	if err != nil {
		return err
	}
	defer base.Close()
	base.Start(ctx)

	r := chi.NewRouter()

	corsConfig := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Api-Key", "X-Donor-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(corsConfig.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  accessLog,
		NoColor: true,
	}))

	r.Mount("/api", api.New(base).Handler())
	r.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    config.Common.Address(),
		Handler: r,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Could not start server", slog.Any("err", err))
			cancel()
		}
	}()

	slog.Info("Successfully started", slog.String("addr", server.Addr))
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	slog.Info("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("Couldn't shut down server cleanly", slog.Any("err", err))
	}

	if err := config.SaveFlags(config.Common.FlagsPath); err != nil {
		slog.Warn("Couldn't persist runtime flags", slog.Any("err", err))
	}

	return nil
}
