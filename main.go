package main

import (
	"context"
	"embed"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"riskscore/internal/config"
	"riskscore/internal/container"
	"riskscore/internal/telemetry"
	"riskscore/ui"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

//go:embed ui/templates/*.html ui/static/*
var embeddedFiles embed.FS

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.InitTracer(ctx, appConfig.Telemetry)
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	c, err := container.New(appConfig)
	if err != nil {
		log.Fatalf("Failed to create application container: %v", err)
	}

	gin.SetMode(appConfig.Server.GinMode)
	server, err := ui.NewServer(embeddedFiles, ui.Deps{
		Analysis:        c.Analysis,
		Advisory:        c.Advisory,
		Exports:         c.Exports,
		DefaultLanguage: appConfig.Server.DefaultLanguage,
		SessionCapacity: appConfig.Server.SessionCapacity,
	})
	if err != nil {
		log.Fatalf("Failed to initialize server: %v", err)
	}

	// Health, metrics and pprof live on their own port
	ops := &http.Server{
		Addr:              ":" + appConfig.Profiling.Port,
		Handler:           ui.NewOpsApp(c.Scoring, appConfig.Profiling.Enabled).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Printf("Ops server starting on :%s (pprof=%t)", appConfig.Profiling.Port, appConfig.Profiling.Enabled)
		if err := ops.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Ops server failed: %v", err)
		}
	}()

	web := &http.Server{
		Addr:              ":" + appConfig.Server.Port,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("Starting riskscore dashboard on port %s", appConfig.Server.Port)
		if err := web.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := web.Shutdown(shutdownCtx); err != nil {
		log.Printf("Dashboard shutdown: %v", err)
	}
	if err := ops.Shutdown(shutdownCtx); err != nil {
		log.Printf("Ops server shutdown: %v", err)
	}
	if err := c.Shutdown(shutdownCtx); err != nil {
		log.Printf("Container shutdown: %v", err)
	}
	if err := telemetry.Shutdown(shutdownCtx, tp); err != nil {
		log.Printf("Tracer shutdown: %v", err)
	}
}
