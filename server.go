package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/api"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/audit"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/broadcast"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/config"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/connectivity"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/contingency"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/gateway"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/middlewares"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/models"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/storage"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/workflow"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

func main() {
	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Storage wiring. The database may be down at startup; the contingency
	// store serves until the probe brings the relational backend back.
	store, err := contingency.NewStore(config.ContingencyDir(), logger)
	if err != nil {
		logger.WithError(err).Fatal("cannot initialize contingency store")
	}

	state := connectivity.NewState(logger)
	sel := &storage.Selector{
		Contingency: storage.NewContingency(store),
		State:       state,
	}

	if err := config.ConnectDatabase(); err != nil {
		state.SetDisconnected(err.Error())
	} else {
		sel.Relational = storage.NewRelational(config.GetDB())
	}
	config.ConnectRedis()

	registry := models.DefaultRegistry()
	auditLogger := audit.NewLogger(sel, registry, logger)
	hub := broadcast.NewHub()
	validator := gateway.NewValidator(sel, config.GetDB)
	gw := gateway.New(registry, sel, validator, auditLogger, hub, logger)
	receipt := workflow.NewReceiptFinalizer(sel, config.GetDB, store, registry, auditLogger, hub, config.GetRedisLock())
	sweeper := workflow.NewRetentionSweeper(gw, config.RetentionWindow())

	// On recovery the gorm pool may not exist yet (database was down when the
	// process started); establish it before the selector flips back.
	monitor := connectivity.NewMonitor(state, connectivity.DSNProbe(config.BuildDSN()), func() error {
		if config.GetDB() == nil {
			if err := config.ConnectDatabase(); err != nil {
				return err
			}
		}
		if sel.Relational == nil {
			sel.Relational = storage.NewRelational(config.GetDB())
		}
		return nil
	})
	// One synchronous probe so the first request already sees the right mode,
	// and one immediate sweep: the cron only fires after a full interval.
	monitor.ProbeOnce(sigCtx)
	if _, err := sweeper.Sweep(sigCtx); err != nil {
		config.LogError(logger, "server.go", "main", "startup retention sweep", nil, err)
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(fmt.Sprintf("@every %s", config.ProbeInterval()), func() {
		monitor.ProbeOnce(context.Background())
	}); err != nil {
		logger.WithError(err).Fatal("cannot schedule connectivity probe")
	}
	if _, err := scheduler.AddFunc(fmt.Sprintf("@every %s", config.SweepInterval()), func() {
		if _, err := sweeper.Sweep(context.Background()); err != nil {
			config.LogError(logger, "server.go", "main", "retention sweep", nil, err)
		}
	}); err != nil {
		logger.WithError(err).Fatal("cannot schedule retention sweep")
	}
	scheduler.Start()

	r := gin.New()
	r.Use(middlewares.CorrelationMiddleware())
	r.Use(cors.New(corsConfig()))
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	api.NewServer(gw, receipt, state, hub).RegisterRoutes(r)

	port := os.Getenv("API_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	logger.WithFields(logrus.Fields{
		"port": port,
		"mode": sel.ModeName(),
	}).Info("gestao-estoque persistence gateway started")

	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop the timers first so no sweep or probe starts mid-drain.
	<-scheduler.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
	if db := config.GetDB(); db != nil {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

// corsConfig requires an explicit origin allowlist in production and allows
// all origins everywhere else.
func corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if config.IsProduction() {
		if allowedOrigins == "" {
			cfg.AllowOrigins = []string{}
		} else {
			cfg.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		cfg.AllowAllOrigins = true
	}
	cfg.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	cfg.AddAllowHeaders("Origin", "Content-Type", "Authorization", "X-Warehouse-Id", middlewares.CorrelationHeader)
	cfg.AddExposeHeaders("Content-Length", middlewares.CorrelationHeader)
	cfg.AllowCredentials = true
	return cfg
}

// customErrorLogger logs only requests that collected gin errors.
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
