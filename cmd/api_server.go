package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Depado/ginprom"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/go-co-op/gocron/v2"
	"github.com/rm-hull/deep-fry-editor/internal/api"
	"github.com/rm-hull/deep-fry-editor/internal/config"
	"github.com/rm-hull/deep-fry-editor/internal/diag"
	"github.com/rm-hull/deep-fry-editor/internal/editor"
	"github.com/rm-hull/deep-fry-editor/internal/pipeline"
	"github.com/rm-hull/deep-fry-editor/internal/removebg"
	log "github.com/sirupsen/logrus"
	healthcheck "github.com/tavsec/gin-healthcheck"
	"github.com/tavsec/gin-healthcheck/checks"
	hc_config "github.com/tavsec/gin-healthcheck/config"
)

const shutdownTimeout = 10 * time.Second

func ApiServer(cfg *config.Config) {
	diag.ShowVersion()
	diag.UserInfo()
	if cfg.Server.Debug {
		diag.EnvironmentVars()
	}

	store := editor.NewStore(editor.Options{
		TTL:          cfg.Sessions.TTL,
		MaxSessions:  cfg.Sessions.MaxSessions,
		GalleryLimit: cfg.Sessions.GalleryLimit,
		PipelineOptions: []pipeline.Option{
			pipeline.WithFilter(cfg.Pipeline.Filter),
			pipeline.WithMaxDimension(cfg.Pipeline.MaxDimension),
		},
	})

	var sched gocron.Scheduler
	if cfg.Sessions.TTL > 0 {
		var err error
		sched, err = editor.NewJanitor(store, cfg.Sessions.SweepInterval)
		if err != nil {
			log.Fatal(err)
		}
	}

	remover := removebg.New(removebg.Config{
		ApiKey:    cfg.RemoveBg.ApiKey,
		BaseUrl:   cfg.RemoveBg.BaseUrl,
		Timeout:   cfg.RemoveBg.Timeout,
		Tolerance: cfg.RemoveBg.Tolerance,
		Sigma:     cfg.RemoveBg.Sigma,
	})

	r := gin.New()

	prometheus := ginprom.New(
		ginprom.Engine(r),
		ginprom.Path("/metrics"),
		ginprom.Ignore("/healthz"),
	)

	r.Use(
		gin.Recovery(),
		gin.LoggerWithWriter(gin.DefaultWriter, "/healthz", "/metrics"),
		prometheus.Instrument(),
		api.RequestID(),
	)

	if cfg.Server.Debug {
		log.Warn("pprof endpoints are enabled and exposed. Do not run with this flag in production.")
		pprof.Register(r)
	}

	err := healthcheck.New(r, hc_config.DefaultConfig(), []checks.Check{})
	if err != nil {
		log.Fatalf("failed to initialize healthcheck: %v", err)
	}

	api.NewServer(store, remover, cfg.Server.MaxUploadSize).Register(r)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Infof("Starting HTTP API Server on port %d...", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP API Server failed to start on port %d: %v", cfg.Server.Port, err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down HTTP API Server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("failed to shutdown HTTP API Server: %v", err)
	}

	if sched != nil {
		if err := sched.Shutdown(); err != nil {
			log.Fatalf("failed to shutdown scheduler: %v", err)
		}
	}
}
