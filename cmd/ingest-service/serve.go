package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	health "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/config"
	httptransport "github.com/pribylovaa/go-news-aggregator/ingest-service/internal/transport/http"
	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/transport/http/handlers"
	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/transport/http/middleware"
	"github.com/pribylovaa/go-news-aggregator/ingest-service/pkg/interceptors"
	logctx "github.com/pribylovaa/go-news-aggregator/ingest-service/pkg/log"
)

type serveOptions struct {
	AutoMigrate bool
	NoIngest    bool
}

// serve поднимает admin HTTP API, gRPC health и периодический ingest
// и блокируется до отмены ctx.
func serve(ctx context.Context, cfg *config.Config, log *slog.Logger, opts serveOptions) error {
	log.Info("starting ingest-service", slog.String("env", cfg.Env), slog.String("db", cfg.DB.Driver))

	a, err := build(ctx, cfg, log, prometheus.DefaultRegisterer, opts.AutoMigrate)
	if err != nil {
		log.Error("startup_failed", slog.String("err", err.Error()))
		return err
	}
	defer a.Close()

	var ready atomic.Bool

	httpSrv := &http.Server{
		Addr: cfg.HTTP.Addr(),
		Handler: httptransport.NewRouter(a.svc, httptransport.Options{
			Logger:  log,
			Timeout: cfg.Timeouts.Service,
			Auth: middleware.AuthConfig{
				Secret:   cfg.Auth.JWTSecret,
				Issuer:   cfg.Auth.Issuer,
				Audience: firstNonEmpty(cfg.Auth.Audience),
			},
			Ready:    ready.Load,
			Gatherer: prometheus.DefaultGatherer,
			Defaults: handlers.RunDefaults{Window: cfg.Pipeline.Window, TargetNew: cfg.Pipeline.TargetNew},
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	if cfg.Auth.JWTSecret == "" {
		log.Warn("auth_disabled", slog.String("reason", "auth.jwt_secret is empty"))
	}

	grpc_prometheus.EnableHandlingTimeHistogram()

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			interceptors.Recover(log),
			interceptors.UnaryLogging(log),
			interceptors.WithTimeout(cfg.Timeouts.Service),
			grpc_prometheus.UnaryServerInterceptor,
		),
		grpc.ChainStreamInterceptor(
			interceptors.StreamRecover(log),
			grpc_prometheus.StreamServerInterceptor,
		),
	)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)

	if cfg.Env == envLocal || cfg.Env == envDev {
		reflection.Register(grpcServer)
	}

	grpc_prometheus.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.GRPC.Addr())
	if err != nil {
		log.Error("grpc_listen_failed", slog.String("addr", cfg.GRPC.Addr()), slog.String("err", err.Error()))
		return err
	}

	serveErrCh := make(chan error, 2)

	go func() {
		log.Info("http_listen_start", slog.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
		}
	}()

	go func() {
		log.Info("grpc_listen_start", slog.String("addr", cfg.GRPC.Addr()))
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			serveErrCh <- err
		}
	}()

	ingestCtx, stopIngest := context.WithCancel(logctx.Into(ctx, log))
	defer stopIngest()

	var wg sync.WaitGroup
	if !opts.NoIngest {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.svc.StartIngest(ingestCtx); err != nil {
				log.Error("ingest_failed", slog.String("err", err.Error()))
			}
		}()
	} else {
		log.Info("ingest_disabled")
	}

	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	ready.Store(true)

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown_requested")
	case serveErr = <-serveErrCh:
		log.Error("serve_failed", slog.String("err", serveErr.Error()))
	}

	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	ready.Store(false)

	// Текущий прогон дорабатывает в пределах своих таймаутов.
	stopIngest()
	wg.Wait()

	shutdown(log, grpcServer, httpSrv)

	log.Info("service_stopped")

	return serveErr
}

func shutdown(log *slog.Logger, grpcServer *grpc.Server, httpSrv *http.Server) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		log.Info("grpc_stopped")
	case <-shutdownCtx.Done():
		log.Warn("grpc_force_stop")
		grpcServer.Stop()
	}

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http_shutdown_failed", slog.String("err", err.Error()))
		_ = httpSrv.Close()
	}
}

func firstNonEmpty(values []string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
