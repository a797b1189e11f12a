package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	healthcheck "github.com/kirtli/commerce/internal/health"
	"github.com/kirtli/commerce/internal/httpapi"
	"github.com/kirtli/commerce/internal/metrics"
	"github.com/kirtli/commerce/internal/service/lifecycle"
	"github.com/kirtli/commerce/internal/service/stats"
	"github.com/kirtli/commerce/internal/version"
)

const shutdownTimeout = 5 * time.Second

// Run собирает зависимости и держит API до отмены контекста.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	tokens, err := ParseAuthTokens(cfg.AuthTokens)
	if err != nil {
		return fmt.Errorf("parse auth tokens: %w", err)
	}

	orderMetrics := metrics.NewOrderMetrics()

	manager := lifecycle.NewManager(lifecycle.Options{
		Orders:      deps.Orders,
		Gateway:     deps.Gateway,
		Carts:       deps.Carts,
		Users:       deps.Users,
		Emails:      deps.Emails,
		Logger:      logger.WithField("component", "lifecycle"),
		Metrics:     orderMetrics,
		Producer:    deps.Producer,
		ShippingFee: cfg.ShippingFee,
	})

	aggregator := stats.NewAggregator(deps.Orders, logger.WithField("component", "stats"))
	verifier := httpapi.NewStaticVerifier(tokens)
	handler := httpapi.NewHandler(manager, aggregator, deps.Gateway, verifier, logger.WithField("component", "httpapi"))

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	if deps.store != nil {
		healthHandler.RegisterChecker("postgres", healthcheck.NewPingChecker("postgres", deps.store.Ping))
	}
	if deps.redisCarts != nil {
		healthHandler.RegisterChecker("redis", healthcheck.NewPingChecker("redis", deps.redisCarts.Ping))
	}
	healthHandler.RegisterChecker("gateway", healthcheck.NewPingChecker("gateway", deps.Gateway.Ping))

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	apiSrv := &http.Server{Addr: cfg.APIAddr, Handler: handler.Router()}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("API сервер слушает %s", cfg.APIAddr)
		errCh <- apiSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем API сервер")
		shutdownHTTP(apiSrv, logger)
		shutdownHTTP(metricsSrv, logger)
		manager.Wait()
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsSrv, logger)
		manager.Wait()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// startMetricsServer запускает HTTP-обработчик /metrics для Prometheus.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/readyz, %s/livez", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
