package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"transcript-editor-service/internal/app"
	"transcript-editor-service/internal/bridge"
	"transcript-editor-service/internal/config"
	"transcript-editor-service/internal/events"
	httpapi "transcript-editor-service/internal/http"
	"transcript-editor-service/internal/observability"
	"transcript-editor-service/internal/observability/metrics"
	"transcript-editor-service/internal/service/playback"
	"transcript-editor-service/internal/service/resolver"
	"transcript-editor-service/internal/service/session"
)

const serviceName = "transcript.editor.EditorSession"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	application := app.New(cfg)
	logger := application.Logger

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.DefaultMetrics

	// Audit events for committed edits and confirmations
	publisher := events.New(&events.Config{
		Enabled:        cfg.Kafka.Enabled,
		Brokers:        cfg.Kafka.Brokers,
		TopicEdits:     cfg.Kafka.TopicEdits,
		TopicConfirmed: cfg.Kafka.TopicConfirmed,
		Principal:      cfg.Kafka.Principal,
	})
	defer publisher.Close()

	backend := bridge.NewClient(bridge.ClientConfig{
		BaseURL: cfg.Backend.BaseURL,
		Token:   cfg.Backend.Token,
		Timeout: cfg.Backend.Timeout,
	}, nil, m)

	hub := httpapi.NewHub(m)
	go hub.Run(ctx)

	editor := session.New(session.Config{
		ReadOnly: cfg.Service.ReadOnly,
		Playback: playback.Config{
			SeekSlop:     cfg.Playback.SeekSlop,
			SkipInterval: cfg.Playback.SkipInterval,
		},
		TickInterval: cfg.Playback.TickInterval,
		Resolver: resolver.Config{
			Workers:   cfg.Resolver.Workers,
			QueueSize: cfg.Resolver.QueueSize,
		},
		CommitTimeout: cfg.Backend.CommitTimeout,
	}, backend, publisher, httpapi.NewSessionEvents(hub), m)
	defer editor.Close()

	obs := observability.NewServer(cfg.Service.MetricsAddr, application.Ready)
	obs.Start()

	httpServer := &http.Server{
		Addr:              ":" + cfg.Service.HTTPPort,
		Handler:           httpapi.NewRouter(application, editor, hub),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("Editor HTTP server started")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("HTTP serve failed")
		}
	}()

	lis, err := net.Listen("tcp", ":"+cfg.Service.GRPCPort)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to listen")
	}

	server := grpc.NewServer(
		grpc.UnaryInterceptor(observability.UnaryServerInterceptor()),
		grpc.StreamInterceptor(observability.StreamServerInterceptor()),
	)

	// Register gRPC health check service
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(serviceName, grpc_health_v1.HealthCheckResponse_SERVING)

	// Enable gRPC reflection for debugging tools like grpcurl
	reflection.Register(server)

	go func() {
		logger.Info().Str("port", cfg.Service.GRPCPort).Msg("gRPC health server started")
		if err := server.Serve(lis); err != nil {
			logger.Fatal().Err(err).Msg("gRPC serve failed")
		}
	}()

	if err := application.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Startup failed")
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	application.Shutdown()
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	healthServer.SetServingStatus(serviceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("HTTP shutdown")
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("Observability shutdown")
	}
	server.GracefulStop()
}
