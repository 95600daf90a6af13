// ============================================================================
// backend/cmd/server/main.go
// Entry point for the grading service: HTTP API plus gRPC health endpoint
// ============================================================================

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

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"gradebook/backend/internal/calculation"
	"gradebook/backend/internal/gateway"
	"gradebook/backend/internal/grade"
	"gradebook/backend/internal/policy"
	"gradebook/backend/internal/shared"
	"gradebook/backend/internal/store"
)

const healthServiceName = "gradebook.Calculation"

func main() {
	// Load environment variables
	_ = shared.LoadEnv(".env")

	// Load service configuration
	config, err := shared.LoadServiceConfig("grading-service")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := shared.ValidateServiceConfig(config); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := shared.NewLogger(config)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if shared.IsDevelopment(config) {
		shared.PrintConfig(logger, config)
	}

	gradingPolicy, err := policy.Load(config.Calculation.PolicyFile)
	if err != nil {
		logger.Fatal("invalid grading policy", zap.Error(err))
	}
	logger.Info("grading policy loaded",
		zap.Float64("validation_threshold", gradingPolicy.ValidationThreshold),
		zap.Float64("compensation_floor", gradingPolicy.CompensationFloor),
		zap.Int("max_compensated_per_semester", gradingPolicy.MaxCompensatedPerSemester),
		zap.Float64("minimum_annual_credits", gradingPolicy.MinimumAnnualCredits),
		zap.String("missing_grade", string(gradingPolicy.MissingGrade)))

	ctx, cancel := context.WithTimeout(context.Background(), config.MongoDB.ConnectTimeout+10*time.Second)
	handle, err := store.Open(ctx, config, logger)
	cancel()
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer handle.Close()

	engine := calculation.NewEngine(handle.Backend, gradingPolicy, logger.Named("calculation"),
		calculation.WithWorkers(config.Calculation.RecalcWorkers))
	gradeService := grade.NewGradeService(handle.Backend, gradingPolicy, engine, logger.Named("grade"), config.Calculation)

	router := gateway.SetupRoutes(&gateway.Services{
		Grades:  gradeService,
		Engine:  engine,
		Results: handle.Backend,
		Ping:    handle.Ping,
	}, config.HTTP)

	server := &http.Server{
		Addr:         ":" + config.HTTPPort,
		Handler:      router,
		ReadTimeout:  config.HTTP.ReadTimeout,
		WriteTimeout: config.HTTP.WriteTimeout,
		IdleTimeout:  config.HTTP.IdleTimeout,
	}

	// gRPC server carries the health check and reflection
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(healthServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	listener, err := net.Listen("tcp", ":"+config.ServicePort)
	if err != nil {
		logger.Fatal("failed to listen", zap.String("port", config.ServicePort), zap.Error(err))
	}

	go func() {
		logger.Info("gRPC health endpoint listening", zap.String("port", config.ServicePort))
		if err := grpcServer.Serve(listener); err != nil {
			logger.Error("gRPC server stopped", zap.Error(err))
		}
	}()

	go func() {
		logger.Info("HTTP API listening", zap.String("port", config.HTTPPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down grading service")
	healthServer.SetServingStatus(healthServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}
	grpcServer.GracefulStop()

	logger.Info("grading service stopped")
}
