// ============================================================================
// backend/cmd/recalc/main.go
// Re-runs the calculation cascade for a whole promotion
// ============================================================================

package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"gradebook/backend/internal/calculation"
	"gradebook/backend/internal/policy"
	"gradebook/backend/internal/shared"
	"gradebook/backend/internal/store"
)

func main() {
	promotionID := flag.String("promotion", "", "promotion id to recalculate (required)")
	academicYear := flag.String("year", "", "academic year, e.g. 2024-2025 (required)")
	workers := flag.Int("workers", 0, "students recalculated in parallel (defaults to CALC_RECALC_WORKERS)")
	timeout := flag.Duration("timeout", 10*time.Minute, "overall deadline")
	envFile := flag.String("env", ".env", "environment file")
	flag.Parse()

	if *promotionID == "" || *academicYear == "" {
		flag.Usage()
		os.Exit(2)
	}

	_ = shared.LoadEnv(*envFile)

	config, err := shared.LoadServiceConfig("recalc")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *workers > 0 {
		config.Calculation.RecalcWorkers = *workers
	}
	if err := shared.ValidateServiceConfig(config); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := shared.NewLogger(config)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	gradingPolicy, err := policy.Load(config.Calculation.PolicyFile)
	if err != nil {
		logger.Fatal("invalid grading policy", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	handle, err := store.Open(ctx, config, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer handle.Close()

	engine := calculation.NewEngine(handle.Backend, gradingPolicy, logger.Named("calculation"),
		calculation.WithWorkers(config.Calculation.RecalcWorkers))

	report, err := engine.RecalculatePromotion(ctx, *promotionID, *academicYear)
	if err != nil {
		logger.Fatal("recalculation failed", zap.Error(err))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		logger.Error("failed to write report", zap.Error(err))
	}

	if report.Failed > 0 {
		handle.Close()
		os.Exit(1)
	}
}
