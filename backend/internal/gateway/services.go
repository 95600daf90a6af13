package gateway

import (
	"context"

	"gradebook/backend/internal/gateway/handlers"
	"gradebook/backend/internal/store"
)

// Services holds the backends the HTTP handlers call into.
// It is built once in main.go and injected into SetupRoutes.
type Services struct {
	Grades  handlers.GradeEntry
	Engine  handlers.Calculator
	Results store.ResultRepository

	// Ping reports storage health for /healthz; nil means always healthy
	Ping func(ctx context.Context) error
}
