// Package calculation turns raw grades into TU, semester and annual results.
//
// Every aggregator is a stateless function of durable state: it re-reads its
// inputs from the store, computes, and upserts exactly one document per level.
// Direct calls are strict and return typed errors; the grade-change cascade
// runs the same functions in best-effort mode and only logs failures.
package calculation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"gradebook/backend/internal/policy"
	"gradebook/backend/internal/store"
)

var (
	// ErrSemesterResultsMissing means an annual result was requested before both semesters were calculated
	ErrSemesterResultsMissing = errors.New("semester results missing")
	// ErrZeroCombinedCredits means the two semesters carry no credits to weight by
	ErrZeroCombinedCredits = errors.New("combined semester credits are zero")
)

// PreconditionError is returned when a calculation cannot run yet.
// It maps to codes.FailedPrecondition and unwraps to one of the sentinel errors above.
type PreconditionError struct {
	Err    error
	Detail string
}

func (e *PreconditionError) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Detail)
}

func (e *PreconditionError) Unwrap() error { return e.Err }

// GRPCStatus lets status.FromError and the HTTP gateway classify the error
func (e *PreconditionError) GRPCStatus() *status.Status {
	return status.New(codes.FailedPrecondition, e.Error())
}

// Engine runs the aggregators against a store under a grading policy
type Engine struct {
	store   store.Store
	policy  *policy.Policy
	logger  *zap.Logger
	now     func() time.Time
	workers int
}

// Option customizes an Engine
type Option func(*Engine)

// WithClock overrides the time source stamped on results
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithWorkers bounds the number of students recalculated in parallel
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// NewEngine creates an Engine
func NewEngine(st store.Store, p *policy.Policy, logger *zap.Logger, opts ...Option) *Engine {
	if p == nil {
		p = policy.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		store:   st,
		policy:  p,
		logger:  logger,
		now:     time.Now,
		workers: 8,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the grading policy in use
func (e *Engine) Policy() *policy.Policy {
	return e.policy
}

// storeError classifies a store failure: missing documents are NotFound, anything else Internal
func storeError(err error, what string) error {
	if err == nil {
		return nil
	}
	if store.IsNotFound(err) {
		return status.Errorf(codes.NotFound, "%s not found", what)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return status.Errorf(codes.DeadlineExceeded, "timed out loading %s", what)
	}
	return status.Errorf(codes.Internal, "failed to load %s: %v", what, err)
}

func isMissing(err error) bool {
	return store.IsNotFound(err)
}

func writeError(err error, what string) error {
	return status.Errorf(codes.Internal, "failed to save %s: %v", what, err)
}

func invalidArgument(err error) error {
	return status.Error(codes.InvalidArgument, err.Error())
}

// bestEffort runs fn and logs instead of returning its error
func (e *Engine) bestEffort(op string, fields []zap.Field, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("calculation panicked", append(fields, zap.String("op", op), zap.Any("panic", r))...)
		}
	}()
	if err := fn(); err != nil {
		e.logger.Warn("calculation skipped", append(fields, zap.String("op", op), zap.Error(err))...)
	}
}
