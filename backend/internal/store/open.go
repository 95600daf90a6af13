package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"gradebook/backend/internal/shared"
)

// Backend is a Store that also accepts hierarchy documents
type Backend interface {
	Store
	HierarchyWriter
}

// Handle is an opened backend with its lifecycle hooks
type Handle struct {
	Backend Backend
	// Ping checks the backend is reachable
	Ping func(ctx context.Context) error
	// Close releases connections; safe to call once
	Close func()
}

// Open builds the backend selected by config.StoreDriver.
// For MongoDB it connects, pings and ensures indexes.
func Open(ctx context.Context, config *shared.ServiceConfig, logger *zap.Logger) (*Handle, error) {
	switch config.StoreDriver {
	case shared.StoreDriverMemory:
		logger.Warn("using in-memory store, data is lost on exit")
		return &Handle{
			Backend: NewMemoryStore(),
			Ping:    func(context.Context) error { return nil },
			Close:   func() {},
		}, nil

	case shared.StoreDriverMongo, "":
		client, db, err := shared.ConnectMongoDB(&config.MongoDB, logger)
		if err != nil {
			return nil, err
		}
		if err := shared.EnsureIndexes(ctx, db); err != nil {
			_ = shared.DisconnectMongoDB(client)
			return nil, fmt.Errorf("failed to ensure indexes: %w", err)
		}
		return &Handle{
			Backend: NewMongoStore(db, config.Calculation.QueryTimeout),
			Ping: func(ctx context.Context) error {
				return client.Ping(ctx, readpref.Primary())
			},
			Close: func() {
				if err := shared.DisconnectMongoDB(client); err != nil {
					logger.Error("error disconnecting from MongoDB", zap.Error(err))
				}
			},
		}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", config.StoreDriver)
	}
}
