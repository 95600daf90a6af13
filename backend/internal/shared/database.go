// ============================================================================
// backend/internal/shared/database.go
// Shared MongoDB connection and helper utilities
// ============================================================================

package shared

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// MongoConfig holds MongoDB connection configuration
type MongoConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
	MaxPoolSize    uint64
	MinPoolSize    uint64
	MaxIdleTime    time.Duration
}

// DefaultMongoConfig returns default MongoDB configuration
func DefaultMongoConfig(uri, database string) *MongoConfig {
	return &MongoConfig{
		URI:            uri,
		Database:       database,
		ConnectTimeout: 20 * time.Second,
		MaxPoolSize:    50,
		MinPoolSize:    10,
		MaxIdleTime:    30 * time.Second,
	}
}

// ConnectMongoDB establishes connection to MongoDB Atlas/Local with proper configuration
func ConnectMongoDB(config *MongoConfig, logger *zap.Logger) (*mongo.Client, *mongo.Database, error) {
	if config == nil {
		return nil, nil, fmt.Errorf("mongo config cannot be nil")
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.ConnectTimeout)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(config.URI).
		SetMaxPoolSize(config.MaxPoolSize).
		SetMinPoolSize(config.MinPoolSize).
		SetMaxConnIdleTime(config.MaxIdleTime).
		SetServerSelectionTimeout(10 * time.Second).
		SetConnectTimeout(config.ConnectTimeout).
		SetSocketTimeout(30 * time.Second).
		SetHeartbeatInterval(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer pingCancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.Info("connected to MongoDB", zap.String("database", config.Database))

	db := client.Database(config.Database)
	return client, db, nil
}

// DisconnectMongoDB gracefully closes MongoDB connection
func DisconnectMongoDB(client *mongo.Client) error {
	if client == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}

	return nil
}

// ============================================================================
// Index Management
// ============================================================================

// EnsureIndexes creates the unique keys every upsert relies on
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		CollectionGrades: {{
			Keys:    bson.D{{Key: "student_id", Value: 1}, {Key: "tue_id", Value: 1}, {Key: "academic_year", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		CollectionTUResults: {{
			Keys:    bson.D{{Key: "student_id", Value: 1}, {Key: "tu_id", Value: 1}, {Key: "academic_year", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		CollectionSemesterResults: {{
			Keys:    bson.D{{Key: "student_id", Value: 1}, {Key: "semester_id", Value: 1}, {Key: "academic_year", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		CollectionAnnualResults: {{
			Keys:    bson.D{{Key: "student_id", Value: 1}, {Key: "academic_year", Value: 1}, {Key: "level", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		CollectionTUEs:      {{Keys: bson.D{{Key: "tu_id", Value: 1}, {Key: "is_active", Value: 1}}}},
		CollectionTUs:       {{Keys: bson.D{{Key: "semester_id", Value: 1}, {Key: "is_active", Value: 1}}}},
		CollectionSemesters: {{Keys: bson.D{{Key: "promotion_id", Value: 1}, {Key: "order", Value: 1}}}},
		CollectionPromotions: {{
			Keys: bson.D{{Key: "field_id", Value: 1}, {Key: "level", Value: 1}, {Key: "academic_year", Value: 1}},
		}},
		CollectionStudents: {{Keys: bson.D{{Key: "promotion_id", Value: 1}}}},
	}

	indexCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	for col, models := range indexes {
		if _, err := db.Collection(col).Indexes().CreateMany(indexCtx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", col, err)
		}
	}
	return nil
}

// ============================================================================
// ID Generation Helpers
// ============================================================================

// GenerateID generates a unique ID with prefix
func GenerateID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.NewString())
}
