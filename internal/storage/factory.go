package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/s3fs-fuse/docbridge/internal/credentials"
	"github.com/s3fs-fuse/docbridge/internal/s3client"
	"github.com/s3fs-fuse/docbridge/internal/storage/badger"
	"github.com/s3fs-fuse/docbridge/internal/storage/mongodb"
	"github.com/s3fs-fuse/docbridge/internal/storage/postgres"
	"github.com/s3fs-fuse/docbridge/internal/storage/s3"
)

// bucketTimeout bounds bucket creation at startup.
const bucketTimeout = 10 * time.Second

// BackendType represents the type of storage backend
type BackendType string

const (
	BackendTypeS3       BackendType = "s3"
	BackendTypePostgres BackendType = "postgres"
	BackendTypeMongoDB  BackendType = "mongodb"
	BackendTypeBadger   BackendType = "badger"
	BackendTypeMemory   BackendType = "memory"
)

// Config holds configuration for creating a backend
type Config struct {
	Type BackendType

	// S3 config
	S3Bucket      string
	S3Region      string
	S3Endpoint    string
	S3Credentials *credentials.Credentials
	// S3CreateBucket creates the bucket when it is missing (LocalStack, MinIO)
	S3CreateBucket bool

	// Postgres config
	PostgresConnStr string
	PostgresTable   string
	PostgresBucket  string

	// MongoDB config
	MongoURI        string
	MongoDatabase   string
	MongoCollection string
	MongoBucket     string

	// Badger config; an empty dir keeps the database in memory
	BadgerDir string
}

// NewBackend creates a new storage backend based on the config
func NewBackend(config Config) (Backend, error) {
	switch config.Type {
	case BackendTypeS3:
		if config.S3Bucket == "" {
			return nil, fmt.Errorf("S3 bucket is required for S3 backend type")
		}
		if config.S3Credentials == nil || !config.S3Credentials.IsValid() {
			return nil, fmt.Errorf("valid credentials are required for S3 backend type")
		}
		region := config.S3Region
		if region == "" {
			region = "us-east-1"
		}
		client := s3client.NewClientWithEndpoint(config.S3Bucket, region, config.S3Endpoint, config.S3Credentials)
		if config.S3CreateBucket {
			ctx, cancel := context.WithTimeout(context.Background(), bucketTimeout)
			defer cancel()
			if err := client.CreateBucket(ctx); err != nil {
				return nil, err
			}
		}
		return s3.NewAdapter(client), nil

	case BackendTypePostgres:
		if config.PostgresConnStr == "" {
			return nil, fmt.Errorf("PostgreSQL connection string is required")
		}
		table := config.PostgresTable
		if table == "" {
			table = "documents"
		}
		bucket := config.PostgresBucket
		if bucket == "" {
			bucket = "default"
		}
		return postgres.NewPostgresBackend(config.PostgresConnStr, table, bucket)

	case BackendTypeMongoDB:
		if config.MongoURI == "" {
			return nil, fmt.Errorf("MongoDB URI is required")
		}
		database := config.MongoDatabase
		if database == "" {
			database = "docbridge"
		}
		collection := config.MongoCollection
		if collection == "" {
			collection = "documents"
		}
		bucket := config.MongoBucket
		if bucket == "" {
			bucket = "default"
		}
		return mongodb.NewMongoBackend(config.MongoURI, database, collection, bucket)

	case BackendTypeBadger:
		return badger.NewBadgerBackend(config.BadgerDir)

	case BackendTypeMemory:
		return s3.NewAdapter(s3client.NewMockClient("memory", "local")), nil

	default:
		return nil, fmt.Errorf("unknown backend type: %s", config.Type)
	}
}
