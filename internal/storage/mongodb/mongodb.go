package mongodb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/s3fs-fuse/docbridge/internal/storage/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Document is a stored document row in MongoDB
type Document struct {
	Bucket      string            `bson:"bucket"`
	Path        string            `bson:"path"`
	Data        []byte            `bson:"data"`
	Size        int64             `bson:"size"`
	ContentType string            `bson:"content_type"`
	Mtime       time.Time         `bson:"mtime"`
	Metadata    map[string]string `bson:"metadata,omitempty"`
	UpdatedAt   time.Time         `bson:"updated_at"`
}

// MongoBackend implements types.Backend using MongoDB
type MongoBackend struct {
	client     *mongo.Client
	collection *mongo.Collection
	bucket     string
}

// NewMongoBackend creates a new MongoDB backend
func NewMongoBackend(uri, database, collection, bucket string) (*MongoBackend, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	coll := client.Database(database).Collection(collection)

	indexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "bucket", Value: 1},
			{Key: "path", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	}
	if _, err := coll.Indexes().CreateOne(ctx, indexModel); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &MongoBackend{
		client:     client,
		collection: coll,
		bucket:     bucket,
	}, nil
}

func (m *MongoBackend) filter(path string) bson.M {
	return bson.M{"bucket": m.bucket, "path": path}
}

func (m *MongoBackend) find(ctx context.Context, path string) (*Document, error) {
	var doc Document
	err := m.collection.FindOne(ctx, m.filter(path)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("document not found: %s: %w", path, os.ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return &doc, nil
}

// Read reads document data
func (m *MongoBackend) Read(ctx context.Context, path string) ([]byte, error) {
	doc, err := m.find(ctx, path)
	if err != nil {
		return nil, err
	}
	return doc.Data, nil
}

// Write writes document data
func (m *MongoBackend) Write(ctx context.Context, path string, data []byte) error {
	return m.WriteWithMetadata(ctx, path, data, nil)
}

// WriteWithMetadata upserts document data with metadata
func (m *MongoBackend) WriteWithMetadata(ctx context.Context, path string, data []byte, metadata map[string]string) error {
	now := time.Now()
	mtime := now
	if s, ok := metadata[types.MetaMtime]; ok {
		if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
			mtime = time.Unix(unix, 0)
		}
	}

	doc := Document{
		Bucket:      m.bucket,
		Path:        path,
		Data:        data,
		Size:        int64(len(data)),
		ContentType: metadata[types.MetaContentType],
		Mtime:       mtime,
		Metadata:    metadata,
		UpdatedAt:   now,
	}

	_, err := m.collection.ReplaceOne(ctx, m.filter(path), doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	return nil
}

// List lists paths with the given prefix
func (m *MongoBackend) List(ctx context.Context, prefix string) ([]string, error) {
	filter := bson.M{
		"bucket": m.bucket,
		"path":   bson.M{"$regex": "^" + regexp.QuoteMeta(prefix)},
	}
	opts := options.Find().
		SetSort(bson.M{"path": 1}).
		SetProjection(bson.M{"path": 1})

	cursor, err := m.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer cursor.Close(ctx)

	var paths []string
	for cursor.Next(ctx) {
		var doc Document
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		paths = append(paths, doc.Path)
	}
	return paths, cursor.Err()
}

// GetAttr gets document attributes
func (m *MongoBackend) GetAttr(ctx context.Context, path string) (*types.Attr, error) {
	doc, err := m.find(ctx, path)
	if err != nil {
		return nil, err
	}
	return &types.Attr{
		Size:        doc.Size,
		ContentType: doc.ContentType,
		Mtime:       doc.Mtime,
	}, nil
}

// Exists checks if a document exists
func (m *MongoBackend) Exists(ctx context.Context, path string) (bool, error) {
	count, err := m.collection.CountDocuments(ctx, m.filter(path), options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check existence: %w", err)
	}
	return count > 0, nil
}

// Close closes the MongoDB connection
func (m *MongoBackend) Close() error {
	return m.client.Disconnect(context.Background())
}
