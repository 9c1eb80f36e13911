package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mitchellh/mapstructure"

	"github.com/s3fs-fuse/docbridge/internal/credentials"
	"github.com/s3fs-fuse/docbridge/internal/logging"
	"github.com/s3fs-fuse/docbridge/internal/storage"
	"github.com/s3fs-fuse/docbridge/internal/store"
	"github.com/s3fs-fuse/docbridge/internal/store/local"
	"github.com/s3fs-fuse/docbridge/internal/store/object"
)

// NewLogger builds the logger described by cfg. The returned close
// function releases an output file and is never nil.
func NewLogger(cfg *LoggingConfig) (*slog.Logger, func() error, error) {
	noop := func() error { return nil }

	var out io.Writer
	closeFn := noop
	switch cfg.Output {
	case "", "stderr":
		out = os.Stderr
	case "stdout":
		out = os.Stdout
	default:
		f, err := os.OpenFile(cfg.Output, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to open log output: %w", err)
		}
		out = f
		closeFn = f.Close
	}

	logger, err := logging.New(cfg.Level, cfg.Format, out)
	if err != nil {
		closeFn()
		return nil, noop, err
	}
	return logger, closeFn, nil
}

// NewProvider builds the document provider described by cfg. Providers
// holding connections implement io.Closer.
func NewProvider(cfg *Config, logger *slog.Logger) (store.Provider, error) {
	grants := store.NewGrants(cfg.Grants...)

	switch cfg.Store.Type {
	case "local":
		var opts struct {
			Root string `mapstructure:"root"`
		}
		if err := mapstructure.Decode(cfg.Store.Local, &opts); err != nil {
			return nil, fmt.Errorf("invalid local store config: %w", err)
		}
		return local.New(opts.Root, grants)

	case "object":
		backend, err := NewBackend(&cfg.Store.Object)
		if err != nil {
			return nil, err
		}
		return object.New(backend, grants, cfg.Store.Object.SpoolDir, logger), nil
	}
	return nil, fmt.Errorf("unknown store type: %s", cfg.Store.Type)
}

// NewBackend builds the storage backend selected by cfg.Backend.
func NewBackend(cfg *ObjectConfig) (storage.Backend, error) {
	sc := storage.Config{Type: storage.BackendType(cfg.Backend)}

	switch sc.Type {
	case storage.BackendTypeS3:
		var opts struct {
			Bucket          string `mapstructure:"bucket"`
			Region          string `mapstructure:"region"`
			Endpoint        string `mapstructure:"endpoint"`
			AccessKeyID     string `mapstructure:"access_key_id"`
			SecretAccessKey string `mapstructure:"secret_access_key"`
			PasswdFile      string `mapstructure:"passwd_file"`
			CreateBucket    bool   `mapstructure:"create_bucket"`
		}
		if err := mapstructure.Decode(cfg.S3, &opts); err != nil {
			return nil, fmt.Errorf("invalid s3 config: %w", err)
		}
		creds, err := credentials.Resolve(opts.AccessKeyID, opts.SecretAccessKey, opts.PasswdFile, opts.Bucket)
		if err != nil {
			return nil, fmt.Errorf("s3 credentials: %w", err)
		}
		sc.S3Bucket = opts.Bucket
		sc.S3Region = opts.Region
		sc.S3Endpoint = opts.Endpoint
		sc.S3Credentials = creds
		sc.S3CreateBucket = opts.CreateBucket

	case storage.BackendTypePostgres:
		var opts struct {
			DSN    string `mapstructure:"dsn"`
			Table  string `mapstructure:"table"`
			Bucket string `mapstructure:"bucket"`
		}
		if err := mapstructure.Decode(cfg.Postgres, &opts); err != nil {
			return nil, fmt.Errorf("invalid postgres config: %w", err)
		}
		sc.PostgresConnStr = opts.DSN
		sc.PostgresTable = opts.Table
		sc.PostgresBucket = opts.Bucket

	case storage.BackendTypeMongoDB:
		var opts struct {
			URI        string `mapstructure:"uri"`
			Database   string `mapstructure:"database"`
			Collection string `mapstructure:"collection"`
			Bucket     string `mapstructure:"bucket"`
		}
		if err := mapstructure.Decode(cfg.MongoDB, &opts); err != nil {
			return nil, fmt.Errorf("invalid mongodb config: %w", err)
		}
		sc.MongoURI = opts.URI
		sc.MongoDatabase = opts.Database
		sc.MongoCollection = opts.Collection
		sc.MongoBucket = opts.Bucket

	case storage.BackendTypeBadger:
		var opts struct {
			Dir string `mapstructure:"dir"`
		}
		if err := mapstructure.Decode(cfg.Badger, &opts); err != nil {
			return nil, fmt.Errorf("invalid badger config: %w", err)
		}
		sc.BadgerDir = opts.Dir
	}

	return storage.NewBackend(sc)
}
