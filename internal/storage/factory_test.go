package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s3fs-fuse/docbridge/internal/credentials"
)

func TestNewBackendMemory(t *testing.T) {
	b, err := NewBackend(Config{Type: BackendTypeMemory})
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.Write(context.Background(), "a", []byte("x")))
	ok, err := b.Exists(context.Background(), "a")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewBackendBadger(t *testing.T) {
	b, err := NewBackend(Config{Type: BackendTypeBadger, BadgerDir: t.TempDir()})
	require.NoError(t, err)
	assert.NoError(t, b.Close())
}

func TestNewBackendErrors(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{"unknown", Config{Type: "ftp"}},
		{"s3 no bucket", Config{Type: BackendTypeS3}},
		{"s3 no credentials", Config{Type: BackendTypeS3, S3Bucket: "b"}},
		{"s3 invalid credentials", Config{Type: BackendTypeS3, S3Bucket: "b", S3Credentials: credentials.NewCredentials()}},
		{"postgres no dsn", Config{Type: BackendTypePostgres}},
		{"mongodb no uri", Config{Type: BackendTypeMongoDB}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBackend(tt.config)
			assert.Error(t, err)
		})
	}
}

func TestNewBackendS3(t *testing.T) {
	creds := credentials.NewCredentials()
	creds.AccessKeyID = "test"
	creds.SecretAccessKey = "test"

	b, err := NewBackend(Config{Type: BackendTypeS3, S3Bucket: "saves", S3Endpoint: "http://localhost:4566", S3Credentials: creds})
	require.NoError(t, err)
	assert.NotNil(t, b)
}

func TestNewBackendS3CreateBucketFails(t *testing.T) {
	creds := credentials.NewCredentials()
	creds.AccessKeyID = "test"
	creds.SecretAccessKey = "test"

	// Nothing listens on port 1, so bucket creation cannot succeed.
	_, err := NewBackend(Config{
		Type:           BackendTypeS3,
		S3Bucket:       "saves",
		S3Endpoint:     "http://127.0.0.1:1",
		S3Credentials:  creds,
		S3CreateBucket: true,
	})
	assert.Error(t, err)
}
