package s3client

import (
	"context"
	"errors"
	"os"
	"testing"
)

func TestNewClientWithEndpoint(t *testing.T) {
	client := NewClientWithEndpoint("test-bucket", "us-east-1", "http://localhost:4566", nil)
	if client == nil {
		t.Fatal("NewClientWithEndpoint returned nil")
	}

	if client.bucket != "test-bucket" {
		t.Errorf("Expected bucket 'test-bucket', got '%s'", client.bucket)
	}

	if client.region != "us-east-1" {
		t.Errorf("Expected region 'us-east-1', got '%s'", client.region)
	}
	if client.s3Client != nil {
		t.Error("Expected no SDK client without credentials")
	}
}

func TestClientWithoutCredentials(t *testing.T) {
	client := NewClientWithEndpoint("test-bucket", "us-east-1", "", nil)
	ctx := context.Background()

	if _, err := client.ListObjects(ctx, "prefix/"); err == nil {
		t.Error("Expected ListObjects to fail without credentials")
	}
	if _, err := client.GetObject(ctx, "key"); err == nil {
		t.Error("Expected GetObject to fail without credentials")
	}
	if err := client.PutObjectWithMetadata(ctx, "key", []byte("data"), nil); err == nil {
		t.Error("Expected PutObjectWithMetadata to fail without credentials")
	}
	if err := client.CreateBucket(ctx); err == nil {
		t.Error("Expected CreateBucket to fail without credentials")
	}
	if _, err := client.HeadObject(ctx, "key"); err == nil {
		t.Error("Expected HeadObject to fail without credentials")
	}
	if err := client.PutObjectMultipart(ctx, "key", []byte("data"), nil); err == nil {
		t.Error("Expected PutObjectMultipart to fail without credentials")
	}
}

func TestSplitMetadata(t *testing.T) {
	contentType, meta := splitMetadata(map[string]string{
		"Content-Type":     "image/png",
		"x-amz-meta-mtime": "42",
		"custom":           "v",
	})

	if contentType != "image/png" {
		t.Errorf("Expected content type image/png, got %q", contentType)
	}
	if meta["mtime"] != "42" || meta["custom"] != "v" {
		t.Errorf("Unexpected metadata %v", meta)
	}
	if _, ok := meta["Content-Type"]; ok {
		t.Error("Content-Type leaked into user metadata")
	}
}

func TestMockClient(t *testing.T) {
	mock := NewMockClient("test-bucket", "us-east-1")
	ctx := context.Background()

	if err := mock.PutObjectWithMetadata(ctx, "games/a.txt", []byte("abc"), map[string]string{"content-type": "text/plain"}); err != nil {
		t.Fatalf("PutObjectWithMetadata failed: %v", err)
	}
	if err := mock.PutObjectMultipart(ctx, "games/sub/b.bin", []byte("b"), nil); err != nil {
		t.Fatalf("PutObjectMultipart failed: %v", err)
	}

	info, err := mock.HeadObject(ctx, "games/a.txt")
	if err != nil {
		t.Fatalf("HeadObject failed: %v", err)
	}
	if info.Size != 3 || info.ContentType != "text/plain" {
		t.Errorf("Unexpected info %+v", info)
	}

	keys, _ := mock.ListObjects(ctx, "games/")
	if len(keys) != 2 || keys[0] != "games/a.txt" {
		t.Errorf("Unexpected keys %v", keys)
	}

	if _, err := mock.GetObject(ctx, "games/missing.txt"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected os.ErrNotExist, got %v", err)
	}
}
