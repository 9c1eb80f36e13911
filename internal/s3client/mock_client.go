package s3client

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// MockClient is an in-memory stand-in for Client. It backs the "memory"
// storage type and the unit tests.
type MockClient struct {
	bucket  string
	region  string
	objects map[string]*MockObject
	mu      sync.RWMutex
}

// MockObject represents a mock S3 object
type MockObject struct {
	Key          string
	Data         []byte
	ContentType  string
	Metadata     map[string]string
	LastModified time.Time
}

// NewMockClient creates a new mock S3 client
func NewMockClient(bucket, region string) *MockClient {
	return &MockClient{
		bucket:  bucket,
		region:  region,
		objects: make(map[string]*MockObject),
	}
}

// ListObjects lists objects with the given prefix in key order
func (m *MockClient) ListObjects(ctx context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	for key := range m.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// GetObject retrieves an object
func (m *MockClient) GetObject(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, exists := m.objects[key]
	if !exists {
		return nil, fmt.Errorf("object not found: %s: %w", key, os.ErrNotExist)
	}

	// Return a copy of the data
	data := make([]byte, len(obj.Data))
	copy(data, obj.Data)
	return data, nil
}

// PutObject uploads an object
func (m *MockClient) PutObject(ctx context.Context, key string, data []byte) error {
	return m.PutObjectWithMetadata(ctx, key, data, nil)
}

// PutObjectWithMetadata uploads an object with metadata
func (m *MockClient) PutObjectWithMetadata(ctx context.Context, key string, data []byte, metadata map[string]string) error {
	contentType, userMetadata := splitMetadata(metadata)

	objData := make([]byte, len(data))
	copy(objData, data)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = &MockObject{
		Key:          key,
		Data:         objData,
		ContentType:  contentType,
		Metadata:     userMetadata,
		LastModified: time.Now(),
	}
	return nil
}

// PutObjectMultipart has no part threshold in the mock
func (m *MockClient) PutObjectMultipart(ctx context.Context, key string, data []byte, metadata map[string]string) error {
	return m.PutObjectWithMetadata(ctx, key, data, metadata)
}

// HeadObject retrieves object attributes
func (m *MockClient) HeadObject(ctx context.Context, key string) (*ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, exists := m.objects[key]
	if !exists {
		return nil, fmt.Errorf("object not found: %s: %w", key, os.ErrNotExist)
	}

	metadata := make(map[string]string, len(obj.Metadata))
	for k, v := range obj.Metadata {
		metadata[k] = v
	}
	return &ObjectInfo{
		Key:          key,
		Size:         int64(len(obj.Data)),
		ContentType:  obj.ContentType,
		LastModified: obj.LastModified,
		Metadata:     metadata,
	}, nil
}
