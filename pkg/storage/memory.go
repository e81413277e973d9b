package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"coldvault-go/pkg/checksum"
)

// MemoryStore 是进程内的 ObjectStore，用于本地开发与测试。
// Checksum 与 S3 单次 PUT 的 ETag 规则一致（内容 MD5）。
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]map[string][]byte
}

// NewMemoryStore 创建一个空的内存存储。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buckets: make(map[string]map[string][]byte)}
}

func (m *MemoryStore) bucket(name string) (map[string][]byte, error) {
	b, ok := m.buckets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBucketNotFound, name)
	}
	return b, nil
}

func (m *MemoryStore) Head(_ context.Context, bucket, key string) (ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := m.bucket(bucket)
	if err != nil {
		return ObjectInfo{}, err
	}
	data, ok := b[key]
	if !ok {
		return ObjectInfo{}, fmt.Errorf("%w: %s/%s", ErrObjectNotFound, bucket, key)
	}
	return ObjectInfo{Key: key, Size: int64(len(data)), Checksum: checksum.Bytes(data)}, nil
}

func (m *MemoryStore) Put(ctx context.Context, bucket, key string, r io.Reader, size int64) error {
	data, err := io.ReadAll(io.LimitReader(r, size))
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return fmt.Errorf("put %s/%s: expected %d bytes, got %d", bucket, key, size, len(data))
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := m.bucket(bucket)
	if err != nil {
		return err
	}
	b[key] = data
	return nil
}

func (m *MemoryStore) Get(_ context.Context, bucket, key, destPath string) error {
	m.mu.Lock()
	b, err := m.bucket(bucket)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	data, ok := b[key]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrObjectNotFound, bucket, key)
	}
	return os.WriteFile(destPath, data, 0o644)
}

func (m *MemoryStore) Delete(_ context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := m.bucket(bucket)
	if err != nil {
		return err
	}
	// 与 S3 一致：删除不存在的 key 不报错
	delete(b, key)
	return nil
}

func (m *MemoryStore) List(_ context.Context, bucket string) ([]ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := m.bucket(bucket)
	if err != nil {
		return nil, err
	}
	objects := make([]ObjectInfo, 0, len(b))
	for key, data := range b {
		objects = append(objects, ObjectInfo{Key: key, Size: int64(len(data)), Checksum: checksum.Bytes(data)})
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

func (m *MemoryStore) CreateBucket(_ context.Context, bucket string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.buckets[bucket]; ok {
		return fmt.Errorf("bucket %s already exists", bucket)
	}
	m.buckets[bucket] = make(map[string][]byte)
	return nil
}

func (m *MemoryStore) DeleteBucket(_ context.Context, bucket string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := m.bucket(bucket)
	if err != nil {
		return err
	}
	if len(b) > 0 {
		return fmt.Errorf("bucket %s is not empty", bucket)
	}
	delete(m.buckets, bucket)
	return nil
}
