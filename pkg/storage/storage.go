// Package storage 定义了对象存储边界，并提供 MinIO、AWS S3 与内存三种实现。
//
// 对象按 (bucket, key) 寻址；Head 返回的 Checksum 是存储端报告的内容摘要（ETag）。
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"coldvault-go/internal/config"
)

var (
	// ErrObjectNotFound 表示 bucket 中不存在指定 key 的对象。
	ErrObjectNotFound = errors.New("object not found")
	// ErrBucketNotFound 表示 bucket 不存在。
	ErrBucketNotFound = errors.New("bucket not found")
)

// ObjectInfo 描述远端对象的元数据。
type ObjectInfo struct {
	Key      string
	Size     int64
	Checksum string
}

// ObjectStore 是核心所需的全部对象存储操作。
type ObjectStore interface {
	Head(ctx context.Context, bucket, key string) (ObjectInfo, error)
	Put(ctx context.Context, bucket, key string, r io.Reader, size int64) error
	// Get 将对象下载到本地路径 destPath。
	Get(ctx context.Context, bucket, key, destPath string) error
	Delete(ctx context.Context, bucket, key string) error
	List(ctx context.Context, bucket string) ([]ObjectInfo, error)
	CreateBucket(ctx context.Context, bucket string) error
	DeleteBucket(ctx context.Context, bucket string) error
}

// Credentials 是一个远端连接的访问凭证。
type Credentials struct {
	AccessKey string
	SecretKey string
	Region    string
}

// Factory 根据连接凭证构造 ObjectStore。
type Factory func(ctx context.Context, creds Credentials) (ObjectStore, error)

// NewFactory 按配置中的 driver 返回对应的 Factory。
func NewFactory(cfg config.StorageConfig) (Factory, error) {
	switch cfg.Driver {
	case "", "minio":
		return func(_ context.Context, creds Credentials) (ObjectStore, error) {
			return NewMinIOStore(cfg.Endpoint, cfg.UseSSL, creds)
		}, nil
	case "s3":
		return func(ctx context.Context, creds Credentials) (ObjectStore, error) {
			return NewS3Store(ctx, cfg.Endpoint, creds)
		}, nil
	case "memory":
		// 所有连接共享同一个进程内存储
		mem := NewMemoryStore()
		return func(context.Context, Credentials) (ObjectStore, error) {
			return mem, nil
		}, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

// NormalizeETag 去掉 ETag 两侧的引号并转为小写。
func NormalizeETag(etag string) string {
	return strings.ToLower(strings.Trim(etag, "\""))
}

// Locator 返回对象的可读定位串：s3://{bucket}/{key}
func Locator(bucket, key string) string {
	return "s3://" + bucket + "/" + key
}
