package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOStore 是基于 minio-go 的 ObjectStore 实现，可访问 MinIO 或任意 S3 兼容服务。
type MinIOStore struct {
	client *minio.Client
	region string
}

// NewMinIOStore 初始化 MinIO 客户端。
func NewMinIOStore(endpoint string, useSSL bool, creds Credentials) (*MinIOStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(creds.AccessKey, creds.SecretKey, ""),
		Secure: useSSL,
		Region: creds.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 MinIO 客户端失败: %w", err)
	}
	return &MinIOStore{client: client, region: creds.Region}, nil
}

func (s *MinIOStore) Head(ctx context.Context, bucket, key string) (ObjectInfo, error) {
	info, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return ObjectInfo{}, translateMinIOError(err)
	}
	return ObjectInfo{Key: info.Key, Size: info.Size, Checksum: NormalizeETag(info.ETag)}, nil
}

func (s *MinIOStore) Put(ctx context.Context, bucket, key string, r io.Reader, size int64) error {
	_, err := s.client.PutObject(ctx, bucket, key, r, size, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
		// 单次 PUT 的 ETag 才等于内容 MD5
		DisableMultipart: true,
	})
	if err != nil {
		return translateMinIOError(err)
	}
	return nil
}

func (s *MinIOStore) Get(ctx context.Context, bucket, key, destPath string) error {
	if err := s.client.FGetObject(ctx, bucket, key, destPath, minio.GetObjectOptions{}); err != nil {
		return translateMinIOError(err)
	}
	return nil
}

func (s *MinIOStore) Delete(ctx context.Context, bucket, key string) error {
	return translateMinIOError(s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}))
}

func (s *MinIOStore) List(ctx context.Context, bucket string) ([]ObjectInfo, error) {
	var objects []ObjectInfo
	for obj := range s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return nil, translateMinIOError(obj.Err)
		}
		objects = append(objects, ObjectInfo{Key: obj.Key, Size: obj.Size, Checksum: NormalizeETag(obj.ETag)})
	}
	return objects, nil
}

func (s *MinIOStore) CreateBucket(ctx context.Context, bucket string) error {
	return translateMinIOError(s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.region}))
}

func (s *MinIOStore) DeleteBucket(ctx context.Context, bucket string) error {
	return translateMinIOError(s.client.RemoveBucket(ctx, bucket))
}

func translateMinIOError(err error) error {
	if err == nil {
		return nil
	}
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey":
		return fmt.Errorf("%w: %s", ErrObjectNotFound, resp.Key)
	case "NoSuchBucket":
		return fmt.Errorf("%w: %s", ErrBucketNotFound, resp.BucketName)
	}
	// StatObject 的 HEAD 响应没有 body，只能看状态码
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %v", ErrObjectNotFound, err)
	}
	return err
}
