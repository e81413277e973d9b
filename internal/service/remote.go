package service

import (
	"context"
	"errors"
	"fmt"

	"coldvault-go/internal/model"
	"coldvault-go/internal/repository"
	"coldvault-go/pkg/storage"

	"gorm.io/gorm"
)

// SecretBox 加解密连接的 secret key，见 pkg/secret。
type SecretBox interface {
	Seal(plain string) (string, error)
	Open(sealed string) (string, error)
}

// RemoteResolver 根据连接记录构造对象存储客户端。
type RemoteResolver struct {
	conns   repository.ConnectionRepository
	factory storage.Factory
	secrets SecretBox
}

// NewRemoteResolver 创建一个新的 RemoteResolver。
func NewRemoteResolver(conns repository.ConnectionRepository, factory storage.Factory, secrets SecretBox) *RemoteResolver {
	return &RemoteResolver{conns: conns, factory: factory, secrets: secrets}
}

// Active 返回当前活跃连接及其存储客户端；没有活跃连接时返回 ErrNoActiveConnection。
func (r *RemoteResolver) Active(ctx context.Context) (*model.RemoteConnection, storage.ObjectStore, error) {
	conn, err := r.conns.FindActive(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrNoActiveConnection
		}
		return nil, nil, err
	}
	store, err := r.Store(ctx, conn)
	if err != nil {
		return nil, nil, err
	}
	return conn, store, nil
}

// Store 解密连接凭证并构造存储客户端。
func (r *RemoteResolver) Store(ctx context.Context, conn *model.RemoteConnection) (storage.ObjectStore, error) {
	secretKey, err := r.secrets.Open(conn.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("decrypt secret of connection %s: %w", conn.ID, err)
	}
	return r.factory(ctx, storage.Credentials{
		AccessKey: conn.AccessKey,
		SecretKey: secretKey,
		Region:    conn.Region,
	})
}
