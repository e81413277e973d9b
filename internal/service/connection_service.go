package service

import (
	"context"
	"errors"
	"fmt"

	"coldvault-go/internal/model"
	"coldvault-go/internal/repository"
	"coldvault-go/pkg/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CreateConnectionInput 是创建远端连接所需的参数。
type CreateConnectionInput struct {
	Name      string
	AccessKey string
	SecretKey string
	Region    string
}

// ConnectionService 接口定义了远端连接的管理操作。
type ConnectionService interface {
	// Create 校验凭证并创建以连接 ID 命名的存储桶；校验失败的连接以 is_valid=false 保存。
	Create(ctx context.Context, in CreateConnectionInput) (*model.RemoteConnection, error)
	Get(ctx context.Context, id string) (*model.RemoteConnection, error)
	List(ctx context.Context) ([]model.RemoteConnection, error)
	// Revalidate 重新执行凭证校验并保存结果。
	Revalidate(ctx context.Context, id string) (bool, error)
	Activate(ctx context.Context, id string) error
	Deactivate(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

type connectionService struct {
	conns    repository.ConnectionRepository
	remote   *RemoteResolver
	settings Settings
	log      *zap.SugaredLogger
}

// NewConnectionService 创建一个新的 ConnectionService 实例。
func NewConnectionService(conns repository.ConnectionRepository, remote *RemoteResolver, settings Settings, log *zap.SugaredLogger) ConnectionService {
	return &connectionService{conns: conns, remote: remote, settings: settings, log: log}
}

// probeBucket 通过创建并删除一个临时存储桶确认凭证可用。
func (s *connectionService) probeBucket(ctx context.Context, store storage.ObjectStore) error {
	ctx, cancel := withTimeout(ctx, s.settings.RemoteTimeout)
	defer cancel()
	name := "coldvault-probe-" + uuid.NewString()
	if err := store.CreateBucket(ctx, name); err != nil {
		return err
	}
	return store.DeleteBucket(ctx, name)
}

func (s *connectionService) Create(ctx context.Context, in CreateConnectionInput) (*model.RemoteConnection, error) {
	if in.Name == "" || in.AccessKey == "" || in.SecretKey == "" || in.Region == "" {
		return nil, fmt.Errorf("%w: name, access key, secret key and region are required", ErrInvalidInput)
	}
	store, err := s.remote.factory(ctx, storage.Credentials{AccessKey: in.AccessKey, SecretKey: in.SecretKey, Region: in.Region})
	if err != nil {
		return nil, err
	}

	conn := &model.RemoteConnection{
		ID:        uuid.NewString(),
		Name:      in.Name,
		AccessKey: in.AccessKey,
		Region:    in.Region,
	}
	if err := s.probeBucket(ctx, store); err != nil {
		s.log.Warnf("[Connection] 连接 %s 凭证校验失败: %v", in.Name, err)
	} else {
		bctx, cancel := withTimeout(ctx, s.settings.RemoteTimeout)
		err := store.CreateBucket(bctx, conn.Bucket())
		cancel()
		if err != nil {
			s.log.Warnf("[Connection] 创建存储桶 %s 失败: %v", conn.Bucket(), err)
		} else {
			conn.IsValid = true
		}
	}

	sealed, err := s.remote.secrets.Seal(in.SecretKey)
	if err != nil {
		return nil, err
	}
	conn.SecretKey = sealed
	if err := s.conns.Create(ctx, conn); err != nil {
		return nil, err
	}
	s.log.Infof("[Connection] 连接已创建: id=%s, name=%s, valid=%t", conn.ID, conn.Name, conn.IsValid)
	return conn, nil
}

func (s *connectionService) Get(ctx context.Context, id string) (*model.RemoteConnection, error) {
	conn, err := s.conns.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrConnectionNotFound, id)
	}
	return conn, err
}

func (s *connectionService) List(ctx context.Context) ([]model.RemoteConnection, error) {
	return s.conns.FindAll(ctx)
}

func (s *connectionService) Revalidate(ctx context.Context, id string) (bool, error) {
	conn, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	store, err := s.remote.Store(ctx, conn)
	if err != nil {
		return false, err
	}
	valid := s.probeBucket(ctx, store) == nil
	if err := s.conns.SetValid(ctx, id, valid); err != nil {
		return false, err
	}
	s.log.Infof("[Connection] 连接 %s 重新校验结果: valid=%t", id, valid)
	return valid, nil
}

func (s *connectionService) Activate(ctx context.Context, id string) error {
	conn, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !conn.IsValid {
		return fmt.Errorf("%w: %s", ErrConnectionInvalid, id)
	}
	if err := s.conns.Activate(ctx, id); err != nil {
		return err
	}
	s.log.Infof("[Connection] 连接 %s 已激活", id)
	return nil
}

func (s *connectionService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.conns.Deactivate(ctx, id)
}

func (s *connectionService) Delete(ctx context.Context, id string) error {
	conn, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if store, err := s.remote.Store(ctx, conn); err == nil {
		bctx, cancel := withTimeout(ctx, s.settings.RemoteTimeout)
		if err := store.DeleteBucket(bctx, conn.Bucket()); err != nil {
			s.log.Warnf("[Connection] 删除存储桶 %s 失败: %v", conn.Bucket(), err)
		}
		cancel()
	}
	if err := s.conns.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Infof("[Connection] 连接 %s 已删除", id)
	return nil
}
