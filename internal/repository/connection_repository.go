package repository

import (
	"context"

	"coldvault-go/internal/model"

	"gorm.io/gorm"
)

// ConnectionRepository 接口定义了远端连接的持久化操作。
type ConnectionRepository interface {
	Create(ctx context.Context, conn *model.RemoteConnection) error
	FindByID(ctx context.Context, id string) (*model.RemoteConnection, error)
	FindAll(ctx context.Context) ([]model.RemoteConnection, error)
	// FindActive 没有活跃连接时返回 gorm.ErrRecordNotFound。
	FindActive(ctx context.Context) (*model.RemoteConnection, error)
	// Activate 在一个事务中清除其他活跃连接并激活指定连接。
	Activate(ctx context.Context, id string) error
	Deactivate(ctx context.Context, id string) error
	SetValid(ctx context.Context, id string, valid bool) error
	Delete(ctx context.Context, id string) error
}

const activeSlot = 1

type connectionRepository struct {
	db *gorm.DB
}

// NewConnectionRepository 创建一个新的 ConnectionRepository 实例。
func NewConnectionRepository(db *gorm.DB) ConnectionRepository {
	return &connectionRepository{db: db}
}

func (r *connectionRepository) Create(ctx context.Context, conn *model.RemoteConnection) error {
	return r.db.WithContext(ctx).Create(conn).Error
}

func (r *connectionRepository) FindByID(ctx context.Context, id string) (*model.RemoteConnection, error) {
	var conn model.RemoteConnection
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&conn).Error; err != nil {
		return nil, err
	}
	return &conn, nil
}

func (r *connectionRepository) FindAll(ctx context.Context) ([]model.RemoteConnection, error) {
	var conns []model.RemoteConnection
	err := r.db.WithContext(ctx).Order("created_at, id").Find(&conns).Error
	return conns, err
}

func (r *connectionRepository) FindActive(ctx context.Context) (*model.RemoteConnection, error) {
	var conn model.RemoteConnection
	if err := r.db.WithContext(ctx).Where("active_slot = ?", activeSlot).First(&conn).Error; err != nil {
		return nil, err
	}
	return &conn, nil
}

func (r *connectionRepository) Activate(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&model.RemoteConnection{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return gorm.ErrRecordNotFound
		}
		if err := tx.Model(&model.RemoteConnection{}).
			Where("active_slot IS NOT NULL AND id <> ?", id).
			Updates(map[string]interface{}{"is_active": false, "active_slot": nil}).Error; err != nil {
			return err
		}
		return tx.Model(&model.RemoteConnection{}).Where("id = ?", id).
			Updates(map[string]interface{}{"is_active": true, "active_slot": activeSlot}).Error
	})
}

func (r *connectionRepository) Deactivate(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&model.RemoteConnection{}).Where("id = ?", id).
		Updates(map[string]interface{}{"is_active": false, "active_slot": nil}).Error
}

func (r *connectionRepository) SetValid(ctx context.Context, id string, valid bool) error {
	return r.db.WithContext(ctx).Model(&model.RemoteConnection{}).Where("id = ?", id).Update("is_valid", valid).Error
}

func (r *connectionRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.RemoteConnection{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
