package repository

import (
	"context"
	"errors"
	"time"

	"github.com/authgate/authgate/internal/model"
	"github.com/authgate/authgate/internal/service"
	"gorm.io/gorm"
)

type GormClientRepo struct {
	db *gorm.DB
}

func NewGormClientRepo(db *gorm.DB) *GormClientRepo {
	return &GormClientRepo{db: db}
}

func (r *GormClientRepo) Create(ctx context.Context, client *model.ClientRegistration) error {
	return r.db.WithContext(ctx).Create(client).Error
}

func (r *GormClientRepo) GetByUUID(ctx context.Context, clientUUID string) (*model.ClientRegistration, error) {
	var client model.ClientRegistration
	err := r.db.WithContext(ctx).First(&client, "client_uuid = ?", clientUUID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, service.ErrClientNotFound
		}
		return nil, err
	}
	return &client, nil
}

func (r *GormClientRepo) TouchLastSeen(ctx context.Context, clientUUID string, seenAt time.Time, sourceIP string) error {
	return r.db.WithContext(ctx).
		Model(&model.ClientRegistration{}).
		Where("client_uuid = ?", clientUUID).
		Updates(map[string]interface{}{
			"last_seen_at": seenAt,
			"source_ip":    sourceIP,
		}).Error
}

// Deactivate flips is_active; rows are never removed.
func (r *GormClientRepo) Deactivate(ctx context.Context, clientUUID string) error {
	res := r.db.WithContext(ctx).
		Model(&model.ClientRegistration{}).
		Where("client_uuid = ?", clientUUID).
		Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return service.ErrClientNotFound
	}
	return nil
}

func (r *GormClientRepo) List(ctx context.Context, limit, offset int) ([]*model.ClientRegistration, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	var clients []*model.ClientRegistration
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&clients).Error
	return clients, err
}
