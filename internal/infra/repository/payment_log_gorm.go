package repository

import (
	"context"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"gorm.io/gorm"
)

type PaymentLogGormRepository struct {
	db *gorm.DB
}

func NewPaymentLogGormRepository(db *gorm.DB) *PaymentLogGormRepository {
	return &PaymentLogGormRepository{db: db}
}

// 追記のみ。payload_hashのunique違反はErrDuplicate。
// 同じ通知の同時配送はここの制約だけで守る。
func (r *PaymentLogGormRepository) Insert(ctx context.Context, log model.PaymentLog) error {
	err := r.db.WithContext(ctx).Create(&log).Error
	if err != nil && isUniqueViolation(err) {
		return repo.ErrDuplicate
	}
	return err
}
