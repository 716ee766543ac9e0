package repository

import (
	"app/internal/domain/model"
	"context"
)

// webhook冪等化用。追記のみで、同じpayload_hashはErrDuplicate。
type PaymentLogRepository interface {
	Insert(ctx context.Context, log model.PaymentLog) error
}
