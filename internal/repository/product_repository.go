package repository

import (
	"app/internal/domain/model"
	"context"
	"errors"
)

var ErrNotFound = errors.New("not found")

// unique制約違反（同時INSERT等）を統一して返す
var ErrDuplicate = errors.New("duplicate")

// 商品の永続化（保存・取得）だけを約束。
type ProductRepository interface {
	// 販売中の商品のみ。categoryIDがnilなら全件。
	ListAvailable(ctx context.Context, categoryID *int64) ([]model.Product, error)
	FindByID(ctx context.Context, id int64) (model.Product, error)
}

type CategoryRepository interface {
	ListAll(ctx context.Context) ([]model.Category, error)
}
