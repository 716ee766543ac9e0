package repository

import (
	"app/internal/domain/model"
	"context"
)

type CartItemRepository interface {
	ListByOwner(ctx context.Context, owner model.CartOwner) ([]model.CartItem, error)
	// 同一商品は数量加算（行ロック＋unique制約でレース安全）
	UpsertByOwnerAndProduct(ctx context.Context, owner model.CartOwner, productID int64, addQty int64) (model.CartItem, error)
	// ownerの明細でなければErrNotFound
	UpdateQuantity(ctx context.Context, owner model.CartOwner, cartItemID int64, qty int64) error
	// 冪等：既に無ければ何もしない
	DeleteByID(ctx context.Context, owner model.CartOwner, cartItemID int64) error
	// 注文確定時のクリア。snapshotした行だけ消す
	// （確定処理と並走して入った新しい明細は残す）。
	DeleteByIDs(ctx context.Context, owner model.CartOwner, cartItemIDs []int64) error
	// セッションカートを会員カートへ移す（同一商品は数量マージ）。
	// 移したあとセッション側の行は消えるので、2回呼んでも二重加算しない。
	MergeSessionIntoUser(ctx context.Context, sessionKey string, userID int64) error
}
