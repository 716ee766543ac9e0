package usecase

import (
	"context"
	"net/http"

	"app/internal/domain/model"
	repo "app/internal/repository"
)

// CartUsecase は /cart の業務ロジックです。
// ownerは会員か匿名セッションのどちらか（model.CartOwner）。
type CartUsecase struct {
	cartItemRepo repo.CartItemRepository
	productRepo  repo.ProductRepository
}

func NewCartUsecase(
	cartItemRepo repo.CartItemRepository,
	productRepo repo.ProductRepository,
) *CartUsecase {
	return &CartUsecase{
		cartItemRepo: cartItemRepo,
		productRepo:  productRepo,
	}
}

type CartLineResponse struct {
	ID            int64  `json:"id"`
	ProductID     int64  `json:"product_id"`
	Name          string `json:"name"`
	PriceCents    int64  `json:"price_cents"`
	Quantity      int64  `json:"quantity"`
	SubtotalCents int64  `json:"subtotal_cents"`
}

type CartResponse struct {
	Items      []CartLineResponse `json:"items"`
	TotalCents int64              `json:"total_cents"`
}

type AddCartInput struct {
	ProductID int64
	Quantity  int64
}

type UpdateCartItemInput struct {
	Quantity int64
}

// GetCart はカートのスナップショット。空なら空配列とtotal=0（エラーにしない）。
func (u *CartUsecase) GetCart(ctx context.Context, owner model.CartOwner) (CartResponse, error) {
	if !owner.Valid() {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	return u.buildCartResponse(ctx, owner)
}

// AddToCart はカートに追加（同一商品は数量加算）。
func (u *CartUsecase) AddToCart(ctx context.Context, owner model.CartOwner, in AddCartInput) (CartResponse, error) {
	if !owner.Valid() {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if in.ProductID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid product_id")
	}
	if in.Quantity < 1 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid quantity")
	}

	// 商品チェック（販売中のみ）
	p, err := u.productRepo.FindByID(ctx, in.ProductID)
	if err == repo.ErrNotFound {
		return CartResponse{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if !p.IsAvailable {
		return CartResponse{}, NewHTTPError(http.StatusNotFound, "not found")
	}

	// Upsert（同一商品は加算）
	if _, err := u.cartItemRepo.UpsertByOwnerAndProduct(ctx, owner, in.ProductID, in.Quantity); err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return u.buildCartResponse(ctx, owner)
}

// 数量変更。qty<1は削除APIを使う想定なので400。
func (u *CartUsecase) UpdateCartItem(ctx context.Context, owner model.CartOwner, cartItemID int64, in UpdateCartItemInput) (CartResponse, error) {
	if !owner.Valid() {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if cartItemID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if in.Quantity < 1 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid quantity")
	}

	err := u.cartItemRepo.UpdateQuantity(ctx, owner, cartItemID, in.Quantity)
	if err == repo.ErrNotFound {
		return CartResponse{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return u.buildCartResponse(ctx, owner)
}

// 明細削除。既に無くても成功扱い（冪等）。
func (u *CartUsecase) DeleteCartItem(ctx context.Context, owner model.CartOwner, cartItemID int64) (CartResponse, error) {
	if !owner.Valid() {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if cartItemID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	if err := u.cartItemRepo.DeleteByID(ctx, owner, cartItemID); err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return u.buildCartResponse(ctx, owner)
}

// MergeOnLogin はログイン時に匿名セッションのカートを会員カートへ移す。
// repo側が「移したら消す」ので、同じログインで二度呼ばれても二重加算しない。
func (u *CartUsecase) MergeOnLogin(ctx context.Context, sessionKey string, userID int64) error {
	if sessionKey == "" || userID <= 0 {
		return nil
	}
	return u.cartItemRepo.MergeSessionIntoUser(ctx, sessionKey, userID)
}

// ownerの明細をまとめてCartResponseを作る。
// totalは「現在の商品価格 × 数量」の合計（確定前の価格は生きた値を見せる）。
func (u *CartUsecase) buildCartResponse(ctx context.Context, owner model.CartOwner) (CartResponse, error) {
	items, err := u.cartItemRepo.ListByOwner(ctx, owner)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	respItems := make([]CartLineResponse, 0, len(items))
	var total int64 = 0

	for _, it := range items {
		p, err := u.productRepo.FindByID(ctx, it.ProductID)
		if err == repo.ErrNotFound {
			// 消えた商品の明細は表示しない
			continue
		}
		if err != nil {
			return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if !p.IsAvailable {
			continue
		}

		subtotal := p.PriceCents * it.Quantity
		respItems = append(respItems, CartLineResponse{
			ID:            it.ID,
			ProductID:     it.ProductID,
			Name:          p.Name,
			PriceCents:    p.PriceCents,
			Quantity:      it.Quantity,
			SubtotalCents: subtotal,
		})

		total += subtotal
	}

	return CartResponse{Items: respItems, TotalCents: total}, nil
}
