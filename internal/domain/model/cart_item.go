package model

import "time"

// カートの明細。
// DB上はuser_id / session_keyの2列だが、コード側は必ずCartOwner経由で触る。
// (owner, product) につき1行。同じ商品の追加は数量加算になる。
type CartItem struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     *int64    `gorm:"index:ux_cart_items_user_product,unique" json:"user_id,omitempty"`
	SessionKey *string   `gorm:"type:varchar(64);index:ux_cart_items_session_product,unique" json:"session_key,omitempty"`
	ProductID  int64     `gorm:"not null;index:ux_cart_items_user_product,unique;index:ux_cart_items_session_product,unique" json:"product_id"`
	Quantity   int64     `gorm:"not null" json:"quantity"`
	CreatedAt  time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// 明細のownerを返す
func (i CartItem) Owner() CartOwner {
	if i.UserID != nil {
		return OwnerUser(*i.UserID)
	}
	if i.SessionKey != nil {
		return OwnerSession(*i.SessionKey)
	}
	return CartOwner{}
}
