package model

import "time"

type OrderStatus string

const (
	OrderStatusPending OrderStatus = "PENDING"
	OrderStatusPaid    OrderStatus = "PAID"
	OrderStatusFailed  OrderStatus = "FAILED"
	OrderStatusExpired OrderStatus = "EXPIRED"
)

// PAID / FAILED からは遷移しない
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusPaid || s == OrderStatusFailed
}

func (s OrderStatus) String() string {
	return string(s)
}

// 許可された遷移だけtrue
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s == next {
		return false
	}
	// 遷移元はPENDINGのみ（EXPIREDも再開しない）
	return s == OrderStatusPending
}

// PaymentStatus はゲートウェイの状態を内部語彙に訳したもの。
// 外部の文字列（approved / rejected …）はadapterの外に出さない。
type PaymentStatus string

const (
	PaymentStatusApproved  PaymentStatus = "APPROVED"
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusRejected  PaymentStatus = "REJECTED"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
	PaymentStatusUnknown   PaymentStatus = "UNKNOWN"
)

// NextOrderStatus は決済状態から次の注文statusを決める。
// changed=false は「今のまま」（PENDING継続 or 確定済みで無視）。
func NextOrderStatus(current OrderStatus, ps PaymentStatus) (OrderStatus, bool) {
	if current.IsTerminal() {
		return current, false
	}

	var next OrderStatus
	switch ps {
	case PaymentStatusApproved:
		next = OrderStatusPaid
	case PaymentStatusRejected, PaymentStatusCancelled:
		next = OrderStatusFailed
	default:
		// pending / 未知の状態はPENDINGのまま
		return current, false
	}

	if !current.CanTransitionTo(next) {
		return current, false
	}
	return next, true
}

// 確定した注文。statusだけが後から変わる。
// TransactionID はゲートウェイ発行の決済ID（決済リクエスト成功まで空）。
type Order struct {
	ID            int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        int64       `gorm:"not null;index" json:"user_id"`
	Status        OrderStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	TotalCents    int64       `gorm:"not null" json:"total_cents"`
	TransactionID string      `gorm:"type:varchar(64);index" json:"-"`
	CreatedAt     time.Time   `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time   `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// 支払い期限切れか（PENDINGのみ対象、閲覧時に遅延評価）
func (o Order) ExpiredAt(window time.Duration, now time.Time) bool {
	return o.Status == OrderStatusPending && now.Sub(o.CreatedAt) > window
}
