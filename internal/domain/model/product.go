package model

import "time"

// 価格は整数の最小通貨単位（centavos）で持つ。
// 注文確定時にスナップショットを取るので、後から価格を変えても既存注文には影響しない。
type Product struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"type:varchar(100);not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	PriceCents  int64     `gorm:"not null" json:"price_cents"`
	CategoryID  int64     `gorm:"not null;index" json:"category_id"`
	ImageURL    string    `gorm:"type:varchar(255)" json:"image_url"`
	IsAvailable bool      `gorm:"not null;default:true" json:"is_available"`
	CreatedAt   time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
