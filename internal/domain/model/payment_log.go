package model

import "time"

// PaymentLog はwebhook処理を冪等にするための追記専用レコード。
// 同じ生payloadのハッシュは一度しか入らない（unique）。更新はしない。
type PaymentLog struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	PaymentID   string    `gorm:"type:varchar(64);not null;index" json:"payment_id"`
	PayloadHash string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"payload_hash"`
	ProcessedAt time.Time `gorm:"not null;autoCreateTime" json:"processed_at"`
}
