package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"app/internal/domain/model"
)

// GatewayError は決済プロバイダ起因の失敗。
// プロバイダのメッセージはログ用に保持するが、ユーザーにはそのまま見せない。
type GatewayError struct {
	StatusCode int    // HTTPステータス（ネットワーク断は0）
	Message    string // プロバイダのメッセージ
	Err        error
}

func (e *GatewayError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("gateway error (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("gateway error: %v", e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

type PayerInfo struct {
	Email string
	Name  string
}

type CreatePixInput struct {
	AmountCents int64
	Payer       PayerInfo
	ExternalRef string // 内部注文ID。通知のjoinキーになる
	NotifyURL   string
}

type PixPayment struct {
	TransactionID string
	Status        model.PaymentStatus
	QRCode        string
	QRCodeBase64  string
	TicketURL     string
}

type PreferenceItem struct {
	Title          string
	Quantity       int64
	UnitPriceCents int64
}

type BackURLs struct {
	Success string
	Failure string
	Pending string
}

type CreatePreferenceInput struct {
	Items       []PreferenceItem
	Payer       PayerInfo
	ExternalRef string
	NotifyURL   string
	BackURLs    BackURLs
}

type Preference struct {
	TransactionID string
	InitPointURL  string
}

type PaymentInfo struct {
	TransactionID string
	Status        model.PaymentStatus
	ExternalRef   string
	Raw           json.RawMessage
}

// Gateway は外部決済APIの窓口。
// 外部の状態文字列はこの境界で model.PaymentStatus に訳す。
// 呼び出し側は冪等性を仮定しないこと（作成系はidempotency key付きで呼ばれる）。
type Gateway interface {
	CreatePixPayment(ctx context.Context, in CreatePixInput) (PixPayment, error)
	CreatePreference(ctx context.Context, in CreatePreferenceInput) (Preference, error)
	GetPayment(ctx context.Context, transactionID string) (PaymentInfo, error)
	CancelPayment(ctx context.Context, transactionID string) error
}
