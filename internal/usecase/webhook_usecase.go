package usecase

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"

	"app/internal/domain/model"
	"app/internal/infra/payment"
	repo "app/internal/repository"

	"github.com/labstack/gommon/log"
)

// WebhookUsecase はゲートウェイからの非同期通知を受けて注文statusを合わせる。
// 同じ通知が何回届いても遷移は最大1回（payload hashのuniqueで担保）。
type WebhookUsecase struct {
	paymentLogs repo.PaymentLogRepository
	orders      repo.OrderRepository
	gateway     payment.Gateway
	secret      []byte // 空なら署名検証は無効（非本番のみ。構築時に警告済み）
}

// DI。secretは設定から注入する（グローバルは読まない）。
func NewWebhookUsecase(
	paymentLogs repo.PaymentLogRepository,
	orders repo.OrderRepository,
	gateway payment.Gateway,
	webhookSecret string,
) *WebhookUsecase {
	if webhookSecret == "" {
		// 非本番向けの退路。黙って素通しにはしない。
		log.Warn("webhook signature verification is DISABLED (no MP_WEBHOOK_SECRET)")
	}

	return &WebhookUsecase{
		paymentLogs: paymentLogs,
		orders:      orders,
		gateway:     gateway,
		secret:      []byte(webhookSecret),
	}
}

// 通知body。type以外は不透明なvendor形式として扱う。
type notificationPayload struct {
	Type  string `json:"type"`
	Topic string `json:"topic"`
	Data  struct {
		ID json.Number `json:"id"`
	} `json:"data"`
}

// HandleNotification は生のbodyと署名ヘッダを受ける。
// 戻りがnilなら200。エラーはHTTPErrorでステータスを持つ。
// 署名検証後の内部エラーは5xxにして、プロバイダの再配送に任せる。
func (u *WebhookUsecase) HandleNotification(ctx context.Context, rawBody []byte, signature string) error {
	// 1. 署名検証（HMAC-SHA256 hex、定数時間比較）
	if len(u.secret) > 0 {
		if !u.verifySignature(rawBody, signature) {
			return NewHTTPError(http.StatusForbidden, "invalid signature")
		}
	} else {
		log.Warn("accepting webhook WITHOUT signature verification")
	}

	// 2. payloadのパース。壊れていれば400（状態は触らない）
	var payload notificationPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	// payment以外のトピックは受領だけして無視
	if payload.Type != "payment" && payload.Topic != "payment" {
		return nil
	}

	paymentID := payload.Data.ID.String()
	if paymentID == "" {
		return NewHTTPError(http.StatusBadRequest, "missing payment id")
	}

	// 3-4. 生bodyのハッシュを先に記録する（record-then-process）。
	// 既にあれば同一通知の再配達なので、処理せず成功で返す。
	sum := sha256.Sum256(rawBody)
	hash := hex.EncodeToString(sum[:])

	err := u.paymentLogs.Insert(ctx, model.PaymentLog{
		PaymentID:   paymentID,
		PayloadHash: hash,
	})
	if err == repo.ErrDuplicate {
		log.Infof("duplicate notification for payment %s, skipping", paymentID)
		return nil
	}
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}

	// 5. statusは通知bodyを信用せず、必ずゲートウェイに取りに行く
	info, err := u.gateway.GetPayment(ctx, paymentID)
	if err != nil {
		log.Warnf("fetch payment %s: %v", paymentID, err)
		return NewHTTPError(http.StatusInternalServerError, "gateway error")
	}

	// 6. external reference（=注文ID）で注文を引く
	orderID, convErr := strconv.ParseInt(info.ExternalRef, 10, 64)
	if convErr != nil || orderID <= 0 {
		return NewHTTPError(http.StatusNotFound, "order not found")
	}

	order, err := u.orders.FindByID(ctx, orderID)
	if err == repo.ErrNotFound {
		return NewHTTPError(http.StatusNotFound, "order not found")
	}
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}

	// 7. 遷移ルールを適用。pending/未知は何もせず200（再送はプロバイダの仕事）
	next, changed := model.NextOrderStatus(order.Status, info.Status)
	if !changed {
		if order.Status.IsTerminal() {
			// 確定後の通知（順序逆転・重複）はエラーにせず無視する
			log.Infof("order %d already %s, ignoring payment status %s",
				order.ID, order.Status, info.Status)
		}
		return nil
	}

	ok, err := u.orders.UpdateStatusFrom(ctx, order.ID, order.Status, next)
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if !ok {
		// 並走した別通知が先に遷移させた
		log.Infof("order %d transition to %s lost the race, ignoring", order.ID, next)
		return nil
	}

	log.Infof("order %d: %s -> %s (payment %s)", order.ID, order.Status, next, paymentID)
	return nil
}

// HMAC-SHA256(secret, rawBody) のhexと比較する。hmac.Equalは定数時間。
func (u *WebhookUsecase) verifySignature(rawBody []byte, signature string) bool {
	if signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, u.secret)
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}
