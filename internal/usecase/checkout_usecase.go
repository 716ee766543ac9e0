package usecase

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"app/internal/domain/model"
	"app/internal/infra/payment"
	repo "app/internal/repository"

	"github.com/labstack/gommon/log"
)

// CheckoutUsecase はカート→注文→決済依頼の流れを持つ。
// 注文作成とゲートウェイ呼び出しは必ず別ステップ（ゲートウェイ失敗で注文やカートを壊さない）。
type CheckoutUsecase struct {
	tx            repo.TransactionManager
	orders        repo.OrderRepository
	orderItems    repo.OrderItemRepository
	users         repo.UserRepository
	gateway       payment.Gateway
	notifyURL     string
	paymentWindow time.Duration
	now           func() time.Time
}

// DI
func NewCheckoutUsecase(
	tx repo.TransactionManager,
	orders repo.OrderRepository,
	orderItems repo.OrderItemRepository,
	users repo.UserRepository,
	gateway payment.Gateway,
	notifyURL string,
	paymentWindow time.Duration,
) *CheckoutUsecase {
	return &CheckoutUsecase{
		tx:            tx,
		orders:        orders,
		orderItems:    orderItems,
		users:         users,
		gateway:       gateway,
		notifyURL:     notifyURL,
		paymentWindow: paymentWindow,
		now:           time.Now,
	}
}

type OrderItemOutput struct {
	ProductID  int64  `json:"product_id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Quantity   int64  `json:"quantity"`
}

type OrderOutput struct {
	ID         int64             `json:"id"`
	UserID     int64             `json:"user_id"`
	Status     string            `json:"status"`
	TotalCents int64             `json:"total_cents"`
	CreatedAt  time.Time         `json:"created_at"`
	Items      []OrderItemOutput `json:"items"`
}

type PixPaymentOutput struct {
	OrderID       int64  `json:"order_id"`
	TransactionID string `json:"transaction_id"`
	QRCode        string `json:"qr_code"`
	QRCodeBase64  string `json:"qr_code_base64"`
	TicketURL     string `json:"ticket_url"`
}

type PreferenceOutput struct {
	OrderID      int64  `json:"order_id"`
	InitPointURL string `json:"init_point_url"`
}

type OrderStatusOutput struct {
	OrderID    int64  `json:"order_id"`
	Status     string `json:"status"`
	TotalCents int64  `json:"total_cents"`
}

// PlaceOrder はカートから注文を確定する。checkoutは会員のみ。
// 注文作成・明細作成・カートのクリアは1トランザクション（部分適用は不正状態）。
func (u *CheckoutUsecase) PlaceOrder(ctx context.Context, userID int64) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	owner := model.OwnerUser(userID)
	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cartItems, err := r.CartItems().ListByOwner(ctx, owner)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if len(cartItems) == 0 {
			return NewHTTPError(http.StatusBadRequest, "cart empty")
		}

		// totalはサーバー側で計算する（クライアントの申告は信用しない）
		orderItems := make([]model.OrderItem, 0, len(cartItems))
		lineIDs := make([]int64, 0, len(cartItems))
		var total int64 = 0

		for _, ci := range cartItems {
			p, err := r.Products().FindByID(ctx, ci.ProductID)
			if err == repo.ErrNotFound {
				return NewHTTPError(http.StatusBadRequest, "invalid")
			}
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			if !p.IsAvailable {
				return NewHTTPError(http.StatusBadRequest, "invalid")
			}

			// 価格は確定時点でスナップショット
			orderItems = append(orderItems, model.OrderItem{
				ProductID:           ci.ProductID,
				ProductNameSnapshot: p.Name,
				UnitPriceSnapshot:   p.PriceCents,
				Quantity:            ci.Quantity,
			})

			total += p.PriceCents * ci.Quantity
			lineIDs = append(lineIDs, ci.ID)
		}

		now := u.now()
		orderID, err := r.Orders().Create(ctx, model.Order{
			UserID:     userID,
			Status:     model.OrderStatusPending,
			TotalCents: total,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		if err := r.OrderItems().CreateBulk(ctx, orderID, orderItems); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		// snapshotした行だけクリア（ここまでが全部まとめてcommit/rollback）。
		// 確定と並走して入った新しい明細は注文に入っていないので消さない。
		if err := r.CartItems().DeleteByIDs(ctx, owner, lineIDs); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		out = toOrderOutput(model.Order{
			ID:         orderID,
			UserID:     userID,
			Status:     model.OrderStatusPending,
			TotalCents: total,
			CreatedAt:  now,
		}, orderItems)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

// RequestPixPayment はPIX決済を作る。リトライ安全：
// 既に発行済みの決済があれば先にキャンセルしてから作り直す（二重請求防止）。
func (u *CheckoutUsecase) RequestPixPayment(ctx context.Context, userID int64, orderID int64) (PixPaymentOutput, error) {
	order, err := u.loadOwnOrder(ctx, userID, orderID)
	if err != nil {
		return PixPaymentOutput{}, err
	}

	if err := u.ensurePayable(ctx, &order); err != nil {
		return PixPaymentOutput{}, err
	}

	payer, err := u.payerInfo(ctx, userID)
	if err != nil {
		return PixPaymentOutput{}, err
	}

	if err := u.cancelPrevious(ctx, order); err != nil {
		return PixPaymentOutput{}, err
	}

	pix, err := u.gateway.CreatePixPayment(ctx, payment.CreatePixInput{
		AmountCents: order.TotalCents,
		Payer:       payer,
		ExternalRef: strconv.FormatInt(order.ID, 10),
		NotifyURL:   u.notifyURL,
	})
	if err != nil {
		// 注文はPENDINGのまま。transaction referenceも付かないので再試行できる。
		log.Warnf("create pix payment for order %d: %v", order.ID, err)
		return PixPaymentOutput{}, NewHTTPError(http.StatusBadGateway, "payment provider error")
	}

	if err := u.orders.SetTransactionID(ctx, order.ID, pix.TransactionID); err != nil {
		return PixPaymentOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return PixPaymentOutput{
		OrderID:       order.ID,
		TransactionID: pix.TransactionID,
		QRCode:        pix.QRCode,
		QRCodeBase64:  pix.QRCodeBase64,
		TicketURL:     pix.TicketURL,
	}, nil
}

// RequestPreference はホスト型チェックアウト（カード等）のリンクを作る。
func (u *CheckoutUsecase) RequestPreference(ctx context.Context, userID int64, orderID int64, backURLs payment.BackURLs) (PreferenceOutput, error) {
	order, err := u.loadOwnOrder(ctx, userID, orderID)
	if err != nil {
		return PreferenceOutput{}, err
	}

	if err := u.ensurePayable(ctx, &order); err != nil {
		return PreferenceOutput{}, err
	}

	payer, err := u.payerInfo(ctx, userID)
	if err != nil {
		return PreferenceOutput{}, err
	}

	if err := u.cancelPrevious(ctx, order); err != nil {
		return PreferenceOutput{}, err
	}

	items, err := u.orderItems.ListByOrderID(ctx, order.ID)
	if err != nil {
		return PreferenceOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	prefItems := make([]payment.PreferenceItem, 0, len(items))
	for _, it := range items {
		prefItems = append(prefItems, payment.PreferenceItem{
			Title:          it.ProductNameSnapshot,
			Quantity:       it.Quantity,
			UnitPriceCents: it.UnitPriceSnapshot,
		})
	}

	pref, err := u.gateway.CreatePreference(ctx, payment.CreatePreferenceInput{
		Items:       prefItems,
		Payer:       payer,
		ExternalRef: strconv.FormatInt(order.ID, 10),
		NotifyURL:   u.notifyURL,
		BackURLs:    backURLs,
	})
	if err != nil {
		log.Warnf("create preference for order %d: %v", order.ID, err)
		return PreferenceOutput{}, NewHTTPError(http.StatusBadGateway, "payment provider error")
	}

	return PreferenceOutput{
		OrderID:      order.ID,
		InitPointURL: pref.InitPointURL,
	}, nil
}

// GetOrderStatus は同期的なステータス確認。
// 確定済みはキャッシュを返すだけ。PENDINGは期限切れを遅延評価し、
// 必要ならゲートウェイへ問い合わせて同じ遷移ルールを適用する。
func (u *CheckoutUsecase) GetOrderStatus(ctx context.Context, userID int64, orderID int64) (OrderStatusOutput, error) {
	order, err := u.loadOwnOrder(ctx, userID, orderID)
	if err != nil {
		return OrderStatusOutput{}, err
	}

	if order.Status.IsTerminal() || order.Status == model.OrderStatusExpired {
		return toStatusOutput(order), nil
	}

	// 支払い期限切れ（バックグラウンドのsweepはせず、見られた時に落とす）
	if order.ExpiredAt(u.paymentWindow, u.now()) {
		if _, err := u.orders.UpdateStatusFrom(ctx, order.ID, model.OrderStatusPending, model.OrderStatusExpired); err != nil {
			return OrderStatusOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
		}
		order.Status = model.OrderStatusExpired
		return toStatusOutput(order), nil
	}

	// まだ決済が発行されていなければ問い合わせ先がない
	if order.TransactionID == "" {
		return toStatusOutput(order), nil
	}

	info, err := u.gateway.GetPayment(ctx, order.TransactionID)
	if err != nil {
		// プロバイダ障害でポーリングを落とさない。注文はPENDINGのまま。
		log.Warnf("poll payment %s for order %d: %v", order.TransactionID, order.ID, err)
		return toStatusOutput(order), nil
	}

	next, changed := model.NextOrderStatus(order.Status, info.Status)
	if changed {
		ok, err := u.orders.UpdateStatusFrom(ctx, order.ID, order.Status, next)
		if err != nil {
			return OrderStatusOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if ok {
			order.Status = next
		}
	}

	return toStatusOutput(order), nil
}

func (u *CheckoutUsecase) ListMyOrders(ctx context.Context, userID int64) ([]OrderOutput, error) {
	if userID <= 0 {
		return []OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	orders, err := u.orders.ListByUserID(ctx, userID)
	if err != nil {
		return []OrderOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	outs := make([]OrderOutput, 0, len(orders))
	for _, o := range orders {
		items, err := u.orderItems.ListByOrderID(ctx, o.ID)
		if err != nil {
			return []OrderOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
		}
		outs = append(outs, toOrderOutput(o, items))
	}
	return outs, nil
}

func (u *CheckoutUsecase) GetMyOrderDetail(ctx context.Context, userID int64, orderID int64) (OrderOutput, error) {
	order, err := u.loadOwnOrder(ctx, userID, orderID)
	if err != nil {
		return OrderOutput{}, err
	}

	items, err := u.orderItems.ListByOrderID(ctx, order.ID)
	if err != nil {
		return OrderOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return toOrderOutput(order, items), nil
}

// 自分の注文だけ取得。他人の注文は「存在しない扱い」にする。
func (u *CheckoutUsecase) loadOwnOrder(ctx context.Context, userID int64, orderID int64) (model.Order, error) {
	if userID <= 0 {
		return model.Order{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return model.Order{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	order, err := u.orders.FindByID(ctx, orderID)
	if err == repo.ErrNotFound {
		return model.Order{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return model.Order{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if order.UserID != userID {
		return model.Order{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	return order, nil
}

// 発行済みの決済があれば必ず先にキャンセルする（二重請求防止）。
// キャンセルできないうちは新しい決済経路を作らせない。
func (u *CheckoutUsecase) cancelPrevious(ctx context.Context, order model.Order) error {
	if order.TransactionID == "" {
		return nil
	}
	if err := u.gateway.CancelPayment(ctx, order.TransactionID); err != nil {
		log.Warnf("cancel previous payment %s for order %d: %v", order.TransactionID, order.ID, err)
		return NewHTTPError(http.StatusBadGateway, "payment provider error")
	}
	return nil
}

// 決済を作れる状態か。期限切れはここでEXPIREDへ落とす。
func (u *CheckoutUsecase) ensurePayable(ctx context.Context, order *model.Order) error {
	if order.Status != model.OrderStatusPending {
		return NewHTTPError(http.StatusConflict, "order is not payable")
	}
	if order.ExpiredAt(u.paymentWindow, u.now()) {
		if _, err := u.orders.UpdateStatusFrom(ctx, order.ID, model.OrderStatusPending, model.OrderStatusExpired); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		order.Status = model.OrderStatusExpired
		return NewHTTPError(http.StatusConflict, "payment window expired")
	}
	return nil
}

func (u *CheckoutUsecase) payerInfo(ctx context.Context, userID int64) (payment.PayerInfo, error) {
	user, err := u.users.FindByID(ctx, userID)
	if err != nil {
		return payment.PayerInfo{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return payment.PayerInfo{Email: user.Email, Name: user.Name}, nil
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ProductID:  it.ProductID,
			Name:       it.ProductNameSnapshot,
			PriceCents: it.UnitPriceSnapshot,
			Quantity:   it.Quantity,
		})
	}

	return OrderOutput{
		ID:         o.ID,
		UserID:     o.UserID,
		Status:     o.Status.String(),
		TotalCents: o.TotalCents,
		CreatedAt:  o.CreatedAt,
		Items:      outItems,
	}
}

func toStatusOutput(o model.Order) OrderStatusOutput {
	return OrderStatusOutput{
		OrderID:    o.ID,
		Status:     o.Status.String(),
		TotalCents: o.TotalCents,
	}
}
