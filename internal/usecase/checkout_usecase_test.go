package usecase_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"app/internal/domain/model"
	"app/internal/infra/payment"
	repo "app/internal/repository"
	"app/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type checkoutFixture struct {
	tx         *txManagerStub
	orders     *OrderRepoMock
	orderItems *OrderItemRepoMock
	cartItems  *CartItemRepoMock
	products   *ProductRepoMock
	users      *UserRepoMock
	gateway    *GatewayMock
	uc         *usecase.CheckoutUsecase
}

func newCheckoutFixture(now time.Time) *checkoutFixture {
	f := &checkoutFixture{
		orders:     new(OrderRepoMock),
		orderItems: new(OrderItemRepoMock),
		cartItems:  new(CartItemRepoMock),
		products:   new(ProductRepoMock),
		users:      new(UserRepoMock),
		gateway:    new(GatewayMock),
	}
	f.tx = &txManagerStub{repos: &txReposStub{
		orders:      f.orders,
		orderItems:  f.orderItems,
		cartItems:   f.cartItems,
		products:    f.products,
		paymentLogs: new(PaymentLogRepoMock),
	}}
	f.uc = usecase.NewCheckoutUsecase(
		f.tx, f.orders, f.orderItems, f.users, f.gateway,
		"https://example.test/webhooks/mercadopago",
		30*time.Minute,
	)
	f.uc.SetNow(func() time.Time { return now })
	return f
}

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestPlaceOrder_EmptyCart(t *testing.T) {
	f := newCheckoutFixture(fixedNow)

	owner := model.OwnerUser(7)
	f.cartItems.On("ListByOwner", mock.Anything, owner).Return([]model.CartItem{}, nil)

	_, err := f.uc.PlaceOrder(context.Background(), 7)

	assertHTTPStatus(t, err, http.StatusBadRequest)
	// 注文もカートのクリアも走らない
	f.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.cartItems.AssertNotCalled(t, "DeleteByIDs", mock.Anything, mock.Anything, mock.Anything)
}

func TestPlaceOrder_SnapshotsPricesAndClearsCart(t *testing.T) {
	f := newCheckoutFixture(fixedNow)

	owner := model.OwnerUser(7)
	f.cartItems.On("ListByOwner", mock.Anything, owner).Return([]model.CartItem{
		{ID: 1, ProductID: 10, Quantity: 2},
		{ID: 2, ProductID: 11, Quantity: 1},
	}, nil)
	f.products.On("FindByID", mock.Anything, int64(10)).
		Return(model.Product{ID: 10, Name: "X-Burger", PriceCents: 1850, IsAvailable: true}, nil)
	f.products.On("FindByID", mock.Anything, int64(11)).
		Return(model.Product{ID: 11, Name: "Guarana", PriceCents: 600, IsAvailable: true}, nil)

	f.orders.On("Create", mock.Anything, mock.MatchedBy(func(o model.Order) bool {
		return o.UserID == 7 && o.Status == model.OrderStatusPending && o.TotalCents == 4300
	})).Return(int64(100), nil)

	f.orderItems.On("CreateBulk", mock.Anything, int64(100), mock.MatchedBy(func(items []model.OrderItem) bool {
		return len(items) == 2 &&
			items[0].ProductNameSnapshot == "X-Burger" &&
			items[0].UnitPriceSnapshot == 1850 &&
			items[0].Quantity == 2
	})).Return(nil)

	// snapshotした行のIDだけ消す
	f.cartItems.On("DeleteByIDs", mock.Anything, owner, []int64{1, 2}).Return(nil)

	out, err := f.uc.PlaceOrder(context.Background(), 7)

	assert.NoError(t, err)
	assert.Equal(t, int64(100), out.ID)
	assert.Equal(t, "PENDING", out.Status)
	assert.Equal(t, int64(4300), out.TotalCents)
	assert.Len(t, out.Items, 2)
	f.cartItems.AssertExpectations(t)
	f.orders.AssertExpectations(t)
	f.orderItems.AssertExpectations(t)
}

func TestPlaceOrder_UnavailableProductAborts(t *testing.T) {
	f := newCheckoutFixture(fixedNow)

	owner := model.OwnerUser(7)
	f.cartItems.On("ListByOwner", mock.Anything, owner).Return([]model.CartItem{
		{ID: 1, ProductID: 10, Quantity: 1},
	}, nil)
	f.products.On("FindByID", mock.Anything, int64(10)).
		Return(model.Product{ID: 10, IsAvailable: false}, nil)

	_, err := f.uc.PlaceOrder(context.Background(), 7)

	assertHTTPStatus(t, err, http.StatusBadRequest)
	f.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.cartItems.AssertNotCalled(t, "DeleteByIDs", mock.Anything, mock.Anything, mock.Anything)
}

func TestRequestPixPayment_FirstIssue(t *testing.T) {
	f := newCheckoutFixture(fixedNow)

	f.orders.On("FindByID", mock.Anything, int64(100)).Return(model.Order{
		ID: 100, UserID: 7, Status: model.OrderStatusPending,
		TotalCents: 4300, CreatedAt: fixedNow.Add(-5 * time.Minute),
	}, nil)
	f.users.On("FindByID", mock.Anything, int64(7)).
		Return(&model.User{ID: 7, Email: "ana@example.com", Name: "Ana"}, nil)

	f.gateway.On("CreatePixPayment", mock.Anything, mock.MatchedBy(func(in payment.CreatePixInput) bool {
		return in.AmountCents == 4300 && in.ExternalRef == "100" && in.Payer.Email == "ana@example.com"
	})).Return(payment.PixPayment{
		TransactionID: "mp-555",
		Status:        model.PaymentStatusPending,
		QRCode:        "qr-data",
	}, nil)

	f.orders.On("SetTransactionID", mock.Anything, int64(100), "mp-555").Return(nil)

	out, err := f.uc.RequestPixPayment(context.Background(), 7, 100)

	assert.NoError(t, err)
	assert.Equal(t, "mp-555", out.TransactionID)
	assert.Equal(t, "qr-data", out.QRCode)
	// 初回はキャンセルしない
	f.gateway.AssertNotCalled(t, "CancelPayment", mock.Anything, mock.Anything)
}

func TestRequestPixPayment_CancelsPreviousFirst(t *testing.T) {
	f := newCheckoutFixture(fixedNow)

	f.orders.On("FindByID", mock.Anything, int64(100)).Return(model.Order{
		ID: 100, UserID: 7, Status: model.OrderStatusPending,
		TotalCents: 4300, TransactionID: "mp-old",
		CreatedAt: fixedNow.Add(-5 * time.Minute),
	}, nil)
	f.users.On("FindByID", mock.Anything, int64(7)).
		Return(&model.User{ID: 7, Email: "ana@example.com"}, nil)

	f.gateway.On("CancelPayment", mock.Anything, "mp-old").Return(nil)
	f.gateway.On("CreatePixPayment", mock.Anything, mock.Anything).
		Return(payment.PixPayment{TransactionID: "mp-new"}, nil)
	f.orders.On("SetTransactionID", mock.Anything, int64(100), "mp-new").Return(nil)

	out, err := f.uc.RequestPixPayment(context.Background(), 7, 100)

	assert.NoError(t, err)
	assert.Equal(t, "mp-new", out.TransactionID)
	f.gateway.AssertExpectations(t)
}

func TestRequestPixPayment_CancelFailureBlocksReissue(t *testing.T) {
	f := newCheckoutFixture(fixedNow)

	f.orders.On("FindByID", mock.Anything, int64(100)).Return(model.Order{
		ID: 100, UserID: 7, Status: model.OrderStatusPending,
		TransactionID: "mp-old",
		CreatedAt:     fixedNow.Add(-5 * time.Minute),
	}, nil)
	f.users.On("FindByID", mock.Anything, int64(7)).
		Return(&model.User{ID: 7, Email: "ana@example.com"}, nil)

	f.gateway.On("CancelPayment", mock.Anything, "mp-old").
		Return(&payment.GatewayError{StatusCode: 500, Message: "internal"})

	_, err := f.uc.RequestPixPayment(context.Background(), 7, 100)

	assertHTTPStatus(t, err, http.StatusBadGateway)
	// キャンセルできないうちは新しい決済を作らない（二重請求防止）
	f.gateway.AssertNotCalled(t, "CreatePixPayment", mock.Anything, mock.Anything)
}

func TestRequestPixPayment_GatewayFailureLeavesOrderRetryable(t *testing.T) {
	f := newCheckoutFixture(fixedNow)

	f.orders.On("FindByID", mock.Anything, int64(100)).Return(model.Order{
		ID: 100, UserID: 7, Status: model.OrderStatusPending,
		CreatedAt: fixedNow.Add(-5 * time.Minute),
	}, nil)
	f.users.On("FindByID", mock.Anything, int64(7)).
		Return(&model.User{ID: 7, Email: "ana@example.com"}, nil)

	f.gateway.On("CreatePixPayment", mock.Anything, mock.Anything).
		Return(payment.PixPayment{}, &payment.GatewayError{StatusCode: 503, Message: "unavailable"})

	_, err := f.uc.RequestPixPayment(context.Background(), 7, 100)

	assertHTTPStatus(t, err, http.StatusBadGateway)
	f.orders.AssertNotCalled(t, "SetTransactionID", mock.Anything, mock.Anything, mock.Anything)
}

func TestRequestPixPayment_ExpiredOrder(t *testing.T) {
	f := newCheckoutFixture(fixedNow)

	f.orders.On("FindByID", mock.Anything, int64(100)).Return(model.Order{
		ID: 100, UserID: 7, Status: model.OrderStatusPending,
		CreatedAt: fixedNow.Add(-2 * time.Hour),
	}, nil)
	f.orders.On("UpdateStatusFrom", mock.Anything, int64(100),
		model.OrderStatusPending, model.OrderStatusExpired).Return(true, nil)

	_, err := f.uc.RequestPixPayment(context.Background(), 7, 100)

	assertHTTPStatus(t, err, http.StatusConflict)
	f.gateway.AssertNotCalled(t, "CreatePixPayment", mock.Anything, mock.Anything)
}

func TestRequestPixPayment_PaidOrder(t *testing.T) {
	f := newCheckoutFixture(fixedNow)

	f.orders.On("FindByID", mock.Anything, int64(100)).Return(model.Order{
		ID: 100, UserID: 7, Status: model.OrderStatusPaid,
		CreatedAt: fixedNow.Add(-5 * time.Minute),
	}, nil)

	_, err := f.uc.RequestPixPayment(context.Background(), 7, 100)

	assertHTTPStatus(t, err, http.StatusConflict)
}

func TestRequestPixPayment_OtherUsersOrder(t *testing.T) {
	f := newCheckoutFixture(fixedNow)

	f.orders.On("FindByID", mock.Anything, int64(100)).Return(model.Order{
		ID: 100, UserID: 99, Status: model.OrderStatusPending,
	}, nil)

	// 他人の注文は存在しない扱い
	_, err := f.uc.RequestPixPayment(context.Background(), 7, 100)

	assertHTTPStatus(t, err, http.StatusNotFound)
}

func TestRequestPreference_CancelsPreviousFirst(t *testing.T) {
	f := newCheckoutFixture(fixedNow)

	// 先にPIX決済が発行済みの注文
	f.orders.On("FindByID", mock.Anything, int64(100)).Return(model.Order{
		ID: 100, UserID: 7, Status: model.OrderStatusPending,
		TotalCents: 4300, TransactionID: "mp-pix",
		CreatedAt: fixedNow.Add(-5 * time.Minute),
	}, nil)
	f.users.On("FindByID", mock.Anything, int64(7)).
		Return(&model.User{ID: 7, Email: "ana@example.com"}, nil)

	f.gateway.On("CancelPayment", mock.Anything, "mp-pix").Return(nil)
	f.orderItems.On("ListByOrderID", mock.Anything, int64(100)).Return([]model.OrderItem{
		{OrderID: 100, ProductID: 10, ProductNameSnapshot: "X-Burger", UnitPriceSnapshot: 1850, Quantity: 2},
	}, nil)
	f.gateway.On("CreatePreference", mock.Anything, mock.Anything).
		Return(payment.Preference{TransactionID: "pref-1", InitPointURL: "https://mp.test/init/1"}, nil)

	out, err := f.uc.RequestPreference(context.Background(), 7, 100, payment.BackURLs{})

	assert.NoError(t, err)
	assert.Equal(t, "https://mp.test/init/1", out.InitPointURL)
	// 生きている決済経路は常に1本
	f.gateway.AssertExpectations(t)
}

func TestRequestPreference_CancelFailureBlocksIssue(t *testing.T) {
	f := newCheckoutFixture(fixedNow)

	f.orders.On("FindByID", mock.Anything, int64(100)).Return(model.Order{
		ID: 100, UserID: 7, Status: model.OrderStatusPending,
		TransactionID: "mp-pix",
		CreatedAt:     fixedNow.Add(-5 * time.Minute),
	}, nil)
	f.users.On("FindByID", mock.Anything, int64(7)).
		Return(&model.User{ID: 7, Email: "ana@example.com"}, nil)

	f.gateway.On("CancelPayment", mock.Anything, "mp-pix").
		Return(&payment.GatewayError{StatusCode: 500, Message: "internal"})

	_, err := f.uc.RequestPreference(context.Background(), 7, 100, payment.BackURLs{})

	assertHTTPStatus(t, err, http.StatusBadGateway)
	f.gateway.AssertNotCalled(t, "CreatePreference", mock.Anything, mock.Anything)
}

func TestGetOrderStatus_TerminalIsCached(t *testing.T) {
	f := newCheckoutFixture(fixedNow)

	f.orders.On("FindByID", mock.Anything, int64(100)).Return(model.Order{
		ID: 100, UserID: 7, Status: model.OrderStatusPaid, TotalCents: 4300,
		TransactionID: "mp-555",
	}, nil)

	out, err := f.uc.GetOrderStatus(context.Background(), 7, 100)

	assert.NoError(t, err)
	assert.Equal(t, "PAID", out.Status)
	// 確定済みはゲートウェイに聞かない
	f.gateway.AssertNotCalled(t, "GetPayment", mock.Anything, mock.Anything)
}

func TestGetOrderStatus_LazyExpiry(t *testing.T) {
	f := newCheckoutFixture(fixedNow)

	f.orders.On("FindByID", mock.Anything, int64(100)).Return(model.Order{
		ID: 100, UserID: 7, Status: model.OrderStatusPending,
		CreatedAt: fixedNow.Add(-31 * time.Minute),
	}, nil)
	f.orders.On("UpdateStatusFrom", mock.Anything, int64(100),
		model.OrderStatusPending, model.OrderStatusExpired).Return(true, nil)

	out, err := f.uc.GetOrderStatus(context.Background(), 7, 100)

	assert.NoError(t, err)
	assert.Equal(t, "EXPIRED", out.Status)
	f.gateway.AssertNotCalled(t, "GetPayment", mock.Anything, mock.Anything)
}

func TestGetOrderStatus_PollTransitionsToPaid(t *testing.T) {
	f := newCheckoutFixture(fixedNow)

	f.orders.On("FindByID", mock.Anything, int64(100)).Return(model.Order{
		ID: 100, UserID: 7, Status: model.OrderStatusPending,
		TransactionID: "mp-555",
		CreatedAt:     fixedNow.Add(-5 * time.Minute),
	}, nil)
	f.gateway.On("GetPayment", mock.Anything, "mp-555").Return(payment.PaymentInfo{
		TransactionID: "mp-555",
		Status:        model.PaymentStatusApproved,
		ExternalRef:   "100",
	}, nil)
	f.orders.On("UpdateStatusFrom", mock.Anything, int64(100),
		model.OrderStatusPending, model.OrderStatusPaid).Return(true, nil)

	out, err := f.uc.GetOrderStatus(context.Background(), 7, 100)

	assert.NoError(t, err)
	assert.Equal(t, "PAID", out.Status)
}

func TestGetOrderStatus_NoPaymentIssuedYet(t *testing.T) {
	f := newCheckoutFixture(fixedNow)

	f.orders.On("FindByID", mock.Anything, int64(100)).Return(model.Order{
		ID: 100, UserID: 7, Status: model.OrderStatusPending,
		CreatedAt: fixedNow.Add(-5 * time.Minute),
	}, nil)

	out, err := f.uc.GetOrderStatus(context.Background(), 7, 100)

	assert.NoError(t, err)
	assert.Equal(t, "PENDING", out.Status)
	f.gateway.AssertNotCalled(t, "GetPayment", mock.Anything, mock.Anything)
}

func TestGetOrderStatus_GatewayFailureReturnsCurrent(t *testing.T) {
	f := newCheckoutFixture(fixedNow)

	f.orders.On("FindByID", mock.Anything, int64(100)).Return(model.Order{
		ID: 100, UserID: 7, Status: model.OrderStatusPending,
		TransactionID: "mp-555",
		CreatedAt:     fixedNow.Add(-5 * time.Minute),
	}, nil)
	f.gateway.On("GetPayment", mock.Anything, "mp-555").
		Return(payment.PaymentInfo{}, &payment.GatewayError{StatusCode: 502})

	out, err := f.uc.GetOrderStatus(context.Background(), 7, 100)

	// ポーリングは落とさない
	assert.NoError(t, err)
	assert.Equal(t, "PENDING", out.Status)
}

func TestListMyOrders(t *testing.T) {
	f := newCheckoutFixture(fixedNow)

	f.orders.On("ListByUserID", mock.Anything, int64(7)).Return([]model.Order{
		{ID: 100, UserID: 7, Status: model.OrderStatusPaid, TotalCents: 4300},
	}, nil)
	f.orderItems.On("ListByOrderID", mock.Anything, int64(100)).Return([]model.OrderItem{
		{OrderID: 100, ProductID: 10, ProductNameSnapshot: "X-Burger", UnitPriceSnapshot: 1850, Quantity: 2},
	}, nil)

	outs, err := f.uc.ListMyOrders(context.Background(), 7)

	assert.NoError(t, err)
	if assert.Len(t, outs, 1) {
		assert.Equal(t, int64(100), outs[0].ID)
		assert.Len(t, outs[0].Items, 1)
		assert.Equal(t, int64(1850), outs[0].Items[0].PriceCents)
	}
}

func TestGetMyOrderDetail_NotFound(t *testing.T) {
	f := newCheckoutFixture(fixedNow)

	f.orders.On("FindByID", mock.Anything, int64(404)).Return(model.Order{}, repo.ErrNotFound)

	_, err := f.uc.GetMyOrderDetail(context.Background(), 7, 404)

	assertHTTPStatus(t, err, http.StatusNotFound)
}
