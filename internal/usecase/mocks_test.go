package usecase_test

import (
	"context"

	"app/internal/domain/model"
	"app/internal/infra/payment"
	repo "app/internal/repository"

	"github.com/stretchr/testify/mock"
)

// =====================
// Mocks
// =====================

type CartItemRepoMock struct{ mock.Mock }

func (m *CartItemRepoMock) ListByOwner(ctx context.Context, owner model.CartOwner) ([]model.CartItem, error) {
	args := m.Called(ctx, owner)
	items, _ := args.Get(0).([]model.CartItem)
	return items, args.Error(1)
}

func (m *CartItemRepoMock) UpsertByOwnerAndProduct(ctx context.Context, owner model.CartOwner, productID int64, addQty int64) (model.CartItem, error) {
	args := m.Called(ctx, owner, productID, addQty)
	item, _ := args.Get(0).(model.CartItem)
	return item, args.Error(1)
}

func (m *CartItemRepoMock) UpdateQuantity(ctx context.Context, owner model.CartOwner, cartItemID int64, qty int64) error {
	args := m.Called(ctx, owner, cartItemID, qty)
	return args.Error(0)
}

func (m *CartItemRepoMock) DeleteByID(ctx context.Context, owner model.CartOwner, cartItemID int64) error {
	args := m.Called(ctx, owner, cartItemID)
	return args.Error(0)
}

func (m *CartItemRepoMock) DeleteByIDs(ctx context.Context, owner model.CartOwner, cartItemIDs []int64) error {
	args := m.Called(ctx, owner, cartItemIDs)
	return args.Error(0)
}

func (m *CartItemRepoMock) MergeSessionIntoUser(ctx context.Context, sessionKey string, userID int64) error {
	args := m.Called(ctx, sessionKey, userID)
	return args.Error(0)
}

type ProductRepoMock struct{ mock.Mock }

func (m *ProductRepoMock) ListAvailable(ctx context.Context, categoryID *int64) ([]model.Product, error) {
	args := m.Called(ctx, categoryID)
	items, _ := args.Get(0).([]model.Product)
	return items, args.Error(1)
}

func (m *ProductRepoMock) FindByID(ctx context.Context, id int64) (model.Product, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(model.Product)
	return p, args.Error(1)
}

type CategoryRepoMock struct{ mock.Mock }

func (m *CategoryRepoMock) ListAll(ctx context.Context) ([]model.Category, error) {
	args := m.Called(ctx)
	items, _ := args.Get(0).([]model.Category)
	return items, args.Error(1)
}

type OrderRepoMock struct{ mock.Mock }

func (m *OrderRepoMock) Create(ctx context.Context, order model.Order) (int64, error) {
	args := m.Called(ctx, order)
	return args.Get(0).(int64), args.Error(1)
}

func (m *OrderRepoMock) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	args := m.Called(ctx, orderID)
	o, _ := args.Get(0).(model.Order)
	return o, args.Error(1)
}

func (m *OrderRepoMock) ListByUserID(ctx context.Context, userID int64) ([]model.Order, error) {
	args := m.Called(ctx, userID)
	items, _ := args.Get(0).([]model.Order)
	return items, args.Error(1)
}

func (m *OrderRepoMock) UpdateStatusFrom(ctx context.Context, orderID int64, from model.OrderStatus, to model.OrderStatus) (bool, error) {
	args := m.Called(ctx, orderID, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *OrderRepoMock) SetTransactionID(ctx context.Context, orderID int64, transactionID string) error {
	args := m.Called(ctx, orderID, transactionID)
	return args.Error(0)
}

type OrderItemRepoMock struct{ mock.Mock }

func (m *OrderItemRepoMock) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	args := m.Called(ctx, orderID, items)
	return args.Error(0)
}

func (m *OrderItemRepoMock) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	args := m.Called(ctx, orderID)
	items, _ := args.Get(0).([]model.OrderItem)
	return items, args.Error(1)
}

type PaymentLogRepoMock struct{ mock.Mock }

func (m *PaymentLogRepoMock) Insert(ctx context.Context, log model.PaymentLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

type UserRepoMock struct{ mock.Mock }

func (m *UserRepoMock) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *UserRepoMock) FindByID(ctx context.Context, userID int64) (*model.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *UserRepoMock) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

type GatewayMock struct{ mock.Mock }

func (m *GatewayMock) CreatePixPayment(ctx context.Context, in payment.CreatePixInput) (payment.PixPayment, error) {
	args := m.Called(ctx, in)
	p, _ := args.Get(0).(payment.PixPayment)
	return p, args.Error(1)
}

func (m *GatewayMock) CreatePreference(ctx context.Context, in payment.CreatePreferenceInput) (payment.Preference, error) {
	args := m.Called(ctx, in)
	p, _ := args.Get(0).(payment.Preference)
	return p, args.Error(1)
}

func (m *GatewayMock) GetPayment(ctx context.Context, transactionID string) (payment.PaymentInfo, error) {
	args := m.Called(ctx, transactionID)
	p, _ := args.Get(0).(payment.PaymentInfo)
	return p, args.Error(1)
}

func (m *GatewayMock) CancelPayment(ctx context.Context, transactionID string) error {
	args := m.Called(ctx, transactionID)
	return args.Error(0)
}

// =====================
// TxManagerのstub（txなしでそのままfnを呼ぶ）
// =====================

type txReposStub struct {
	orders      repo.OrderRepository
	orderItems  repo.OrderItemRepository
	cartItems   repo.CartItemRepository
	products    repo.ProductRepository
	paymentLogs repo.PaymentLogRepository
}

func (s *txReposStub) Orders() repo.OrderRepository           { return s.orders }
func (s *txReposStub) OrderItems() repo.OrderItemRepository   { return s.orderItems }
func (s *txReposStub) CartItems() repo.CartItemRepository     { return s.cartItems }
func (s *txReposStub) Products() repo.ProductRepository       { return s.products }
func (s *txReposStub) PaymentLogs() repo.PaymentLogRepository { return s.paymentLogs }

type txManagerStub struct {
	repos *txReposStub
}

func (m *txManagerStub) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return fn(m.repos)
}
