package usecase_test

import (
	"context"
	"net/http"
	"testing"

	"app/internal/domain/model"
	repo "app/internal/repository"
	"app/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestListMenu(t *testing.T) {
	prodRepo := new(ProductRepoMock)
	catRepo := new(CategoryRepoMock)
	uc := usecase.NewProductUsecase(prodRepo, catRepo)

	prodRepo.On("ListAvailable", mock.Anything, (*int64)(nil)).Return([]model.Product{
		{ID: 10, Name: "X-Burger", PriceCents: 1850, IsAvailable: true},
	}, nil)
	catRepo.On("ListAll", mock.Anything).Return([]model.Category{
		{ID: 1, Name: "Lanches"},
	}, nil)

	out, err := uc.ListMenu(context.Background(), nil)

	assert.NoError(t, err)
	assert.Len(t, out.Items, 1)
	assert.Len(t, out.Categories, 1)
}

func TestListMenu_FilterByCategory(t *testing.T) {
	prodRepo := new(ProductRepoMock)
	catRepo := new(CategoryRepoMock)
	uc := usecase.NewProductUsecase(prodRepo, catRepo)

	catID := int64(1)
	prodRepo.On("ListAvailable", mock.Anything, &catID).Return([]model.Product{}, nil)
	catRepo.On("ListAll", mock.Anything).Return([]model.Category{}, nil)

	out, err := uc.ListMenu(context.Background(), &catID)

	assert.NoError(t, err)
	assert.Empty(t, out.Items)
	prodRepo.AssertExpectations(t)
}

func TestListMenu_InvalidCategory(t *testing.T) {
	uc := usecase.NewProductUsecase(new(ProductRepoMock), new(CategoryRepoMock))

	bad := int64(-1)
	_, err := uc.ListMenu(context.Background(), &bad)

	assertHTTPStatus(t, err, http.StatusBadRequest)
}

func TestGetProductDetail(t *testing.T) {
	prodRepo := new(ProductRepoMock)
	uc := usecase.NewProductUsecase(prodRepo, new(CategoryRepoMock))

	prodRepo.On("FindByID", mock.Anything, int64(10)).
		Return(model.Product{ID: 10, Name: "X-Burger", IsAvailable: true}, nil)

	p, err := uc.GetProductDetail(context.Background(), 10)

	assert.NoError(t, err)
	assert.Equal(t, "X-Burger", p.Name)
}

func TestGetProductDetail_HiddenWhenUnavailable(t *testing.T) {
	prodRepo := new(ProductRepoMock)
	uc := usecase.NewProductUsecase(prodRepo, new(CategoryRepoMock))

	prodRepo.On("FindByID", mock.Anything, int64(10)).
		Return(model.Product{ID: 10, IsAvailable: false}, nil)

	// 販売停止中は未公開扱い
	_, err := uc.GetProductDetail(context.Background(), 10)

	assertHTTPStatus(t, err, http.StatusNotFound)
}

func TestGetProductDetail_NotFound(t *testing.T) {
	prodRepo := new(ProductRepoMock)
	uc := usecase.NewProductUsecase(prodRepo, new(CategoryRepoMock))

	prodRepo.On("FindByID", mock.Anything, int64(404)).Return(model.Product{}, repo.ErrNotFound)

	_, err := uc.GetProductDetail(context.Background(), 404)

	assertHTTPStatus(t, err, http.StatusNotFound)
}
