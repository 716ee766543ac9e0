package handler

import (
	"io"
	"net/http"

	"app/internal/usecase"

	"github.com/labstack/echo/v4"
)

// ゲートウェイからの通知受け口。POSTのみ（他メソッドはechoが405を返す）。
type WebhookHandler struct {
	uc *usecase.WebhookUsecase
}

// DI
func NewWebhookHandler(uc *usecase.WebhookUsecase) *WebhookHandler {
	return &WebhookHandler{uc: uc}
}

func (h *WebhookHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/webhooks/mercadopago", h.receive)
}

func (h *WebhookHandler) receive(c echo.Context) error {
	// 署名はbodyそのものに対して計算されるので、生のまま読む
	rawBody, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "cannot read body"})
	}

	signature := c.Request().Header.Get("X-Signature")

	if err := h.uc.HandleNotification(c.Request().Context(), rawBody, signature); err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
