package handler

import (
	"app/internal/domain/model"
	"app/internal/middleware"

	"github.com/labstack/echo/v4"
)

// AuthJWTが入れたuser_idを取り出す
func getUserIDFromContext(c echo.Context) (int64, bool) {
	raw := c.Get(middleware.CtxUserIDKey)
	userID, ok := raw.(int64)
	if !ok || userID <= 0 {
		return 0, false
	}
	return userID, true
}

// CartSessionが入れたセッションキーを取り出す
func getSessionKeyFromContext(c echo.Context) string {
	raw := c.Get(middleware.CtxSessionKey)
	key, _ := raw.(string)
	return key
}

// ログイン済みなら会員owner、そうでなければ匿名セッションowner
func getCartOwner(c echo.Context) (model.CartOwner, bool) {
	if userID, ok := getUserIDFromContext(c); ok {
		return model.OwnerUser(userID), true
	}
	if key := getSessionKeyFromContext(c); key != "" {
		return model.OwnerSession(key), true
	}
	return model.CartOwner{}, false
}
