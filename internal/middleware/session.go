package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	SessionCookieName = "cart_session"
	CtxSessionKey     = "session_key" // string
)

// 匿名カート用のセッションキーを配る。
// cookieが無ければuuidを発行してセットし、contextに入れる。
func CartSession() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var key string

			if cookie, err := c.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
				key = cookie.Value
			} else {
				key = uuid.NewString()
				c.SetCookie(&http.Cookie{
					Name:     SessionCookieName,
					Value:    key,
					Path:     "/",
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
					Expires:  time.Now().Add(30 * 24 * time.Hour),
				})
			}

			c.Set(CtxSessionKey, key)
			return next(c)
		}
	}
}
