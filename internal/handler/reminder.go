package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/coach-scheduling/internal/config"
	"github.com/iliyamo/coach-scheduling/internal/model"
	"github.com/iliyamo/coach-scheduling/internal/service"
)

// ReminderHandler exposes the cron entry point for the reminder
// dispatcher.  The route lives outside the JWT group so a plain cron job
// can call it with the shared secret; an ADMIN bearer token is accepted
// as the manual fallback and is validated here.
type ReminderHandler struct {
	Cfg        config.Config
	Dispatcher *service.ReminderDispatcher
}

func NewReminderHandler(cfg config.Config, d *service.ReminderDispatcher) *ReminderHandler {
	return &ReminderHandler{Cfg: cfg, Dispatcher: d}
}

// Dispatch handles POST /v1/bookings/reminders.  Authentication is the
// X-Cron-Secret header or an ADMIN bearer token; both absent or wrong
// yields 401.  Overlapping invocations are safe: the claim protocol in
// the dispatcher guarantees at most one send per booking regardless of
// how many callers race.
func (h *ReminderHandler) Dispatch(c echo.Context) error {
	if !h.authorized(c) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid cron credential"})
	}

	res, err := h.Dispatcher.DispatchDueReminders(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reminder scan failed"})
	}
	return c.JSON(http.StatusOK, res)
}

func (h *ReminderHandler) authorized(c echo.Context) bool {
	if secret := c.Request().Header.Get("X-Cron-Secret"); secret != "" && h.Cfg.CronSecret != "" {
		if subtle.ConstantTimeCompare([]byte(secret), []byte(h.Cfg.CronSecret)) == 1 {
			return true
		}
	}
	return h.adminBearer(c)
}

// adminBearer reports whether the request carries a valid access token
// with the ADMIN role.
func (h *ReminderHandler) adminBearer(c echo.Context) bool {
	auth := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return false
	}
	raw := strings.TrimPrefix(auth, "Bearer ")
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, echo.ErrUnauthorized
		}
		return []byte(h.Cfg.JWTSecret), nil
	})
	if err != nil || !tok.Valid {
		return false
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return false
	}
	role, _ := claims["role"].(string)
	return role == model.RoleAdmin
}
