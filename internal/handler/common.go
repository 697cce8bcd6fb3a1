package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/coach-scheduling/internal/middleware"
	"github.com/iliyamo/coach-scheduling/internal/schedule"
)

// getActor extracts the authenticated caller from the Echo context.  The
// JWT middleware placed the claims there; a missing actor means the
// route was registered without the middleware or the token carried no
// tenant, both of which surface as 401.
func getActor(c echo.Context) (schedule.Actor, error) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		return schedule.Actor{}, echo.ErrUnauthorized
	}
	return actor, nil
}

// kindStatus maps scheduling error kinds onto HTTP statuses.  The
// mapping is part of the API contract: validation 400, authorization
// 403, not-found 404, conflict 409, everything else 500.
func kindStatus(k schedule.Kind) int {
	switch k {
	case schedule.KindValidation:
		return http.StatusBadRequest
	case schedule.KindAuthorization:
		return http.StatusForbidden
	case schedule.KindNotFound:
		return http.StatusNotFound
	case schedule.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// scheduleError renders a scheduling error as a JSON response using the
// kind-to-status contract above.  Upstream errors keep their detail out
// of the response body.
func scheduleError(c echo.Context, err error) error {
	kind := schedule.KindOf(err)
	msg := err.Error()
	if kind == schedule.KindUpstream {
		msg = "internal error"
	}
	return c.JSON(kindStatus(kind), echo.Map{"error": msg})
}
