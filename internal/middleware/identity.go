package middleware

// identity.go turns the claims stored by JWTAuth into the Actor value the
// scheduling core works with, plus the small helper the rate limiter uses
// to key buckets per user.

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/coach-scheduling/internal/model"
	"github.com/iliyamo/coach-scheduling/internal/schedule"
)

// CurrentActor builds the caller identity from the context values set by
// JWTAuth.  Instructors manage themselves; admins manage every instructor
// in their brand.  The second return is false when the request carries no
// authenticated user.
func CurrentActor(c echo.Context) (schedule.Actor, bool) {
	userID, ok := c.Get("user_id").(uint64)
	if !ok || userID == 0 {
		return schedule.Actor{}, false
	}
	brandID, ok := c.Get("brand_id").(uint64)
	if !ok || brandID == 0 {
		return schedule.Actor{}, false
	}
	role, _ := c.Get("role").(string)

	actor := schedule.Actor{UserID: userID, BrandID: brandID}
	switch role {
	case model.RoleAdmin:
		actor.Admin = true
	case model.RoleInstructor:
		actor.InstructorIDs = []uint64{userID}
	}
	return actor, true
}

// currentUserID stringifies the authenticated user for cache and rate-limit
// keys.  It returns "anon" when no user is authenticated.
func currentUserID(c echo.Context) string {
	if v, ok := c.Get("user_id").(uint64); ok && v != 0 {
		return strconv.FormatUint(v, 10)
	}
	return "anon"
}
