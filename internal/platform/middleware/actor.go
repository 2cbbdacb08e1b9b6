package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// ActorHeader carries the id of the user performing the request. It is set
// by the front-end after authentication, which happens outside this service.
const ActorHeader = "X-User-ID"

// Actor returns middleware that extracts the acting user's id from the
// request headers and stores it in the echo context under "actor_id".
// Requests without a valid actor id are still served; writes that need an
// actor simply record none.
func Actor() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := c.Request().Header.Get(ActorHeader)
			if raw != "" {
				if id, err := uuid.Parse(raw); err == nil {
					c.Set("actor_id", id.String())
				}
			}
			return next(c)
		}
	}
}

// ActorID returns the acting user's id from the context, if one was set.
func ActorID(c echo.Context) (uuid.UUID, bool) {
	raw, _ := c.Get("actor_id").(string)
	if raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
