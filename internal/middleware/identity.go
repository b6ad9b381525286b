package middleware

// identity.go holds the helper shared by the rate limiter and the
// response cache for deriving a stable per-user key from the request
// context.  JWTAuth stores the raw "sub" claim, whose concrete type
// depends on how the auth service encoded it.

import (
    "strconv"

    "github.com/labstack/echo/v4"
)

// contextUserKey returns a string form of the authenticated user ID, or
// "anon" when the request carries no identity.
func contextUserKey(c echo.Context) string {
    switch v := c.Get("user_id").(type) {
    case string:
        if v != "" {
            return v
        }
    case float64:
        return strconv.FormatFloat(v, 'f', -1, 64)
    case uint64:
        return strconv.FormatUint(v, 10)
    case int64:
        return strconv.FormatInt(v, 10)
    }
    return "anon"
}
