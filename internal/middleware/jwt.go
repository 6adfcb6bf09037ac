package middleware // middleware provides shared request processing for handlers

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/munon-registry/internal/utils"
)

// AddressKey is the echo context key holding the authenticated caller
// address.  Registry handlers use it as the host, participant or sponsor
// identity.
const AddressKey = "address"

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// stores the token subject (the account address) under AddressKey.
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }
            address, err := utils.ParseAccessToken(secret, strings.TrimPrefix(auth, "Bearer "))
            if err != nil {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }
            c.Set(AddressKey, address)
            return next(c)
        }
    }
}

// CallerAddress returns the address stored by JWTAuth, or "" when the
// request is unauthenticated.
func CallerAddress(c echo.Context) string {
    if v, ok := c.Get(AddressKey).(string); ok {
        return v
    }
    return ""
}
