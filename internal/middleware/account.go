package middleware

import (
    "context"
    "errors"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/munon-registry/internal/model"
    "github.com/iliyamo/munon-registry/internal/repository"
)

// AccountLookup is the part of repository.AccountStore this middleware needs.
type AccountLookup interface {
    GetByAddress(ctx context.Context, address string) (model.Account, error)
}

// RequireAccount rejects tokens whose subject is no longer a registered
// account.  It must run after JWTAuth.
func RequireAccount(accounts AccountLookup) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            address := CallerAddress(c)
            if address == "" {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
            }
            ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
            defer cancel()
            if _, err := accounts.GetByAddress(ctx, address); err != nil {
                if errors.Is(err, repository.ErrAccountNotFound) {
                    return c.JSON(http.StatusForbidden, echo.Map{"error": "unknown account"})
                }
                return c.JSON(http.StatusInternalServerError, echo.Map{"error": "account lookup failed"})
            }
            return next(c)
        }
    }
}
