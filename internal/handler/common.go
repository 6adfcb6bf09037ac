package handler // handler defines http handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/munon-registry/internal/registry"
)

// parseID reads the :id path parameter.  Zero is accepted here; the
// registry itself decides that id 0 was never assigned.
func parseID(c echo.Context) (uint64, error) {
	return strconv.ParseUint(c.Param("id"), 10, 64)
}

// paymentReq is the body of join and sponsor: the value attached to the call.
type paymentReq struct {
	Payment *uint64 `json:"payment"`
}

// statusFor maps registry error kinds to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, registry.ErrInvalidInput), errors.Is(err, registry.ErrPaymentMismatch):
		return http.StatusBadRequest
	case errors.Is(err, registry.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, registry.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, registry.ErrInvalidState):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// registryError writes err as JSON.  Precondition failures carry their
// message verbatim; anything else is reported generically.
func registryError(c echo.Context, err error) error {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		c.Logger().Errorf("registry operation failed: %v", err)
		return c.JSON(status, echo.Map{"error": "registry operation failed"})
	}
	return c.JSON(status, echo.Map{"error": err.Error()})
}
