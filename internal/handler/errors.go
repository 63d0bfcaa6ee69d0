// Package handler contains the echo HTTP handlers.  Handlers bind and
// validate request bodies, call into the service layer with the
// caller's identity and translate service errors into status codes.
package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/dance-booking/internal/middleware"
	"github.com/iliyamo/dance-booking/internal/model"
	"github.com/iliyamo/dance-booking/internal/repository"
	"github.com/iliyamo/dance-booking/internal/service"
)

// statusOf maps a service or repository error onto an HTTP status.
// Unknown errors are system faults.
func statusOf(err error) int {
	switch {
	case errors.Is(err, service.ErrClassNotFound),
		errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrReservationNotFound),
		errors.Is(err, service.ErrNotFound),
		errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrClassInactive),
		errors.Is(err, service.ErrClassFull),
		errors.Is(err, service.ErrInsufficientCredits),
		errors.Is(err, service.ErrDuplicateBooking),
		errors.Is(err, service.ErrUserInactive),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrAlreadyCancelled),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, repository.ErrEmailExists):
		return http.StatusConflict
	case errors.Is(err, repository.ErrTxConflict):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes {"error": ...}.  Client errors carry the error
// text; system faults are logged and answered with a generic message.
func writeError(c echo.Context, log *slog.Logger, err error) error {
	if log == nil {
		log = slog.Default()
	}
	status := statusOf(err)
	switch status {
	case http.StatusInternalServerError:
		log.Error("request failed", "method", c.Request().Method, "path", c.Path(), "err", err)
		return c.JSON(status, echo.Map{"error": "internal server error"})
	case http.StatusServiceUnavailable:
		log.Warn("transaction conflict", "path", c.Path(), "err", err)
		c.Response().Header().Set("Retry-After", "1")
		return c.JSON(status, echo.Map{"error": "please retry"})
	}
	return c.JSON(status, echo.Map{"error": err.Error()})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}

// caller returns the identity set by JWTAuth.  ok is false only on a
// route that was mounted outside the authenticated group.
func caller(c echo.Context) (model.Identity, bool) {
	return middleware.IdentityFrom(c)
}
