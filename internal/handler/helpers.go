package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/dharmasatrya/fareaggregator/internal/metrics"
	"github.com/dharmasatrya/fareaggregator/internal/models"
)

func notFound(c echo.Context, message string) error {
	return c.JSON(http.StatusNotFound, models.ErrorResponse{
		Error:   "not_found",
		Message: message,
		Code:    http.StatusNotFound,
	})
}

func internalError(c echo.Context) error {
	return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Error:   "internal_error",
		Message: "Something went wrong, please retry",
		Code:    http.StatusInternalServerError,
	})
}

func floatPtr(d decimal.Decimal, valid bool) *float64 {
	if !valid {
		return nil
	}
	f := d.InexactFloat64()
	return &f
}

func HealthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Metrics counts handled requests by route pattern and status code.
func Metrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			code := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				code = he.Code
			}
			metrics.HTTPRequests.WithLabelValues(c.Path(), strconv.Itoa(code)).Inc()
			return err
		}
	}
}
