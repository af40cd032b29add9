package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type errorBody struct {
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func success(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, map[string]any{
		"ok":   true,
		"data": data,
	})
}

func fail(c echo.Context, status int, message string, details any) error {
	return c.JSON(status, map[string]any{
		"ok":    false,
		"error": errorBody{Message: message, Details: details},
	})
}

func badRequest(c echo.Context, message string) error {
	return fail(c, http.StatusBadRequest, message, nil)
}

func notFound(c echo.Context, message string) error {
	return fail(c, http.StatusNotFound, message, nil)
}

func internalError(c echo.Context, message string) error {
	return fail(c, http.StatusInternalServerError, message, nil)
}
