// Package httperr maps application errors onto the HTTP error taxonomy and
// provides the terminal error handler for unclassified failures.
package httperr

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// Error is a classified application error carrying the status code and the
// client-facing message.  Handlers return or build these at the boundary;
// anything else reaching the error handler is treated as an internal 500.
type Error struct {
	Status  int               `json:"-"`
	Message string            `json:"error"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func (e *Error) Error() string { return e.Message }

func Validation(fields map[string]string) *Error {
	return &Error{Status: http.StatusBadRequest, Message: "validation failed", Fields: fields}
}

// NewHandler returns an echo HTTPErrorHandler.  Classified errors pass
// through with their status and message.  Unclassified errors are logged
// with the request id and emitted as a uniform 500; in dev the underlying
// message is included to ease debugging, in prod it is suppressed.
func NewHandler(logger *zap.Logger, dev bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		if he, ok := err.(*Error); ok {
			_ = c.JSON(he.Status, he)
			return
		}
		if he, ok := err.(*echo.HTTPError); ok {
			msg := http.StatusText(he.Code)
			if s, ok := he.Message.(string); ok {
				msg = s
			}
			_ = c.JSON(he.Code, echo.Map{"error": msg})
			return
		}

		reqID := c.Response().Header().Get(echo.HeaderXRequestID)
		if reqID == "" {
			reqID = c.Request().Header.Get(echo.HeaderXRequestID)
		}
		logger.Error("unhandled error",
			zap.String("request_id", reqID),
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			zap.Error(err),
			zap.Stack("stack"),
		)
		body := echo.Map{"error": "internal server error", "request_id": reqID}
		if dev {
			body["detail"] = err.Error()
		}
		_ = c.JSON(http.StatusInternalServerError, body)
	}
}

// RequestID returns the request-id middleware used so log lines and 500
// bodies can be correlated.
func RequestID() echo.MiddlewareFunc {
	return echomw.RequestID()
}
