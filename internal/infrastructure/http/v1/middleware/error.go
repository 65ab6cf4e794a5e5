package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"foodcoop/internal/core/apperror"
	"foodcoop/pkg/logger"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error ErrorPayload `json:"error"`
}

// ErrorPayload carries the AppError fields exposed to clients.
type ErrorPayload struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorHandler middleware transforms errors into consistent JSON responses.
// Hides internal errors from clients while logging full details.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		// If response already written by handler, do not override it.
		if c.Writer.Written() {
			return
		}

		if appErr, ok := apperror.AsAppError(err); ok && appErr.Code != apperror.CodeInternal {
			if appErr.Err != nil {
				logger.Warn(c.Request.Context(), "request error",
					"code", appErr.Code,
					"cause", appErr.Err,
				)
			}
			status := appErr.HTTPStatus
			if status == 0 {
				status = http.StatusInternalServerError
			}
			c.JSON(status, ErrorBody{Error: ErrorPayload{
				Code:    appErr.Code,
				Message: appErr.Message,
				Details: appErr.Details,
			}})
			return
		}

		// Unknown or internal error: log the cause, return a generic message.
		logger.Error(c.Request.Context(), "unhandled error", "error", err)

		c.JSON(http.StatusInternalServerError, ErrorBody{Error: ErrorPayload{
			Code:    apperror.CodeInternal,
			Message: "Internal server error",
			Details: map[string]any{"request_id": c.GetString("request_id")},
		}})
	}
}
