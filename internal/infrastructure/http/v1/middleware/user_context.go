package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"foodcoop/internal/core/apperror"
	appctx "foodcoop/internal/core/context"
)

// HeaderUserID carries the acting user. Authentication happens upstream.
const HeaderUserID = "X-User-ID"

// UserContext reads the acting user from HeaderUserID into the request context.
// Mutating requests without a user are rejected with 401.
func UserContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if userID != "" {
			ctx := appctx.WithUser(c.Request.Context(), &appctx.UserContext{UserID: userID})
			c.Request = c.Request.WithContext(ctx)
			c.Set("user_id", userID)
			c.Next()
			return
		}

		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
		default:
			_ = c.Error(apperror.NewUnauthorized(HeaderUserID + " header is required"))
			c.Abort()
		}
	}
}
