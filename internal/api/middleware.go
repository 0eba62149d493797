package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/victornm/examiner/internal/domain"
	"github.com/victornm/examiner/internal/errors"
)

const userKey = "examiner.user"

func (a *API) authenticate(c *gin.Context) {
	u, err := a.accounts.Current(c.Request.Context())
	if err != nil {
		renderError(c, err)
		return
	}

	c.Set(userKey, u)
	c.Next()
}

func requireAdmin(c *gin.Context) {
	if !currentUser(c).IsAdmin() {
		renderError(c, errors.New(errors.CodePermissionDenied, errors.WithMessagef("admin role required")))
		return
	}

	c.Next()
}

func currentUser(c *gin.Context) *domain.User {
	return c.MustGet(userKey).(*domain.User)
}

// renderError writes err as {"code","message"} and aborts the chain.
func renderError(c *gin.Context, err error) {
	e := errors.Convert(err)
	status := e.HTTPStatusCode()

	if status >= http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "api: request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		Code:    int(e.Code),
		Message: e.Message,
	})
}

func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		renderError(c, errors.New(errors.CodeInvalidArgument,
			errors.WithCause(err),
			errors.WithMessagef("invalid request body: %v", err)))
		return false
	}

	return true
}
