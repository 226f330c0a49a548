package response

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/huddle-backend/internal/platform/apierr"
)

type APIError struct {
	Message string         `json:"message"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondAPIError writes err using its status, code and details. Server-side
// failures get a generic message; the cause stays in the logs.
func RespondAPIError(c *gin.Context, err error) {
	ae := apierr.As(err)
	if ae == nil {
		ae = apierr.Internal("internal_error", errors.New("unknown error"))
	}
	status := ae.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	msg := ae.Error()
	if status >= 500 {
		msg = http.StatusText(status)
	}
	if v, ok := ae.Details["retry_after_seconds"].(int64); ok && v > 0 {
		c.Header("Retry-After", strconv.FormatInt(v, 10))
	}
	if status >= 500 {
		_ = c.Error(ae)
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    ae.Code,
			Details: ae.Details,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
