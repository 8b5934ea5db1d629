package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/tryout-backend/internal/apperror"
)

// StatusOf maps an error's kind to an HTTP status.
func StatusOf(err error) int {
	switch apperror.KindOf(err) {
	case apperror.KindGuardViolation:
		return http.StatusConflict
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindUnavailable:
		return http.StatusServiceUnavailable
	case apperror.KindInvalid:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf maps an error to the API error code. Domain errors carry their own code.
func CodeOf(err error) ErrCode {
	if code := apperror.CodeOf(err); code != "" {
		return ErrCode(code)
	}
	return ErrInternal
}

// FailError sends an error response derived from a domain error.
func FailError(c *gin.Context, err error) {
	Fail(c, StatusOf(err), CodeOf(err))
}
