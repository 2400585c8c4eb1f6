package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	apperrors "github.com/inboxd/inboxd/internal/errors"
)

// respondError maps domain errors onto HTTP status codes. Rate limited
// responses carry the Retry-After hint when the backend supplied one.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrAccountNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	case errors.Is(err, apperrors.ErrSyncAlreadyRunning),
		errors.Is(err, apperrors.ErrAlreadyConnecting),
		errors.Is(err, apperrors.ErrAlreadyConnected):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case errors.Is(err, apperrors.ErrSyncDeferred):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
		return
	case errors.Is(err, apperrors.ErrLabelCycle):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var me *apperrors.MailError
	if errors.As(err, &me) {
		switch me.Kind {
		case apperrors.KindAuthentication, apperrors.KindTokenExpired:
			c.JSON(http.StatusUnauthorized, gin.H{"error": me.Error()})
		case apperrors.KindPermissionDenied:
			c.JSON(http.StatusForbidden, gin.H{"error": me.Error()})
		case apperrors.KindRateLimitExceeded:
			if me.RetryAfter > 0 {
				c.Header("Retry-After", strconv.Itoa(int(me.RetryAfter.Seconds())))
			}
			c.JSON(http.StatusTooManyRequests, gin.H{"error": me.Error()})
		case apperrors.KindInvalidRequest:
			c.JSON(http.StatusBadRequest, gin.H{"error": me.Error()})
		case apperrors.KindNotConnected:
			c.JSON(http.StatusConflict, gin.H{"error": me.Error()})
		case apperrors.KindUnsupportedOperation:
			c.JSON(http.StatusNotImplemented, gin.H{"error": me.Error()})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"error": me.Error()})
		}
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
