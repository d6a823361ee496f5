package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apierrors "github.com/screamboard/screamboard/internal/errors"
	"github.com/screamboard/screamboard/internal/identity"
	"github.com/screamboard/screamboard/internal/logger"
	"github.com/screamboard/screamboard/internal/scream"
)

// respondAPIError writes a structured error body.
func respondAPIError(c *gin.Context, apiErr *apierrors.APIError) {
	fields := []zap.Field{
		zap.String("code", string(apiErr.Code)),
		zap.String("message", apiErr.Message),
		zap.String("path", c.FullPath()),
	}
	if id, ok := c.Get(requestIDKey); ok {
		fields = append(fields, logger.WithRequestID(id.(string)))
	}
	if apiErr.Status >= http.StatusInternalServerError {
		logger.Log.Error("API error", fields...)
	} else {
		logger.Log.Debug("API error", fields...)
	}
	c.AbortWithStatusJSON(apiErr.Status, apiErr)
}

// respondError maps a service error onto the API error taxonomy. Unknown
// errors are logged and reported without detail.
func respondError(c *gin.Context, err error) {
	respondAPIError(c, toAPIError(c, err))
}

func toAPIError(c *gin.Context, err error) *apierrors.APIError {
	var apiErr *apierrors.APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, identity.ErrEmptyID):
		return apierrors.ValidationError("user_id", err.Error())
	case errors.Is(err, scream.ErrInvalidContent):
		return apierrors.ValidationError("content", err.Error())
	case errors.Is(err, scream.ErrInvalidEmoji):
		return apierrors.ValidationError("emoji", err.Error())
	case errors.Is(err, scream.ErrInvalidWeekID):
		return apierrors.ValidationError("week_id", err.Error())
	case errors.Is(err, scream.ErrInvalidAction):
		return apierrors.ValidationError("action", err.Error())
	case errors.Is(err, scream.ErrPostNotFound):
		return apierrors.NotFound("scream")
	case errors.Is(err, scream.ErrWeekNotFound):
		return apierrors.NotFound("week")
	case errors.Is(err, scream.ErrFeedEmpty),
		errors.Is(err, scream.ErrNoReviewSession),
		errors.Is(err, scream.ErrNothingToReview):
		return apierrors.New(apierrors.ErrNotFound, err.Error())
	case errors.Is(err, scream.ErrAlreadyReacted),
		errors.Is(err, scream.ErrWeekAlreadyArchived),
		errors.Is(err, scream.ErrReviewConflict):
		return apierrors.Conflict(err.Error())
	case errors.Is(err, scream.ErrForbidden):
		return apierrors.Forbidden(err.Error())
	default:
		logger.Log.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		return apierrors.InternalError("internal error")
	}
}
