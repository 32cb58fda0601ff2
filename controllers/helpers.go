package controllers

import (
	"net/http"
	"strconv"

	apperrors "github.com/Dayvhiid/Simple-E-commerce-API/common/errors"
	"github.com/Dayvhiid/Simple-E-commerce-API/common/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError renders err and logs the hidden cause of server-side failures.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	appErr := apperrors.As(err)
	if appErr.Code >= http.StatusInternalServerError {
		logger.WithRequest(c, log).Error("Request failed",
			zap.Int("status", appErr.Code),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	apperrors.Respond(c, appErr)
}

func badRequest(c *gin.Context, message string) {
	apperrors.Respond(c, apperrors.Validation(message))
}

// queryInt reads a positive integer query parameter, returning 0 when absent or malformed.
func queryInt(c *gin.Context, key string) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n < 1 {
		return 0
	}
	return n
}
