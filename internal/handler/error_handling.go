package handler

import (
	"errors"
	"net/http"

	"github.com/Krisp140/sebi/internal/comic"
	"github.com/Krisp140/sebi/internal/gateway"
	"github.com/Krisp140/sebi/internal/models"
	"github.com/Krisp140/sebi/internal/pipeline"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func handleServiceError(c *gin.Context, err error) {
	var statusCode int
	var errResp models.ErrorResponse

	switch {
	case errors.Is(err, models.ErrInvalidInput):
		statusCode = http.StatusBadRequest
		errResp = models.ErrorResponse{Error: comic.UserMessage(err)}
	case errors.Is(err, models.ErrGenerationInProgress):
		statusCode = http.StatusConflict
		errResp = models.ErrorResponse{Error: comic.MsgAlreadyGenerating}
	case errors.Is(err, models.ErrNotFound):
		statusCode = http.StatusNotFound
		errResp = models.ErrorResponse{Error: "Session not found"}
	case errors.Is(err, pipeline.ErrPipelineAborted):
		statusCode = http.StatusInternalServerError
		errResp = models.ErrorResponse{Error: comic.MsgImageFailed}
	case errors.Is(err, gateway.ErrUpstream):
		statusCode = http.StatusInternalServerError
		errResp = models.ErrorResponse{Error: comic.MsgStoryFailed}
	default:
		zap.L().Error("Unhandled internal error in handleServiceError", zap.Error(err))
		statusCode = http.StatusInternalServerError
		errResp = models.ErrorResponse{Error: "An unexpected internal error occurred"}
	}

	c.AbortWithStatusJSON(statusCode, errResp)
}
