package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/Krisp140/sebi/internal/comic"
	"github.com/Krisp140/sebi/internal/domain"
	"github.com/Krisp140/sebi/internal/gateway"
	"github.com/Krisp140/sebi/internal/middleware"
	"github.com/Krisp140/sebi/internal/models"
	"github.com/Krisp140/sebi/internal/session"
	"github.com/Krisp140/sebi/internal/story"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionIDHeader заголовок, которым клиент выбирает сессию.
const SessionIDHeader = "X-Session-ID"

// ComicService полный цикл генерации комикса.
type ComicService interface {
	Generate(ctx context.Context, sessionID, prompt string, sink comic.Sink) error
	Session(ctx context.Context, sessionID string) (*session.Session, error)
}

// StoryService генерация одной истории без изображений.
type StoryService interface {
	ValidatePrompt(prompt string) (string, error)
	Generate(ctx context.Context, prompt string) (domain.Story, error)
}

// ImageService генерация одного изображения.
type ImageService interface {
	GenerateImage(ctx context.Context, prompt string, opts gateway.ImageOptions) (string, error)
}

// ComicHandler HTTP и WebSocket точки входа сервиса.
type ComicHandler struct {
	comics    ComicService
	stories   StoryService
	images    ImageService
	imageOpts gateway.ImageOptions
	logger    *zap.Logger
}

func NewComicHandler(comics ComicService, stories StoryService, images ImageService, imageOpts gateway.ImageOptions, logger *zap.Logger) *ComicHandler {
	return &ComicHandler{
		comics:    comics,
		stories:   stories,
		images:    images,
		imageOpts: imageOpts,
		logger:    logger.Named("ComicHandler"),
	}
}

// RegisterRoutes регистрирует маршруты /api.
func (h *ComicHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.POST("/generate_plot", h.generatePlot)
	api.POST("/generate_imgs", h.generateImage)
	api.POST("/comics", h.streamComic)
	api.GET("/comics/ws", h.serveWS)
	api.GET("/sessions/:id", h.getSession)
}

func (h *ComicHandler) requestLogger(c *gin.Context) *zap.Logger {
	return h.logger.With(zap.String("request_id", c.GetString(middleware.RequestIDKey)))
}

// generatePlot POST /api/generate_plot: только история.
func (h *ComicHandler) generatePlot(c *gin.Context) {
	var req promptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	result, err := h.stories.Generate(c.Request.Context(), req.Prompt)
	if err != nil {
		if errors.Is(err, story.ErrInvalidStoryJSON) {
			// Ответ модели вообще не разобрать: это ошибка разбора, а не пустая история
			h.requestLogger(c).Error("Story reply is not valid JSON", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, models.ErrorResponse{Error: comic.MsgStoryFailed})
			return
		}
		if errors.Is(err, story.ErrMalformedStory) {
			h.requestLogger(c).Warn("Story is malformed or empty", zap.Error(err))
			c.JSON(http.StatusOK, storyResponse{
				Result:  storyResult{Comics: domain.Story{}},
				Message: comic.MsgNoStory,
			})
			return
		}
		h.requestLogger(c).Error("Story generation failed", zap.Error(err))
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, storyResponse{Result: storyResult{Comics: result}})
}

// generateImage POST /api/generate_imgs: одно изображение по промпту панели.
func (h *ComicHandler) generateImage(c *gin.Context) {
	var req promptRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Prompt) == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Error: comic.MsgPromptRequired})
		return
	}

	imageURL, err := h.images.GenerateImage(c.Request.Context(), req.Prompt, h.imageOpts)
	if err != nil {
		h.requestLogger(c).Error("Image generation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, models.ErrorResponse{Error: comic.MsgImageFailed})
		return
	}

	c.JSON(http.StatusOK, imageResponse{ImageURL: imageURL})
}

// getSession GET /api/sessions/:id: текущее состояние сессии.
func (h *ComicHandler) getSession(c *gin.Context) {
	sess, err := h.comics.Session(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// streamComic POST /api/comics: события генерации построчно в NDJSON.
// Пока ни одного события не записано, ошибки отдаются обычным JSON ответом.
func (h *ComicHandler) streamComic(c *gin.Context) {
	var req promptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	sessionID := c.GetHeader(SessionIDHeader)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	c.Header(SessionIDHeader, sessionID)
	log := h.requestLogger(c).With(zap.String("session_id", sessionID))

	emitter := &ndjsonEmitter{w: c.Writer}
	err := h.comics.Generate(c.Request.Context(), sessionID, req.Prompt, comic.NewEventSink(sessionID, emitter, log))
	if err == nil {
		return
	}
	if !emitter.started() {
		handleServiceError(c, err)
		return
	}
	// Ошибка уже доставлена клиенту событием
	log.Warn("Comic stream finished with error", zap.Error(err))
}

// ndjsonEmitter пишет события в ответ по одному JSON объекту на строку.
type ndjsonEmitter struct {
	mu      sync.Mutex
	w       gin.ResponseWriter
	written bool
}

func (e *ndjsonEmitter) Emit(_ context.Context, ev domain.ComicEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.written {
		e.w.Header().Set("Content-Type", "application/x-ndjson")
		e.w.Header().Set("Cache-Control", "no-cache")
		e.w.Header().Set("X-Accel-Buffering", "no")
		e.w.WriteHeader(http.StatusOK)
		e.written = true
	}
	if err := json.NewEncoder(e.w).Encode(ev); err != nil {
		return err
	}
	e.w.Flush()
	return nil
}

func (e *ndjsonEmitter) started() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.written
}
