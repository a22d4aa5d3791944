package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/Krisp140/sebi/internal/config"

	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// TextClient запрашивает у текстовой модели JSON-ответ на пару system/user сообщений.
type TextClient interface {
	// GenerateStory отправляет ровно одно системное и одно пользовательское сообщение
	// и возвращает сырой текст ответа модели.
	GenerateStory(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// NewTextClient создает клиента текстовой модели по AI_CLIENT_TYPE.
func NewTextClient(cfg *config.Config, logger *zap.Logger) (TextClient, error) {
	switch strings.ToLower(cfg.AIClientType) {
	case config.AIClientOpenAI:
		openaiConfig := openaigo.DefaultConfig(cfg.AIAPIKey)
		openaiConfig.BaseURL = strings.TrimSuffix(cfg.AIBaseURL, "/")
		openaiConfig.HTTPClient = &http.Client{Timeout: cfg.AITimeout}
		logger.Info("OpenAI-compatible text client created",
			zap.String("base_url", openaiConfig.BaseURL),
			zap.String("model", cfg.AIModel),
			zap.Duration("timeout", cfg.AITimeout),
		)
		return &openAIClient{
			client: openaigo.NewClientWithConfig(openaiConfig),
			model:  cfg.AIModel,
			logger: logger.Named("openai"),
		}, nil
	case config.AIClientOllama:
		return newOllamaClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported AI client type: %q", cfg.AIClientType)
	}
}
