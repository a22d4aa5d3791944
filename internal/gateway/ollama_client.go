package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Krisp140/sebi/internal/config"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"
)

// ollamaClient реализует TextClient через нативный API Ollama.
type ollamaClient struct {
	client *api.Client
	model  string
	logger *zap.Logger
}

func newOllamaClient(cfg *config.Config, logger *zap.Logger) (TextClient, error) {
	// api.NewClient ожидает URL без суффикса /v1
	baseURL := strings.TrimSuffix(strings.TrimSuffix(cfg.AIBaseURL, "/"), "/v1")
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Ollama base URL '%s': %w", baseURL, err)
	}

	logger.Info("Ollama text client created",
		zap.String("base_url", baseURL),
		zap.String("model", cfg.AIModel),
		zap.Duration("timeout", cfg.AITimeout),
	)
	return &ollamaClient{
		client: api.NewClient(parsedURL, &http.Client{Timeout: cfg.AITimeout}),
		model:  cfg.AIModel,
		logger: logger.Named("ollama"),
	}, nil
}

func (c *ollamaClient) GenerateStory(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	log := c.logger.With(zap.String("model", c.model))

	stream := false
	req := &api.ChatRequest{
		Model: c.model,
		Messages: []api.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Stream: &stream,
		Format: json.RawMessage(`"json"`),
	}

	start := time.Now()
	var resp api.ChatResponse
	err := c.client.Chat(ctx, req, func(r api.ChatResponse) error {
		resp = r
		return nil
	})
	duration := time.Since(start)
	requestDuration.WithLabelValues(ProviderOllama, kindText).Observe(duration.Seconds())

	if err != nil {
		upErr := classifyOllamaError(err)
		requestsTotal.WithLabelValues(ProviderOllama, kindText, statusLabel(upErr)).Inc()
		if errors.Is(err, context.DeadlineExceeded) {
			log.Error("Ollama request timed out", zap.Duration("duration", duration), zap.Error(err))
		} else {
			log.Error("Ollama chat failed", zap.Duration("duration", duration), zap.Error(err))
		}
		return "", upErr
	}

	if resp.Message.Content == "" {
		requestsTotal.WithLabelValues(ProviderOllama, kindText, "empty_response").Inc()
		log.Error("Ollama returned empty content", zap.Duration("duration", duration))
		return "", &UpstreamError{Provider: ProviderOllama, Body: "empty response"}
	}

	requestsTotal.WithLabelValues(ProviderOllama, kindText, "success").Inc()
	if resp.PromptEvalCount > 0 || resp.EvalCount > 0 {
		promptTokens.WithLabelValues(ProviderOllama, c.model).Observe(float64(resp.PromptEvalCount))
		completionTokens.WithLabelValues(ProviderOllama, c.model).Observe(float64(resp.EvalCount))
	}

	log.Info("Ollama response received",
		zap.Duration("duration", duration),
		zap.Int("response_len", len(resp.Message.Content)),
	)
	return resp.Message.Content, nil
}

func classifyOllamaError(err error) *UpstreamError {
	upErr := &UpstreamError{Provider: ProviderOllama, Err: err}
	var statusErr api.StatusError
	var statusErrPtr *api.StatusError
	switch {
	case errors.As(err, &statusErr):
		upErr.Status = statusErr.StatusCode
		upErr.Body = statusErr.ErrorMessage
		upErr.Err = nil
	case errors.As(err, &statusErrPtr):
		upErr.Status = statusErrPtr.StatusCode
		upErr.Body = statusErrPtr.ErrorMessage
		upErr.Err = nil
	}
	return upErr
}
