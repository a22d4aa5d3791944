package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/pkoukk/tiktoken-go"
	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// openAIClient реализует TextClient через OpenAI-совместимый chat completions API.
type openAIClient struct {
	client *openaigo.Client
	model  string
	logger *zap.Logger
}

func (c *openAIClient) GenerateStory(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	log := c.logger.With(zap.String("model", c.model))

	req := openaigo.ChatCompletionRequest{
		Model: c.model,
		Messages: []openaigo.ChatCompletionMessage{
			{Role: openaigo.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openaigo.ChatMessageRoleUser, Content: userPrompt},
		},
		ResponseFormat: &openaigo.ChatCompletionResponseFormat{
			Type: openaigo.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	start := time.Now()
	log.Debug("Sending chat completion request", zap.Int("user_prompt_len", len(userPrompt)))
	resp, err := c.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)
	requestDuration.WithLabelValues(ProviderOpenAI, kindText).Observe(duration.Seconds())

	if err != nil {
		upErr := classifyOpenAIError(err)
		requestsTotal.WithLabelValues(ProviderOpenAI, kindText, statusLabel(upErr)).Inc()
		log.Error("Chat completion failed", zap.Duration("duration", duration), zap.Int("status", upErr.Status), zap.Error(err))
		return "", upErr
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		upErr := &UpstreamError{Provider: ProviderOpenAI, Body: "empty response"}
		requestsTotal.WithLabelValues(ProviderOpenAI, kindText, "empty_response").Inc()
		log.Error("Chat completion returned empty content", zap.Duration("duration", duration))
		return "", upErr
	}

	requestsTotal.WithLabelValues(ProviderOpenAI, kindText, "success").Inc()
	c.observeUsage(resp.Usage, systemPrompt, userPrompt)

	content := resp.Choices[0].Message.Content
	log.Info("Chat completion received",
		zap.Duration("duration", duration),
		zap.Int("response_len", len(content)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)
	return content, nil
}

// observeUsage пишет метрики токенов. Если провайдер не вернул usage,
// количество токенов промпта оценивается через tiktoken.
func (c *openAIClient) observeUsage(usage openaigo.Usage, systemPrompt, userPrompt string) {
	if usage.TotalTokens > 0 {
		promptTokens.WithLabelValues(ProviderOpenAI, c.model).Observe(float64(usage.PromptTokens))
		completionTokens.WithLabelValues(ProviderOpenAI, c.model).Observe(float64(usage.CompletionTokens))
		return
	}
	tke, err := tiktoken.EncodingForModel(c.model)
	if err != nil {
		c.logger.Warn("No tokenizer for model, skipping token metrics", zap.String("model", c.model), zap.Error(err))
		return
	}
	estimated := len(tke.Encode(systemPrompt, nil, nil)) + len(tke.Encode(userPrompt, nil, nil))
	promptTokens.WithLabelValues(ProviderOpenAI, c.model).Observe(float64(estimated))
}

func classifyOpenAIError(err error) *UpstreamError {
	upErr := &UpstreamError{Provider: ProviderOpenAI, Err: err}
	var apiErr *openaigo.APIError
	var reqErr *openaigo.RequestError
	switch {
	case errors.As(err, &apiErr):
		upErr.Status = apiErr.HTTPStatusCode
		upErr.Body = apiErr.Message
		upErr.Err = nil
	case errors.As(err, &reqErr):
		upErr.Status = reqErr.HTTPStatusCode
	}
	return upErr
}
