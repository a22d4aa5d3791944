package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Krisp140/sebi/internal/config"

	"go.uber.org/zap"
)

// ImageOptions фиксированные параметры генерации для одной панели.
type ImageOptions struct {
	Steps int
	Model string
}

// ImageClient генерирует изображение по промпту и возвращает его URL.
type ImageClient interface {
	GenerateImage(ctx context.Context, prompt string, opts ImageOptions) (string, error)
}

// Статусы предсказаний Replicate.
const (
	predictionStarting   = "starting"
	predictionProcessing = "processing"
	predictionSucceeded  = "succeeded"
	predictionFailed     = "failed"
	predictionCanceled   = "canceled"
)

type predictionInput struct {
	Prompt            string `json:"prompt"`
	Model             string `json:"model,omitempty"`
	NumInferenceSteps int    `json:"num_inference_steps,omitempty"`
}

type predictionRequest struct {
	Version string          `json:"version"`
	Input   predictionInput `json:"input"`
}

type prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  json.RawMessage `json:"error"`
	URLs   struct {
		Get    string `json:"get"`
		Cancel string `json:"cancel"`
	} `json:"urls"`
}

func (p *prediction) terminal() bool {
	switch p.Status {
	case predictionSucceeded, predictionFailed, predictionCanceled:
		return true
	}
	return false
}

// ReplicateClient реализует ImageClient через HTTP API предсказаний Replicate.
type ReplicateClient struct {
	httpClient   *http.Client
	baseURL      string
	token        string
	version      string
	pollInterval time.Duration
	timeout      time.Duration
	logger       *zap.Logger
}

// NewReplicateClient создает клиента Replicate из конфигурации.
func NewReplicateClient(cfg *config.Config, logger *zap.Logger) *ReplicateClient {
	return &ReplicateClient{
		httpClient:   &http.Client{Timeout: cfg.ImageTimeout},
		baseURL:      strings.TrimSuffix(cfg.ImageBaseURL, "/"),
		token:        cfg.ReplicateAPIToken,
		version:      versionID(cfg.ImageModelVersion),
		pollInterval: cfg.ImagePollInterval,
		timeout:      cfg.ImageTimeout,
		logger:       logger.Named("replicate"),
	}
}

// versionID оставляет только хэш версии из "owner/model:hash".
func versionID(ref string) string {
	if i := strings.LastIndex(ref, ":"); i >= 0 {
		return ref[i+1:]
	}
	return ref
}

// GenerateImage создает предсказание и опрашивает его до терминального статуса.
// IMAGE_TIMEOUT ограничивает всю генерацию, включая опрос.
func (c *ReplicateClient) GenerateImage(ctx context.Context, prompt string, opts ImageOptions) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	start := time.Now()
	imageURL, err := c.generate(ctx, prompt, opts)
	requestDuration.WithLabelValues(ProviderReplicate, kindImage).Observe(time.Since(start).Seconds())
	requestsTotal.WithLabelValues(ProviderReplicate, kindImage, statusLabel(err)).Inc()
	return imageURL, err
}

func (c *ReplicateClient) generate(ctx context.Context, prompt string, opts ImageOptions) (string, error) {
	log := c.logger.With(zap.String("version", c.version), zap.Int("prompt_len", len(prompt)))

	payload, err := json.Marshal(predictionRequest{
		Version: c.version,
		Input: predictionInput{
			Prompt:            prompt,
			Model:             opts.Model,
			NumInferenceSteps: opts.Steps,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal prediction request: %w", err)
	}

	pred, err := c.do(ctx, http.MethodPost, c.baseURL+"/predictions", payload)
	if err != nil {
		log.Error("Failed to create prediction", zap.Error(err))
		return "", err
	}
	log = log.With(zap.String("prediction_id", pred.ID))
	log.Debug("Prediction created", zap.String("status", pred.Status))

	if !pred.terminal() {
		pred, err = c.poll(ctx, pred)
		if err != nil {
			log.Error("Prediction polling failed", zap.Error(err))
			return "", err
		}
	}

	if pred.Status != predictionSucceeded {
		log.Error("Prediction finished unsuccessfully", zap.String("status", pred.Status), zap.ByteString("error", pred.Error))
		return "", &UpstreamError{Provider: ProviderReplicate, Body: fmt.Sprintf("prediction %s: %s", pred.Status, string(pred.Error))}
	}

	imageURL, err := firstOutputURL(pred.Output)
	if err != nil {
		log.Error("Prediction output is unusable", zap.ByteString("output", pred.Output), zap.Error(err))
		return "", &UpstreamError{Provider: ProviderReplicate, Body: err.Error()}
	}
	log.Info("Image generated", zap.String("image_url", imageURL))
	return imageURL, nil
}

func (c *ReplicateClient) poll(ctx context.Context, pred *prediction) (*prediction, error) {
	getURL := pred.URLs.Get
	if getURL == "" {
		getURL = c.baseURL + "/predictions/" + pred.ID
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, &UpstreamError{Provider: ProviderReplicate, Err: ctx.Err()}
		case <-ticker.C:
		}

		next, err := c.do(ctx, http.MethodGet, getURL, nil)
		if err != nil {
			return nil, err
		}
		if next.terminal() {
			return next, nil
		}
	}
}

// do выполняет запрос к API и декодирует предсказание. Любой не-2xx ответ
// превращается в UpstreamError.
func (c *ReplicateClient) do(ctx context.Context, method, endpoint string, body []byte) (*prediction, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Prefer", "wait")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &UpstreamError{Provider: ProviderReplicate, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamError{Provider: ProviderReplicate, Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{Provider: ProviderReplicate, Status: resp.StatusCode, Body: truncateBody(respBody)}
	}

	var pred prediction
	if err := json.Unmarshal(respBody, &pred); err != nil {
		return nil, &UpstreamError{Provider: ProviderReplicate, Status: resp.StatusCode, Body: truncateBody(respBody), Err: err}
	}
	return &pred, nil
}

// firstOutputURL достает URL изображения: output бывает строкой или массивом строк.
func firstOutputURL(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", fmt.Errorf("prediction output is empty")
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if single == "" {
			return "", fmt.Errorf("prediction output is empty")
		}
		return single, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return "", fmt.Errorf("unexpected prediction output format: %w", err)
	}
	if len(list) == 0 || list[0] == "" {
		return "", fmt.Errorf("prediction output is empty")
	}
	return list[0], nil
}
