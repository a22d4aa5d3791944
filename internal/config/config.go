package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	AIClientOpenAI = "openai"
	AIClientOllama = "ollama"

	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

// Config содержит конфигурацию сервиса генерации комиксов
type Config struct {
	Env        string `envconfig:"ENV" default:"development"`
	ServerPort string `envconfig:"SERVER_PORT" default:"8080"`

	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"json"`

	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`

	// Текстовая модель (OpenAI-совместимый API или Ollama)
	AIClientType string        `envconfig:"AI_CLIENT_TYPE" default:"openai"`
	AIBaseURL    string        `envconfig:"AI_BASE_URL" default:"https://models.inference.ai.azure.com"`
	AIModel      string        `envconfig:"AI_MODEL" default:"gpt-4o"`
	AITimeout    time.Duration `envconfig:"AI_TIMEOUT" default:"60s"`
	// Секрет, без envconfig тега
	AIAPIKey string `ignored:"true"`

	// Модель изображений (Replicate)
	ImageBaseURL        string        `envconfig:"IMAGE_BASE_URL" default:"https://api.replicate.com/v1"`
	ImageModelVersion   string        `envconfig:"IMAGE_MODEL_VERSION" default:"sundai-club/sebi:4a7c8116010cc98ff8fc16c81c29f857f67b1ca62b74cbba6ea53832c3bc9ee4"`
	ImageModel          string        `envconfig:"IMAGE_MODEL" default:"schnell"`
	ImageInferenceSteps int           `envconfig:"IMAGE_INFERENCE_STEPS" default:"8"`
	ImageTimeout        time.Duration `envconfig:"IMAGE_TIMEOUT" default:"120s"`
	ImagePollInterval   time.Duration `envconfig:"IMAGE_POLL_INTERVAL" default:"1s"`
	ReplicateAPIToken   string        `ignored:"true"`

	MaxPromptLength     int `envconfig:"MAX_PROMPT_LENGTH" default:"50"`
	PipelineConcurrency int `envconfig:"PIPELINE_CONCURRENCY" default:"1"`

	SessionStore string        `envconfig:"SESSION_STORE" default:"memory"`
	SessionTTL   time.Duration `envconfig:"SESSION_TTL" default:"1h"`
	RedisAddr    string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisDB      int           `envconfig:"REDIS_DB" default:"0"`

	// Пустой URL отключает публикацию событий
	RabbitMQURL         string `envconfig:"RABBITMQ_URL"`
	ComicEventsExchange string `envconfig:"COMIC_EVENTS_EXCHANGE" default:"comic_events"`
}

// LoadConfig загружает конфигурацию из .env (если есть), переменных окружения и секретов.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("Файл .env не найден, используются переменные окружения")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}

	// Дальше значения сравниваются точным совпадением
	cfg.AIClientType = strings.ToLower(strings.TrimSpace(cfg.AIClientType))
	cfg.SessionStore = strings.ToLower(strings.TrimSpace(cfg.SessionStore))

	var err error
	if cfg.AIClientType == AIClientOpenAI {
		cfg.AIAPIKey, err = ReadSecret("ai_api_key", "AI_API_KEY")
		if err != nil {
			return nil, err
		}
	}
	cfg.ReplicateAPIToken, err = ReadSecret("replicate_api_token", "REPLICATE_API_TOKEN")
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Printf("Конфигурация загружена:")
	log.Printf("  Env: %s, Port: %s", cfg.Env, cfg.ServerPort)
	log.Printf("  AI: client=%s model=%s baseURL=%s timeout=%v", cfg.AIClientType, cfg.AIModel, cfg.AIBaseURL, cfg.AITimeout)
	log.Printf("  Image: version=%s model=%s steps=%d timeout=%v", cfg.ImageModelVersion, cfg.ImageModel, cfg.ImageInferenceSteps, cfg.ImageTimeout)
	log.Printf("  Pipeline concurrency: %d, max prompt length: %d", cfg.PipelineConcurrency, cfg.MaxPromptLength)
	log.Printf("  Session store: %s (ttl %v)", cfg.SessionStore, cfg.SessionTTL)
	if cfg.RabbitMQURL != "" {
		log.Printf("  Comic events exchange: %s", cfg.ComicEventsExchange)
	}
	log.Println("  API keys: [ЗАГРУЖЕНЫ]")

	return &cfg, nil
}

// Validate проверяет значения, которые envconfig не может проверить сам.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.AIClientType) {
	case AIClientOpenAI, AIClientOllama:
	default:
		errs = append(errs, fmt.Errorf("AI_CLIENT_TYPE: unsupported value %q", c.AIClientType))
	}
	switch strings.ToLower(c.SessionStore) {
	case SessionStoreMemory, SessionStoreRedis:
	default:
		errs = append(errs, fmt.Errorf("SESSION_STORE: unsupported value %q", c.SessionStore))
	}
	if c.ImageModelVersion == "" {
		errs = append(errs, errors.New("IMAGE_MODEL_VERSION must not be empty"))
	}
	if c.MaxPromptLength <= 0 {
		errs = append(errs, errors.New("MAX_PROMPT_LENGTH must be positive"))
	}
	if c.PipelineConcurrency <= 0 {
		errs = append(errs, errors.New("PIPELINE_CONCURRENCY must be positive"))
	}
	if c.ImagePollInterval <= 0 {
		errs = append(errs, errors.New("IMAGE_POLL_INTERVAL must be positive"))
	}
	return errors.Join(errs...)
}
