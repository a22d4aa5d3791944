package story

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Krisp140/sebi/internal/domain"
	"github.com/Krisp140/sebi/internal/models"

	"go.uber.org/zap"
)

var (
	// ErrInvalidPrompt пустой или слишком длинный промпт пользователя.
	ErrInvalidPrompt = fmt.Errorf("%w: invalid prompt", models.ErrInvalidInput)
	// ErrPromptRequired промпт пустой после обрезки пробелов.
	ErrPromptRequired = fmt.Errorf("%w: prompt is required", ErrInvalidPrompt)
)

// TextGenerator узкий интерфейс текстовой модели, который нужен генератору.
type TextGenerator interface {
	GenerateStory(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Generator превращает промпт пользователя в историю из панелей.
type Generator struct {
	client          TextGenerator
	maxPromptLength int
	logger          *zap.Logger
}

// NewGenerator создает генератор. maxPromptLength <= 0 отключает проверку длины.
func NewGenerator(client TextGenerator, maxPromptLength int, logger *zap.Logger) *Generator {
	return &Generator{
		client:          client,
		maxPromptLength: maxPromptLength,
		logger:          logger.Named("story"),
	}
}

// ValidatePrompt возвращает промпт без крайних пробелов или ErrInvalidPrompt.
func (g *Generator) ValidatePrompt(prompt string) (string, error) {
	trimmed := strings.TrimSpace(prompt)
	if trimmed == "" {
		return "", ErrPromptRequired
	}
	if g.maxPromptLength > 0 && utf8.RuneCountInString(trimmed) > g.maxPromptLength {
		return "", fmt.Errorf("%w: prompt must be at most %d characters", ErrInvalidPrompt, g.maxPromptLength)
	}
	return trimmed, nil
}

// Generate выполняет один запрос к текстовой модели и возвращает проверенную историю.
// Ошибки провайдера пробрасываются как есть, ошибки формы ответа оборачивают ErrMalformedStory.
func (g *Generator) Generate(ctx context.Context, prompt string) (domain.Story, error) {
	trimmed, err := g.ValidatePrompt(prompt)
	if err != nil {
		return nil, err
	}

	log := g.logger.With(zap.String("prompt", trimmed))
	log.Info("Generating story")

	raw, err := g.client.GenerateStory(ctx, SystemInstruction, trimmed)
	if err != nil {
		log.Error("Text model call failed", zap.Error(err))
		return nil, err
	}

	story, err := ParseStory(raw)
	if err != nil {
		if errors.Is(err, ErrEmptyStory) {
			log.Warn("Model returned a story without panels")
		} else {
			log.Warn("Model returned a malformed story", zap.Error(err), zap.Int("raw_len", len(raw)))
		}
		return nil, err
	}

	log.Info("Story generated", zap.Int("panels", len(story)))
	return story, nil
}
