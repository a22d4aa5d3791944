package comic

import (
	"context"
	"fmt"

	"github.com/Krisp140/sebi/internal/domain"
	"github.com/Krisp140/sebi/internal/pipeline"
	"github.com/Krisp140/sebi/internal/session"

	"go.uber.org/zap"
)

// StoryGenerator источник историй.
type StoryGenerator interface {
	ValidatePrompt(prompt string) (string, error)
	Generate(ctx context.Context, prompt string) (domain.Story, error)
}

// PanelPipeline генерация изображений панелей.
type PanelPipeline interface {
	Run(ctx context.Context, story domain.Story, onPanelReady pipeline.PanelReadyFunc) error
}

// Service связывает генерацию истории, пайплайн панелей и состояние сессии.
type Service struct {
	stories  StoryGenerator
	panels   PanelPipeline
	sessions session.Store
	events   Emitter
	logger   *zap.Logger
}

// NewService создает оркестратор. events может быть nil, тогда события никуда не публикуются.
func NewService(stories StoryGenerator, panels PanelPipeline, sessions session.Store, events Emitter, logger *zap.Logger) *Service {
	return &Service{
		stories:  stories,
		panels:   panels,
		sessions: sessions,
		events:   events,
		logger:   logger.Named("comic"),
	}
}

// Generate выполняет полный цикл для сессии sessionID: история, затем панели.
// Пока генерация идет, повторный вызов для той же сессии получает models.ErrGenerationInProgress.
// sink получает события в том же порядке, что и состояние сессии.
func (s *Service) Generate(ctx context.Context, sessionID, prompt string, sink Sink) error {
	trimmed, err := s.stories.ValidatePrompt(prompt)
	if err != nil {
		return err
	}

	log := s.logger.With(zap.String("session_id", sessionID))

	token, err := s.sessions.Acquire(ctx, sessionID)
	if err != nil {
		log.Warn("Session is busy or unavailable", zap.Error(err))
		return err
	}
	defer func() {
		if err := s.sessions.Release(context.WithoutCancel(ctx), sessionID, token); err != nil {
			log.Error("Failed to release session", zap.Error(err))
		}
	}()

	tracker := session.NewTracker(s.sessions, sessionID, UserMessage, s.logger)
	if err := tracker.Begin(ctx, trimmed); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	sinks := Sinks{tracker}
	if s.events != nil {
		sinks = append(sinks, NewEventSink(sessionID, s.events, s.logger))
	}
	if sink != nil {
		sinks = append(sinks, sink)
	}

	log.Info("Comic generation started")
	story, err := s.stories.Generate(ctx, trimmed)
	if err != nil {
		log.Warn("Story generation failed", zap.Error(err))
		sinks.OnStoryFailure(ctx, err)
		return err
	}
	sinks.OnStoryReady(ctx, story)

	err = s.panels.Run(ctx, story, func(_ int, result domain.PanelResult) {
		sinks.OnPanelReady(ctx, result)
	})
	if err != nil {
		log.Warn("Panel pipeline failed", zap.Error(err))
		sinks.OnPipelineFailure(ctx, err)
		return err
	}

	sinks.OnComplete(ctx)
	log.Info("Comic generation completed", zap.Int("panels", len(story)))
	return nil
}

// Session возвращает текущее состояние сессии.
func (s *Service) Session(ctx context.Context, sessionID string) (*session.Session, error) {
	return s.sessions.Load(ctx, sessionID)
}
