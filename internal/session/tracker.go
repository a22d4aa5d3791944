package session

import (
	"context"
	"errors"

	"github.com/Krisp140/sebi/internal/domain"

	"go.uber.org/zap"
)

// Tracker переносит события генерации в состояние сессии в хранилище.
// Все колбэки вызываются последовательно одним владельцем сессии.
type Tracker struct {
	store    Store
	id       string
	describe func(error) string
	logger   *zap.Logger
}

// NewTracker создает трекер сессии id. describe превращает ошибку в текст для клиента,
// nil означает err.Error().
func NewTracker(store Store, id string, describe func(error) string, logger *zap.Logger) *Tracker {
	if describe == nil {
		describe = func(err error) string { return err.Error() }
	}
	return &Tracker{
		store:    store,
		id:       id,
		describe: describe,
		logger:   logger.Named("tracker").With(zap.String("session_id", id)),
	}
}

// Begin начинает новый запуск: создает сессию или сбрасывает существующую.
func (t *Tracker) Begin(ctx context.Context, prompt string) error {
	s, err := t.store.Load(ctx, t.id)
	if errors.Is(err, ErrSessionNotFound) {
		s = New(t.id)
	} else if err != nil {
		return err
	}
	s.Begin(prompt)
	return t.store.Save(ctx, s)
}

func (t *Tracker) OnStoryReady(ctx context.Context, story domain.Story) {
	t.update(ctx, "story_ready", func(s *Session) error {
		s.SetStory(story)
		return nil
	})
}

func (t *Tracker) OnPanelReady(ctx context.Context, result domain.PanelResult) {
	t.update(ctx, "panel_ready", func(s *Session) error {
		return s.MergePanel(result.Index, result.ImageURL)
	})
}

func (t *Tracker) OnStoryFailure(ctx context.Context, err error) {
	t.update(ctx, "story_failure", func(s *Session) error {
		s.Fail(t.describe(err))
		return nil
	})
}

func (t *Tracker) OnPipelineFailure(ctx context.Context, err error) {
	t.update(ctx, "pipeline_failure", func(s *Session) error {
		s.Fail(t.describe(err))
		return nil
	})
}

// update загружает сессию, применяет fn и сохраняет. Ошибки логируются и не
// прерывают генерацию. Отмена контекста клиента не мешает записать итог.
func (t *Tracker) update(ctx context.Context, event string, fn func(*Session) error) {
	ctx = context.WithoutCancel(ctx)
	log := t.logger.With(zap.String("event", event))

	s, err := t.store.Load(ctx, t.id)
	if err != nil {
		log.Error("Failed to load session", zap.Error(err))
		return
	}
	if err := fn(s); err != nil {
		log.Warn("Session merge ignored", zap.Error(err))
		return
	}
	if err := t.store.Save(ctx, s); err != nil {
		log.Error("Failed to save session", zap.Error(err))
	}
}
