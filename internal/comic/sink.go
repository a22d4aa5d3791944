package comic

import (
	"context"
	"errors"
	"time"

	"github.com/Krisp140/sebi/internal/domain"
	"github.com/Krisp140/sebi/internal/pipeline"

	"go.uber.org/zap"
)

// Sink получает события одной генерации. Для каждого запуска порядок такой:
// либо OnStoryFailure, либо OnStoryReady, затем OnPanelReady по возрастанию индекса
// и, возможно, один OnPipelineFailure.
type Sink interface {
	OnStoryReady(ctx context.Context, story domain.Story)
	OnPanelReady(ctx context.Context, result domain.PanelResult)
	OnStoryFailure(ctx context.Context, err error)
	OnPipelineFailure(ctx context.Context, err error)
}

// Completer опционально реализуется приемником, которому нужен сигнал об успешном завершении.
type Completer interface {
	OnComplete(ctx context.Context)
}

// Sinks рассылает события всем приемникам по порядку.
type Sinks []Sink

func (s Sinks) OnStoryReady(ctx context.Context, story domain.Story) {
	for _, sink := range s {
		sink.OnStoryReady(ctx, story)
	}
}

func (s Sinks) OnPanelReady(ctx context.Context, result domain.PanelResult) {
	for _, sink := range s {
		sink.OnPanelReady(ctx, result)
	}
}

func (s Sinks) OnStoryFailure(ctx context.Context, err error) {
	for _, sink := range s {
		sink.OnStoryFailure(ctx, err)
	}
}

func (s Sinks) OnPipelineFailure(ctx context.Context, err error) {
	for _, sink := range s {
		sink.OnPipelineFailure(ctx, err)
	}
}

func (s Sinks) OnComplete(ctx context.Context) {
	for _, sink := range s {
		if c, ok := sink.(Completer); ok {
			c.OnComplete(ctx)
		}
	}
}

// Emitter доставляет событие наружу: в HTTP стрим, WebSocket или брокер.
type Emitter interface {
	Emit(ctx context.Context, event domain.ComicEvent) error
}

const emitTimeout = 5 * time.Second

// EventSink превращает колбэки в ComicEvent и передает их Emitter.
// Ошибки доставки только логируются.
type EventSink struct {
	sessionID string
	emitter   Emitter
	logger    *zap.Logger
}

var (
	_ Sink      = (*EventSink)(nil)
	_ Completer = (*EventSink)(nil)
)

func NewEventSink(sessionID string, emitter Emitter, logger *zap.Logger) *EventSink {
	return &EventSink{
		sessionID: sessionID,
		emitter:   emitter,
		logger:    logger.With(zap.String("session_id", sessionID)),
	}
}

func (e *EventSink) OnStoryReady(ctx context.Context, story domain.Story) {
	e.emit(ctx, domain.ComicEvent{Type: domain.EventStoryReady, Panels: story})
}

func (e *EventSink) OnPanelReady(ctx context.Context, result domain.PanelResult) {
	idx := result.Index
	panel := result.Panel
	e.emit(ctx, domain.ComicEvent{
		Type:     domain.EventPanelReady,
		Index:    &idx,
		Panel:    &panel,
		ImageURL: result.ImageURL,
	})
}

func (e *EventSink) OnStoryFailure(ctx context.Context, err error) {
	e.emit(ctx, domain.ComicEvent{Type: domain.EventStoryFailure, Message: UserMessage(err)})
}

func (e *EventSink) OnPipelineFailure(ctx context.Context, err error) {
	ev := domain.ComicEvent{Type: domain.EventPipelineFailure, Message: UserMessage(err)}
	var abortErr *pipeline.AbortError
	if errors.As(err, &abortErr) {
		idx := abortErr.Index
		ev.Index = &idx
	}
	e.emit(ctx, ev)
}

func (e *EventSink) OnComplete(ctx context.Context) {
	e.emit(ctx, domain.ComicEvent{Type: domain.EventCompleted})
}

func (e *EventSink) emit(ctx context.Context, ev domain.ComicEvent) {
	ev.SessionID = e.sessionID
	ev.Timestamp = time.Now().UTC()
	// Итоговые события должны уйти даже после отмены контекста запроса
	emitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), emitTimeout)
	defer cancel()
	if err := e.emitter.Emit(emitCtx, ev); err != nil {
		e.logger.Warn("Failed to emit comic event", zap.String("type", string(ev.Type)), zap.Error(err))
	}
}
