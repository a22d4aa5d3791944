package domain

import "time"

// PanelDescriptor описание одной панели: промпт для модели изображений и подпись.
type PanelDescriptor struct {
	Prompt  string `json:"prompt"`
	Caption string `json:"caption"`
}

// Story упорядоченный список панелей. Создается целиком, частичных историй не бывает.
type Story []PanelDescriptor

// PanelResult готовая панель с URL изображения.
type PanelResult struct {
	Index    int             `json:"index"`
	Panel    PanelDescriptor `json:"panel"`
	ImageURL string          `json:"imageUrl"`
}

// EventType тип события жизненного цикла генерации комикса.
type EventType string

const (
	EventStoryReady      EventType = "story_ready"
	EventPanelReady      EventType = "panel_ready"
	EventStoryFailure    EventType = "story_failure"
	EventPipelineFailure EventType = "pipeline_failure"
	EventCompleted       EventType = "completed"

	// EventError запуск отклонен до начала генерации (неверный промпт, сессия занята).
	EventError EventType = "error"
)

// ComicEvent событие, которое уходит клиенту (NDJSON / WebSocket) и в RabbitMQ.
type ComicEvent struct {
	SessionID string           `json:"sessionId"`
	Type      EventType        `json:"type"`
	Panels    Story            `json:"panels,omitempty"`
	Index     *int             `json:"index,omitempty"`
	Panel     *PanelDescriptor `json:"panel,omitempty"`
	ImageURL  string           `json:"imageUrl,omitempty"`
	Message   string           `json:"message,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}
