package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/Krisp140/sebi/internal/domain"
	"github.com/Krisp140/sebi/internal/models"
)

// Status состояние генерации в сессии.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

var (
	ErrSessionNotFound    = fmt.Errorf("%w: session", models.ErrNotFound)
	ErrPanelOutOfRange    = errors.New("panel index out of range")
	ErrPanelAlreadyMerged = errors.New("panel image already set")
)

// Panel панель в представлении клиента. ImageURL пуст, пока изображение не готово.
type Panel struct {
	Prompt   string `json:"prompt"`
	Caption  string `json:"caption"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// Session объединенное состояние одной генерации комикса.
type Session struct {
	ID        string    `json:"id"`
	Prompt    string    `json:"prompt,omitempty"`
	Status    Status    `json:"status"`
	Panels    []Panel   `json:"panels"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// New создает пустую сессию в статусе idle.
func New(id string) *Session {
	return &Session{ID: id, Status: StatusIdle, Panels: []Panel{}, UpdatedAt: time.Now().UTC()}
}

// Begin сбрасывает сессию перед новым запуском: прошлые панели и ошибка не переживают перезапуск.
func (s *Session) Begin(prompt string) {
	s.Prompt = prompt
	s.Status = StatusLoading
	s.Panels = []Panel{}
	s.Error = ""
	s.touch()
}

// SetStory заменяет панели историей без изображений.
func (s *Session) SetStory(story domain.Story) {
	s.Panels = make([]Panel, len(story))
	for i, p := range story {
		s.Panels[i] = Panel{Prompt: p.Prompt, Caption: p.Caption}
	}
	s.touch()
}

// MergePanel выставляет URL изображения панели index ровно один раз.
// Когда изображения есть у всех панелей, сессия переходит в ready.
func (s *Session) MergePanel(index int, imageURL string) error {
	if index < 0 || index >= len(s.Panels) {
		return fmt.Errorf("%w: %d of %d", ErrPanelOutOfRange, index, len(s.Panels))
	}
	if s.Panels[index].ImageURL != "" {
		return fmt.Errorf("%w: %d", ErrPanelAlreadyMerged, index)
	}
	s.Panels[index].ImageURL = imageURL
	if s.ReadyPanels() == len(s.Panels) {
		s.Status = StatusReady
	}
	s.touch()
	return nil
}

// Fail переводит сессию в failed. Уже полученные панели остаются.
func (s *Session) Fail(message string) {
	s.Status = StatusFailed
	s.Error = message
	s.touch()
}

// ReadyPanels количество панелей с изображением.
func (s *Session) ReadyPanels() int {
	n := 0
	for _, p := range s.Panels {
		if p.ImageURL != "" {
			n++
		}
	}
	return n
}

// Clone глубокая копия, чтобы хранилище не делило срезы с вызывающим кодом.
func (s *Session) Clone() *Session {
	c := *s
	c.Panels = append([]Panel(nil), s.Panels...)
	if c.Panels == nil {
		c.Panels = []Panel{}
	}
	return &c
}

func (s *Session) touch() {
	s.UpdatedAt = time.Now().UTC()
}
