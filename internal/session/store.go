package session

import "context"

// Store хранит сессии и следит, чтобы в одной сессии шла только одна генерация.
type Store interface {
	// Acquire занимает сессию и возвращает токен владельца.
	// Если генерация уже идет, возвращает models.ErrGenerationInProgress.
	Acquire(ctx context.Context, id string) (string, error)
	// Release освобождает сессию, только если она все еще занята владельцем token.
	Release(ctx context.Context, id, token string) error
	Save(ctx context.Context, s *Session) error
	// Load возвращает ErrSessionNotFound для неизвестной сессии.
	Load(ctx context.Context, id string) (*Session, error)
}
