package models

import "errors"

// Общие ошибки сервиса. Пакеты оборачивают их через fmt.Errorf("%w: ...").
var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrNotFound             = errors.New("not found")
	ErrGenerationInProgress = errors.New("generation already in progress")
)
