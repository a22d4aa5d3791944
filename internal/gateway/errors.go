package gateway

import (
	"errors"
	"fmt"
)

// ErrUpstream класс ошибок внешних провайдеров моделей.
var ErrUpstream = errors.New("upstream model provider error")

const (
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
	ProviderReplicate = "replicate"
)

// UpstreamError ошибка провайдера: не-2xx ответ, сетевая ошибка или неуспешный статус предсказания.
// Status == 0, если HTTP ответа не было.
type UpstreamError struct {
	Provider string
	Status   int
	Body     string
	Err      error
}

func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("%s: %s", ErrUpstream.Error(), e.Provider)
	if e.Status != 0 {
		msg += fmt.Sprintf(" status %d", e.Status)
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Is позволяет проверять errors.Is(err, ErrUpstream).
func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

// maxBodyInError ограничивает размер тела ответа, попадающего в ошибку и логи.
const maxBodyInError = 2048

func truncateBody(b []byte) string {
	if len(b) > maxBodyInError {
		return string(b[:maxBodyInError]) + "..."
	}
	return string(b)
}
