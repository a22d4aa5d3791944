package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrPipelineAborted генерация панели завершилась ошибкой, оставшиеся панели не обрабатывались.
	ErrPipelineAborted = errors.New("panel pipeline aborted")
	// ErrEmptyStory история без панелей, провайдер не вызывается.
	ErrEmptyStory = errors.New("story has no panels")
)

// AbortError описывает остановку пайплайна на панели Index.
// Панели 0..Delivered-1 уже переданы в onPanelReady.
type AbortError struct {
	Index     int
	Delivered int
	Err       error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("%s at panel %d (%d delivered): %v", ErrPipelineAborted.Error(), e.Index, e.Delivered, e.Err)
}

// Unwrap дает errors.Is совпадать и с ErrPipelineAborted, и с исходной ошибкой провайдера.
func (e *AbortError) Unwrap() []error {
	return []error{ErrPipelineAborted, e.Err}
}
