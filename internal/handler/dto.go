package handler

import "github.com/Krisp140/sebi/internal/domain"

// promptRequest тело запросов с промптом.
type promptRequest struct {
	Prompt string `json:"prompt"`
}

type storyResult struct {
	Comics domain.Story `json:"comics"`
}

// storyResponse ответ /api/generate_plot. Message заполняется, когда история пустая или некорректная.
type storyResponse struct {
	Result  storyResult `json:"result"`
	Message string      `json:"message,omitempty"`
}

type imageResponse struct {
	ImageURL string `json:"imageUrl"`
}
