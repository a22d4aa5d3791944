package comic

import (
	"errors"

	"github.com/Krisp140/sebi/internal/models"
	"github.com/Krisp140/sebi/internal/pipeline"
	"github.com/Krisp140/sebi/internal/story"
)

// Тексты ошибок, которые видит пользователь.
const (
	MsgNoStory           = "Sorry, I couldn't generate a story for this prompt. Please try a different prompt that's more appropriate for a family-friendly dog adventure!"
	MsgStoryFailed       = "An error occurred while generating the story. Please try again."
	MsgImageFailed       = "Failed to generate image"
	MsgPromptRequired    = "Prompt is required"
	MsgPromptInvalid     = "Prompt is too long"
	MsgAlreadyGenerating = "A comic is already being generated for this session"
)

// UserMessage переводит ошибку генерации в текст для клиента.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, story.ErrPromptRequired):
		return MsgPromptRequired
	case errors.Is(err, story.ErrInvalidPrompt):
		return MsgPromptInvalid
	case errors.Is(err, models.ErrGenerationInProgress):
		return MsgAlreadyGenerating
	case errors.Is(err, story.ErrInvalidStoryJSON):
		return MsgStoryFailed
	case errors.Is(err, story.ErrMalformedStory):
		return MsgNoStory
	case errors.Is(err, pipeline.ErrPipelineAborted):
		return MsgImageFailed
	default:
		return MsgStoryFailed
	}
}
