package story

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Krisp140/sebi/internal/domain"
)

var (
	// ErrMalformedStory ответ модели не соответствует форме {"comics":[{prompt,caption}]}.
	ErrMalformedStory = errors.New("malformed story")
	// ErrInvalidStoryJSON ответ модели не JSON объект. Относится к классу ErrMalformedStory.
	ErrInvalidStoryJSON = fmt.Errorf("%w: invalid JSON", ErrMalformedStory)
	// ErrEmptyStory синтаксически верный ответ без панелей. Относится к классу ErrMalformedStory.
	ErrEmptyStory = fmt.Errorf("%w: comics sequence is empty", ErrMalformedStory)
)

// ParseStory разбирает ответ модели в упорядоченный список панелей.
// Лишние поля игнорируются, порядок панелей сохраняется.
func ParseStory(raw string) (domain.Story, error) {
	cleaned := stripCodeFence(raw)

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStoryJSON, err)
	}

	comicsRaw, ok := envelope["comics"]
	if !ok {
		return nil, fmt.Errorf("%w: missing \"comics\"", ErrMalformedStory)
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(comicsRaw, &elements); err != nil || elements == nil {
		return nil, fmt.Errorf("%w: \"comics\" is not an array", ErrMalformedStory)
	}
	if len(elements) == 0 {
		return nil, ErrEmptyStory
	}

	story := make(domain.Story, 0, len(elements))
	for i, el := range elements {
		panel, err := parsePanel(el)
		if err != nil {
			return nil, fmt.Errorf("%w: panel %d: %v", ErrMalformedStory, i, err)
		}
		story = append(story, panel)
	}
	return story, nil
}

func parsePanel(raw json.RawMessage) (domain.PanelDescriptor, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return domain.PanelDescriptor{}, errors.New("not an object")
	}
	prompt, err := requiredString(fields, "prompt")
	if err != nil {
		return domain.PanelDescriptor{}, err
	}
	caption, err := requiredString(fields, "caption")
	if err != nil {
		return domain.PanelDescriptor{}, err
	}
	return domain.PanelDescriptor{Prompt: prompt, Caption: caption}, nil
}

func requiredString(fields map[string]json.RawMessage, key string) (string, error) {
	raw, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("missing %q", key)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%q is not a string", key)
	}
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%q is empty", key)
	}
	return s, nil
}

// stripCodeFence убирает обертку ```json ... ```, которую модели иногда добавляют
// несмотря на инструкцию.
func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// первая строка: язык (json) или пусто
		if !strings.ContainsAny(s[:nl], "{[") {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}
