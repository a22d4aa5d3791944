package story

import (
	"errors"
	"testing"

	"github.com/Krisp140/sebi/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStory_Valid(t *testing.T) {
	raw := `{"comics":[
		{"prompt":"sebi brown dog at the beach, realistic style, contrasting colors","caption":"Sebi finds the sea"},
		{"prompt":"sebi brown dog digging, realistic style, contrasting colors","caption":"Sebi digs","mood":"happy"},
		{"prompt":"sebi brown dog sleeping, realistic style, contrasting colors","caption":"Sebi rests"}
	],"title":"ignored"}`

	story, err := ParseStory(raw)
	require.NoError(t, err)
	require.Len(t, story, 3)
	assert.Equal(t, domain.PanelDescriptor{
		Prompt:  "sebi brown dog at the beach, realistic style, contrasting colors",
		Caption: "Sebi finds the sea",
	}, story[0])
	assert.Equal(t, "Sebi digs", story[1].Caption)
	assert.Equal(t, "Sebi rests", story[2].Caption)
}

func TestParseStory_KeepsArbitraryPanelCount(t *testing.T) {
	story, err := ParseStory(`{"comics":[{"prompt":"a","caption":"b"}]}`)
	require.NoError(t, err)
	assert.Len(t, story, 1)
}

func TestParseStory_StripsCodeFence(t *testing.T) {
	raw := "```json\n{\"comics\":[{\"prompt\":\"a\",\"caption\":\"b\"}]}\n```"
	story, err := ParseStory(raw)
	require.NoError(t, err)
	assert.Equal(t, domain.Story{{Prompt: "a", Caption: "b"}}, story)
}

func TestParseStory_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `Here is your comic!`},
		{"truncated", `{"comics":[{"prompt":"a"`},
		{"top level array", `[{"prompt":"a","caption":"b"}]`},
		{"missing comics", `{"panels":[]}`},
		{"comics not array", `{"comics":{"prompt":"a","caption":"b"}}`},
		{"comics null", `{"comics":null}`},
		{"element not object", `{"comics":["a dog"]}`},
		{"missing caption", `{"comics":[{"prompt":"a"}]}`},
		{"missing prompt", `{"comics":[{"caption":"b"}]}`},
		{"prompt not string", `{"comics":[{"prompt":42,"caption":"b"}]}`},
		{"blank caption", `{"comics":[{"prompt":"a","caption":"   "}]}`},
		{"second element invalid", `{"comics":[{"prompt":"a","caption":"b"},{"prompt":"c"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			story, err := ParseStory(tt.raw)
			require.Error(t, err)
			assert.Nil(t, story)
			assert.True(t, errors.Is(err, ErrMalformedStory), "got %v", err)
			assert.False(t, errors.Is(err, ErrEmptyStory))
		})
	}
}

func TestParseStory_InvalidJSONClass(t *testing.T) {
	for _, raw := range []string{`Here is your comic!`, `{"comics":[{"prompt":"a"`, `[{"prompt":"a","caption":"b"}]`} {
		_, err := ParseStory(raw)
		assert.ErrorIs(t, err, ErrInvalidStoryJSON, raw)
		assert.ErrorIs(t, err, ErrMalformedStory, raw)
	}

	for _, raw := range []string{`{"panels":[]}`, `{"comics":[]}`, `{"comics":[{"prompt":"a"}]}`} {
		_, err := ParseStory(raw)
		require.Error(t, err, raw)
		assert.NotErrorIs(t, err, ErrInvalidStoryJSON, raw)
	}
}

func TestParseStory_EmptyComics(t *testing.T) {
	story, err := ParseStory(`{"comics":[]}`)
	require.Error(t, err)
	assert.Empty(t, story)
	assert.True(t, errors.Is(err, ErrEmptyStory))
	assert.True(t, errors.Is(err, ErrMalformedStory))
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFence("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence("```{\"a\":1}```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence("  {\"a\":1}  "))
}
