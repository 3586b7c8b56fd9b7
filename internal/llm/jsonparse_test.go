package llm

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{
			name:     "plain object",
			input:    `{"agent_type": "code_reviewer"}`,
			expected: `{"agent_type":"code_reviewer"}`,
		},
		{
			name:     "markdown fenced",
			input:    "```json\n{\"a\": 1}\n```",
			expected: `{"a":1}`,
		},
		{
			name:     "prose around object",
			input:    "Here you go:\n{\"a\": [1, 2]}\nHope that helps.",
			expected: `{"a":[1,2]}`,
		},
		{
			name:     "top-level array",
			input:    `[{"q": "x"}, {"q": "y"}]`,
			expected: `[{"q":"x"},{"q":"y"}]`,
		},
		{
			name:     "trailing comma repaired",
			input:    `{"a": 1, "b": 2,}`,
			expected: `{"a":1,"b":2}`,
		},
		{
			name:     "truncated object closed",
			input:    `{"a": "hello`,
			expected: `{"a":"hello"}`,
		},
		{
			name:     "raw newline in string escaped",
			input:    "{\"text\": \"line one\nline two\"}",
			expected: `{"text":"line one\nline two"}`,
		},
		{
			name:     "single quoted keys",
			input:    `{'a': 1}`,
			expected: `{"a":1}`,
		},
		{
			name:     "json string holding json",
			input:    `"{\"text\": \"hi\"}"`,
			expected: `{"text":"hi"}`,
		},
		{
			name:     "bare json string",
			input:    `"just an answer"`,
			expected: `"just an answer"`,
		},
		{name: "empty", input: "   ", wantErr: true},
		{name: "no json", input: "I cannot help with that.", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, tt.expected, string(got))
		})
	}
}

func TestExtractJSON_NoJSONSentinel(t *testing.T) {
	_, err := ExtractJSON("nothing structured here")
	assert.True(t, errors.Is(err, ErrNoJSON))
}

func TestStructuredObject(t *testing.T) {
	obj, err := AsObject(json.RawMessage(`{"name":"x","count":3,"tags":["a"],"gone":null,"bad":"three"}`))
	require.NoError(t, err)

	name, ok := Field[string](obj, "name")
	assert.True(t, ok)
	assert.Equal(t, "x", name)

	_, ok = Field[string](obj, "gone")
	assert.False(t, ok, "null counts as absent")

	_, ok = Field[int](obj, "bad")
	assert.False(t, ok, "wrong type is not ok")

	tags, ok := FirstField[[]string](obj, "labels", "tags")
	assert.True(t, ok)
	assert.Equal(t, []string{"a"}, tags)

	_, err = AsObject(json.RawMessage(`[1]`))
	assert.Error(t, err)

	items, err := AsArray(json.RawMessage(` [1, {"a":2}] `))
	require.NoError(t, err)
	assert.Len(t, items, 2)

	_, err = AsArray(json.RawMessage(`{"a":1}`))
	assert.Error(t, err)
}
