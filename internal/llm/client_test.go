package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "bare object",
			in:   `{"a": 1}`,
			want: `{"a": 1}`,
		},
		{
			name: "json fence",
			in:   "Here you go:\n```json\n{\"a\": 1}\n```\nDone.",
			want: `{"a": 1}`,
		},
		{
			name: "plain fence",
			in:   "```\n{\"a\": 1}\n```",
			want: `{"a": 1}`,
		},
		{
			name: "embedded in prose",
			in:   `The result is {"a": {"b": 2}} as requested.`,
			want: `{"a": {"b": 2}}`,
		},
		{
			name: "braces inside strings",
			in:   `note {"text": "uses {braces} inside"} trailing`,
			want: `{"text": "uses {braces} inside"}`,
		},
		{
			name: "leading whitespace",
			in:   "  \n {\"a\": 1}",
			want: `{"a": 1}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.in))
		})
	}
}

func TestFactory_UnknownProvider(t *testing.T) {
	_, err := New(ProviderConfig{Provider: "llama-at-home", APIKey: "k"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestFactory_RequiresKey(t *testing.T) {
	_, err := New(ProviderConfig{Provider: "anthropic"})
	require.Error(t, err)
}

func TestFactory_Defaults(t *testing.T) {
	c, err := New(ProviderConfig{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, defaultAnthropicModel, c.ModelName())

	c, err = New(ProviderConfig{Provider: "openai", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, defaultOpenAIModel, c.ModelName())
}
