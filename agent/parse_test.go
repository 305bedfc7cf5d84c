package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalLenient_PlainJSON(t *testing.T) {
	var parsed struct {
		Score float64 `json:"score"`
	}
	err := unmarshalLenient(`{"score": 7.5}`, &parsed)
	require.NoError(t, err)
	assert.Equal(t, 7.5, parsed.Score)
}

func TestUnmarshalLenient_CodeFencedJSON(t *testing.T) {
	raw := "```json\n{\"sufficient\": true, \"missing\": \"\"}\n```"
	var parsed struct {
		Sufficient bool `json:"sufficient"`
	}
	err := unmarshalLenient(raw, &parsed)
	require.NoError(t, err)
	assert.True(t, parsed.Sufficient)
}

func TestUnmarshalLenient_JSONBuriedInProse(t *testing.T) {
	raw := `Sure! Here is the result you asked for:
{"collections": ["docs", "api"], "reasoning": "both look relevant"}
Let me know if you need anything else.`

	var parsed struct {
		Collections []string `json:"collections"`
	}
	err := unmarshalLenient(raw, &parsed)
	require.NoError(t, err)
	assert.Equal(t, []string{"docs", "api"}, parsed.Collections)
}

func TestUnmarshalLenient_Array(t *testing.T) {
	var subs []string
	err := unmarshalLenient("The sub-questions are: [\"first\", \"second\"]", &subs)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, subs)
}

func TestUnmarshalLenient_NoPayload(t *testing.T) {
	var parsed struct{}
	assert.Error(t, unmarshalLenient("no json here at all", &parsed))
	assert.Error(t, unmarshalLenient("", &parsed))
	assert.Error(t, unmarshalLenient("   \n\t ", &parsed))
}

func TestUnmarshalLenient_UnbalancedJSON(t *testing.T) {
	var parsed struct{}
	assert.Error(t, unmarshalLenient(`{"open": true`, &parsed))
}

func TestExtractJSON_IgnoresBracesInsideStrings(t *testing.T) {
	raw := `prefix {"feedback": "use {braces} and \"quotes\" carefully", "grounded": false} suffix`

	payload, ok := extractJSON(raw)
	require.True(t, ok)

	var parsed struct {
		Feedback string `json:"feedback"`
		Grounded bool   `json:"grounded"`
	}
	require.NoError(t, unmarshalLenient(payload, &parsed))
	assert.Equal(t, `use {braces} and "quotes" carefully`, parsed.Feedback)
	assert.False(t, parsed.Grounded)
}

func TestFirstLine_PicksFirstNonEmpty(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "single line", in: "kubernetes pod limits", want: "kubernetes pod limits"},
		{name: "leading blank lines", in: "\n\n  effective query  \nexplanation below", want: "effective query"},
		{name: "strips double quotes", in: `"quoted query"`, want: "quoted query"},
		{name: "strips single quotes", in: "'quoted query'", want: "quoted query"},
		{name: "fenced response", in: "```\nthe query\n```", want: "the query"},
		{name: "empty", in: "   \n  ", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, firstLine(tt.in))
		})
	}
}
