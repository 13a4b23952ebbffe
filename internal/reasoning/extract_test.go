package reasoning

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a":1}`, `{"a":1}`},
		{"narrative wrapper", "Here is the plan:\n{\"a\":1}\nLet me know.", `{"a":1}`},
		{"markdown fence", "```json\n{\"a\":{\"b\":[1,2]}}\n```", `{"a":{"b":[1,2]}}`},
		{"braces in strings", `note {"text":"use } and { freely","n":2} tail`, `{"text":"use } and { freely","n":2}`},
		{"escaped quote", `{"q":"say \"}\" now"}`, `{"q":"say \"}\" now"}`},
		{"first object wins", `{"first":true} {"second":true}`, `{"first":true}`},
		{"skips invalid candidate", `{not json} then {"ok":true}`, `{"ok":true}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractJSON(tc.in)
			require.NoError(t, err)
			assert.JSONEq(t, tc.want, string(got))
		})
	}
}

func TestExtractJSONFailures(t *testing.T) {
	for _, in := range []string{"", "no json here", `{"unterminated": 1`, "[1,2,3]"} {
		_, err := ExtractJSON(in)
		require.Error(t, err, in)
		assert.True(t, errors.Is(err, ErrReasoningParse))

		var perr *ParseError
		require.True(t, errors.As(err, &perr))
		assert.Equal(t, in, perr.Raw)
	}
}

func TestDecodeJSON(t *testing.T) {
	got, err := DecodeJSON[RiskAssessment](`Assessment: {"risk_score":0.95,"risk_factors":["Simulated Typhoon"],"recommended_action":"REROUTE","reasoning":"storm"}`)
	require.NoError(t, err)
	assert.Equal(t, 0.95, got.Score)
	assert.Equal(t, []string{"Simulated Typhoon"}, got.Factors)

	_, err = DecodeJSON[RiskAssessment](`{"risk_score":"high"}`)
	assert.ErrorIs(t, err, ErrReasoningParse)
}
