package reasoning

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiroonigami23-ui/ecoroute/internal/contracts"
	"github.com/shiroonigami23-ui/ecoroute/internal/llm"
)

type cannedGenerator struct {
	content string
	err     error
	last    llm.GenerateRequest
}

func (g *cannedGenerator) Generate(_ context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
	g.last = req
	if g.err != nil {
		return nil, g.err
	}
	return &llm.GenerateResponse{Content: g.content}, nil
}

func TestLLMAssessRisk(t *testing.T) {
	gen := &cannedGenerator{content: "Sure.\n{\"risk_score\":0.9,\"risk_factors\":[\"Typhoon\"],\"recommended_action\":\"REROUTE\",\"reasoning\":\"storm\"}"}
	r := &LLM{Client: gen, Model: "m", MaxTokens: 256}

	got, err := r.AssessRisk(context.Background(), contracts.Shipment{ID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, 0.9, got.Score)
	assert.Equal(t, "risk", gen.last.Stage)
	assert.Contains(t, gen.last.Prompt, `"id":"s1"`)
}

func TestLLMAdvisePlan(t *testing.T) {
	gen := &cannedGenerator{content: `{"options":[{"route_name":"Constrained Route","path":["Shanghai","Panama Canal","Rotterdam"],"distance_km":25600}],"recommendation":"Constrained Route"}`}
	r := &LLM{Client: gen, Model: "m"}

	advice, err := r.AdvisePlan(context.Background(), PlanRequest{Shipment: contracts.Shipment{ID: "s1"}})
	require.NoError(t, err)
	require.Len(t, advice.Options, 1)
	assert.Equal(t, 25600.0, advice.Options[0].DistanceKm)
	assert.Equal(t, gen.content, advice.Raw)
}

func TestLLMAdvisePlanUnparseable(t *testing.T) {
	for _, content := range []string{"I cannot help with that.", `{"options":[],"recommendation":""}`} {
		gen := &cannedGenerator{content: content}
		r := &LLM{Client: gen, Model: "m"}

		advice, err := r.AdvisePlan(context.Background(), PlanRequest{})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrReasoningParse)
		assert.Equal(t, content, advice.Raw)
	}
}

func TestLLMExplainAudit(t *testing.T) {
	gen := &cannedGenerator{content: "  Standard Route complies with the EU ETS cap.  "}
	r := &LLM{Client: gen, Model: "m"}

	text, err := r.ExplainAudit(context.Background(), AuditRequest{
		ShipmentID: "s1",
		Context:    []string{"EU ETS covers 100% of emissions from 2026."},
		Assessments: []contracts.OptionAssessment{
			{RouteName: "Standard Route", CarbonKg: 285450, Compliant: true},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Standard Route complies with the EU ETS cap.", text)
	assert.Contains(t, gen.last.Prompt, "EU ETS covers")

	gen.err = errors.New("provider down")
	_, err = r.ExplainAudit(context.Background(), AuditRequest{})
	assert.Error(t, err)
}
