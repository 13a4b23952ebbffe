package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiroonigami23-ui/ecoroute/internal/contracts"
	"github.com/shiroonigami23-ui/ecoroute/internal/emissions"
	"github.com/shiroonigami23-ui/ecoroute/internal/knowledge"
	"github.com/shiroonigami23-ui/ecoroute/internal/logging"
	"github.com/shiroonigami23-ui/ecoroute/internal/mq"
	"github.com/shiroonigami23-ui/ecoroute/internal/reasoning"
	"github.com/shiroonigami23-ui/ecoroute/internal/storage"
)

const auditQuery = "EU ETS shipping emissions caps 2025"

type failingEstimator struct{}

func (failingEstimator) Estimate(context.Context, float64, float64) (emissions.Estimate, error) {
	return emissions.Estimate{}, errors.New("estimator offline")
}

type failingRetriever struct{}

func (failingRetriever) Query(context.Context, string, int) ([]knowledge.Document, error) {
	return nil, errors.New("knowledge base offline")
}

type stubExplainer struct {
	text string
	err  error
	got  []reasoning.AuditRequest
}

func (s *stubExplainer) ExplainAudit(_ context.Context, req reasoning.AuditRequest) (string, error) {
	s.got = append(s.got, req)
	return s.text, s.err
}

func auditTask() contracts.CarbonAuditTask {
	return contracts.CarbonAuditTask{
		TaskType:        contracts.TaskCarbonAudit,
		ShipmentID:      "e2e-test-shipment",
		PlanID:          "plan-1",
		CargoWeightTons: 1000,
		RouteOptions: []contracts.RouteOption{
			{RouteName: "Standard Route", DistanceKm: 19030, CarbonKg: 285450},
			{RouteName: "Via Cape of Good Hope", DistanceKm: 26600, CarbonKg: 399000},
		},
		Recommendation: "Standard Route",
	}
}

func newStage(est emissions.Estimator, ret knowledge.Retriever, exp Explainer, store ReportStore) *Stage {
	return NewStage(est, ret, exp, store, Config{CapKg: 400000, Query: auditQuery, TopK: 2}, logging.Discard())
}

func TestAuditStoresVerdictWithContext(t *testing.T) {
	store := storage.NewMemoryStore()
	exp := &stubExplainer{text: "Standard Route keeps emissions under the EU ETS cap."}
	stage := newStage(emissions.NewModel(emissions.DefaultFactor), knowledge.NewMemoryRetriever(knowledge.ComplianceCorpus...), exp, store)

	report, err := stage.Audit(context.Background(), auditTask())
	require.NoError(t, err)
	assert.NotEmpty(t, report.ID)
	assert.True(t, report.Compliant)
	assert.Equal(t, "Standard Route", report.RecommendedRoute)
	assert.Equal(t, exp.text, report.Rationale)
	assert.Empty(t, report.RawOutput)
	assert.Len(t, report.Sources, 2)
	assert.Equal(t, "EU Commission Directive 2023/959", report.Sources[0])

	require.Len(t, report.Assessments, 2)
	assert.InDelta(t, 285450.0, report.Assessments[0].CarbonKg, 1e-6)
	assert.Equal(t, emissions.SourceModel, report.Assessments[0].EstimateSource)
	assert.InDelta(t, 399000.0, report.Assessments[1].CarbonKg, 1e-6)
	assert.True(t, report.Assessments[1].Compliant)

	require.Len(t, exp.got, 1)
	assert.Len(t, exp.got[0].Context, 2)
	assert.Equal(t, 400000.0, exp.got[0].CapKg)

	saved, err := store.AuditReports(context.Background(), "e2e-test-shipment", 10)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, report.ID, saved[0].ID)
	assert.Equal(t, "plan-1", saved[0].PlanID)
}

func TestAuditExplainerFailureStillPersists(t *testing.T) {
	store := storage.NewMemoryStore()
	exp := &stubExplainer{err: &reasoning.ParseError{Raw: "no verdict here"}}
	stage := newStage(emissions.NewModel(0), knowledge.NewMemoryRetriever(knowledge.ComplianceCorpus...), exp, store)

	report, err := stage.Audit(context.Background(), auditTask())
	require.NoError(t, err)
	assert.Contains(t, report.Rationale, "lowest-emission compliant option")
	assert.Contains(t, report.Rationale, "Compliance context:")
	assert.NotEmpty(t, report.RawOutput)

	saved, err := store.AuditReports(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Len(t, saved, 1)
}

func TestAuditRetrievalFailureIsNoted(t *testing.T) {
	store := storage.NewMemoryStore()
	exp := &stubExplainer{text: "Standard Route is compliant."}
	stage := newStage(emissions.NewModel(0), failingRetriever{}, exp, store)

	report, err := stage.Audit(context.Background(), auditTask())
	require.NoError(t, err)
	assert.Empty(t, report.Sources)
	assert.True(t, strings.HasPrefix(report.Rationale, exp.text))
	assert.Contains(t, report.Rationale, "could not be retrieved")
}

func TestAuditEstimatorFailureUsesPlanFigures(t *testing.T) {
	store := storage.NewMemoryStore()
	stage := NewStage(failingEstimator{}, nil, nil, store, Config{CapKg: 300000}, logging.Discard())

	report, err := stage.Audit(context.Background(), auditTask())
	require.NoError(t, err)
	require.Len(t, report.Assessments, 2)
	assert.Equal(t, SourcePlan, report.Assessments[0].EstimateSource)
	assert.Equal(t, 285450.0, report.Assessments[0].CarbonKg)
	assert.True(t, report.Compliant)
	assert.False(t, report.Assessments[1].Compliant)
	assert.Contains(t, report.Rationale, "No compliance context was retrieved")
}

func TestAuditNothingCompliant(t *testing.T) {
	stage := NewStage(emissions.NewModel(0), nil, nil, storage.NewMemoryStore(), Config{CapKg: 100000}, logging.Discard())

	report, err := stage.Audit(context.Background(), auditTask())
	require.NoError(t, err)
	assert.False(t, report.Compliant)
	assert.Equal(t, "Standard Route", report.RecommendedRoute)
	assert.Contains(t, report.Rationale, "No option meets")
}

func TestAuditRedeliveryAppendsReports(t *testing.T) {
	store := storage.NewMemoryStore()
	stage := newStage(emissions.NewModel(0), knowledge.NewMemoryRetriever(knowledge.ComplianceCorpus...), nil, store)

	body, err := jsonBody(auditTask())
	require.NoError(t, err)
	for range 2 {
		require.NoError(t, stage.Handle(context.Background(), &mq.Message{Topic: "agent:task:carbon_audit", Body: body}))
	}

	saved, err := store.AuditReports(context.Background(), "e2e-test-shipment", 10)
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.NotEqual(t, saved[0].ID, saved[1].ID)
	for _, r := range saved {
		assert.Equal(t, "plan-1", r.PlanID)
		assert.Equal(t, "Standard Route", r.RecommendedRoute)
		assert.Len(t, r.Assessments, 2)
		assert.NotEmpty(t, r.Rationale)
	}
}

func TestHandleRejectedTaskLeavesReport(t *testing.T) {
	store := storage.NewMemoryStore()
	stage := newStage(emissions.NewModel(0), nil, nil, store)

	err := stage.Handle(context.Background(), &mq.Message{Body: []byte(`{"task_type":"CARBON_AUDIT","shipment_id":"s-9","route_options":[]}`)})
	assert.ErrorIs(t, err, mq.ErrMalformed)

	saved, err := store.AuditReports(context.Background(), "s-9", 10)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.False(t, saved[0].Compliant)
	assert.Contains(t, saved[0].RawOutput, "route_options")
}

func TestHandleUnidentifiableTaskIsDropped(t *testing.T) {
	store := storage.NewMemoryStore()
	stage := newStage(emissions.NewModel(0), nil, nil, store)

	err := stage.Handle(context.Background(), &mq.Message{Body: []byte(`not json`)})
	assert.ErrorIs(t, err, mq.ErrMalformed)

	saved, err := store.AuditReports(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Empty(t, saved)
}

func jsonBody(v any) ([]byte, error) {
	return json.Marshal(v)
}
