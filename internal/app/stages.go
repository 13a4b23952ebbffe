package app

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/shiroonigami23-ui/ecoroute/internal/audit"
	"github.com/shiroonigami23-ui/ecoroute/internal/emissions"
	"github.com/shiroonigami23-ui/ecoroute/internal/knowledge"
	"github.com/shiroonigami23-ui/ecoroute/internal/llm"
	"github.com/shiroonigami23-ui/ecoroute/internal/orchestrator"
	"github.com/shiroonigami23-ui/ecoroute/internal/planning"
	"github.com/shiroonigami23-ui/ecoroute/internal/reasoning"
	"github.com/shiroonigami23-ui/ecoroute/internal/risk"
	"github.com/shiroonigami23-ui/ecoroute/internal/routegraph"
	"github.com/shiroonigami23-ui/ecoroute/internal/weather"
)

// Stage names double as the stage label on task metrics.
const (
	StageRouter  = "orchestrator"
	StagePlanner = "route-planner"
	StageAuditor = "carbon-auditor"
)

func (rt *Runtime) tracer() trace.Tracer {
	if rt.Telemetry != nil && rt.Telemetry.Tracer != nil {
		return rt.Telemetry.Tracer
	}
	return noop.NewTracerProvider().Tracer(rt.Service)
}

func (rt *Runtime) Graph() (*routegraph.Graph, error) {
	if rt.Config.PortGraphFile != "" {
		return routegraph.Load(rt.Config.PortGraphFile)
	}
	return routegraph.Default()
}

func (rt *Runtime) Reasoner() (reasoning.Reasoner, error) {
	if rt.Config.Reasoner != "llm" {
		var forecaster reasoning.Forecaster
		if rt.Config.OpenMeteoURL != "" {
			forecaster = weather.NewClient(rt.Config.OpenMeteoURL, rt.Logger)
		}
		return reasoning.NewRules(forecaster, rt.Logger), nil
	}

	primary, err := rt.provider(rt.Config.LLMProvider)
	if err != nil {
		return nil, err
	}
	client := &llm.Client{
		Primary:       primary,
		FallbackModel: rt.Config.FallbackModel,
		Tracer:        rt.tracer(),
		Metrics:       rt.Metrics,
	}
	if rt.Config.FallbackProvider != "" {
		if client.Fallback, err = rt.provider(rt.Config.FallbackProvider); err != nil {
			return nil, fmt.Errorf("fallback: %w", err)
		}
	}

	return &reasoning.LLM{
		Client:      client,
		Model:       rt.Config.LLMModel,
		MaxTokens:   rt.Config.LLMMaxTokens,
		Temperature: rt.Config.LLMTemperature,
	}, nil
}

func (rt *Runtime) provider(name string) (llm.Provider, error) {
	switch name {
	case "anthropic":
		return llm.NewAnthropicProvider(rt.Config.AnthropicAPIKey), nil
	case "openai":
		return llm.NewOpenAIProvider(rt.Config.OpenAIAPIKey), nil
	case "ollama":
		return llm.NewOllamaProvider(rt.Config.OllamaBaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", name)
	}
}

// Knowledge returns the pgvector knowledge base when a database is open and
// an in-memory copy of the compliance corpus otherwise.
func (rt *Runtime) Knowledge() knowledge.Base {
	if rt.Pool == nil {
		return knowledge.NewMemoryRetriever(knowledge.ComplianceCorpus...)
	}
	var embedder llm.Embedder
	if rt.Config.OpenAIAPIKey != "" {
		embedder = llm.NewOpenAIEmbedder(rt.Config.OpenAIAPIKey, rt.Config.EmbeddingModel)
	}
	return knowledge.NewPGRetriever(rt.Pool, embedder, rt.Logger)
}

func (rt *Runtime) Estimator() emissions.Estimator {
	model := emissions.NewModel(rt.Config.EmissionFactor)
	return emissions.NewCarbonInterface(rt.Config.CarbonInterfaceURL, rt.Config.CarbonInterfaceAPIKey, model, rt.Logger)
}

func (rt *Runtime) RiskStage(assessor risk.Assessor) *risk.Stage {
	return risk.NewStage(rt.Store, assessor, rt.Publisher(), risk.Config{
		Threshold:     rt.Config.RiskThreshold,
		Topic:         rt.Config.QueueHighPriority,
		ShipmentDelay: rt.Config.ScanShipmentDelay,
		CycleDelay:    rt.Config.ScanCycleDelay,
		EmptyDelay:    rt.Config.ScanEmptyDelay,
	}, rt.Logger.With("stage", "risk-engine"), rt.Metrics)
}

// RouterWorker drains the high priority queue before the normal one.
func (rt *Runtime) RouterWorker() *orchestrator.Worker {
	router := &orchestrator.Router{
		Disruptions: rt.Store,
		Publisher:   rt.Publisher(),
		PlanTopic:   rt.Config.QueueRoutePlanner,
		Threshold:   rt.Config.RiskThreshold,
		Logger:      rt.Logger.With("stage", StageRouter),
	}
	return rt.Worker(StageRouter, router.Handle, rt.Config.QueueHighPriority, rt.Config.QueueNormalPriority)
}

func (rt *Runtime) PlannerWorker(graph *routegraph.Graph, advisor planning.Advisor) *orchestrator.Worker {
	planner := &planning.Planner{
		Graph:    graph,
		Model:    emissions.NewModel(rt.Config.EmissionFactor),
		SpeedKmh: rt.Config.AverageSpeedKmh,
	}
	stage := planning.NewStage(planner, rt.Store, advisor, rt.Publisher(), planning.Config{
		AuditTopic:       rt.Config.QueueCarbonAudit,
		DefaultCargoTons: rt.Config.DefaultCargoWeightTons,
	}, rt.Logger.With("stage", StagePlanner), rt.Metrics)
	return rt.Worker(StagePlanner, stage.Handle, rt.Config.QueueRoutePlanner)
}

func (rt *Runtime) AuditorWorker(estimator emissions.Estimator, retriever knowledge.Retriever, explainer audit.Explainer) *orchestrator.Worker {
	stage := audit.NewStage(estimator, retriever, explainer, rt.Store, audit.Config{
		CapKg:            rt.Config.AuditEmissionsCapKg,
		Query:            rt.Config.AuditQuery,
		TopK:             rt.Config.AuditTopK,
		DefaultCargoTons: rt.Config.DefaultCargoWeightTons,
	}, rt.Logger.With("stage", StageAuditor))
	return rt.Worker(StageAuditor, stage.Handle, rt.Config.QueueCarbonAudit)
}

// Pipeline runs every stage in this process until ctx ends. Used by the
// simulator and for single-process deployments.
func (rt *Runtime) Pipeline(ctx context.Context) error {
	graph, err := rt.Graph()
	if err != nil {
		return fmt.Errorf("load port graph: %w", err)
	}
	reasoner, err := rt.Reasoner()
	if err != nil {
		return fmt.Errorf("build reasoner: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return rt.RiskStage(reasoner).Run(ctx) })
	for _, w := range []*orchestrator.Worker{
		rt.RouterWorker(),
		rt.PlannerWorker(graph, reasoner),
		rt.AuditorWorker(rt.Estimator(), rt.Knowledge(), reasoner),
	} {
		g.Go(func() error { return w.Run(ctx) })
	}
	return g.Wait()
}
