package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/shiroonigami23-ui/ecoroute/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.Start(ctx, app.StagePlanner)
	if err != nil {
		log.Fatalf("route-planner startup error: %v", err)
	}
	defer rt.Close()

	graph, err := rt.Graph()
	if err != nil {
		log.Fatalf("route-planner port graph error: %v", err)
	}
	reasoner, err := rt.Reasoner()
	if err != nil {
		log.Fatalf("route-planner reasoner error: %v", err)
	}

	rt.ServeMetrics(ctx)

	rt.Logger.Info("route-planner ready", "ports", len(graph.Nodes()), "audit_topic", rt.Config.QueueCarbonAudit)
	if err := rt.PlannerWorker(graph, reasoner).Run(ctx); err != nil {
		log.Fatalf("route-planner worker error: %v", err)
	}
	rt.Logger.Info("route-planner shutting down")
}
