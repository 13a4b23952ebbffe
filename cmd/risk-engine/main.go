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

	rt, err := app.Start(ctx, "risk-engine")
	if err != nil {
		log.Fatalf("risk-engine startup error: %v", err)
	}
	defer rt.Close()

	reasoner, err := rt.Reasoner()
	if err != nil {
		log.Fatalf("risk-engine reasoner error: %v", err)
	}

	rt.ServeMetrics(ctx)

	rt.Logger.Info("risk-engine scanning shipments", "topic", rt.Config.QueueHighPriority, "threshold", rt.Config.RiskThreshold)
	if err := rt.RiskStage(reasoner).Run(ctx); err != nil {
		rt.Logger.Error("risk-engine stopped", "error", err)
	}
}
