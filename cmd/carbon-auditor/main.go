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

	rt, err := app.Start(ctx, app.StageAuditor)
	if err != nil {
		log.Fatalf("carbon-auditor startup error: %v", err)
	}
	defer rt.Close()

	reasoner, err := rt.Reasoner()
	if err != nil {
		log.Fatalf("carbon-auditor reasoner error: %v", err)
	}

	rt.ServeMetrics(ctx)

	rt.Logger.Info("carbon-auditor ready", "cap_kg", rt.Config.AuditEmissionsCapKg, "top_k", rt.Config.AuditTopK)
	if err := rt.AuditorWorker(rt.Estimator(), rt.Knowledge(), reasoner).Run(ctx); err != nil {
		log.Fatalf("carbon-auditor worker error: %v", err)
	}
	rt.Logger.Info("carbon-auditor shutting down")
}
