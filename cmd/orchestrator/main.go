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

	rt, err := app.Start(ctx, app.StageRouter)
	if err != nil {
		log.Fatalf("orchestrator startup error: %v", err)
	}
	defer rt.Close()

	rt.ServeMetrics(ctx)

	worker := rt.RouterWorker()
	if err := worker.Run(ctx); err != nil {
		log.Fatalf("orchestrator worker error: %v", err)
	}
	rt.Logger.Info("orchestrator shutting down")
}
