package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/shiroonigami23-ui/ecoroute/internal/api"
	"github.com/shiroonigami23-ui/ecoroute/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.Start(ctx, "ingest")
	if err != nil {
		log.Fatalf("ingest startup error: %v", err)
	}
	defer rt.Close()

	in := api.Ingest{
		Publisher:      rt.Publisher(),
		Shipments:      rt.Store,
		HighPriority:   rt.Config.QueueHighPriority,
		NormalPriority: rt.Config.QueueNormalPriority,
		Logger:         rt.Logger,
	}

	if rt.Config.SimulatorTick > 0 {
		go in.RunSimulator(ctx, rt.Config.SimulatorTick)
	}
	rt.ServeMetrics(ctx)

	if err := app.Serve(ctx, rt.Config.HTTPAddr, api.NewIngestRouter(in, rt.Metrics), rt.Logger); err != nil {
		log.Fatalf("ingest server error: %v", err)
	}
}
