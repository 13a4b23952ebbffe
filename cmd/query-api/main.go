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

	rt, err := app.Start(ctx, "query-api")
	if err != nil {
		log.Fatalf("query-api startup error: %v", err)
	}
	defer rt.Close()

	graph, err := rt.Graph()
	if err != nil {
		log.Fatalf("query-api port graph error: %v", err)
	}

	router := api.NewQueryRouter(api.Query{
		Store:    rt.Store,
		Graph:    graph,
		SpeedKmh: rt.Config.AverageSpeedKmh,
	}, rt.Metrics)
	rt.ServeMetrics(ctx)

	if err := app.Serve(ctx, rt.Config.HTTPAddr, router, rt.Logger); err != nil {
		log.Fatalf("query-api server error: %v", err)
	}
}
