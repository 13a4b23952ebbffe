package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/shiroonigami23-ui/ecoroute/internal/app"
)

func main() {
	count := flag.Int("shipments", 40, "number of random shipments to generate besides the scenario shipment")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.Start(ctx, "seed")
	if err != nil {
		log.Fatalf("seed startup error: %v", err)
	}
	defer rt.Close()

	if err := rt.Seed(ctx, *count); err != nil {
		log.Fatalf("seed error: %v", err)
	}
}
