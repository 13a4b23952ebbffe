package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shiroonigami23-ui/ecoroute/internal/app"
)

func main() {
	timeout := flag.Duration("timeout", 2*time.Minute, "how long to wait for the plan and the audit report")
	inProcess := flag.Bool("in-process", false, "run every stage inside this process (implied by STORE_DRIVER=memory)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.Start(ctx, "simulate")
	if err != nil {
		log.Fatalf("simulate startup error: %v", err)
	}
	defer rt.Close()

	if *inProcess || rt.Pool == nil {
		go func() {
			if err := rt.Pipeline(ctx); err != nil {
				rt.Logger.Error("in-process pipeline stopped", "error", err)
			}
		}()
	}

	res, err := rt.RunScenario(ctx, *timeout, 2*time.Second)
	if err != nil {
		log.Fatalf("simulate: %v", err)
	}

	fmt.Printf("plan %s: %d options, recommended %q\n", res.Plan.ID, len(res.Plan.Options), res.Plan.Recommendation)
	fmt.Printf("audit %s: compliant=%t recommended %q\n", res.Report.ID, res.Report.Compliant, res.Report.RecommendedRoute)
	fmt.Println(res.Report.Rationale)
}
