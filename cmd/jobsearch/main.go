// jobsearch extracts Swedish job ads from the JobTech search API, loads
// them into a warehouse, rebuilds the analysis marts and serves the
// dashboard.
//
//	jobsearch extract             stream ads as JSON lines
//	jobsearch load                run the extract/load pipeline once
//	jobsearch marts refresh|show  rebuild or inspect the marts
//	jobsearch serve               dashboard, gRPC health and mart sensor
//	jobsearch schedule            daily cron load plus mart sensor
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ZYusuff/hr-analytics-cloud-deployment/cmd/jobsearch/commands"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	commands.ExecuteContext(ctx)
}
