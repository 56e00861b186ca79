package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"bitbucket.org/causeway/donors_backend/config"
	"bitbucket.org/causeway/donors_backend/workflow"
	"github.com/sirupsen/logrus"
)

// Materializes installment schedules for plans imported without any rows.
// Idempotent: plans that already have a schedule are skipped.
func main() {
	planID := flag.Int("plan-id", 0, "Optional: backfill a single plan")
	dryRun := flag.Bool("dry-run", false, "List how many plans are missing schedules without writing")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := logrus.New()

	generated, skipped, err := workflow.MaterializeMissingSchedules(context.Background(), logger, *planID, *dryRun)
	if err != nil {
		fmt.Fprintf(os.Stderr, "backfill: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("generated %d schedule(s), skipped %d\n", generated, skipped)
}
