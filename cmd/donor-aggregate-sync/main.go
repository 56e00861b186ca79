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

// Re-derives the donor projection (active plan link + cached schedule fields
// + payment status) and the financial totals for every donor, or one donor
// with --donor-id. Each donor syncs in its own transaction.
func main() {
	donorID := flag.Int("donor-id", 0, "Optional: sync a single donor")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := logrus.New()

	synced, failed, err := workflow.SyncAllDonorAggregates(context.Background(), logger, *donorID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sync: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("synced %d donor(s), %d failed\n", synced, failed)
	if failed > 0 {
		os.Exit(1)
	}
}
