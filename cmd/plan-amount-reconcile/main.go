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

// Repairs plans whose installment amount was imported as zero while the
// total and count survived: sets installment_amount = round(total/count, 2).
func main() {
	dryRun := flag.Bool("dry-run", false, "Report how many plans would be repaired without writing")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := logrus.New()

	affected, err := workflow.ReconcilePlanAmounts(context.Background(), logger, *dryRun)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reconcile: %v\n", err)
		os.Exit(1)
	}
	if *dryRun {
		fmt.Printf("dry run: %d plan(s) need repair\n", affected)
		return
	}
	fmt.Printf("repaired %d plan(s)\n", affected)
}
