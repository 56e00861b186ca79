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

// Re-partitions installment statuses from plan state and today's date:
// paid up to payments_made, overdue past due, pending otherwise.
// Intended as a nightly cron.
func main() {
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := logrus.New()

	affected, err := workflow.RefreshInstallmentStatuses(context.Background(), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "refresh: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("updated %d installment(s)\n", affected)
}
