// refresh-financial-summary recomputes the per-ULB aggregation and reconciles
// it into financial_summaries, the same way GET /financial-summary does.
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//	  go run ./cmd/refresh-financial-summary -grant-type tied -financial-year 2023-24
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"bitbucket.org/mmdatafocus/ulb_finance_backend/config"
	"bitbucket.org/mmdatafocus/ulb_finance_backend/models"
	"bitbucket.org/mmdatafocus/ulb_finance_backend/models/reports"
	"bitbucket.org/mmdatafocus/ulb_finance_backend/utils"
	"bitbucket.org/mmdatafocus/ulb_finance_backend/workflow"
)

type options struct {
	filter  reports.FinancialSummaryFilter
	migrate bool
}

func parseFlags(args []string) (options, error) {
	fs := flag.NewFlagSet("refresh-financial-summary", flag.ContinueOnError)
	cityType := fs.String("city-type", "", "Optional: million-plus | non-million")
	grantType := fs.String("grant-type", "", "Optional: tied | untied | ambient")
	sector := fs.String("sector", "", "Optional: water | sanitation | swm | rejuvenation | others")
	financialYear := fs.String("financial-year", "", "Optional: YYYY, YYYY-YY or YYYY-YYYY, matched against the scheme approval year")
	migrate := fs.Bool("migrate", false, "Run AutoMigrate before refreshing")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	opts := options{
		filter: reports.FinancialSummaryFilter{
			CityType:      strings.TrimSpace(*cityType),
			GrantType:     strings.TrimSpace(*grantType),
			Sector:        strings.TrimSpace(*sector),
			FinancialYear: strings.TrimSpace(*financialYear),
		},
		migrate: *migrate,
	}
	return opts, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	logger := config.NewLogger()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := config.ConnectDatabaseWithRetry(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "database not initialized: %v\n", err)
		os.Exit(1)
	}
	defer config.CloseDatabase(db)

	if opts.migrate {
		if err := models.MigrateTable(db); err != nil {
			fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
			os.Exit(1)
		}
	}

	ctx = utils.SetUserIdInContext(ctx, 0)
	ctx = utils.SetUsernameInContext(ctx, "RefreshFinancialSummary")

	filter := opts.filter
	rows, result, err := workflow.RefreshFinancialSummaries(ctx, db, logger, filter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "refresh failed: %v\n", err)
		os.Exit(1)
	}

	audit := models.NewDBAuditSink(db, logger)
	if len(result.Inserted)+len(result.Updated) > 0 {
		audit.Record(ctx, models.NewAuditLog(ctx, models.AuditActionReconcile, "financial_summaries", "", map[string]any{
			"filter":   filter,
			"inserted": result.Inserted,
			"updated":  result.Updated,
			"failed":   len(result.Failed),
		}))
	}
	_ = audit.Close()

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Printf("Aggregated %d ULBs\n%s\n", len(rows), out)

	if batchErr := result.Err(); batchErr != nil {
		fmt.Fprintln(os.Stderr, batchErr.Error())
		os.Exit(2)
	}
	fmt.Println("Refresh complete")
}
