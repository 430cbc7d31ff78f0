// Command reconcile prints the support queue of paid submissions that never
// reached SUBMITTED, lists orphaned payments and can run one reaper sweep.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"filingdesk/internal/app/config"
	"filingdesk/internal/app/dsn"
	"filingdesk/internal/app/reaper"
	"filingdesk/internal/app/repository"

	"github.com/AlecAivazis/survey/v2"
	"github.com/sirupsen/logrus"
)

func main() {
	olderThan := flag.Duration("older-than", 0, "stuck threshold (defaults to Reaper.StuckAfter)")
	reap := flag.Bool("reap", false, "expire stale unpaid submissions")
	yes := flag.Bool("yes", false, "do not ask for confirmation")
	flag.Parse()

	cfg, err := config.NewConfig()
	if err != nil {
		logrus.Fatal(err)
	}
	dsnStr := cfg.DSN
	if dsnStr == "" {
		dsnStr = dsn.FromEnv()
	}
	if dsnStr == "" {
		logrus.Fatal("DSN string is empty. Check your .env file")
	}

	repo, err := repository.New(dsnStr)
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}

	ctx := context.Background()
	threshold := cfg.Reaper.StuckAfter
	if *olderThan > 0 {
		threshold = *olderThan
	}

	stuck, err := repo.ListStuckPaid(ctx, time.Now().Add(-threshold))
	if err != nil {
		logrus.Fatalf("Failed to list submissions: %v", err)
	}

	fmt.Printf("Paid submissions not submitted for %s: %d\n", threshold, len(stuck))
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tOWNER\tPLAN\tORDER\tPAYMENT\tUPDATED")
	for _, sub := range stuck {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\n", sub.ID, sub.OwnerID, sub.PlanKey,
			deref(sub.OrderID), deref(sub.PaymentID), sub.UpdatedAt.Format(time.RFC3339))
	}
	_ = w.Flush()

	orphans, err := repo.ListOrphanPayments(ctx)
	if err != nil {
		logrus.Fatalf("Failed to list orphan payments: %v", err)
	}
	fmt.Printf("\nCaptured payments held for refund or manual attach: %d\n", len(orphans))
	w = tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SUBMISSION\tORDER\tPAYMENT\tAMOUNT\tCAPTURED")
	for _, order := range orphans {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", order.SubmissionID, order.OrderID,
			deref(order.PaymentID), order.Amount, order.UpdatedAt.Format(time.RFC3339))
	}
	_ = w.Flush()

	if !*reap {
		return
	}
	if !*yes {
		confirmed := false
		prompt := &survey.Confirm{Message: "Expire stale unpaid submissions now?"}
		if err := survey.AskOne(prompt, &confirmed); err != nil || !confirmed {
			fmt.Println("Aborted")
			return
		}
	}

	report, err := reaper.New(repo, cfg.Reaper).Sweep(ctx)
	if err != nil {
		logrus.Fatalf("Sweep failed: %v", err)
	}
	fmt.Printf("Expired drafts: %d, expired unpaid orders: %d\n", report.DraftsExpired, report.PaymentsExpired)
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
