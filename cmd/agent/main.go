package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// errBatchFailed makes the process exit non-zero without printing usage.
var errBatchFailed = errors.New("batch finished with failures")

func main() {
	rootCmd := &cobra.Command{
		Use:           "agent",
		Short:         "Daily accountability agent",
		Long:          "Operator commands for the daily check-in and verification jobs. Intended to be run from cron.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	checkinsCmd := &cobra.Command{
		Use:   "checkins",
		Short: "Send today's check-in email to every active user",
		RunE:  runCheckins,
	}
	checkinsCmd.Flags().Bool("force", false, "Send even when it is a weekend for the user")

	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify GitHub activity and send summaries",
		RunE:  runVerify,
	}
	verifyCmd.Flags().String("date", "", "Date to verify (YYYY-MM-DD), defaults to each user's today")
	verifyCmd.Flags().String("email", "", "Only verify this user")
	verifyCmd.Flags().Bool("force", false, "Run even when today is a weekend")
	verifyCmd.Flags().Bool("previous", false, "Verify the previous weekday, e.g. from a morning run")
	verifyCmd.Flags().Int("min-required", 0, "Override the minimum activity threshold")

	seedCmd := &cobra.Command{
		Use:   "seed-user",
		Short: "Add or update a user",
		RunE:  runSeedUser,
	}
	seedCmd.Flags().String("email", "", "Email address")
	seedCmd.Flags().String("github-username", "", "GitHub username")
	seedCmd.Flags().String("github-token", "", "GitHub personal access token")
	seedCmd.Flags().String("timezone", "", "IANA time zone, defaults to TIMEZONE")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show recent verification stats for a user",
		RunE:  runStats,
	}
	statsCmd.Flags().String("email", "", "Email address")
	statsCmd.Flags().Int("days", 7, "Number of days to include")
	_ = statsCmd.MarkFlagRequired("email")

	deactivateCmd := &cobra.Command{
		Use:   "deactivate",
		Short: "Stop check-ins and verification for a user",
		RunE:  runDeactivate,
	}
	deactivateCmd.Flags().String("email", "", "Email address")
	_ = deactivateCmd.MarkFlagRequired("email")

	rootCmd.AddCommand(checkinsCmd, verifyCmd, seedCmd, statsCmd, deactivateCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errBatchFailed) {
			printError(err.Error())
		}
		stop()
		os.Exit(1)
	}
}
