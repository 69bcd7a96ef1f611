package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/commitlog/dailyagent/internal/app"
	"github.com/commitlog/dailyagent/internal/calendar"
	"github.com/commitlog/dailyagent/internal/config"
	"github.com/commitlog/dailyagent/internal/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return app.New(ctx, cfg)
}

func runCheckins(cmd *cobra.Command, _ []string) error {
	force, _ := cmd.Flags().GetBool("force")

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	printTitle("Daily check-ins")
	batch := a.Checkins.SendDailyCheckins(cmd.Context(), force)
	if batch.Error != "" {
		return errors.New(batch.Error)
	}

	for _, r := range batch.Results {
		switch r.Outcome {
		case service.CheckinSent:
			printSuccess(fmt.Sprintf("%s  %s", r.UserEmail, r.Date))
		case service.CheckinFailed:
			printError(fmt.Sprintf("%s  %s  %s", r.UserEmail, r.Date, r.Error))
		default:
			printSubtle(fmt.Sprintf("- %s  %s  %s", r.UserEmail, r.Date, r.Outcome))
		}
	}
	printSubtle(fmt.Sprintf("run %s: %d users, %d sent, %d skipped, %d failed",
		batch.RunID, batch.TotalUsers, batch.Sent, batch.Skipped, batch.Failed))

	if batch.Failed > 0 {
		return errBatchFailed
	}
	return nil
}

func runVerify(cmd *cobra.Command, _ []string) error {
	rawDate, _ := cmd.Flags().GetString("date")
	email, _ := cmd.Flags().GetString("email")
	force, _ := cmd.Flags().GetBool("force")
	previous, _ := cmd.Flags().GetBool("previous")
	minRequired, _ := cmd.Flags().GetInt("min-required")

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	today := a.Resolver.Today("", time.Now())
	date, skip, err := verifyDate(rawDate, previous, force, today)
	if err != nil {
		return err
	}
	if skip {
		a.Logger.Info("not a weekday, skipping verification", zap.String("date", calendar.Key(today)))
		printSubtle(fmt.Sprintf("%s is not a weekday, nothing to verify (use --force to override)", calendar.Key(today)))
		return nil
	}

	if email != "" {
		return verifySingle(cmd.Context(), a, email, service.VerifyOptions{Date: date, MinRequired: minRequired})
	}

	printTitle("Daily verification")
	batch := a.Verifier.VerifyAllUsers(cmd.Context(), date)
	if batch.Error != "" {
		return errors.New(batch.Error)
	}

	for _, r := range batch.UserResults {
		switch {
		case !r.Success:
			printError(fmt.Sprintf("%s  %s  %s", r.UserEmail, r.Date, r.Error))
		case r.Passed:
			printSuccess(fmt.Sprintf("%s  %s  passed", r.UserEmail, r.Date))
		default:
			printWarn(fmt.Sprintf("%s  %s  below threshold", r.UserEmail, r.Date))
		}
	}
	printSubtle(fmt.Sprintf("run %s: %d users, %d successful, %d failed, %d passed, %d not passed",
		batch.RunID, batch.TotalUsers, batch.Successful, batch.Failed, batch.Passed, batch.NotPassed))

	if batch.Failed > 0 {
		return errBatchFailed
	}
	return nil
}

// verifyDate picks the day to verify. A zero date means each user's own today.
// Without an explicit day, weekends are skipped unless force is set, as the
// cron job only runs Monday to Friday.
func verifyDate(rawDate string, previous, force bool, today time.Time) (time.Time, bool, error) {
	if rawDate != "" {
		if previous {
			return time.Time{}, false, errors.New("--date and --previous are mutually exclusive")
		}
		date, err := calendar.Parse(rawDate)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("invalid --date %q, expected YYYY-MM-DD", rawDate)
		}
		return date, false, nil
	}
	if previous {
		return calendar.PreviousWeekday(today), false, nil
	}
	if !force && !calendar.IsWeekday(today) {
		return time.Time{}, true, nil
	}
	return time.Time{}, false, nil
}

func verifySingle(ctx context.Context, a *app.App, email string, opts service.VerifyOptions) error {
	user, err := a.Users.GetActiveByEmail(ctx, email)
	if err != nil {
		return err
	}

	result, err := a.Verifier.VerifyAndNotify(ctx, *user, opts)
	if !result.Success {
		printError(fmt.Sprintf("%s  %s  %s", result.UserEmail, result.Date, result.Error))
		return errBatchFailed
	}

	line := fmt.Sprintf("%s  %s  commits=%d prs=%d issues=%d (min %d)",
		result.UserEmail, result.Date, result.CommitsCount, result.PRsCount, result.IssuesCount, result.MinRequired)
	if result.Passed {
		printSuccess(line)
	} else {
		printWarn(line)
	}
	if err != nil {
		printError(err.Error())
		return errBatchFailed
	}
	return nil
}

func runSeedUser(cmd *cobra.Command, _ []string) error {
	var input service.ProvisionInput
	input.Email, _ = cmd.Flags().GetString("email")
	input.GitHubUsername, _ = cmd.Flags().GetString("github-username")
	input.GitHubToken, _ = cmd.Flags().GetString("github-token")
	input.TimeZone, _ = cmd.Flags().GetString("timezone")

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if input.Email == "" || input.GitHubUsername == "" || input.GitHubToken == "" {
		if err := runSeedForm(&input, a.Resolver.DefaultZone()); err != nil {
			return err
		}
	}

	user, created, err := a.Users.Provision(cmd.Context(), input)
	if err != nil {
		return err
	}
	if created {
		printSuccess(fmt.Sprintf("user created: %s (github: %s, tz: %s)", user.Email, user.GitHubUsername, user.TimeZone))
	} else {
		printSuccess(fmt.Sprintf("user updated: %s (github: %s, tz: %s)", user.Email, user.GitHubUsername, user.TimeZone))
	}
	return nil
}

func runStats(cmd *cobra.Command, _ []string) error {
	email, _ := cmd.Flags().GetString("email")
	days, _ := cmd.Flags().GetInt("days")

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := a.Users.GetActiveByEmail(cmd.Context(), email)
	if err != nil {
		return err
	}
	stats, err := a.Verifier.UserStats(cmd.Context(), *user, days)
	if err != nil {
		return err
	}

	printTitle(fmt.Sprintf("%s, last %d days", stats.UserEmail, stats.PeriodDays))
	fmt.Printf("days checked   %d\n", stats.TotalDaysChecked)
	fmt.Printf("passed/failed  %d/%d\n", stats.PassedDays, stats.FailedDays)
	fmt.Printf("pass rate      %.2f%%\n", stats.PassRate)
	fmt.Printf("commits        %d (%.2f/day)\n", stats.TotalCommits, stats.AvgCommitsPerDay)
	fmt.Printf("pull requests  %d\n", stats.TotalPRs)
	fmt.Printf("issues         %d\n", stats.TotalIssues)
	fmt.Printf("replies        %d\n", stats.RespondedDays)
	return nil
}

func runDeactivate(cmd *cobra.Command, _ []string) error {
	email, _ := cmd.Flags().GetString("email")

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Users.Deactivate(cmd.Context(), email); err != nil {
		return err
	}
	printSuccess("user deactivated: " + email)
	return nil
}
