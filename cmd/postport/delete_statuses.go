package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/samhotchkiss/postport/internal/retention"
)

const deleteStatusesUsage = "usage: postport delete-statuses <account-name> <date> [--dryrun]"

type deleteStatusesOptions struct {
	Account string
	Cutoff  time.Time
	DryRun  bool
}

func handleDeleteStatuses(args []string) {
	opts, err := parseDeleteStatusesOptions(args)
	if err != nil {
		die(err.Error())
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	dieIf(runDeleteStatuses(ctx, os.Stdout, opts))
}

func parseDeleteStatusesOptions(args []string) (deleteStatusesOptions, error) {
	flags := flag.NewFlagSet("delete-statuses", flag.ContinueOnError)
	flags.SetOutput(io.Discard)
	dryRun := flags.Bool("dryrun", false, "report what would be deleted without deleting")

	flagArgs, positional, err := splitCommandArgs(args, nil)
	if err != nil {
		return deleteStatusesOptions{}, err
	}
	if err := flags.Parse(flagArgs); err != nil {
		return deleteStatusesOptions{}, err
	}
	if len(positional) != 2 || strings.TrimSpace(positional[0]) == "" {
		return deleteStatusesOptions{}, errors.New(deleteStatusesUsage)
	}

	cutoff, err := parseCutoff(positional[1])
	if err != nil {
		return deleteStatusesOptions{}, err
	}
	return deleteStatusesOptions{
		Account: strings.TrimSpace(positional[0]),
		Cutoff:  cutoff,
		DryRun:  *dryRun,
	}, nil
}

// parseCutoff accepts RFC3339 timestamps or a bare date, which covers the
// whole day in UTC.
func parseCutoff(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("date is required")
	}
	if parsed, err := time.Parse("2006-01-02", raw); err == nil {
		return parsed.UTC().Add(24*time.Hour - time.Nanosecond), nil
	}
	if parsed, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return parsed.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q (expected RFC3339 or YYYY-MM-DD)", raw)
}

func runDeleteStatuses(ctx context.Context, out io.Writer, opts deleteStatusesOptions) error {
	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	result, err := newRetentionRunner(rt).Run(ctx, retention.Options{
		Username: opts.Account,
		Cutoff:   opts.Cutoff,
		DryRun:   opts.DryRun,
	})
	if err != nil {
		return err
	}
	renderRetentionResult(out, opts, result)
	return nil
}

func renderRetentionResult(out io.Writer, opts deleteStatusesOptions, result retention.Result) {
	cutoff := opts.Cutoff.UTC().Format(time.RFC3339)
	if opts.DryRun {
		fmt.Fprintf(out, "Dry run: %d status(es) and %d media attachment(s) created on or before %s would be deleted\n",
			result.StatusesScanned, result.MediaScanned, cutoff)
		return
	}
	fmt.Fprintf(out, "Deleted %d status(es) and %d media attachment(s) created on or before %s\n",
		result.StatusesDeleted, result.MediaDeleted, cutoff)
	if missed := result.MediaScanned - result.MediaDeleted; missed > 0 {
		fmt.Fprintf(out, "%d media object(s) could not be removed from storage; see the log for details\n", missed)
	}
}
