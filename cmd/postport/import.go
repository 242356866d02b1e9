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

	"go.uber.org/zap"

	importer "github.com/samhotchkiss/postport/internal/import"
)

const importUsage = "usage: postport import <path-to-json> <account-name> [--locations] [--media-root <dir>]"

type importCommandOptions struct {
	ExportPath string
	Account    string
	Locations  bool
	MediaRoot  string
}

func handleImport(args []string) {
	opts, err := parseImportOptions(args)
	if err != nil {
		die(err.Error())
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	dieIf(runImport(ctx, os.Stdout, opts))
}

func parseImportOptions(args []string) (importCommandOptions, error) {
	flags := flag.NewFlagSet("import", flag.ContinueOnError)
	flags.SetOutput(io.Discard)
	locations := flags.Bool("locations", false, "append a map link for media with coordinates")
	mediaRoot := flags.String("media-root", "", "directory media uris are relative to (default: the export's directory)")

	flagArgs, positional, err := splitCommandArgs(args, map[string]struct{}{"media-root": {}})
	if err != nil {
		return importCommandOptions{}, err
	}
	if err := flags.Parse(flagArgs); err != nil {
		return importCommandOptions{}, err
	}
	if len(positional) != 2 {
		return importCommandOptions{}, errors.New(importUsage)
	}

	opts := importCommandOptions{
		ExportPath: strings.TrimSpace(positional[0]),
		Account:    strings.TrimSpace(positional[1]),
		Locations:  *locations,
		MediaRoot:  strings.TrimSpace(*mediaRoot),
	}
	if opts.ExportPath == "" || opts.Account == "" {
		return importCommandOptions{}, errors.New(importUsage)
	}
	return opts, nil
}

func runImport(ctx context.Context, out io.Writer, opts importCommandOptions) error {
	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	im, err := newBatchImporter(rt)
	if err != nil {
		return err
	}

	report, err := im.Run(ctx, importer.ImportOptions{
		ExportPath:    opts.ExportPath,
		MediaRoot:     opts.MediaRoot,
		Username:      opts.Account,
		Locations:     opts.Locations,
		SummaryWriter: out,
	})
	if err != nil {
		rt.logger.Error("import failed", zap.String("export", opts.ExportPath), zap.Error(err))
		return err
	}
	if report.ItemsFailed > 0 {
		fmt.Fprintf(out, "%d item(s) were too long to import; see the log for details\n", report.ItemsFailed)
	}
	return nil
}
