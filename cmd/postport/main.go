package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	switch cmd {
	case "import":
		handleImport(os.Args[2:])
	case "delete-statuses":
		handleDeleteStatuses(os.Args[2:])
	case "create-account":
		handleCreateAccount(os.Args[2:])
	case "version":
		fmt.Println("postport", version)
	case "help", "-h", "--help":
		usage()
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`postport <command> [args]

Commands:
  import <export.json> <account> [--locations] [--media-root <dir>]
                   Import a photo-sharing export as statuses
  delete-statuses <account> <date> [--dryrun]
                   Delete statuses created on or before date (YYYY-MM-DD or RFC3339)
  create-account <account> [--language <code>]
                   Create the account statuses are imported into
  version          Show CLI version`)
}

// splitCommandArgs separates flags from positional arguments so flags may
// follow them, e.g. "import posts.json alice --locations".
func splitCommandArgs(args []string, flagsWithValue map[string]struct{}) ([]string, []string, error) {
	flagArgs := make([]string, 0, len(args))
	positional := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		token := args[i]
		if token == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}
		if !strings.HasPrefix(token, "-") || token == "-" {
			positional = append(positional, token)
			continue
		}
		if strings.Contains(token, "=") {
			flagArgs = append(flagArgs, token)
			continue
		}
		if _, ok := flagsWithValue[strings.TrimLeft(token, "-")]; ok {
			if i+1 >= len(args) {
				return nil, nil, fmt.Errorf("flag needs value: %s", token)
			}
			flagArgs = append(flagArgs, token, args[i+1])
			i++
			continue
		}
		flagArgs = append(flagArgs, token)
	}

	return flagArgs, positional, nil
}

func die(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}

func dieIf(err error) {
	if err == nil {
		return
	}
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	die(formatCLIError(err))
}
