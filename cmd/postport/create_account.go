package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/samhotchkiss/postport/internal/store"
)

const createAccountUsage = "usage: postport create-account <account-name> [--language <code>]"

type createAccountOptions struct {
	Account  string
	Language string
}

func handleCreateAccount(args []string) {
	opts, err := parseCreateAccountOptions(args)
	if err != nil {
		die(err.Error())
	}
	dieIf(runCreateAccount(context.Background(), os.Stdout, opts))
}

func parseCreateAccountOptions(args []string) (createAccountOptions, error) {
	flags := flag.NewFlagSet("create-account", flag.ContinueOnError)
	flags.SetOutput(io.Discard)
	language := flags.String("language", "", "default language code for imported statuses (detected when empty)")

	flagArgs, positional, err := splitCommandArgs(args, map[string]struct{}{"language": {}})
	if err != nil {
		return createAccountOptions{}, err
	}
	if err := flags.Parse(flagArgs); err != nil {
		return createAccountOptions{}, err
	}
	if len(positional) != 1 {
		return createAccountOptions{}, errors.New(createAccountUsage)
	}
	account := store.NormalizeUsername(positional[0])
	if account == "" {
		return createAccountOptions{}, errors.New(createAccountUsage)
	}
	return createAccountOptions{
		Account:  account,
		Language: strings.ToLower(strings.TrimSpace(*language)),
	}, nil
}

func runCreateAccount(ctx context.Context, out io.Writer, opts createAccountOptions) error {
	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	account, err := createStoreAccount(ctx, rt, store.CreateAccountInput{
		Username:        opts.Account,
		DefaultLanguage: opts.Language,
	})
	if err != nil {
		return err
	}
	language := account.DefaultLanguage
	if language == "" {
		language = "auto"
	}
	fmt.Fprintf(out, "Created account %s (id %d, language %s)\n", account.Username, account.ID, language)
	return nil
}
