package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mcncl/jsonflat/internal/cli"
	"github.com/mcncl/jsonflat/internal/errors"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes the CLI and returns the process exit code
func run(args []string) int {
	ctx, err := cli.NewContext(context.Background())
	if err == nil {
		err = cli.Main(ctx, args)
	}
	if err != nil {
		// Use our custom error handling to provide user-friendly error messages
		fmt.Fprintf(os.Stderr, "%s\n", errors.UserFriendlyError(err))
		fmt.Fprintf(os.Stderr, "\nFor help, run: %s --help\n", cli.Name)
		return 1
	}
	return 0
}
