package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/daarxwalker/revmig"
)

func main() {
	if err := NewRootCmd().ExecuteContext(context.Background()); err != nil {
		printRunError(err)
		os.Exit(1)
	}
}

func printRunError(err error) {
	var failure *revmig.MigrationFailure
	if errors.As(err, &failure) {
		color.New(color.FgRed).Fprintf(
			os.Stderr, "step %s failed (%s): %v\n",
			failure.Revision, failure.Direction, failure.Err,
		)
		fmt.Fprintln(os.Stderr, "applied position is at the last successful step, inspect and retry")
		return
	}
	var lockTimeout *revmig.LockTimeoutError
	if errors.As(err, &lockTimeout) {
		color.New(color.FgYellow).Fprintf(
			os.Stderr, "another migration run holds the lock: %v\n", lockTimeout,
		)
		return
	}
	color.New(color.FgRed).Fprintf(os.Stderr, "error: %v\n", err)
}
