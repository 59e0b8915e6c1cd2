package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/example/ipacheck/internal/cli"
)

func main() {
	err := cli.RootCmd().Execute()
	cli.Shutdown()

	switch {
	case err == nil:
	case errors.Is(err, cli.ErrIssuesFound):
		os.Exit(2)
	default:
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
