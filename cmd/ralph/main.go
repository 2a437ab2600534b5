// Command ralph is the CLI entrypoint for the autonomous task driver.
package main

import (
	"errors"
	"fmt"
	"os"

	"ralph/cmd/ralph/commands"
	rerr "ralph/internal/errors"
)

func main() {
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var exitErr *rerr.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}
