// Command stagectl is the operator CLI for the staging service: it sweeps
// abandoned imports, lists provisional rows and issues access tokens.
//
// sweep and inspect open the data directory directly and must not run while
// the server holds it; use the admin API against a running server instead.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
