// Command rtn runs the response-to-name routine and analyzes its session logs.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/rtn/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
