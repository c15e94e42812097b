// Command datafrage answers natural-language questions about tabular
// data, either as a one-shot CLI or as a long-running HTTP server.
package main

import (
	"os"

	"github.com/datafrage-dev/datafrage/pkg/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
