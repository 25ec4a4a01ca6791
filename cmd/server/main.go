// Package main implements the graphgen command: the HTTP job server and the
// command-line tools around it (single runs, migrations, tokens).
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
