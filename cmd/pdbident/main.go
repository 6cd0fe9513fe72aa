// pdbident validates a Microsoft PDB file and prints its identity header.
package main

import (
	"fmt"
	"os"

	"github.com/jtang613/pdbident/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
