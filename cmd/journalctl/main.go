// Command journalctl runs one-off journal operations: a single poll cycle,
// statistics, trade lookup and CSV export.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
