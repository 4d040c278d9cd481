// cmd/underwrite/main.go
package main

import (
	"fmt"
	"os"

	"loan-underwriting/internal/cli"
)

func main() {
	if err := cli.NewRootCommand(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
