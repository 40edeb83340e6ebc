// Command fusionctl administers a Fusion deployment: schema migrations,
// the application config file and user accounts.
package main

import (
	"fmt"
	"os"
)

// Set at build time with -ldflags "-X main.Version=...".
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
