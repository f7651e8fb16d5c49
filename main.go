package main

import (
	"fmt"
	"os"

	"github.com/morse-fitness/morse-worker/cmd"
	"github.com/morse-fitness/morse-worker/internal/app"
)

func main() {
	rootCmd := cmd.RootCommand(app.New())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Command execution error: %v\n", err)
		os.Exit(1)
	}
}
