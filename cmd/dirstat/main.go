package main

import (
	"fmt"
	"os"

	"github.com/harrison/dirstat/internal/cmd"
)

// Version is the current version of the dirstat application
const Version = "1.0.0"

func main() {
	rootCmd := cmd.NewRootCommand()
	rootCmd.Version = Version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
