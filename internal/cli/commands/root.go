// Package commands implements the filemutex CLI.
package commands

import (
	"time"

	"github.com/spf13/cobra"
)

// Global flags shared by all subcommands
var (
	flagConfig  string
	flagSuffix  string
	flagTimeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "filemutex",
	Short: "Coordinate file access across processes with a file-backed mutex",
	Long: `Filemutex coordinates access to shared files across independent
processes using an advisory lock on a side lock file.

Each protected resource gets a lock file next to it (resource path plus
a suffix, ".lock" by default). Any process that constructs a mutex
against the same resource path participates in the same exclusion:
one exclusive holder at a time, or any number of shared holders.`,
	SilenceUsage: true,
}

func init() {
	RegisterLoggerFlags(rootCmd)

	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&flagSuffix, "suffix", "", "Lock file suffix (default \".lock\")")
	rootCmd.PersistentFlags().DurationVar(&flagTimeout, "timeout", 0, "Give up acquiring after this long (0 waits forever)")

	rootCmd.AddCommand(writeCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(configCmd)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
