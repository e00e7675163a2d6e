package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "factstore",
	Short: "Faceted report server over a clinical fact store",
	Long: `Factstore stores typed clinical facts and serves faceted report queries
over them.

Reports are driven entirely by URL query parameters:
  - field filters with typed coercion (string, date, number)
  - grouping by a field or by date buckets (hour, day, month, ...)
  - aggregation (sum, avg, max, min, count)
  - ordering, pagination, and continuation URLs

Facts are scoped to records; carenet membership restricts a report to the
facts shared into a care network.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
