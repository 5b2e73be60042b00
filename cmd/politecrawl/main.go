// Command politecrawl is the demonstration CLI wiring every package in
// this module end to end (SPEC_FULL §5): config -> scheduler -> fetcher
// -> a goquery link-extraction callback -> demosink -> snapshot. It
// carries no invariants of its own; the scheduler and fetcher packages
// do.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/arclane/politecrawl/internal/config"
	"github.com/arclane/politecrawl/internal/fetcher"
)

var (
	cfgFile     string
	verbose     bool
	mongoURI    string
	mongoDB     string
	mongoColl   string
	resume      bool
	concurrency int
	maxHostQPS  float64
	maxURLs     int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "politecrawl",
		Short: "politecrawl — a polite, rate-limited web crawler",
		Long: `politecrawl enforces a global per-host QPS ceiling with bounded
head-of-line blocking, a total URL budget, and a durable crawl
snapshot, on top of a fetch executor with bounded latency/body size
and exhaustive failure classification.`,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(crawlCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("politecrawl %s\n", config.Version)
		},
	}
}

func setupLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	base := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	logger := slog.New(fetcher.InstallNoiseFilter(base))
	slog.SetDefault(logger)
	return logger
}
