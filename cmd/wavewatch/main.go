package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "wavewatch",
		Short: "Ingest engagement events from content platforms and compute virality scores",
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(ingestCmd())
	root.AddCommand(processCmd())
	root.AddCommand(scoresCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(runCmd())

	return root
}

func ingestCmd() *cobra.Command {
	var sources []string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Pull events from source connectors once and flush them to storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(sources)
		},
	}

	cmd.Flags().StringSliceVar(&sources, "source", nil, "specific sources to pull (e.g., video,link,news)")
	return cmd
}

func processCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run one normalize/bin/score pass over the stored window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess()
		},
	}
	return cmd
}

func scoresCmd() *cobra.Command {
	var (
		jsonOutput bool
		minScore   float64
		category   string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "scores",
		Short: "Show current wave scores",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScores(jsonOutput, minScore, category, limit)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "minimum wave score")
	cmd.Flags().StringVar(&category, "category", "", "filter by category")
	cmd.Flags().IntVar(&limit, "limit", 20, "max scores to show")
	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP query API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func runCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the pipeline daemon with scheduler and HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}
