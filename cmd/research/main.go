// Command research runs a single query through the agent from the terminal
// and prints the report, with the step trace available behind a flag.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"webresearch/internal/agent"
	"webresearch/internal/config"
	"webresearch/internal/llm"
	"webresearch/internal/search"
)

func main() {
	if err := runCMD().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCMD() *cobra.Command {
	var showTrace bool
	var verbose bool

	root := &cobra.Command{
		Use:           "research <query>",
		Short:         "Answer a question with web research",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(strings.Join(args, " "))
			if query == "" {
				return fmt.Errorf("query is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			logger := zap.NewNop()
			if verbose {
				logger, err = zap.NewDevelopment()
				if err != nil {
					return fmt.Errorf("build logger: %w", err)
				}
				defer func() { _ = logger.Sync() }()
			}

			searcher, err := search.New(cfg, nil)
			if err != nil {
				return fmt.Errorf("build searcher: %w", err)
			}

			completer := llm.NewClient(cfg, nil)
			fetcher := agent.NewHTTPFetcher(agent.FetcherConfig{
				RequestTimeout: cfg.FetchTimeout,
				MaxBytes:       cfg.FetchMaxBytes,
			}, nil)

			agentCfg := agent.Config{
				SearchQueriesPerRun: cfg.SearchQueriesPerRun,
				ResultsPerQuery:     cfg.ResultsPerQuery,
				EvidenceCap:         cfg.EvidenceCap,
				FetchWorkers:        cfg.FetchWorkers,
				ExcerptCharBudget:   cfg.ExcerptCharBudget,
				RunTimeout:          cfg.RunTimeout,
				MinSearchInterval:   cfg.MinSearchInterval,
			}
			researcher := agent.New(
				agent.NewLLMPlanner(completer, cfg.SearchQueriesPerRun),
				agent.NewCollector(searcher, fetcher, agentCfg),
				agent.NewSynthesizer(completer, cfg.ExcerptCharBudget),
				agentCfg,
				logger,
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			result, err := researcher.Run(ctx, query)
			if err != nil {
				for _, entry := range result.Trace {
					fmt.Fprintln(os.Stderr, entry)
				}
				return fmt.Errorf("research failed: %w", err)
			}

			fmt.Println(result.Report)

			if len(result.Sources) > 0 {
				fmt.Println("\nSources:")
				for _, source := range result.Sources {
					fmt.Printf("- %s\n", source.URL)
				}
			}

			if showTrace {
				fmt.Fprintln(os.Stderr, "\nTrace:")
				for _, entry := range result.Trace {
					fmt.Fprintf(os.Stderr, "  %s\n", entry)
				}
			}
			return nil
		},
	}

	root.Flags().BoolVar(&showTrace, "trace", false, "print the step trace to stderr after the report")
	root.Flags().BoolVar(&verbose, "verbose", false, "enable debug logging")
	return root
}
