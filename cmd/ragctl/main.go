// Package main implements ragctl, a CLI that runs the retrieval and context
// fitting pipeline directly against the configured vector backend.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jharjadi/pro-rag/chat-api-go/internal/app"
	"github.com/jharjadi/pro-rag/chat-api-go/internal/config"
	"github.com/jharjadi/pro-rag/chat-api-go/internal/service"
)

var (
	verbose bool

	// search/fit flags
	limit      int
	strategy   string
	secondary  bool
	withQuote  bool
	maxTokens  int
	showPrompt bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ragctl",
	Short: "Run retrieval and context fitting from the command line",
	Long: `ragctl runs the chat pipeline stages without the HTTP server.
Configuration is read from the environment and an optional .env file, the same
way the server reads it.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log pipeline details to stderr")

	for _, cmd := range []*cobra.Command{searchCmd, fitCmd} {
		cmd.Flags().IntVar(&limit, "limit", 0, "number of results (default SEARCH_LIMIT)")
		cmd.Flags().StringVar(&strategy, "strategy", "", "rerank strategy: none, overall, detailed, memory (default RERANK_STRATEGY)")
		cmd.Flags().BoolVar(&secondary, "secondary", false, "search the secondary collection (strategy none only)")
	}
	searchCmd.Flags().BoolVar(&withQuote, "quote", false, "include the tail of each passage in the table")
	fitCmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "token budget (default MAX_CONTEXT_TOKENS)")
	fitCmd.Flags().BoolVar(&showPrompt, "show-prompt", false, "print the fitted system prompt")

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(fitCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search <query>...",
	Short: "Search a collection and print the result table",
	Long: `Search runs every query as one composite query, applies the rerank
strategy and prints the results as a markdown table.

Examples:
  ragctl search "what was said about the four foundations of mindfulness"
  ragctl search --strategy memory --limit 10 "first query" "second query"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

var fitCmd = &cobra.Command{
	Use:   "fit <query>...",
	Short: "Search, then fit the results into the token budget",
	Long: `Fit runs the same search as the search command, then fits the results
into the prompt token budget and prints the bot summary. The last query is
used as the question.

Examples:
  ragctl fit "explain the simile of the raft and who it was told to"
  ragctl fit --max-tokens 4000 --show-prompt "explain the simile of the raft"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFit,
}

func setup(ctx context.Context) (*app.App, service.Strategy, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, "", err
	}
	if limit <= 0 {
		limit = cfg.SearchLimit
	}
	if strategy == "" {
		strategy = cfg.RerankStrategy
	}
	s, err := service.ParseStrategy(strategy)
	if err != nil {
		return nil, "", err
	}
	a, err := app.New(ctx, cfg)
	if err != nil {
		return nil, "", err
	}
	return a, s, nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	a, s, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	queries, err := trimQueries(args)
	if err != nil {
		return err
	}
	out, err := a.Search.Search(ctx, queries, limit, s, secondary)
	if err != nil {
		return err
	}

	keywords, err := a.Assembler.BuildKeywordResponse(queries)
	if err != nil {
		return err
	}
	table, err := a.Assembler.BuildSearchResponse(out.Passages, withQuote)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprint(w, keywords)
	fmt.Fprint(w, table)
	fmt.Fprintf(w, "\n%d results (search %s, rerank %s)\n", len(out.Passages), out.SearchLatency.Round(time.Millisecond), out.RerankLatency.Round(time.Millisecond))
	return nil
}

func runFit(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
	defer cancel()

	a, s, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	queries, err := trimQueries(args)
	if err != nil {
		return err
	}
	out, err := a.Search.Search(ctx, queries, limit, s, secondary)
	if err != nil {
		return err
	}

	budget := maxTokens
	if budget <= 0 {
		budget = a.Config.MaxContextTokens
	}
	question := queries[len(queries)-1]
	result, err := a.Builder.Fit(ctx, question, nil, out.Passages, budget)
	if err != nil {
		return err
	}

	summary, err := a.Summary.Summarize(question, result.FullyIncludedCount, len(out.Passages), result.PartiallyIncluded)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if showPrompt {
		fmt.Fprintln(w, result.Bundle.System)
	}
	fmt.Fprint(w, summary)
	fmt.Fprintf(w, "\n%d/%d results fully included, partial=%t, fragment=%d chars, %d/%d tokens\n",
		result.FullyIncludedCount, len(out.Passages), result.PartiallyIncluded, result.FragmentChars, result.Tokens, budget)
	return nil
}

func trimQueries(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for _, a := range args {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("at least one non-empty query is required")
	}
	return out, nil
}
