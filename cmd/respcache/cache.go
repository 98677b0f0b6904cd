package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pario-ai/respcache/pkg/models"
)

const timeFormat = "2006-01-02T15:04:05"

func newCacheCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the response cache",
	}
	cmd.AddCommand(
		newCacheStatsCmd(configPath),
		newCacheGetCmd(configPath),
		newCachePutCmd(configPath),
		newCacheClearCmd(configPath),
	)
	return cmd
}

func newCacheStatsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show per-model cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := setup(ctx, *configPath)
			if err != nil {
				return err
			}
			defer e.Close()

			summaries, err := e.cache.Summaries(ctx)
			if err != nil {
				return err
			}
			totals, err := e.cache.Stats(ctx)
			if err != nil {
				return err
			}
			return printSummaries(cmd.OutOrStdout(), summaries, totals)
		},
	}
}

func printSummaries(out io.Writer, summaries []models.ModelSummary, totals models.CacheStats) error {
	if len(summaries) == 0 {
		fmt.Fprintln(out, "No cache entries found.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tENTRIES\tFIRST CREATED\tLAST CREATED\tFIRST ACCESS\tLAST ACCESS")
	for _, s := range summaries {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\n",
			s.ModelID, s.Entries,
			s.EarliestCreated.Format(timeFormat), s.LatestCreated.Format(timeFormat),
			s.EarliestAccess.Format(timeFormat), s.LatestAccess.Format(timeFormat))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nEntries: %d  Strings: %d\n", totals.Entries, totals.Strings)
	return nil
}

func newCacheGetCmd(configPath *string) *cobra.Command {
	var (
		model  string
		params []string
	)
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Look up the responses cached for a model and parameter set",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := models.ParseParams(params)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			e, err := setup(ctx, *configPath)
			if err != nil {
				return err
			}
			defer e.Close()

			responses, ok, err := e.cache.GetEntry(ctx, model, p)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "miss")
				return nil
			}
			for _, r := range responses {
				fmt.Fprintln(cmd.OutOrStdout(), r)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&model, "model", "m", "", "model identifier")
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "parameter as name=value (repeatable)")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}

func newCachePutCmd(configPath *string) *cobra.Command {
	var (
		model     string
		params    []string
		responses []string
	)
	cmd := &cobra.Command{
		Use:   "put",
		Short: "Store responses for a model and parameter set",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := models.ParseParams(params)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			e, err := setup(ctx, *configPath)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.cache.AddEntry(ctx, model, responses, p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %d response(s) for %s.\n", len(responses), model)
			return nil
		},
	}
	cmd.Flags().StringVarP(&model, "model", "m", "", "model identifier")
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "parameter as name=value (repeatable)")
	cmd.Flags().StringArrayVarP(&responses, "response", "r", nil, "response text (repeatable)")
	_ = cmd.MarkFlagRequired("model")
	_ = cmd.MarkFlagRequired("response")
	return cmd
}

func newCacheClearCmd(configPath *string) *cobra.Command {
	var model, createdBefore, accessedBefore string
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Evict cache entries",
		Long: `Evict cache entries matching every given filter. With no filters the
whole cache is cleared. Times are RFC3339 or a duration such as 72h,
meaning that long before now.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			filter := models.ClearFilter{ModelID: model}
			var err error
			if filter.CreatedBefore, err = parseCutoff(createdBefore, now); err != nil {
				return fmt.Errorf("--created-before: %w", err)
			}
			if filter.AccessedBefore, err = parseCutoff(accessedBefore, now); err != nil {
				return fmt.Errorf("--accessed-before: %w", err)
			}

			ctx := cmd.Context()
			e, err := setup(ctx, *configPath)
			if err != nil {
				return err
			}
			defer e.Close()

			n, err := e.cache.Clear(ctx, filter)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d cache entries.\n", n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&model, "model", "m", "", "only clear entries for this model")
	cmd.Flags().StringVar(&createdBefore, "created-before", "", "only clear entries created before this time")
	cmd.Flags().StringVar(&accessedBefore, "accessed-before", "", "only clear entries last accessed before this time")
	return cmd
}

// parseCutoff accepts an RFC3339 timestamp or a duration counted back from now.
// An empty string yields the zero time.
func parseCutoff(raw string, now time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: want RFC3339 or a duration like 72h", raw)
	}
	if d < 0 {
		return time.Time{}, fmt.Errorf("invalid time %q: duration must not be negative", raw)
	}
	return now.Add(-d), nil
}
