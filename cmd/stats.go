package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dhcgn/kakaotalk-to-doc/model"
	"github.com/dhcgn/kakaotalk-to-doc/runner"
	"github.com/dhcgn/kakaotalk-to-doc/state"
	"github.com/dhcgn/kakaotalk-to-doc/stats"
)

// NewStatsCommand analyses a transcript and prints message statistics.
func NewStatsCommand(setup Setup) *cobra.Command {
	var (
		reportDir string
		topN      int
	)

	c := &cobra.Command{
		Use:   "stats [transcript.txt]",
		Short: "Analyse a transcript and show statistics",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, cleanup, err := setup(cmd)
			if err != nil {
				return err
			}
			defer func() {
				_ = cleanup()
			}()
			if len(args) == 1 {
				cfg.InputPath = args[0]
			}
			if err := cfg.RequireInput(); err != nil {
				return err
			}

			var store state.Store
			if cfg.UseSession {
				if store, err = state.Open(cfg.StateBackend, cfg.StateDir); err != nil {
					return fmt.Errorf("open state: %w", err)
				}
				defer store.Close()
			}

			r, err := runner.New(cfg, logger, store)
			if err != nil {
				return err
			}
			if cfg.UseSession && cfg.InputPath == "" {
				err = r.LoadSession()
			} else {
				err = r.LoadFile(cfg.InputPath)
			}
			if err != nil {
				return err
			}

			visible := r.Visible()
			summary := stats.Analyze(visible)
			if err := printStats(cmd.OutOrStdout(), summary, len(r.Messages()), topN); err != nil {
				return err
			}

			if reportDir != "" {
				paths, err := stats.SaveCSVReports(summary, reportDir, 1000)
				if err != nil {
					return fmt.Errorf("save CSV reports: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "\nReports saved to directory: %s\n", reportDir)
				logger.Debug("reports written", "files", paths)
			}
			return nil
		},
	}

	c.Flags().StringVarP(&reportDir, "report-dir", "o", "", "Output directory for CSV reports (none when empty)")
	c.Flags().IntVarP(&topN, "top", "t", 10, "Number of top senders to display")
	return c
}

func printStats(out io.Writer, t stats.Transcript, parsed, topN int) error {
	skipped := parsed - t.Total
	var filterPercent float64
	if parsed > 0 {
		filterPercent = float64(skipped) / float64(parsed) * 100
	}
	fmt.Fprintf(out, "Analysed %d messages (skipped %d by filters, %.2f%%)\n", t.Total, skipped, filterPercent)
	if t.Total > 0 {
		fmt.Fprintf(out, "Range: %s %s - %s %s\n",
			model.FormatDate(t.First), model.FormatTime(t.First),
			model.FormatDate(t.Last), model.FormatTime(t.Last))
	}
	fmt.Fprintln(out)

	sections := []struct {
		title   string
		headers []string
		pairs   []stats.Pair
	}{
		{"Messages by type", []string{"#", "Type", "Count"}, t.Types()},
		{"Top " + strconv.Itoa(topN) + " senders", []string{"#", "Sender", "Count"}, stats.Top(t.BySender, topN)},
		{"Messages per day", []string{"#", "Day", "Count"}, t.Days()},
	}
	for _, s := range sections {
		fmt.Fprintf(out, "%s:\n", s.title)
		if err := stats.WriteTable(out, s.headers, stats.PairRows(s.pairs)); err != nil {
			return err
		}
		fmt.Fprintln(out)
	}
	return nil
}
