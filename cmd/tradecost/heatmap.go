package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/tradecost/internal/app"
	"github.com/newthinker/tradecost/internal/config"
	"github.com/newthinker/tradecost/internal/core"
	"github.com/newthinker/tradecost/internal/pipeline"
	"github.com/newthinker/tradecost/internal/report"
)

var (
	heatmapInput   string
	heatmapFrom    string
	heatmapTo      string
	heatmapFormats []string
	heatmapMetric  string
	heatmapPrint   string
)

var heatmapCmd = &cobra.Command{
	Use:   "heatmap",
	Short: "Build the symbol by date heatmap",
	Long: `Cost every trade, aggregate by symbol and entry date, and render the heatmap.
Trades come from --input, or from the trade store when --input is omitted.`,
	RunE: runHeatmap,
}

func init() {
	heatmapCmd.Flags().StringVarP(&heatmapInput, "input", "i", "", "CSV file of trades; defaults to input.path")
	heatmapCmd.Flags().StringVar(&heatmapFrom, "from", "", "Store only: first entry date YYYY-MM-DD")
	heatmapCmd.Flags().StringVar(&heatmapTo, "to", "", "Store only: last entry date YYYY-MM-DD, inclusive")
	heatmapCmd.Flags().StringSliceVar(&heatmapFormats, "format", nil, "Output formats: csv, md, json; defaults to report.formats")
	heatmapCmd.Flags().StringVar(&heatmapMetric, "metric", "", "Aggregated metric: pnl or return; defaults to report.metric")
	heatmapCmd.Flags().StringVar(&heatmapPrint, "print", "", "Also write this format to stdout")

	rootCmd.AddCommand(heatmapCmd)
}

func runHeatmap(cmd *cobra.Command, args []string) error {
	cfg, log, a, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()
	defer a.Close()

	pcfg := a.PipelineConfig()
	if len(heatmapFormats) > 0 {
		if pcfg.Formats, err = report.ParseFormats(heatmapFormats); err != nil {
			return err
		}
	}
	if heatmapMetric != "" {
		if heatmapMetric != config.MetricPnL && heatmapMetric != config.MetricReturn {
			return core.Errorf(core.ErrInvalidArgument, "--metric must be %q or %q", config.MetricPnL, config.MetricReturn)
		}
		pcfg.Metric = heatmapMetric
	}

	var printFormat report.Format
	if heatmapPrint != "" {
		f, err := report.ParseFormats([]string{heatmapPrint})
		if err != nil {
			return err
		}
		printFormat = f[0]
	}

	src, err := heatmapSource(cmd, cfg, a)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	res, err := a.RunHeatmap(ctx, src, &pcfg)
	if err != nil {
		log.Error("heatmap failed", zap.Error(err))
		return err
	}

	out := cmd.OutOrStdout()
	if printFormat != "" {
		data, ok := res.Rendered[printFormat]
		if !ok {
			if data, err = report.Render(res.Report, printFormat); err != nil {
				return err
			}
		}
		out.Write(data)
		fmt.Fprintln(out)
	}

	fmt.Fprintf(out, "=== Heatmap %s ===\n", res.RunID)
	fmt.Fprintf(out, "Trades:  %d\n", len(res.Trades))
	fmt.Fprintf(out, "Symbols: %d\n", len(res.Summary.Ranking))
	fmt.Fprintf(out, "Dates:   %d\n", len(res.Summary.Dates))
	fmt.Fprintln(out)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tSYMBOL\tTOTAL")
	for i, sym := range res.Summary.Ranking {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", i+1, sym, pcfg.Options.Format(res.Summary.Totals[sym]))
	}
	tw.Flush()

	if len(res.Artifacts) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Artifacts:")
		for _, key := range res.Artifacts {
			fmt.Fprintf(out, "  %s\n", key)
		}
	}
	if len(res.Alerts) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Alerts:")
		for _, msg := range res.Alerts {
			fmt.Fprintf(out, "  %s\n", msg)
		}
	}
	return nil
}

// heatmapSource picks the CSV input when one is named, otherwise the trade store
func heatmapSource(cmd *cobra.Command, cfg *config.Config, a *app.App) (pipeline.Source, error) {
	input := heatmapInput
	if input == "" && heatmapFrom == "" && heatmapTo == "" {
		input = cfg.Input.Path
	}
	if input != "" {
		if heatmapFrom != "" || heatmapTo != "" {
			return nil, core.Errorf(core.ErrInvalidArgument, "--from and --to only apply to the trade store")
		}
		return a.FileSource(input), nil
	}

	loc := a.PipelineConfig().Location
	from, err := parseDay(heatmapFrom, loc)
	if err != nil {
		return nil, err
	}
	to, err := parseDay(heatmapTo, loc)
	if err != nil {
		return nil, err
	}
	if !to.IsZero() {
		to = to.AddDate(0, 0, 1)
	}
	if !from.IsZero() && !to.IsZero() && !to.After(from) {
		return nil, core.Errorf(core.ErrInvalidArgument, "--to must not be before --from")
	}
	return a.StoreSource(cmd.Context(), from, to)
}

func parseDay(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(time.DateOnly, s, loc)
	if err != nil {
		return time.Time{}, core.Errorf(core.ErrInvalidArgument, "invalid date %q (expected YYYY-MM-DD)", s)
	}
	return t, nil
}
