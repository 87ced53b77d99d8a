package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/newthinker/tradecost/internal/core"
)

var importInput string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load trades from a CSV file into the trade store",
	Long:  "Validate a CSV of round-trip trades and insert it into the configured trade store. Trades already stored are skipped.",
	RunE:  runImport,
}

func init() {
	importCmd.Flags().StringVarP(&importInput, "input", "i", "", "CSV file of trades (required)")
	importCmd.MarkFlagRequired("input")

	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, log, a, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()
	defer a.Close()

	ctx := cmd.Context()
	read, inserted, err := a.Import(ctx, importInput)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Store:    %s\n", cfg.Storage.Trades.Driver)
	fmt.Fprintf(out, "Read:     %d\n", read)
	fmt.Fprintf(out, "Inserted: %d\n", inserted)
	fmt.Fprintf(out, "Skipped:  %d\n", read-inserted)

	store, err := a.Trades(ctx)
	if err != nil {
		return err
	}
	latest, err := store.Latest(ctx)
	switch {
	case errors.Is(err, core.ErrNotFound):
	case err != nil:
		return err
	default:
		fmt.Fprintf(out, "Latest:   %s %s %s\n", latest.Symbol, latest.Side, latest.EntryTime.Format(time.RFC3339))
	}
	return nil
}
