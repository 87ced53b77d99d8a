package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/newthinker/tradecost/internal/core"
	"github.com/newthinker/tradecost/internal/cost"
)

var (
	costEntry float64
	costExit  float64
	costQty   int64
	costSide  string
	costRate  float64
)

var costCmd = &cobra.Command{
	Use:   "cost",
	Short: "Price a single round-trip trade",
	Long:  "Compute gross profit, round-trip commission, net profit and return for one trade",
	RunE:  runCost,
}

func init() {
	costCmd.Flags().Float64Var(&costEntry, "entry", 0, "Entry price (required)")
	costCmd.Flags().Float64Var(&costExit, "exit", 0, "Exit price (required)")
	costCmd.Flags().Int64Var(&costQty, "qty", 0, "Quantity (required)")
	costCmd.Flags().StringVar(&costSide, "side", "long", "Position side: long or short")
	costCmd.Flags().Float64Var(&costRate, "rate", -1, "Commission rate per leg; defaults to cost.commission_rate")

	costCmd.MarkFlagRequired("entry")
	costCmd.MarkFlagRequired("exit")
	costCmd.MarkFlagRequired("qty")

	rootCmd.AddCommand(costCmd)
}

func runCost(cmd *cobra.Command, args []string) error {
	side, err := core.ParseSide(costSide)
	if err != nil {
		return err
	}

	rate := costRate
	if !cmd.Flags().Changed("rate") {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		rate = cfg.Cost.CommissionRate
	}

	engine, err := cost.New(rate)
	if err != nil {
		return err
	}

	res, err := engine.Evaluate(core.Trade{
		Side:       side,
		EntryPrice: costEntry,
		ExitPrice:  costExit,
		Quantity:   costQty,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Side:        %s\n", side)
	fmt.Fprintf(out, "Rate:        %g\n", engine.Rate())
	fmt.Fprintf(out, "Gross:       %.2f\n", res.Gross)
	fmt.Fprintf(out, "Commission:  %.2f\n", res.Commission)
	fmt.Fprintf(out, "Net profit:  %.2f\n", res.Net)
	fmt.Fprintf(out, "Return:      %.4f%%\n", res.ReturnPct*100)
	return nil
}
