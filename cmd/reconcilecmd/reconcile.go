// Package reconcilecmd handles the batch reconciliation command.
package reconcilecmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"fjacquet/budget-recon/cmd/root"
)

var (
	fromFlag string
	toFlag   string
)

// Cmd represents the reconcile command.
var Cmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Match imported transactions against projected instances",
	Long: `Reconcile scores every unmatched transaction in the window (default:
the last 90 days) against the projected recurring instances.
High-confidence matches are linked automatically; medium-confidence
ones become suggestions to review with 'match list'.`,
	RunE: reconcileFunc,
}

func init() {
	Cmd.Flags().StringVar(&fromFlag, "from", "", "Window start (YYYY-MM-DD, default -90 days)")
	Cmd.Flags().StringVar(&toFlag, "to", "", "Window end (YYYY-MM-DD, default today)")
}

func reconcileFunc(cmd *cobra.Command, args []string) error {
	windowStart, windowEnd, err := root.ParseWindow(fromFlag, toFlag, -90)
	if err != nil {
		return err
	}

	app, err := root.OpenApp()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := cmd.Context()
	txs, err := app.Store.UnmatchedTransactions(ctx, windowStart, windowEnd)
	if err != nil {
		return err
	}
	if len(txs) == 0 {
		fmt.Println("Nothing to reconcile")
		return nil
	}

	result, err := app.Orchestrator.RunBatch(ctx, txs)
	if err != nil {
		return err
	}
	fmt.Printf("Reconciled %d transactions: %d auto-matched, %d suggested, %d unmatched",
		len(result.Outcomes), result.AutoMatched, result.Suggested, result.Unmatched)
	if result.Conflicts > 0 {
		fmt.Printf(", %d conflicts", result.Conflicts)
	}
	fmt.Println()
	if result.Suggested > 0 {
		fmt.Println("Review suggestions with: budget-recon match list")
	}
	return nil
}
