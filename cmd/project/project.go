// Package project handles the projection command.
package project

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"fjacquet/budget-recon/cmd/root"
	"fjacquet/budget-recon/internal/models"
)

var (
	fromFlag string
	toFlag   string
)

// Cmd represents the project command.
var Cmd = &cobra.Command{
	Use:   "project",
	Short: "Show projected recurring instances over a date window",
	Long: `Project generates the expected occurrences of every active recurring
item over a window (default: the next 30 days), with skips and
modifications applied and already-realized occurrences left out.`,
	RunE: projectFunc,
}

func init() {
	Cmd.Flags().StringVar(&fromFlag, "from", "", "Window start (YYYY-MM-DD, default today)")
	Cmd.Flags().StringVar(&toFlag, "to", "", "Window end (YYYY-MM-DD, default +30 days)")
}

func projectFunc(cmd *cobra.Command, args []string) error {
	windowStart, windowEnd, err := root.ParseWindow(fromFlag, toFlag, 30)
	if err != nil {
		return err
	}

	app, err := root.OpenApp()
	if err != nil {
		return err
	}
	defer app.Close()

	instances, err := app.Projector.ProjectAll(cmd.Context(), windowStart, windowEnd)
	if err != nil {
		return err
	}
	if len(instances) == 0 {
		fmt.Printf("No instances between %s and %s\n",
			models.FormatDate(windowStart), models.FormatDate(windowEnd))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tITEM\tAMOUNT\tSTATUS")
	total := decimal.Zero
	for _, inst := range instances {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			models.FormatDate(inst.EffectiveDate), inst.ItemName,
			inst.Amount.StringFixed(2), inst.Status)
		if inst.CountsTowardTotals() {
			total = total.Add(inst.Amount)
		}
	}
	fmt.Fprintf(w, "\tTOTAL\t%s\t\n", total.StringFixed(2))
	return w.Flush()
}
