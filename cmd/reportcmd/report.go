// Package reportcmd handles the reporting commands.
package reportcmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"fjacquet/budget-recon/cmd/root"
	"fjacquet/budget-recon/internal/models"
	"fjacquet/budget-recon/internal/report"
)

var (
	fromFlag string
	toFlag   string
	jsonFlag bool
)

// Cmd represents the report command group.
var Cmd = &cobra.Command{
	Use:   "report",
	Short: "Summaries over the reconciled ledger",
}

var varianceCmd = &cobra.Command{
	Use:   "variance <item-id>",
	Short: "Show expected-vs-actual history for one item",
	Args:  cobra.ExactArgs(1),
	RunE:  varianceFunc,
}

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Total projected amounts per item over a window",
	RunE:  forecastFunc,
}

func init() {
	Cmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Emit JSON instead of a table")
	forecastCmd.Flags().StringVar(&fromFlag, "from", "", "Window start (YYYY-MM-DD, default today)")
	forecastCmd.Flags().StringVar(&toFlag, "to", "", "Window end (YYYY-MM-DD, default +30 days)")

	Cmd.AddCommand(varianceCmd, forecastCmd)
}

func varianceFunc(cmd *cobra.Command, args []string) error {
	itemID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid item id: %w", err)
	}

	app, err := root.OpenApp()
	if err != nil {
		return err
	}
	defer app.Close()

	rep, err := app.Reporter.Variance(cmd.Context(), itemID)
	if err != nil {
		return err
	}
	if jsonFlag {
		return emitJSON(rep)
	}

	fmt.Printf("%s (expected %s per occurrence)\n", rep.ItemName, rep.Expected.StringFixed(2))
	if len(rep.Rows) == 0 {
		fmt.Println("No realized occurrences yet")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "OCCURRENCE\tPAID ON\tACTUAL\tVARIANCE\tOFFSET")
	for _, row := range rep.Rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%dd\n",
			models.FormatDate(row.OccurrenceDate), models.FormatDate(row.TransactionDate),
			row.Actual.StringFixed(2), row.Variance.StringFixed(2), row.DateOffsetDays)
	}
	fmt.Fprintf(w, "\t\tTOTAL\t%s\t(mean %s)\n",
		rep.TotalVariance.StringFixed(2), rep.MeanVariance.StringFixed(2))
	return w.Flush()
}

func forecastFunc(cmd *cobra.Command, args []string) error {
	windowStart, windowEnd, err := root.ParseWindow(fromFlag, toFlag, 30)
	if err != nil {
		return err
	}

	app, err := root.OpenApp()
	if err != nil {
		return err
	}
	defer app.Close()

	forecast, err := app.Reporter.Project(cmd.Context(), windowStart, windowEnd)
	if err != nil {
		return err
	}
	if jsonFlag {
		return emitJSON(forecast)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ITEM\tOCCURRENCES\tSKIPPED\tTOTAL")
	for _, line := range forecast.Lines {
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n",
			line.ItemName, line.Occurrences, line.Skipped, line.Total.StringFixed(2))
	}
	fmt.Fprintf(w, "TOTAL\t\t\t%s\n", forecast.Total.StringFixed(2))
	return w.Flush()
}

func emitJSON(v interface{}) error {
	data, err := report.RenderJSON(v)
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
