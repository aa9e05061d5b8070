// Package recurring handles recurring item management commands.
package recurring

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"fjacquet/budget-recon/cmd/root"
	"fjacquet/budget-recon/internal/models"
)

var (
	amountFlag    string
	kindFlag      string
	frequencyFlag string
	intervalFlag  int
	anchorFlag    string
	untilFlag     string
	countFlag     int
	patternsFlag  []string

	skipFlag        bool
	exAmountFlag    string
	exDateFlag      string
	exDescrFlag     string
)

// Cmd represents the recurring command group.
var Cmd = &cobra.Command{
	Use:   "recurring",
	Short: "Manage recurring budget items",
}

var addCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a recurring item",
	Args:  cobra.ExactArgs(1),
	RunE:  addFunc,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recurring items",
	RunE:  listFunc,
}

var pauseCmd = &cobra.Command{
	Use:   "pause <item-id>",
	Short: "Pause an item; it keeps its history but stops projecting",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setActive(cmd, args[0], false) },
}

var resumeCmd = &cobra.Command{
	Use:   "resume <item-id>",
	Short: "Resume a paused item",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setActive(cmd, args[0], true) },
}

var deleteCmd = &cobra.Command{
	Use:   "delete <item-id>",
	Short: "Delete an item and its exceptions, patterns and matches",
	Args:  cobra.ExactArgs(1),
	RunE:  deleteFunc,
}

var exceptCmd = &cobra.Command{
	Use:   "except <item-id> <occurrence-date>",
	Short: "Skip or modify one scheduled occurrence",
	Long: `Except records a one-off change to a single occurrence: --skip drops
it from totals, while --amount, --date and --description override the
occurrence without touching the rule.`,
	Args: cobra.ExactArgs(2),
	RunE: exceptFunc,
}

func init() {
	addCmd.Flags().StringVar(&amountFlag, "amount", "", "Expected amount, negative for expenses (required)")
	addCmd.Flags().StringVar(&kindFlag, "kind", string(models.KindTransaction), "Item kind: transaction or transfer")
	addCmd.Flags().StringVar(&frequencyFlag, "frequency", string(models.FrequencyMonthly), "daily, weekly, monthly or yearly")
	addCmd.Flags().IntVar(&intervalFlag, "interval", 1, "Every N frequency units")
	addCmd.Flags().StringVar(&anchorFlag, "anchor", "", "First due date (YYYY-MM-DD, required)")
	addCmd.Flags().StringVar(&untilFlag, "until", "", "Last possible date (YYYY-MM-DD)")
	addCmd.Flags().IntVar(&countFlag, "count", 0, "Total number of occurrences (0 = unbounded)")
	addCmd.Flags().StringSliceVar(&patternsFlag, "pattern", nil, "Import pattern (repeatable)")
	_ = addCmd.MarkFlagRequired("amount")
	_ = addCmd.MarkFlagRequired("anchor")

	exceptCmd.Flags().BoolVar(&skipFlag, "skip", false, "Skip the occurrence")
	exceptCmd.Flags().StringVar(&exAmountFlag, "amount", "", "Override the amount for this occurrence")
	exceptCmd.Flags().StringVar(&exDateFlag, "date", "", "Move the occurrence to this date")
	exceptCmd.Flags().StringVar(&exDescrFlag, "description", "", "Override the description")

	Cmd.AddCommand(addCmd, listCmd, pauseCmd, resumeCmd, deleteCmd, exceptCmd)
}

func addFunc(cmd *cobra.Command, args []string) error {
	amount, err := decimal.NewFromString(amountFlag)
	if err != nil {
		return fmt.Errorf("invalid --amount: %w", err)
	}
	anchor, err := models.ParseDate(anchorFlag)
	if err != nil {
		return fmt.Errorf("invalid --anchor: %w", err)
	}
	var until time.Time
	if untilFlag != "" {
		if until, err = models.ParseDate(untilFlag); err != nil {
			return fmt.Errorf("invalid --until: %w", err)
		}
	}
	rule, err := models.NewRecurrenceRule(models.Frequency(frequencyFlag), intervalFlag, anchor, until, countFlag)
	if err != nil {
		return err
	}

	item := models.RecurringItem{
		ID:       uuid.New(),
		Name:     args[0],
		Amount:   amount,
		Kind:     models.ItemKind(kindFlag),
		Rule:     rule,
		Patterns: patternsFlag,
		Active:   true,
	}

	app, err := root.OpenApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Store.CreateRecurringItem(cmd.Context(), item); err != nil {
		return err
	}
	fmt.Printf("Created recurring item %s (%s)\n", item.Name, item.ID)
	return nil
}

func listFunc(cmd *cobra.Command, args []string) error {
	app, err := root.OpenApp()
	if err != nil {
		return err
	}
	defer app.Close()

	items, err := app.Store.ListRecurringItems(cmd.Context())
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println("No recurring items")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tAMOUNT\tSCHEDULE\tACTIVE")
	for _, item := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n",
			item.ID, item.Name, item.Amount.StringFixed(2),
			describeRule(item.Rule), item.Active)
	}
	return w.Flush()
}

func describeRule(rule models.RecurrenceRule) string {
	s := string(rule.Frequency)
	if rule.Interval > 1 {
		s = fmt.Sprintf("every %d %s", rule.Interval, rule.Frequency)
	}
	s += " from " + models.FormatDate(rule.Anchor)
	if !rule.Until.IsZero() {
		s += " until " + models.FormatDate(rule.Until)
	}
	if rule.Count > 0 {
		s += fmt.Sprintf(" (%d times)", rule.Count)
	}
	return s
}

func setActive(cmd *cobra.Command, idArg string, active bool) error {
	id, err := uuid.Parse(idArg)
	if err != nil {
		return fmt.Errorf("invalid item id: %w", err)
	}
	app, err := root.OpenApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Store.SetItemActive(cmd.Context(), id, active); err != nil {
		return err
	}
	if active {
		fmt.Println("Item resumed")
	} else {
		fmt.Println("Item paused")
	}
	return nil
}

func deleteFunc(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid item id: %w", err)
	}
	app, err := root.OpenApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Store.DeleteRecurringItem(cmd.Context(), id); err != nil {
		return err
	}
	fmt.Println("Item deleted")
	return nil
}

func exceptFunc(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid item id: %w", err)
	}
	date, err := models.ParseDate(args[1])
	if err != nil {
		return fmt.Errorf("invalid occurrence date: %w", err)
	}

	ex := models.RecurringException{ItemID: id, Date: date}
	if skipFlag {
		if exAmountFlag != "" || exDateFlag != "" || exDescrFlag != "" {
			return fmt.Errorf("--skip cannot be combined with overrides")
		}
		ex.Kind = models.ExceptionSkip
	} else {
		ex.Kind = models.ExceptionModify
		if exAmountFlag != "" {
			amount, err := decimal.NewFromString(exAmountFlag)
			if err != nil {
				return fmt.Errorf("invalid --amount: %w", err)
			}
			ex.Overrides.Amount = &amount
		}
		if exDateFlag != "" {
			moved, err := models.ParseDate(exDateFlag)
			if err != nil {
				return fmt.Errorf("invalid --date: %w", err)
			}
			ex.Overrides.Date = &moved
		}
		if exDescrFlag != "" {
			ex.Overrides.Description = &exDescrFlag
		}
		if ex.Overrides.Amount == nil && ex.Overrides.Date == nil && ex.Overrides.Description == nil {
			return fmt.Errorf("nothing to change: pass --skip or at least one override")
		}
	}

	app, err := root.OpenApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Store.AddException(cmd.Context(), ex); err != nil {
		return err
	}
	fmt.Printf("Exception recorded for %s\n", models.FormatDate(date))
	return nil
}
