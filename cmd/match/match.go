// Package match handles the match review commands: list, accept, reject,
// link and unlink.
package match

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"fjacquet/budget-recon/cmd/root"
	"fjacquet/budget-recon/internal/models"
)

var (
	statusFlag   string
	reasonFlag   string
	rememberFlag bool
)

// Cmd represents the match command group.
var Cmd = &cobra.Command{
	Use:   "match",
	Short: "Review and resolve reconciliation matches",
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List reconciliation matches",
	RunE:  listFunc,
}

var acceptCmd = &cobra.Command{
	Use:   "accept <match-id>",
	Short: "Accept a suggested match and realize the occurrence",
	Args:  cobra.ExactArgs(1),
	RunE:  acceptFunc,
}

var rejectCmd = &cobra.Command{
	Use:   "reject <match-id>",
	Short: "Reject a match; the transaction returns to the unmatched pool",
	Args:  cobra.ExactArgs(1),
	RunE:  rejectFunc,
}

var linkCmd = &cobra.Command{
	Use:   "link <transaction-id> <item-id> <occurrence-date>",
	Short: "Manually link a transaction to a scheduled occurrence",
	Args:  cobra.ExactArgs(3),
	RunE:  linkFunc,
}

var unlinkCmd = &cobra.Command{
	Use:   "unlink <match-id>",
	Short: "Undo an accepted or auto-matched link",
	Args:  cobra.ExactArgs(1),
	RunE:  unlinkFunc,
}

func init() {
	listCmd.Flags().StringVar(&statusFlag, "status", "", "Filter by status (suggested, accepted, rejected, auto_matched)")
	rejectCmd.Flags().StringVar(&reasonFlag, "reason", "", "Why the match is wrong")
	linkCmd.Flags().BoolVar(&rememberFlag, "remember", false, "Remember the transaction's description as an import pattern")

	Cmd.AddCommand(listCmd, acceptCmd, rejectCmd, linkCmd, unlinkCmd)
}

func listFunc(cmd *cobra.Command, args []string) error {
	app, err := root.OpenApp()
	if err != nil {
		return err
	}
	defer app.Close()

	var statuses []models.MatchStatus
	if statusFlag != "" {
		statuses = append(statuses, models.MatchStatus(statusFlag))
	}
	matches, err := app.Store.ListMatches(cmd.Context(), statuses...)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		fmt.Println("No matches")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MATCH\tOCCURRENCE\tSCORE\tTIER\tSTATUS\tSOURCE")
	for _, m := range matches {
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%s\t%s\n",
			m.ID, models.FormatDate(m.OccurrenceDate), m.Confidence,
			m.Tier, m.Status, m.Source)
	}
	return w.Flush()
}

func acceptFunc(cmd *cobra.Command, args []string) error {
	matchID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid match id: %w", err)
	}
	app, err := root.OpenApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Orchestrator.Accept(cmd.Context(), matchID); err != nil {
		return err
	}
	fmt.Println("Match accepted")
	return nil
}

func rejectFunc(cmd *cobra.Command, args []string) error {
	matchID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid match id: %w", err)
	}
	app, err := root.OpenApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Orchestrator.Reject(cmd.Context(), matchID, reasonFlag); err != nil {
		return err
	}
	fmt.Println("Match rejected")
	return nil
}

func linkFunc(cmd *cobra.Command, args []string) error {
	txID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid transaction id: %w", err)
	}
	itemID, err := uuid.Parse(args[1])
	if err != nil {
		return fmt.Errorf("invalid item id: %w", err)
	}
	date, err := models.ParseDate(args[2])
	if err != nil {
		return fmt.Errorf("invalid occurrence date: %w", err)
	}

	app, err := root.OpenApp()
	if err != nil {
		return err
	}
	defer app.Close()

	m, err := app.Orchestrator.ManualLink(cmd.Context(), txID, itemID, date, rememberFlag)
	if err != nil {
		return err
	}
	fmt.Printf("Linked transaction to occurrence %s (match %s)\n",
		models.FormatDate(m.OccurrenceDate), m.ID)
	return nil
}

func unlinkFunc(cmd *cobra.Command, args []string) error {
	matchID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid match id: %w", err)
	}
	app, err := root.OpenApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Orchestrator.Unlink(cmd.Context(), matchID); err != nil {
		return err
	}
	fmt.Println("Match unlinked; the occurrence is projected again")
	return nil
}
