// Package importcmd handles the statement import command.
package importcmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"fjacquet/budget-recon/cmd/root"
	"fjacquet/budget-recon/internal/categorizer"
	"fjacquet/budget-recon/internal/importer"
)

var skipCategorize bool

// Cmd represents the import command.
var Cmd = &cobra.Command{
	Use:   "import <statement.csv>",
	Short: "Import a bank statement CSV into the ledger",
	Long: `Import reads a bank statement CSV, categorizes the transactions and
stores them. Rows already imported (same date, amount and description)
are skipped, so re-importing a statement is safe.`,
	Args: cobra.ExactArgs(1),
	RunE: importFunc,
}

func init() {
	Cmd.Flags().BoolVar(&skipCategorize, "no-categorize", false, "Skip transaction categorization")
}

func importFunc(cmd *cobra.Command, args []string) error {
	path := args[0]
	delimiter := root.Cfg.DelimiterRune()

	ok, err := importer.ValidateFormat(path, delimiter)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s does not look like a statement CSV (expected Date, Amount, Description columns)", path)
	}

	app, err := root.OpenApp()
	if err != nil {
		return err
	}
	defer app.Close()

	txs, err := importer.ParseFile(path, delimiter, app.Logger)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if !skipCategorize {
		txs, err = buildCategorizer(ctx, app).CategorizeAll(ctx, txs)
		if err != nil {
			return err
		}
	}

	inserted, skipped, err := app.Store.InsertTransactions(ctx, txs)
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d transactions (%d duplicates skipped)\n", inserted, skipped)
	return nil
}

func buildCategorizer(ctx context.Context, app *root.App) *categorizer.Categorizer {
	categories, err := categorizer.NewCategoryStore(root.CategoriesPath()).Load()
	if err != nil {
		app.Logger.WithError(err).Warn("Failed to load category rules")
	}

	strategies := []categorizer.Strategy{categorizer.NewKeywordStrategy(categories)}
	if root.Cfg.AI.Enabled {
		gemini, err := categorizer.NewGeminiStrategy(ctx, root.Cfg.AI.APIKey, root.Cfg.AI.Model, categories, app.Logger)
		if err != nil {
			app.Logger.WithError(err).Warn("Gemini categorization unavailable")
		} else {
			strategies = append(strategies, gemini)
		}
	}
	return categorizer.New(app.Logger, strategies...)
}
