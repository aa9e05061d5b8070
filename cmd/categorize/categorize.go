// Package categorize handles the ad-hoc categorization command.
package categorize

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"fjacquet/budget-recon/cmd/root"
	"fjacquet/budget-recon/internal/categorizer"
	"fjacquet/budget-recon/internal/models"
)

var (
	amountFlag string
	dateFlag   string
)

// Cmd represents the categorize command.
var Cmd = &cobra.Command{
	Use:   "categorize <description>",
	Short: "Categorize a transaction description",
	Long: `Categorize runs the strategy chain (keyword rules, then Gemini when
configured) over a single description and prints the resulting
category. Useful for testing category rules.`,
	Args: cobra.ExactArgs(1),
	RunE: categorizeFunc,
}

func init() {
	Cmd.Flags().StringVar(&amountFlag, "amount", "0", "Transaction amount (context for the AI strategy)")
	Cmd.Flags().StringVar(&dateFlag, "date", "", "Transaction date (YYYY-MM-DD, default today)")
}

func categorizeFunc(cmd *cobra.Command, args []string) error {
	amount, err := decimal.NewFromString(amountFlag)
	if err != nil {
		return fmt.Errorf("invalid --amount: %w", err)
	}
	date := models.DateOnly(time.Now())
	if dateFlag != "" {
		if date, err = models.ParseDate(dateFlag); err != nil {
			return fmt.Errorf("invalid --date: %w", err)
		}
	}

	app, err := root.OpenApp()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := cmd.Context()
	categories, err := categorizer.NewCategoryStore(root.CategoriesPath()).Load()
	if err != nil {
		return err
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

	tx := models.NewTransaction(date, amount, args[0])
	category, err := categorizer.New(app.Logger, strategies...).Categorize(ctx, tx)
	if err != nil {
		return err
	}
	fmt.Printf("Category: %s\n", category)
	return nil
}
