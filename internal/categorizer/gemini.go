package categorizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"fjacquet/budget-recon/internal/logging"
	"fjacquet/budget-recon/internal/models"
)

// GeminiStrategy asks the Gemini model to pick one of the configured
// categories. It only runs for transactions the keyword rules could not
// place, so API traffic stays proportional to genuinely unknown merchants.
type GeminiStrategy struct {
	model      *genai.GenerativeModel
	categories []string
	log        logging.Logger
}

// NewGeminiStrategy creates the Gemini client. The categories list bounds
// the model's answer space.
func NewGeminiStrategy(ctx context.Context, apiKey, modelName string, categories []CategoryConfig, log logging.Logger) (*GeminiStrategy, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is not set")
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	names := make([]string, 0, len(categories))
	for _, c := range categories {
		names = append(names, c.Name)
	}
	if log == nil {
		log = logging.NewLogrusAdapter("info", "text")
	}
	return &GeminiStrategy{
		model:      client.GenerativeModel(modelName),
		categories: names,
		log:        log,
	}, nil
}

func (s *GeminiStrategy) Name() string { return "gemini" }

func (s *GeminiStrategy) Categorize(ctx context.Context, tx models.Transaction) (string, bool, error) {
	if len(s.categories) == 0 {
		return "", false, nil
	}

	prompt := fmt.Sprintf(`Categorize the following financial transaction:
Description: %s
Amount: %s
Date: %s

Assign this transaction to exactly one of the following categories:
%s

Respond in this format:
Category: [Selected Category Name]`,
		tx.Description,
		tx.Amount.String(),
		models.FormatDate(tx.Date),
		strings.Join(s.categories, ", "))

	resp, err := s.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", false, fmt.Errorf("gemini api error: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", false, fmt.Errorf("empty gemini response")
	}

	answer := fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0])
	category := extractCategory(answer, s.categories)
	if category == "" {
		s.log.Warn("Gemini answered with an unknown category",
			logging.Field{Key: logging.FieldCategory, Value: answer})
		return "", false, nil
	}
	return category, true, nil
}

// extractCategory pulls the "Category:" line out of the model's answer and
// validates it against the configured list, case-insensitively.
func extractCategory(answer string, categories []string) string {
	candidate := ""
	for _, line := range strings.Split(answer, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "Category:") {
			candidate = strings.TrimSpace(strings.TrimPrefix(line, "Category:"))
			break
		}
	}
	if candidate == "" {
		candidate = strings.TrimSpace(answer)
	}
	for _, c := range categories {
		if strings.EqualFold(c, candidate) {
			return c
		}
	}
	return ""
}
