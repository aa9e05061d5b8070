// Package importer reads bank statement CSV exports into ledger
// transactions. Rows carry a source hash so the store can drop duplicates
// when the same statement is imported twice.
package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"fjacquet/budget-recon/internal/logging"
	"fjacquet/budget-recon/internal/models"
)

// BankCSVRow is a single statement row. Header names follow the common
// export format: Date;Amount;Description with an optional Category column.
type BankCSVRow struct {
	Date        string `csv:"Date"`
	Amount      string `csv:"Amount"`
	Description string `csv:"Description"`
	Category    string `csv:"Category"`
}

// dateLayouts are tried in order when parsing statement dates.
var dateLayouts = []string{
	"2006-01-02",
	"02.01.2006",
	"02/01/2006",
}

// Parse reads statement rows from r and converts them to transactions.
// Malformed rows are logged and skipped; an unreadable stream is an error.
func Parse(r io.Reader, delimiter rune, logger logging.Logger) ([]models.Transaction, error) {
	if logger == nil {
		logger = logging.NewLogrusAdapter("info", "text")
	}

	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		cr := csv.NewReader(in)
		cr.Comma = delimiter
		return cr
	})
	defer gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		return csv.NewReader(in)
	})

	var rows []*BankCSVRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		logger.WithError(err).Error("Failed to read statement CSV")
		return nil, fmt.Errorf("error reading statement CSV: %w", err)
	}

	var transactions []models.Transaction
	for i, row := range rows {
		if row.Date == "" && row.Description == "" {
			continue
		}
		tx, err := convertRow(*row)
		if err != nil {
			logger.WithError(err).Warn("Skipping malformed statement row",
				logging.Field{Key: "row", Value: i + 2})
			continue
		}
		transactions = append(transactions, tx)
	}

	logger.Info("Parsed statement CSV",
		logging.Field{Key: logging.FieldCount, Value: len(transactions)})
	return transactions, nil
}

// ParseFile reads a statement CSV from disk.
func ParseFile(path string, delimiter rune, logger logging.Logger) ([]models.Transaction, error) {
	if logger == nil {
		logger = logging.NewLogrusAdapter("info", "text")
	}
	logger.WithField(logging.FieldFile, path).Info("Importing statement CSV file")

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening statement file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Parse(f, delimiter, logger)
}

// ValidateFormat reports whether the file's header carries the expected
// columns.
func ValidateFormat(path string, delimiter rune) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("error opening statement file: %w", err)
	}
	defer func() { _ = f.Close() }()

	cr := csv.NewReader(f)
	cr.Comma = delimiter
	header, err := cr.Read()
	if err != nil {
		return false, nil
	}
	seen := make(map[string]bool, len(header))
	for _, col := range header {
		seen[strings.TrimSpace(col)] = true
	}
	return seen["Date"] && seen["Amount"] && seen["Description"], nil
}

func convertRow(row BankCSVRow) (models.Transaction, error) {
	if row.Date == "" {
		return models.Transaction{}, fmt.Errorf("date is empty")
	}
	if row.Amount == "" {
		return models.Transaction{}, fmt.Errorf("amount is empty")
	}

	date, err := parseDate(row.Date)
	if err != nil {
		return models.Transaction{}, err
	}
	amount, err := decimal.NewFromString(normalizeAmount(row.Amount))
	if err != nil {
		return models.Transaction{}, fmt.Errorf("error parsing amount %q: %w", row.Amount, err)
	}

	tx := models.NewTransaction(date, amount, strings.TrimSpace(row.Description))
	tx.Category = strings.TrimSpace(row.Category)
	return tx, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return models.DateOnly(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// normalizeAmount strips thousands separators and maps a decimal comma to
// a decimal point, so "1'234,56" and "1,234.56" both parse.
func normalizeAmount(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "'", "")
	s = strings.ReplaceAll(s, " ", "")
	if strings.Contains(s, ",") {
		if strings.Contains(s, ".") {
			// Comma is a thousands separator.
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.ReplaceAll(s, ",", ".")
		}
	}
	return s
}
