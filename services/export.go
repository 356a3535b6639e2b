package services

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"ledgerly/backend/models"
)

// ReportLine is one transaction row of a monthly report.
type ReportLine struct {
	Date     string
	Kind     models.Kind
	Category string
	Amount   float64
	Display  string
}

// MonthlyReport is the data behind the monthly export.
type MonthlyReport struct {
	Year       int
	Month      time.Month
	Summary    models.MonthSummary
	ByCategory []models.CategoryAmount
	Lines      []ReportLine
	Prefs      models.Preferences
}

// BuildMonthlyReport selects year/month from transactions and formats amounts with prefs.
func BuildMonthlyReport(transactions []models.Transaction, year int, month time.Month, prefs models.Preferences) MonthlyReport {
	subset := MonthSubset(transactions, year, month)
	sortByOccurredDesc(subset)

	lines := make([]ReportLine, 0, len(subset))
	for _, t := range subset {
		signed := t.Amount
		if t.Kind == models.KindExpense {
			signed = -signed
		}
		lines = append(lines, ReportLine{
			Date:     t.OccurredOn.String(),
			Kind:     t.Kind,
			Category: CategoryLabel(t),
			Amount:   t.Amount,
			Display:  FormatCurrency(signed, prefs.Currency, prefs.Language),
		})
	}

	return MonthlyReport{
		Year:       year,
		Month:      month,
		Summary:    Summarize(subset),
		ByCategory: GroupExpensesByCategory(subset),
		Lines:      lines,
		Prefs:      prefs,
	}
}

// WriteCSV renders the report: one row per transaction, then the summary rows.
func (r MonthlyReport) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	rows := [][]string{{"date", "kind", "category", "amount", "formatted"}}
	for _, l := range r.Lines {
		rows = append(rows, []string{
			l.Date,
			string(l.Kind),
			l.Category,
			strconv.FormatFloat(l.Amount, 'f', 2, 64),
			l.Display,
		})
	}

	rows = append(rows, []string{})
	format := func(v float64) string { return FormatCurrency(v, r.Prefs.Currency, r.Prefs.Language) }
	rows = append(rows,
		[]string{"income", "", "", strconv.FormatFloat(r.Summary.Income, 'f', 2, 64), format(r.Summary.Income)},
		[]string{"expense", "", "", strconv.FormatFloat(r.Summary.Expense, 'f', 2, 64), format(r.Summary.Expense)},
		[]string{"balance", "", "", strconv.FormatFloat(r.Summary.Balance, 'f', 2, 64), format(r.Summary.Balance)},
	)
	for _, c := range r.ByCategory {
		rows = append(rows, []string{"category", "", string(c.Category), strconv.FormatFloat(c.Value, 'f', 2, 64), format(c.Value)})
	}

	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// Filename is the download name of the report.
func (r MonthlyReport) Filename() string {
	return fmt.Sprintf("ledgerly-%04d-%02d.csv", r.Year, int(r.Month))
}
