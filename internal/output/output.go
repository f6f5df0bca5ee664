// Package output provides styled terminal output helpers (success, error,
// warning, entity formatting) using lipgloss.
package output

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Nicolanasr/expenses-tracker/internal/db"
	"github.com/Nicolanasr/expenses-tracker/internal/models"
)

var (
	// Styles
	titleStyle   = lipgloss.NewStyle().Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	amountStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	statusStyles = map[db.OutboxStatus]lipgloss.Style{
		db.StatusPending:     lipgloss.NewStyle().Foreground(lipgloss.Color("45")),
		db.StatusFailed:      lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		db.StatusNeedsReview: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	}
)

// Success prints a success message
func Success(format string, args ...interface{}) {
	fmt.Println(successStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error message
func Error(format string, args ...interface{}) {
	fmt.Println(errorStyle.Render("ERROR: " + fmt.Sprintf(format, args...)))
}

// Warning prints a warning message
func Warning(format string, args ...interface{}) {
	fmt.Println(warningStyle.Render(fmt.Sprintf(format, args...)))
}

// Info prints a subtle informational message
func Info(format string, args ...interface{}) {
	fmt.Println(subtleStyle.Render(fmt.Sprintf(format, args...)))
}

// Transaction formats a transaction as a single list line
func Transaction(t models.Transaction) string {
	var b strings.Builder
	b.WriteString(subtleStyle.Render(shortID(t.ID)))
	b.WriteString("  ")
	b.WriteString(t.Date)
	b.WriteString("  ")
	b.WriteString(amountStyle.Render(t.Amount.StringFixed(2)))
	if t.Description != "" {
		b.WriteString("  ")
		b.WriteString(t.Description)
	}
	if models.IsTempID(t.ID) {
		b.WriteString("  ")
		b.WriteString(warningStyle.Render("(not synced)"))
	}
	return b.String()
}

// Category formats a category as a single list line
func Category(c models.Category) string {
	return fmt.Sprintf("%s  %s %s", subtleStyle.Render(shortID(c.ID)), titleStyle.Render(c.Name), subtleStyle.Render("("+string(c.Type)+")"))
}

// BudgetSummary formats one row of the monthly budget aggregation
func BudgetSummary(s models.BudgetSummary) string {
	line := fmt.Sprintf("%s  %s / %s", titleStyle.Render(s.CategoryName), amountStyle.Render(s.Spent.StringFixed(2)), s.Limit.StringFixed(2))
	if s.Spent.GreaterThanOrEqual(s.Limit) && s.Limit.IsPositive() {
		line += "  " + errorStyle.Render("over budget")
	}
	return line
}

// OutboxEntry formats a queued mutation for the outbox listing
func OutboxEntry(e db.OutboxEntry) string {
	style, ok := statusStyles[e.Status]
	if !ok {
		style = subtleStyle
	}
	line := fmt.Sprintf("%s  %-20s %s", subtleStyle.Render(shortID(e.ID)), e.Mutation.Type, style.Render(string(e.Status)))
	if e.LastError != "" {
		line += "\n    " + errorStyle.Render(e.LastError)
	}
	return line
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
