package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Nicolanasr/expenses-tracker/internal/db"
	"github.com/Nicolanasr/expenses-tracker/internal/models"
	"github.com/Nicolanasr/expenses-tracker/internal/output"
	"github.com/Nicolanasr/expenses-tracker/internal/syncclient"
)

var budgetFlags struct {
	month string
}

var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Manage monthly budgets",
}

var budgetSetCmd = &cobra.Command{
	Use:   "set <category-id> <limit>",
	Short: "Set the monthly spending limit for a category",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		month := budgetFlags.month
		if month == "" {
			month = time.Now().Format("2006-01")
		}
		in := models.BudgetSaveInput{CategoryID: args[0], Month: month, Limit: args[1]}

		b, err := a.client.SaveBudget(in)
		if err == nil {
			output.Success("budget for %s set to %s", b.Month, b.Limit.StringFixed(2))
			return nil
		}
		if !syncclient.IsNetworkError(err) {
			return err
		}

		data, merr := json.Marshal(in)
		if merr != nil {
			return merr
		}
		if _, qerr := a.queue.Enqueue(models.Mutation{Type: models.MutBudgetSave, Data: data}); qerr != nil {
			output.Error("action not saved: %v", qerr)
			return qerr
		}
		return nil
	},
}

var budgetListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"summary"},
	Short:   "Show budget limits and spend for a month",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		month := budgetFlags.month
		if month == "" {
			month = time.Now().Format("2006-01")
		}
		key := db.Fingerprint(struct {
			Month string
		}{month})

		rows, err := a.client.BudgetSummary(month)
		if err == nil {
			if data, merr := json.Marshal(rows); merr == nil {
				if cerr := a.store.PutCacheEntry(db.CollectionBudgets, key, data); cerr != nil {
					slog.Warn("cache write", "err", cerr)
				}
			}
			printBudgetSummary(month, rows)
			return nil
		}
		if !syncclient.IsNetworkError(err) {
			return err
		}

		data, ok, cerr := a.store.GetCacheEntry(db.CollectionBudgets, key)
		if cerr != nil {
			slog.Warn("cache read", "err", cerr)
		}
		if !ok {
			output.Warning("offline and no cached budget summary for %s", month)
			return nil
		}
		var cached []models.BudgetSummary
		if err := json.Unmarshal(data, &cached); err != nil {
			return fmt.Errorf("decode cached summary: %w", err)
		}
		output.Warning("offline — showing cached results")
		printBudgetSummary(month, cached)
		return nil
	},
}

func printBudgetSummary(month string, rows []models.BudgetSummary) {
	if len(rows) == 0 {
		output.Info("no budgets set for %s", month)
		return
	}
	for _, s := range rows {
		fmt.Println(output.BudgetSummary(s))
	}
}

func init() {
	budgetCmd.PersistentFlags().StringVarP(&budgetFlags.month, "month", "m", "", "month as YYYY-MM (default: current)")
	budgetCmd.AddCommand(budgetSetCmd, budgetListCmd)
	rootCmd.AddCommand(budgetCmd)
}
