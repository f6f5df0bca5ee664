package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Nicolanasr/expenses-tracker/internal/dateparse"
	"github.com/Nicolanasr/expenses-tracker/internal/db"
	"github.com/Nicolanasr/expenses-tracker/internal/models"
	"github.com/Nicolanasr/expenses-tracker/internal/output"
	"github.com/Nicolanasr/expenses-tracker/internal/syncclient"
)

var txFlags struct {
	amount      string
	category    string
	account     string
	description string
	payment     string
	date        string
}

var txListFlags struct {
	from     string
	to       string
	category string
	account  string
	payment  string
	sort     string
}

var txCmd = &cobra.Command{
	Use:     "tx",
	Aliases: []string{"transaction"},
	Short:   "Manage transactions",
}

var txAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Record a transaction",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		in := models.TransactionInput{
			AccountID:     txFlags.account,
			CategoryID:    txFlags.category,
			Amount:        txFlags.amount,
			Description:   txFlags.description,
			PaymentMethod: txFlags.payment,
			Date:          txFlags.date,
		}
		if in.Date == "" {
			in.Date = time.Now().Format("2006-01-02")
		} else {
			parsed, perr := dateparse.ParseDate(in.Date)
			if perr != nil {
				return perr
			}
			in.Date = parsed
		}

		t, err := a.client.CreateTransaction(in)
		if err == nil {
			output.Success("added %s %s", t.Amount.StringFixed(2), t.Description)
			return nil
		}
		if !syncclient.IsNetworkError(err) {
			return err
		}

		// Offline: capture the intent and show the entity immediately.
		data, merr := json.Marshal(in)
		if merr != nil {
			return merr
		}
		tempID, qerr := a.queue.Enqueue(models.Mutation{Type: models.MutTransactionCreate, Data: data})
		if qerr != nil {
			output.Error("action not saved: %v", qerr)
			return qerr
		}
		output.Info("recorded as %s, will sync when online", tempID)
		return nil
	},
}

var txListCmd = &cobra.Command{
	Use:   "list",
	Short: "List transactions",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		filter := syncclient.TransactionFilter{
			From:       txListFlags.from,
			To:         txListFlags.to,
			CategoryID: txListFlags.category,
			AccountID:  txListFlags.account,
			Payment:    txListFlags.payment,
			Sort:       txListFlags.sort,
		}
		key := db.Fingerprint(filter)

		txns, err := a.client.ListTransactions(filter)
		if err == nil {
			// Overwrite the cache entry for this exact filter combination.
			if data, merr := json.Marshal(txns); merr == nil {
				if cerr := a.store.PutCacheEntry(db.CollectionTransactions, key, data); cerr != nil {
					slog.Warn("cache write", "err", cerr)
				}
			}
			printTransactions(txns)
			return nil
		}
		if !syncclient.IsNetworkError(err) {
			return err
		}

		// Offline: serve the last known-good response for this filter, plus
		// any creates still waiting in the outbox.
		var txns2 []models.Transaction
		data, ok, cerr := a.store.GetCacheEntry(db.CollectionTransactions, key)
		if cerr != nil {
			slog.Warn("cache read", "err", cerr)
		}
		if ok {
			if err := json.Unmarshal(data, &txns2); err != nil {
				return fmt.Errorf("decode cached transactions: %w", err)
			}
		}
		txns2 = append(txns2, pendingCreates(a)...)
		if len(txns2) == 0 {
			output.Warning("offline and nothing cached for this filter")
			return nil
		}
		output.Warning("offline — showing cached results")
		printTransactions(txns2)
		return nil
	},
}

var txEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Edit a transaction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		current, err := findTransaction(a, args[0])
		if err != nil {
			return err
		}

		in := models.TransactionInput{
			ID:            current.ID,
			AccountID:     pick(txFlags.account, current.AccountID),
			CategoryID:    pick(txFlags.category, current.CategoryID),
			Amount:        pick(txFlags.amount, current.Amount.String()),
			Description:   pick(txFlags.description, current.Description),
			PaymentMethod: pick(txFlags.payment, string(current.PaymentMethod)),
			Date:          pick(txFlags.date, current.Date),
			UpdatedAt:     current.UpdatedAt.UTC().Format(time.RFC3339Nano),
		}
		if txFlags.date != "" {
			parsed, perr := dateparse.ParseDate(txFlags.date)
			if perr != nil {
				return perr
			}
			in.Date = parsed
		}

		t, err := a.client.UpdateTransaction(current.ID, in)
		if err == nil {
			output.Success("updated %s", t.ID)
			return nil
		}
		if !syncclient.IsNetworkError(err) {
			return err
		}

		data, merr := json.Marshal(in)
		if merr != nil {
			return merr
		}
		if _, qerr := a.queue.Enqueue(models.Mutation{Type: models.MutTransactionUpdate, Data: data}); qerr != nil {
			output.Error("action not saved: %v", qerr)
			return qerr
		}
		return nil
	},
}

var txRmCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"delete"},
	Short:   "Delete a transaction",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		id := args[0]

		// An entity created offline and never synced is simply un-created.
		if models.IsTempID(id) {
			data, merr := json.Marshal(models.DeleteInput{ID: id})
			if merr != nil {
				return merr
			}
			if _, qerr := a.queue.Enqueue(models.Mutation{Type: models.MutTransactionDelete, Data: data}); qerr != nil {
				return qerr
			}
			output.Success("discarded unsynced transaction %s", id)
			return nil
		}

		current, err := findTransaction(a, id)
		if err != nil {
			return err
		}
		updatedAt := current.UpdatedAt.UTC().Format(time.RFC3339Nano)

		err = a.client.DeleteTransaction(id, updatedAt)
		if err == nil {
			output.Success("deleted %s", id)
			return nil
		}
		if !syncclient.IsNetworkError(err) {
			return err
		}

		data, merr := json.Marshal(models.DeleteInput{ID: id, UpdatedAt: updatedAt})
		if merr != nil {
			return merr
		}
		if _, qerr := a.queue.Enqueue(models.Mutation{Type: models.MutTransactionDelete, Data: data}); qerr != nil {
			output.Error("action not saved: %v", qerr)
			return qerr
		}
		return nil
	},
}

// findTransaction locates a transaction by id, asking the server first and
// falling back to the local cache when offline.
func findTransaction(a *appContext, id string) (*models.Transaction, error) {
	txns, err := a.client.ListTransactions(syncclient.TransactionFilter{})
	if err == nil {
		for i := range txns {
			if txns[i].ID == id {
				return &txns[i], nil
			}
		}
		return nil, fmt.Errorf("transaction %s not found", id)
	}
	if !syncclient.IsNetworkError(err) {
		return nil, err
	}

	raw, ok, cerr := a.store.FindCachedEntity(db.CollectionTransactions, id)
	if cerr != nil {
		slog.Warn("cache read", "err", cerr)
	}
	if !ok {
		return nil, fmt.Errorf("offline and transaction %s is not cached", id)
	}
	var t models.Transaction
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("decode cached transaction: %w", err)
	}
	return &t, nil
}

// pendingCreates returns optimistic transactions from queued creates.
func pendingCreates(a *appContext) []models.Transaction {
	entries, err := a.queue.Pending()
	if err != nil {
		slog.Warn("read outbox", "err", err)
		return nil
	}
	var out []models.Transaction
	for _, e := range entries {
		if e.Mutation.Type != models.MutTransactionCreate {
			continue
		}
		var t models.Transaction
		if err := json.Unmarshal(e.Mutation.Data, &t); err != nil {
			continue
		}
		out = append(out, t)
	}
	return out
}

func printTransactions(txns []models.Transaction) {
	for _, t := range txns {
		fmt.Println(output.Transaction(t))
	}
}

// pick returns the flag value when set, otherwise the current value.
func pick(flag, current string) string {
	if flag != "" {
		return flag
	}
	return current
}

func init() {
	txAddCmd.Flags().StringVarP(&txFlags.amount, "amount", "a", "", "amount (required)")
	txAddCmd.MarkFlagRequired("amount")
	txAddCmd.Flags().StringVarP(&txFlags.category, "category", "c", "", "category id")
	txAddCmd.Flags().StringVar(&txFlags.account, "account", "", "account id")
	txAddCmd.Flags().StringVarP(&txFlags.description, "desc", "d", "", "description")
	txAddCmd.Flags().StringVarP(&txFlags.payment, "payment", "p", "", "payment method (cash|card|transfer|other)")
	txAddCmd.Flags().StringVar(&txFlags.date, "date", "", "date (YYYY-MM-DD, \"yesterday\", \"-3d\"; default today)")

	txEditCmd.Flags().StringVarP(&txFlags.amount, "amount", "a", "", "new amount")
	txEditCmd.Flags().StringVarP(&txFlags.category, "category", "c", "", "new category id")
	txEditCmd.Flags().StringVar(&txFlags.account, "account", "", "new account id")
	txEditCmd.Flags().StringVarP(&txFlags.description, "desc", "d", "", "new description")
	txEditCmd.Flags().StringVarP(&txFlags.payment, "payment", "p", "", "new payment method")
	txEditCmd.Flags().StringVar(&txFlags.date, "date", "", "new date")

	txListCmd.Flags().StringVar(&txListFlags.from, "from", "", "start date (inclusive)")
	txListCmd.Flags().StringVar(&txListFlags.to, "to", "", "end date (inclusive)")
	txListCmd.Flags().StringVarP(&txListFlags.category, "category", "c", "", "filter by category id")
	txListCmd.Flags().StringVar(&txListFlags.account, "account", "", "filter by account id")
	txListCmd.Flags().StringVarP(&txListFlags.payment, "payment", "p", "", "filter by payment method")
	txListCmd.Flags().StringVar(&txListFlags.sort, "sort", "", "sort order (date_asc)")

	txCmd.AddCommand(txAddCmd, txListCmd, txEditCmd, txRmCmd)
	rootCmd.AddCommand(txCmd)
}
