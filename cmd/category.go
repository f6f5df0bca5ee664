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

var catFlags struct {
	catType string
	color   string
}

var categoryCmd = &cobra.Command{
	Use:     "category",
	Aliases: []string{"cat"},
	Short:   "Manage categories",
}

var categoryAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		in := models.CategoryInput{Name: args[0], Type: catFlags.catType, Color: catFlags.color}

		c, err := a.client.CreateCategory(in)
		if err == nil {
			output.Success("created category %s", c.Name)
			return nil
		}
		if !syncclient.IsNetworkError(err) {
			return err
		}

		data, merr := json.Marshal(in)
		if merr != nil {
			return merr
		}
		if _, qerr := a.queue.Enqueue(models.Mutation{Type: models.MutCategoryCreate, Data: data}); qerr != nil {
			output.Error("action not saved: %v", qerr)
			return qerr
		}
		return nil
	},
}

var categoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List categories",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		const key = "all"
		cats, err := a.client.ListCategories()
		if err == nil {
			if data, merr := json.Marshal(cats); merr == nil {
				if cerr := a.store.PutCacheEntry(db.CollectionCategories, key, data); cerr != nil {
					slog.Warn("cache write", "err", cerr)
				}
			}
			printCategories(cats)
			return nil
		}
		if !syncclient.IsNetworkError(err) {
			return err
		}

		data, ok, cerr := a.store.GetCacheEntry(db.CollectionCategories, key)
		if cerr != nil {
			slog.Warn("cache read", "err", cerr)
		}
		if !ok {
			output.Warning("offline and no cached categories")
			return nil
		}
		var cached []models.Category
		if err := json.Unmarshal(data, &cached); err != nil {
			return fmt.Errorf("decode cached categories: %w", err)
		}
		output.Warning("offline — showing cached results")
		printCategories(cached)
		return nil
	},
}

var categoryRmCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"delete"},
	Short:   "Delete a category",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		id := args[0]
		current, err := findCategory(a, id)
		if err != nil {
			return err
		}
		updatedAt := current.UpdatedAt.UTC().Format(time.RFC3339Nano)

		err = a.client.DeleteCategory(id, updatedAt)
		if err == nil {
			output.Success("deleted category %s", current.Name)
			return nil
		}
		if !syncclient.IsNetworkError(err) {
			return err
		}

		data, merr := json.Marshal(models.DeleteInput{ID: id, UpdatedAt: updatedAt})
		if merr != nil {
			return merr
		}
		if _, qerr := a.queue.Enqueue(models.Mutation{Type: models.MutCategoryDelete, Data: data}); qerr != nil {
			output.Error("action not saved: %v", qerr)
			return qerr
		}
		return nil
	},
}

// findCategory locates a category by id, asking the server first and falling
// back to the local cache when offline.
func findCategory(a *appContext, id string) (*models.Category, error) {
	cats, err := a.client.ListCategories()
	if err == nil {
		for i := range cats {
			if cats[i].ID == id {
				return &cats[i], nil
			}
		}
		return nil, fmt.Errorf("category %s not found", id)
	}
	if !syncclient.IsNetworkError(err) {
		return nil, err
	}

	raw, ok, cerr := a.store.FindCachedEntity(db.CollectionCategories, id)
	if cerr != nil {
		slog.Warn("cache read", "err", cerr)
	}
	if !ok {
		return nil, fmt.Errorf("offline and category %s is not cached", id)
	}
	var c models.Category
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode cached category: %w", err)
	}
	return &c, nil
}

func printCategories(cats []models.Category) {
	for _, c := range cats {
		fmt.Println(output.Category(c))
	}
}

func init() {
	categoryAddCmd.Flags().StringVarP(&catFlags.catType, "type", "t", "expense", "category type (expense|income)")
	categoryAddCmd.Flags().StringVar(&catFlags.color, "color", "", "display color")

	categoryCmd.AddCommand(categoryAddCmd, categoryListCmd, categoryRmCmd)
	rootCmd.AddCommand(categoryCmd)
}
