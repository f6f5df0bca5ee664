package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Nicolanasr/expenses-tracker/internal/config"
	"github.com/Nicolanasr/expenses-tracker/internal/output"
	"github.com/Nicolanasr/expenses-tracker/internal/syncclient"
)

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Register with the server and store credentials",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := syncclient.New(config.GetServerURL(), "")
		resp, err := client.Signup(args[0])
		if err != nil {
			return fmt.Errorf("signup: %w", err)
		}

		if err := config.SaveAuth(&config.AuthCredentials{
			APIKey: resp.APIKey,
			UserID: resp.UserID,
			Email:  resp.Email,
		}); err != nil {
			return fmt.Errorf("save credentials: %w", err)
		}

		output.Success("logged in as %s", resp.Email)
		return nil
	},
}

var serverCmd = &cobra.Command{
	Use:   "server <url>",
	Short: "Set the server URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		cfg.ServerURL = args[0]
		if err := config.Save(cfg); err != nil {
			return err
		}
		output.Success("server set to %s", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(serverCmd)
}
