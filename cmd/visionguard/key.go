package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MJE43/vision-guard-go/internal/config"
	"github.com/MJE43/vision-guard-go/internal/secrets"
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage the stored Gemini API key",
	Long: `Store or remove the Gemini API key in the OS keyring.

A key set through diagnosis.api_key or GEMINI_API_KEY takes precedence over
the stored one. When no keyring is available the key is written to
secrets.fallback_path with owner-only permissions.`,
}

var keySetCmd = &cobra.Command{
	Use:   "set [key]",
	Short: "Store the API key (read from stdin when omitted)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runKeySet,
}

var keyDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove the stored API key",
	Args:  cobra.NoArgs,
	RunE:  runKeyDelete,
}

func init() {
	keyCmd.AddCommand(keySetCmd, keyDeleteCmd)
}

// keyStore only needs the secrets section, so the log level override is
// not applied.
func keyStore() (*secrets.Store, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return secrets.NewStore(cfg.Secrets.Service, cfg.Secrets.FallbackPath), nil
}

func runKeySet(cmd *cobra.Command, args []string) error {
	var key string
	if len(args) == 1 {
		key = args[0]
	} else {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read key: %w", err)
		}
		key = line
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("key is empty")
	}

	store, err := keyStore()
	if err != nil {
		return err
	}
	if err := store.SetAPIKey(secrets.Gemini, key); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "API key stored")
	return nil
}

func runKeyDelete(cmd *cobra.Command, args []string) error {
	store, err := keyStore()
	if err != nil {
		return err
	}
	if err := store.DeleteAPIKey(secrets.Gemini); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "API key removed")
	return nil
}
