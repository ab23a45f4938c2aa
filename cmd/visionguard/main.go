// Command visionguard serves the vision tests, eye exercises and assistant
// views over HTTP, and carries a few local tools around them.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MJE43/vision-guard-go/internal/config"
)

var (
	// Global flags
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "visionguard",
	Short:         "Vision tests, eye exercises and an eye-health assistant",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: ./visionguard.yaml or ~/.config/visionguard/visionguard.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level")

	rootCmd.AddCommand(serveCmd, keyCmd, jumpCmd, versionCmd)
}

// loadConfig reads the configuration and applies command-line overrides.
func loadConfig() (*config.Loader, *config.Config, error) {
	loader, err := config.NewLoader(configPath)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := loader.Config()
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
	}
	return loader, cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
