package main

import (
	"fmt"
	"os"

	"github.com/pricewatch/crawler/config"
	"github.com/pricewatch/crawler/internal/app"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfg     *config.Config
	logger  *zap.Logger
	verbose bool
	format  string
)

var rootCmd = &cobra.Command{
	Use:   "pricecheck",
	Short: "Resolve store prices for a product from the terminal",
	Long: `pricecheck runs the PriceWatch crawler engine without the HTTP server.

It reads the same config.yaml / PRICEWATCH_* settings as the server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		if verbose {
			cfg.Log.Level = "debug"
		}

		logger, err = app.NewLogger(cfg)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&format, "format", "human", "Output format (human, json)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
