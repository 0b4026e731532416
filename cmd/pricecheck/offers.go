package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/pricewatch/crawler/internal/app"
	"github.com/pricewatch/crawler/internal/infrastructure/stores"
	"github.com/spf13/cobra"
)

var moduleID string

var offersCmd = &cobra.Command{
	Use:   "offers --module <id> <url>",
	Short: "Run one adapter's price extraction on a product URL",
	Args:  cobra.ExactArgs(1),
	RunE:  runOffers,
}

var locateCmd = &cobra.Command{
	Use:   "locate --module <id> <product name>",
	Short: "Run one adapter's search and print the best matching URL",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runLocate,
}

func init() {
	for _, c := range []*cobra.Command{offersCmd, locateCmd} {
		c.Flags().StringVar(&moduleID, "module", "", "Adapter module id, e.g. "+stores.ModuleCtelecom)
		_ = c.MarkFlagRequired("module")
		rootCmd.AddCommand(c)
	}
}

func adapterContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), cfg.Adapters.Timeout)
}

func runOffers(cmd *cobra.Command, args []string) error {
	registry := stores.NewDefaultRegistry(app.RegistryConfig(cfg), logger)
	adapter, err := registry.Resolve(moduleID)
	if err != nil {
		return fmt.Errorf("%w (known: %s)", err, strings.Join(registry.Modules(), ", "))
	}

	ctx, cancel := adapterContext(cmd)
	defer cancel()

	offers, err := adapter.ExtractOffers(ctx, args[0])
	if err != nil {
		return err
	}

	if format == "json" {
		return writeJSON(cmd.OutOrStdout(), offers)
	}
	return writeOffers(cmd.OutOrStdout(), offers)
}

func runLocate(cmd *cobra.Command, args []string) error {
	registry := stores.NewDefaultRegistry(app.RegistryConfig(cfg), logger)
	adapter, err := registry.Resolve(moduleID)
	if err != nil {
		return fmt.Errorf("%w (known: %s)", err, strings.Join(registry.Modules(), ", "))
	}

	ctx, cancel := adapterContext(cmd)
	defer cancel()

	url, err := adapter.Locate(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	if url == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "not found")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), url)
	return nil
}
