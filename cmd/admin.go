package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var indexTimeout time.Duration

var ensureIndexesCmd = &cobra.Command{
	Use:   "ensure-indexes",
	Short: "Create the library's unique indexes when missing",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), indexTimeout)
		defer cancel()

		container, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer container.Close()

		if err := container.GetCatalog().EnsureIndexes(ctx); err != nil {
			return err
		}
		fmt.Println("Indexes ensured")
		return nil
	},
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Print every registered model and where it is stored",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		container, err := bootstrap(context.Background())
		if err != nil {
			return err
		}
		defer container.Close()

		type row struct {
			Model      string `json:"model"`
			Database   string `json:"database"`
			Collection string `json:"collection"`
		}
		var rows []row
		for _, e := range container.GetODMModule().Registry().Entries() {
			rows = append(rows, row{Model: e.Name, Database: e.Config.DatabaseName, Collection: e.Config.CollectionName})
		}

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(rows)
	},
}

var seedSequencesCmd = &cobra.Command{
	Use:   "seed-sequences",
	Short: "Raise each model's id counter to the highest stored id",
	Long: `Run after switching ODM_SEQUENCE_BACKEND so the new backend continues
from the identities already stored instead of reissuing them.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		container, err := bootstrap(context.Background())
		if err != nil {
			return err
		}
		defer container.Close()

		seeded, err := container.GetODMModule().SeedSequences(context.Background())
		for name, floor := range seeded {
			fmt.Printf("%s: %d\n", name, floor)
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(ensureIndexesCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(seedSequencesCmd)
	ensureIndexesCmd.Flags().DurationVar(&indexTimeout, "timeout", 30*time.Second, "Deadline for creating indexes")
}
