package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/use-agent/namecrawl/models"
)

var mergeCmd = &cobra.Command{
	Use:   "merge [dataset...]",
	Short: "Merge leftover per-letter snapshots into the consolidated datasets",
	Long: "Folds the snapshots left by an interrupted or --no-merge crawl into <dataset>.json. " +
		"Datasets without snapshots are left untouched.",
	RunE: func(cmd *cobra.Command, args []string) error {
		letters, _ := cmd.Flags().GetString("letters")
		keys, err := models.ParsePartitionKeys(letters)
		if err != nil {
			return fmt.Errorf("merge: --letters: %w", err)
		}

		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		sets, err := a.registry.Resolve(args)
		if err != nil {
			return err
		}
		for _, d := range sets {
			if err := mergeDataset(cmd.Context(), a.store, d, keys); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	mergeCmd.Flags().String("letters", "", "only merge these letters' snapshots, adding to the existing output")
	rootCmd.AddCommand(mergeCmd)
}
