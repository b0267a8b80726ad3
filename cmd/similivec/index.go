package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var indexVerify bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the index and print its statistics",
	Long: `Load the corpus directory into the document store, build the graph and
print the indexing report and graph statistics as JSON.

Examples:
  similivec index --corpus ./docs
  similivec index -c similivec.yaml --verify`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().BoolVar(&indexVerify, "verify", false, "Check the graph invariants after building")
}

func runIndex(cmd *cobra.Command, args []string) error {
	a, report, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if indexVerify {
		if err := a.svc.Index().Verify(); err != nil {
			return fmt.Errorf("graph verification failed: %w", err)
		}
	}
	stats, err := a.svc.Stats(cmd.Context())
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"report": report,
		"stats":  stats,
	})
}
