package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

var knnK int

var knnCmd = &cobra.Command{
	Use:   "knn",
	Short: "Print the k-nearest-neighbor matrix of the graph as JSON",
	Long: `Build the index and print, for every node, its k nearest other nodes.
Indices are row positions, which is the input format UMAP expects.

Examples:
  similivec knn --corpus ./docs -k 15 > knn.json`,
	Args: cobra.NoArgs,
	RunE: runKnn,
}

func init() {
	rootCmd.AddCommand(knnCmd)
	knnCmd.Flags().IntVarP(&knnK, "k", "k", 0, "Neighbors per node (default projection.knn_k)")
}

func runKnn(cmd *cobra.Command, args []string) error {
	a, _, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	m, err := a.svc.KnnMatrix(cmd.Context(), knnK)
	if err != nil {
		return err
	}
	return json.NewEncoder(cmd.OutOrStdout()).Encode(m)
}
