package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/similivec/similivec/pkg/client"
	"github.com/similivec/similivec/pkg/search"
)

const snippetLength = 160

var (
	searchK      int
	searchJSON   bool
	searchServer string
	searchToken  string
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the corpus",
	Long: `Build the index and run one semantic query against it.

Examples:
  similivec search --corpus ./docs "how are chunks embedded"
  similivec search -k 10 --json "vector search" | jq '.results'
  similivec search --server http://localhost:8080 "vector search"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntVarP(&searchK, "k", "k", search.DefaultK, "Number of chunks to retrieve")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "Output results as JSON")
	searchCmd.Flags().StringVar(&searchServer, "server", "", "Query a running server instead of building a local index")
	searchCmd.Flags().StringVar(&searchToken, "token", "", "Bearer token for --server")
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	var (
		resp *search.Response
		err  error
	)
	if searchServer != "" {
		resp, err = client.New(searchServer, searchToken).Search(cmd.Context(), query, searchK)
	} else {
		resp, err = searchLocal(cmd, query)
	}
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if searchJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	return printResults(cmd.OutOrStdout(), resp)
}

func searchLocal(cmd *cobra.Command, query string) (*search.Response, error) {
	a, _, err := setup(cmd.Context())
	if err != nil {
		return nil, err
	}
	defer a.Close()
	return a.svc.Search(cmd.Context(), query, searchK)
}

func printResults(w io.Writer, resp *search.Response) error {
	if len(resp.Results) == 0 {
		_, err := fmt.Fprintln(w, "No results.")
		return err
	}
	for i, h := range resp.Results {
		if _, err := fmt.Fprintf(w, "%d. %s (similarity %.4f)\n   %s\n", i+1, h.DocumentID, h.Similarity, preview(h.Document.Content)); err != nil {
			return err
		}
	}
	return nil
}

func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > snippetLength {
		return string(r[:snippetLength]) + "..."
	}
	return s
}
