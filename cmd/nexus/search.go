package main

import (
	"fmt"

	"github.com/fatih/color"
	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	nexus "github.com/obinexus/nexus-search"
)

var (
	searchFuzzy     bool
	searchLimit     int
	searchThreshold float64
	searchRegex     string
	searchFields    []string
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := args[0]
		req := nexus.SearchRequest{
			Fuzzy:     searchFuzzy,
			Limit:     searchLimit,
			Threshold: searchThreshold,
			Fields:    searchFields,
		}
		if searchRegex != "" {
			req.Regex = searchRegex
		} else {
			req.Query = query
		}
		hits, err := engine.Search(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}

		if len(hits) == 0 {
			color.Yellow("no results")
			return nil
		}

		scoreColor := color.New(color.FgGreen, color.Bold)
		idColor := color.New(color.FgCyan)
		for i, hit := range hits {
			scoreColor.Printf("%6.3f  ", hit.Score)
			idColor.Printf("%s\n", hit.DocID)
			if hit.Document != nil {
				body, _ := json.Marshal(hit.Document.Fields["content"])
				fmt.Printf("        %s\n", truncate(string(body), 160))
			}
			if i < len(hits)-1 {
				fmt.Println()
			}
		}
		return nil
	},
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func init() {
	searchCmd.Flags().BoolVar(&searchFuzzy, "fuzzy", false, "enable fuzzy matching")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "maximum results")
	searchCmd.Flags().Float64Var(&searchThreshold, "threshold", 0, "minimum normalized score (default 0.5)")
	searchCmd.Flags().StringVar(&searchRegex, "regex", "", "search by regex pattern instead of a term query")
	searchCmd.Flags().StringSliceVar(&searchFields, "fields", nil, "restrict the search to these fields")
}
