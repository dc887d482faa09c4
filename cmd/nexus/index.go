package main

import (
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	nexus "github.com/obinexus/nexus-search"
)

// indexDocInput mirrors the JSON shape a caller feeds to `nexus index`: an
// ID (optional, auto-assigned if blank) and an arbitrary content map.
type indexDocInput struct {
	ID      string         `json:"id"`
	Content map[string]any `json:"content"`
}

var indexCmd = &cobra.Command{
	Use:   "index <file.json>",
	Short: "Index documents from a JSON array file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}
		var inputs []indexDocInput
		if err := json.Unmarshal(raw, &inputs); err != nil {
			return fmt.Errorf("parse %s: %w", args[0], err)
		}

		s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		s.Prefix = fmt.Sprintf("indexing %d documents ", len(inputs))
		s.Start()
		defer s.Stop()

		docs := make([]*nexus.Document, len(inputs))
		for i, in := range inputs {
			docs[i] = &nexus.Document{
				ID:     in.ID,
				Fields: map[string]any{"content": in.Content},
			}
		}

		ids, err := engine.AddDocuments(cmd.Context(), docs)
		if err != nil {
			return fmt.Errorf("index documents: %w", err)
		}
		s.Stop()
		fmt.Printf("indexed %d documents\n", len(ids))
		return nil
	},
}
