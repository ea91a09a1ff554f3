package commands

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/medforce/boardstate/internal/printer"
)

var listOutputFormat string

var listCmd = &cobra.Command{
	Use:   "list PATIENT_ID",
	Short: "List a patient's cached board items",
	Long: `List every board item cached for a patient, in insertion order.

Reads the cache tier directly: a patient that has never been resolved
shows an empty board here even when fallback sources would have data.
Use 'boardctl reload' to force a resolve first.

Output Formats:
  default - One line per item with ID, type and title
  json    - JSON array of complete item objects

Examples:
  # List items for a patient
  boardctl list PT-1

  # Get items as JSON for scripting
  boardctl list PT-1 --output=json | jq -r '.[].id'`,
	Args: cobra.ExactArgs(1),
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVarP(&listOutputFormat, "output", "o", "default", "Output format: default or json")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	client, _, err := newBoardClient()
	if err != nil {
		return err
	}
	defer client.Close()

	items, err := client.ListItems(ctx, args[0])
	if err != nil {
		return printer.Error(
			"failed to list board items",
			err.Error(),
			[]string{"Check the Redis address:\n  boardctl list --redis localhost:6379 " + args[0]},
		)
	}

	switch listOutputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	case "default":
		if len(items) == 0 {
			printer.Info("No cached items for %s\n", args[0])
			return nil
		}
		for _, item := range items {
			printer.Printf("%-40s  %-18s  %s\n", item.ID, item.Type, item.Title)
		}
		printer.Printf("\n%d item(s)\n", len(items))
		return nil
	default:
		return printer.Error(
			"invalid output format",
			"Unknown format: "+listOutputFormat,
			[]string{"Valid formats: default, json"},
		)
	}
}
