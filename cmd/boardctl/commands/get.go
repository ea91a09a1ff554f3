package commands

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/medforce/boardstate/internal/printer"
	"github.com/medforce/boardstate/pkg/board"
)

var getCmd = &cobra.Command{
	Use:   "get PATIENT_ID ITEM_ID",
	Short: "Show one cached board item as JSON",
	Args:  cobra.ExactArgs(2),
	RunE:  runGet,
}

func init() {
	rootCmd.AddCommand(getCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	client, _, err := newBoardClient()
	if err != nil {
		return err
	}
	defer client.Close()

	item, err := client.GetItem(ctx, args[0], args[1])
	if err != nil {
		if board.IsNotFound(err) {
			return printer.Error(
				"item not found",
				"No cached item '"+args[1]+"' for patient "+args[0]+".",
				[]string{"List cached items:\n  boardctl list " + args[0]},
			)
		}
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(item)
}
