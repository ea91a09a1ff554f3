package commands

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/medforce/boardstate/internal/printer"
	"github.com/medforce/boardstate/pkg/board"
)

var watchCmd = &cobra.Command{
	Use:   "watch PATIENT_ID",
	Short: "Tail live board mutation events for a patient",
	Long: `Subscribe to a patient's event channel and print every board
mutation as it is published. Delivery is best-effort: events published
while disconnected are not replayed.

Examples:
  # Watch a patient's board activity
  boardctl watch PT-1`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client, _, err := newBoardClient()
	if err != nil {
		return err
	}
	defer client.Close()

	sub, err := client.SubscribeEvents(ctx, args[0])
	if err != nil {
		return err
	}
	defer sub.Close()

	printer.Info("Watching board events for %s (Ctrl-C to stop)\n", args[0])

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-sub.Errors():
			if !ok {
				return nil
			}
			printer.Warning("skipped event: %v\n", err)
		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			printEvent(ev)
		}
	}
}

func printEvent(ev *board.Event) {
	ts := time.UnixMilli(ev.AtMs).Format("15:04:05")
	switch ev.Kind {
	case board.EventNotification:
		printer.Event("%s  %-16s %s\n", ts, ev.Kind, ev.Message)
	case board.EventFocusRequested:
		printer.Event("%s  %-16s %s (zoom %.2f)\n", ts, ev.Kind, ev.ItemID, ev.Zoom)
	default:
		title := ""
		if ev.Item != nil {
			title = ev.Item.Title
		}
		printer.Event("%s  %-16s %s  %s\n", ts, ev.Kind, ev.ItemID, title)
	}
}
