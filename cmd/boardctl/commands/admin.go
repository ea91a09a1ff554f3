package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/medforce/boardstate/internal/printer"
)

var clearAll bool

var clearCmd = &cobra.Command{
	Use:   "clear [PATIENT_ID]",
	Short: "Evict cached board state",
	Long: `Evict a patient's whole keyspace (items, snapshot, zone config and
positions) so the next read resyncs from source, or wipe every board key
with --all.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runClear,
}

var reloadCmd = &cobra.Command{
	Use:   "reload PATIENT_ID",
	Short: "Force a reload from the fallback sources",
	Long: `Re-run the fallback chain for a patient and overwrite the cached
board, regardless of the current origin tag or freshness window.`,
	Args: cobra.ExactArgs(1),
	RunE: runReload,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache tier statistics",
	RunE:  runStats,
}

func init() {
	clearCmd.Flags().BoolVar(&clearAll, "all", false, "Clear every patient's board state")
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(reloadCmd)
	rootCmd.AddCommand(statsCmd)
}

func runClear(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	adm, client, err := newAdmin()
	if err != nil {
		return err
	}
	defer client.Close()

	switch {
	case clearAll:
		if err := adm.ClearAll(ctx); err != nil {
			return err
		}
		printer.Success("cleared all board cache entries\n")
	case len(args) == 1:
		if err := adm.ClearPatient(ctx, args[0]); err != nil {
			return err
		}
		printer.Success("cleared board cache for %s\n", args[0])
	default:
		return printer.Error(
			"nothing to clear",
			"Specify a patient ID or --all.",
			[]string{"boardctl clear PT-1", "boardctl clear --all"},
		)
	}
	return nil
}

func runReload(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	adm, client, err := newAdmin()
	if err != nil {
		return err
	}
	defer client.Close()

	if err := adm.ReloadFromSource(ctx, args[0]); err != nil {
		return printer.Error(
			"reload failed",
			err.Error(),
			[]string{"Check the fallback source configuration in board.yml"},
		)
	}
	printer.Success("reloaded board for %s from source\n", args[0])
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	adm, client, err := newAdmin()
	if err != nil {
		return err
	}
	defer client.Close()

	st, err := adm.Stats(ctx)
	if err != nil {
		return err
	}

	printer.Printf("Entries:  %d\n", st.EntryCount)
	printer.Printf("Hits:     %d\n", st.Hits)
	printer.Printf("Misses:   %d\n", st.Misses)
	printer.Printf("Hit rate: %.2f\n", st.HitRate)
	return nil
}
