package commands

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show storage statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		if HV == nil {
			return fmt.Errorf("app not initialized")
		}

		stats, err := HV.Service.Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to collect stats: %w", err)
		}

		fmt.Println("📊 HashVault status")
		fmt.Println()

		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintf(tw, "Total records:\t%d\n", stats.TotalRecords)
		fmt.Fprintf(tw, "Tracked files:\t%d\n", stats.TotalFiles)
		for _, ft := range slices.Sorted(maps.Keys(stats.ByFileType)) {
			fmt.Fprintf(tw, "  type %s:\t%d\n", ft, stats.ByFileType[ft])
		}
		for _, k := range slices.Sorted(maps.Keys(stats.ByKind)) {
			fmt.Fprintf(tw, "  kind %s:\t%d\n", k, stats.ByKind[k])
		}
		fmt.Fprintf(tw, "Ops (24h):\t%d\n", stats.RecentOps)
		fmt.Fprintf(tw, "Failed (24h):\t%d\n", stats.RecentFailed)
		tw.Flush()

		if HV.Queue != nil {
			qs := HV.Queue.Stats()
			fmt.Printf("\n🔁 Queue: %d processed, %d failed, depth %d, avg wait %s\n",
				qs.Processed, qs.Failed, qs.Depth, qs.AverageWait)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
