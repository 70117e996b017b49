package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var cleanupOlderThan int

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove old operation log entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		if HV == nil {
			return fmt.Errorf("app not initialized")
		}

		// 0 天时让服务层用配置的保留期
		olderThan := time.Duration(cleanupOlderThan) * 24 * time.Hour
		removed, err := HV.Service.Cleanup(cmd.Context(), olderThan)
		if err != nil {
			return fmt.Errorf("failed to cleanup logs: %w", err)
		}

		fmt.Printf("🧹 Removed %d stale log entries.\n", removed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cleanupCmd)

	cleanupCmd.Flags().IntVar(&cleanupOlderThan, "older-than", 0, "remove log entries older than this many days (0 = configured retention)")
}
