package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	deleteFileID string
	deleteScope  string
	deleteYes    bool
)

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete stored hashes for a file or a single scope",
	RunE: func(cmd *cobra.Command, args []string) error {
		if HV == nil {
			return fmt.Errorf("app not initialized")
		}

		target := deleteFileID
		if deleteScope != "" {
			target = deleteFileID + "/" + deleteScope
		}

		// 破坏性操作，默认要求确认
		if !deleteYes {
			fmt.Printf("About to delete stored hashes for %s. Continue? [y/N] ", target)
			var answer string
			fmt.Scanln(&answer)
			if strings.ToLower(strings.TrimSpace(answer)) != "y" {
				fmt.Println("Aborted.")
				return nil
			}
		}

		var (
			removed int64
			err     error
		)
		if deleteScope != "" {
			removed, err = HV.Service.DeleteScope(cmd.Context(), deleteFileID, deleteScope)
		} else {
			removed, err = HV.Service.DeleteFile(cmd.Context(), deleteFileID)
		}
		if err != nil {
			return fmt.Errorf("failed to delete hashes: %w", err)
		}

		fmt.Printf("🗑️  Removed %d hash records.\n", removed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)

	deleteCmd.Flags().StringVar(&deleteFileID, "file-id", "", "external file identifier (required)")
	deleteCmd.Flags().StringVarP(&deleteScope, "scope", "s", "", "only delete this scope (default: whole file)")
	deleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "skip confirmation prompt")
	_ = deleteCmd.MarkFlagRequired("file-id")
}
