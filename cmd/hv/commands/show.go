package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	showFileID string
	showScope  string
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show stored hashes for a file scope",
	RunE: func(cmd *cobra.Command, args []string) error {
		if HV == nil {
			return fmt.Errorf("app not initialized")
		}

		hashes, err := HV.Service.StoredHashes(cmd.Context(), showFileID, showScope)
		if err != nil {
			return fmt.Errorf("failed to load hashes: %w", err)
		}
		if len(hashes) == 0 {
			fmt.Println("No hashes stored for this scope.")
			return nil
		}

		// 对齐输出 (像 git ls-tree)
		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintf(tw, "INDEX\tKIND\tDIGEST\n")
		for _, h := range hashes {
			fmt.Fprintf(tw, "%d\t%s\t%s\n", h.ContentIndex, h.Kind, string(h.Value)[:16])
		}
		tw.Flush()

		fmt.Printf("\n%d hashes total.\n", len(hashes))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)

	showCmd.Flags().StringVar(&showFileID, "file-id", "", "external file identifier (required)")
	showCmd.Flags().StringVarP(&showScope, "scope", "s", "", "scope within the file")
	_ = showCmd.MarkFlagRequired("file-id")
}
