package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"hashvault/pkg/store"
	"hashvault/pkg/types"
)

var (
	verifyFileID string
	verifyScope  string
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check stored hash records for corruption",
	Long:  "扫描持久化记录，检查摘要形状、粒度枚举、索引范围和身份唯一性。",
	RunE: func(cmd *cobra.Command, args []string) error {
		if HV == nil {
			return fmt.Errorf("app not initialized")
		}

		q := HV.DB.GetConn().WithContext(cmd.Context()).
			Order("file_id, scope, kind, content_index")
		if verifyFileID != "" {
			q = q.Where("file_id = ?", verifyFileID)
		}
		if verifyScope != "" {
			q = q.Where("scope = ?", verifyScope)
		}

		var records []store.HashRecord
		if err := q.Find(&records).Error; err != nil {
			return fmt.Errorf("failed to read records: %w", err)
		}

		type identity struct {
			fileID, scope string
			kind          string
			index         int
		}
		seen := make(map[identity]bool, len(records))

		bad := 0
		for _, rec := range records {
			var issues []string
			if !types.Digest(rec.Value).IsValid() {
				issues = append(issues, "corrupt digest")
			}
			if !types.Kind(rec.Kind).Valid() {
				issues = append(issues, fmt.Sprintf("unknown kind %q", rec.Kind))
			}
			if rec.ContentIndex < 0 {
				issues = append(issues, "negative index")
			}
			id := identity{rec.FileID, rec.Scope, rec.Kind, rec.ContentIndex}
			if seen[id] {
				issues = append(issues, "duplicate position")
			}
			seen[id] = true

			if len(issues) > 0 {
				bad++
				fmt.Printf("⚠️  %s/%s kind=%s index=%d: %s\n",
					rec.FileID, rec.Scope, rec.Kind, rec.ContentIndex, strings.Join(issues, ", "))
			}
		}

		if bad == 0 {
			fmt.Printf("✅ %d records verified, all clean.\n", len(records))
			return nil
		}
		return fmt.Errorf("verification found %d bad records out of %d", bad, len(records))
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringVar(&verifyFileID, "file-id", "", "only verify this file")
	verifyCmd.Flags().StringVarP(&verifyScope, "scope", "s", "", "only verify this scope")
}
