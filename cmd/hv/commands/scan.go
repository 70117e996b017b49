package commands

import (
	"encoding/csv"
	"fmt"
	"os"
	"time"

	"hashvault/pkg/service"
	"hashvault/pkg/types"

	"github.com/spf13/cobra"
)

var (
	scanFileID string
	scanType   string
	scanScope  string
)

var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "Hash a local file and record what changed since the last scan",
	Long: `Read a local file (csv for sheets, plain text for docs, raw bytes for pdf),
compute its content hashes, diff them against the stored state and persist the delta.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if HV == nil {
			return fmt.Errorf("app not initialized")
		}

		fileType := types.FileType(scanType)
		if !fileType.Valid() {
			return fmt.Errorf("invalid --type %q (want sheet, doc or pdf)", scanType)
		}

		// 1. 读取内容
		content, err := readContent(args[0], fileType)
		if err != nil {
			return err
		}

		// 2. 跑流水线
		res := HV.Service.ComputeAndDiff(cmd.Context(), scanFileID, fileType, scanScope, content)

		// 3. 汇报。边界不抛错，这里负责把结构化失败翻译回退出码
		printResult(res)
		if !res.Success {
			return fmt.Errorf("scan failed: %s", res.Error)
		}
		return nil
	},
}

// readContent 按声明的类型读文件：表格吃 CSV，文档吃纯文本，PDF 吃原始字节
func readContent(path string, fileType types.FileType) (service.Content, error) {
	switch fileType {
	case types.FileTypeSheet:
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()

		r := csv.NewReader(f)
		r.FieldsPerRecord = -1 // 行宽不齐是常态
		records, err := r.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("failed to parse csv: %w", err)
		}

		rows := make([]types.Row, len(records))
		for i, rec := range records {
			row := make(types.Row, len(rec))
			for j, field := range rec {
				row[j] = types.StringCell(field)
			}
			rows[i] = row
		}
		return service.SheetContent(rows), nil

	case types.FileTypeDoc:
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		return service.DocContent(raw), nil

	case types.FileTypePDF:
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		return service.PDFContent(raw), nil
	}

	return nil, fmt.Errorf("unsupported file type: %s", fileType)
}

func printResult(res *service.Result) {
	if !res.Success {
		fmt.Printf("❌ %s: %s\n", res.FileID, res.Error)
		return
	}
	if res.Summary == nil {
		fmt.Println("⚠️  Hash engine disabled, nothing scanned.")
		return
	}

	fmt.Printf("✅ %s (%s) scanned in %s\n", res.FileID, res.FileType, res.Duration.Round(time.Millisecond))
	fmt.Printf("   +%d added  ~%d modified  -%d deleted  =%d unchanged\n",
		res.Summary.Added, res.Summary.Modified, res.Summary.Deleted, res.Summary.Unchanged)

	if res.Stored {
		fmt.Printf("   💾 Stored: %d inserted, %d updated\n", res.SaveStats.Inserted, res.SaveStats.Updated)
	} else {
		fmt.Println("   No changes, storage untouched.")
	}
}

func init() {
	rootCmd.AddCommand(scanCmd)

	// 绑定 Flags
	scanCmd.Flags().StringVar(&scanFileID, "file-id", "", "external file identifier (required)")
	scanCmd.Flags().StringVarP(&scanType, "type", "t", "", "file type: sheet, doc or pdf (required)")
	scanCmd.Flags().StringVarP(&scanScope, "scope", "s", "", "scope within the file (sheet tab, doc section)")
	_ = scanCmd.MarkFlagRequired("file-id")
	_ = scanCmd.MarkFlagRequired("type")
}
