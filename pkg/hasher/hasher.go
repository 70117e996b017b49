// Package hasher 把原始内容变成内容指纹：
// 表格行→规范串→SHA-256，文本→固定块→逐块 SHA-256，
// 二进制→按大小选整文件或逐块。纯计算，无副作用，无 I/O。
package hasher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"runtime"
	"strings"

	"hashvault/pkg/chunker"
	"hashvault/pkg/types"

	"golang.org/x/sync/errgroup"
)

// Strategy 是二进制内容的指纹策略
type Strategy int

const (
	StrategyWholeFile Strategy = iota // 整文件单一指纹 (kind=binary, index=0)
	StrategyBlockwise                 // 固定块逐块指纹 (kind=block)
)

// DefaultBinaryThreshold 之下的二进制内容整文件哈希，之上逐块
const DefaultBinaryThreshold = 100 * 1024 * 1024 // 100MB

// Config 控制块大小、策略阈值与批量并发度
type Config struct {
	BlockSize       int   // 文本分块大小 (字节)，默认 4KB
	BinaryBlockSize int   // 二进制分块大小 (字节)，默认 2MB
	BinaryThreshold int64 // 达到该大小的二进制内容走分块策略，默认 100MB
	Workers         int   // 批量计算并发度，0 = NumCPU
}

func (c Config) withDefaults() Config {
	if c.BlockSize <= 0 {
		c.BlockSize = chunker.DefaultTextBlockSize
	}
	if c.BinaryBlockSize <= 0 {
		c.BinaryBlockSize = chunker.DefaultBinaryBlockSize
	}
	if c.BinaryThreshold <= 0 {
		c.BinaryThreshold = DefaultBinaryThreshold
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	return c
}

// Computer 是无状态的指纹计算器，可被任意多个 goroutine 并发使用
type Computer struct {
	cfg Config
}

func New(cfg Config) *Computer {
	return &Computer{cfg: cfg.withDefaults()}
}

// Canonicalize 把一行单元格转成规范串：各单元格的规范形式用竖线连接。
// 参与哈希的是这个规范串而不是原始行——两行只有规范形式一致才同指纹，
// 来源 API 的空白或数字格式抖动在这里被吸收掉。
func Canonicalize(row types.Row) string {
	parts := make([]string, len(row))
	for i, cell := range row {
		parts[i] = cell.Canonical()
	}
	return strings.Join(parts, "|")
}

// digest 对原始字节做 SHA-256，输出 64 位小写十六进制
func digest(data []byte) types.Digest {
	sum := sha256.Sum256(data)
	return types.Digest(hex.EncodeToString(sum[:]))
}

// HashRow 计算单行指纹 (kind=row)，index 是行在表格中的位置
func (c *Computer) HashRow(row types.Row, index int) types.Hash {
	return types.Hash{
		Value:        digest([]byte(Canonicalize(row))),
		Kind:         types.KindRow,
		ContentIndex: index,
		Meta:         map[string]any{"row_length": len(row)},
	}
}

// HashBlock 计算单个分块指纹 (kind=block)
func (c *Computer) HashBlock(block []byte, index int) types.Hash {
	return types.Hash{
		Value:        digest(block),
		Kind:         types.KindBlock,
		ContentIndex: index,
		Meta:         map[string]any{"block_size": len(block)},
	}
}

// HashBinary 计算整文件二进制指纹 (kind=binary，下标恒为 0)
func (c *Computer) HashBinary(data []byte) types.Hash {
	return types.Hash{
		Value:        digest(data),
		Kind:         types.KindBinary,
		ContentIndex: 0,
		Meta:         map[string]any{"file_size": len(data)},
	}
}

// SelectStrategy 按内容大小决定二进制指纹策略。
// 低于阈值整文件一次哈希；达到阈值逐块哈希，
// 增量对比时未变化的块就能被逐块跳过，不必每轮重算整个大文件。
func (c *Computer) SelectStrategy(size int64) Strategy {
	if size >= c.cfg.BinaryThreshold {
		return StrategyBlockwise
	}
	return StrategyWholeFile
}

// ComputeRowBatch 逐行计算指纹，ContentIndex = 行在输入中的位置 (0 起)。
// 行与行相互独立，这里用有界并发跑批；结果按下标落位，顺序确定。
func (c *Computer) ComputeRowBatch(ctx context.Context, rows []types.Row) ([]types.Hash, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	hashes := make([]types.Hash, len(rows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)

	for i, row := range rows {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			hashes[i] = c.HashRow(row, i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return hashes, nil
}

// ComputeTextBlocks 把文档文本按固定块切分后逐块指纹
func (c *Computer) ComputeTextBlocks(ctx context.Context, text string) ([]types.Hash, error) {
	return c.hashBlocks(ctx, chunker.Split([]byte(text), c.cfg.BlockSize))
}

// ComputeBinary 按策略计算二进制内容指纹。
// 策略选择对调用方透明：给原始字节即可，整文件还是逐块由大小决定。
func (c *Computer) ComputeBinary(ctx context.Context, data []byte) ([]types.Hash, error) {
	if c.SelectStrategy(int64(len(data))) == StrategyWholeFile {
		return []types.Hash{c.HashBinary(data)}, nil
	}
	return c.hashBlocks(ctx, chunker.Split(data, c.cfg.BinaryBlockSize))
}

func (c *Computer) hashBlocks(ctx context.Context, blocks [][]byte) ([]types.Hash, error) {
	if len(blocks) == 0 {
		return nil, nil
	}

	hashes := make([]types.Hash, len(blocks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)

	for i, block := range blocks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			hashes[i] = c.HashBlock(block, i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return hashes, nil
}
