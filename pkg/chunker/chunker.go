// Package chunker 提供固定大小的内容切分。
// 指纹按块对齐：块下标 = 块在原始内容中的位置，
// 相同内容永远切出相同的块序列。
package chunker

// 默认块大小 (单位: 字节)
const (
	DefaultTextBlockSize   = 4 * 1024        // 4KB，文档文本分块
	DefaultBinaryBlockSize = 2 * 1024 * 1024 // 2MB，大文件二进制分块
)

// Split 把内容按固定大小切成连续分块。
// 顺序保持不变，最后一块允许不满。空内容返回 nil。
// 返回的分块与原始数据共享底层数组，调用方只读。
func Split(data []byte, size int) [][]byte {
	if len(data) == 0 || size <= 0 {
		return nil
	}

	blocks := make([][]byte, 0, Count(len(data), size))
	for start := 0; start < len(data); start += size {
		end := start + size
		if end > len(data) {
			end = len(data)
		}
		blocks = append(blocks, data[start:end])
	}
	return blocks
}

// Count 返回切分后的块数 = ceil(n / size)
func Count(n, size int) int {
	if n <= 0 || size <= 0 {
		return 0
	}
	return (n + size - 1) / size
}
