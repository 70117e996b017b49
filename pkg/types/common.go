// pkg/types/common.go
package types

// Digest 代表一段内容的指纹 (SHA-256 Hex String，64 位小写十六进制)
// 这是一个“值对象”，应当是不可变的。
type Digest string

func (d Digest) String() string { return string(d) }

func (d Digest) IsZero() bool { return d == "" }

// IsValid 校验磁盘契约：长度必须是 64，且每个字符都是十六进制数字。
// 持久化层把不满足这个形状的记录当作损坏数据剔除。
func (d Digest) IsValid() bool {
	if len(d) != 64 {
		return false
	}
	for i := 0; i < len(d); i++ {
		c := d[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// Kind 表示指纹的计算粒度
type Kind string

const (
	KindRow    Kind = "row"    // 表格单行
	KindBlock  Kind = "block"  // 文本或大文件的固定分块
	KindBinary Kind = "binary" // 整文件二进制
)

func (k Kind) Valid() bool {
	switch k {
	case KindRow, KindBlock, KindBinary:
		return true
	}
	return false
}

func (k Kind) String() string { return string(k) }

// FileType 表示内容来源的文件类型
type FileType string

const (
	FileTypeSheet FileType = "sheet"
	FileTypeDoc   FileType = "doc"
	FileTypePDF   FileType = "pdf"
)

func (t FileType) Valid() bool {
	switch t {
	case FileTypeSheet, FileTypeDoc, FileTypePDF:
		return true
	}
	return false
}

func (t FileType) String() string { return string(t) }

// Hash 是一次指纹计算的完整结果。
// 身份由 (Kind, ContentIndex) 决定；Value 是该身份下的内容摘要，
// Meta 只是注记 (行长、块大小之类)，永远不参与身份或对比。
type Hash struct {
	Value        Digest         `json:"value"`
	Kind         Kind           `json:"kind"`
	ContentIndex int            `json:"content_index"`
	Meta         map[string]any `json:"meta,omitempty"`
}

// HashKey 是指纹在一个 (fileID, scope) 组内的身份键
type HashKey struct {
	Kind  Kind
	Index int
}

func (h Hash) Key() HashKey {
	return HashKey{Kind: h.Kind, Index: h.ContentIndex}
}
