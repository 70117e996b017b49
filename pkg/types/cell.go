package types

import (
	"strconv"
	"strings"
)

type cellKind uint8

const (
	cellNull cellKind = iota
	cellString
	cellNumber
)

// Cell 是封闭的单元格变体：字符串 | 数字 | 空。
// 表格源的动态取值在进入核心前收敛成这三种形态，
// 规范化因此可以穷举，不存在“没见过的类型”分支。
type Cell struct {
	kind cellKind
	str  string
	num  float64
}

func StringCell(s string) Cell { return Cell{kind: cellString, str: s} }

func NumberCell(n float64) Cell { return Cell{kind: cellNumber, num: n} }

func NullCell() Cell { return Cell{} }

func (c Cell) IsNull() bool { return c.kind == cellNull }

// Canonical 返回单元格的规范文本形式：
//   - 字符串：去掉首尾空白后的字面文本，绝不按数字重新解析
//   - 数字：最短往返十进制表示，不带指数 (2.50 与 2.5 同值同形)
//   - 空：空串
//
// 指纹哈希的是规范形式。两个单元格只有规范形式一致才会同指纹。
func (c Cell) Canonical() string {
	switch c.kind {
	case cellString:
		return strings.TrimSpace(c.str)
	case cellNumber:
		return strconv.FormatFloat(c.num, 'f', -1, 64)
	default:
		return ""
	}
}

// Row 是一行单元格的有序序列
type Row []Cell
