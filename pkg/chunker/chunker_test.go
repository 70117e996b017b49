package chunker

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_RoundTrip(t *testing.T) {
	// 1. 准备数据：100KB 随机数据，4KB 一块
	data := make([]byte, 100*1024)
	_, err := rand.Read(data)
	require.NoError(t, err)

	blocks := Split(data, 4*1024)

	// 2. 块数必须等于 ceil(len/size)
	assert.Equal(t, Count(len(data), 4*1024), len(blocks))
	assert.Equal(t, 25, len(blocks))

	// 3. 拼回去必须严丝合缝地还原原始内容
	assert.Equal(t, data, bytes.Join(blocks, nil), "拼接所有分块必须精确还原原始内容")
}

func TestSplit_TailBlock(t *testing.T) {
	// 10 字节按 4 字节切：4 + 4 + 2
	data := []byte("0123456789")
	blocks := Split(data, 4)

	require.Len(t, blocks, 3)
	assert.Equal(t, []byte("0123"), blocks[0])
	assert.Equal(t, []byte("4567"), blocks[1])
	assert.Equal(t, []byte("89"), blocks[2], "最后一块允许不满")
}

func TestSplit_ExactMultiple(t *testing.T) {
	// 正好整除时不能多出一个空块
	data := make([]byte, 8*1024)
	blocks := Split(data, 4*1024)

	require.Len(t, blocks, 2)
	assert.Equal(t, 4*1024, len(blocks[0]))
	assert.Equal(t, 4*1024, len(blocks[1]))
}

func TestSplit_Empty(t *testing.T) {
	assert.Nil(t, Split(nil, 4*1024))
	assert.Nil(t, Split([]byte{}, 4*1024))
	assert.Nil(t, Split([]byte("data"), 0), "非法块大小不切分")
}

func TestSplit_Deterministic(t *testing.T) {
	data := make([]byte, 10*1024)
	_, err := rand.Read(data)
	require.NoError(t, err)

	blocks1 := Split(data, 1024)
	blocks2 := Split(data, 1024)
	assert.Equal(t, blocks1, blocks2, "相同数据必须切出完全一致的块序列")
}

func TestCount(t *testing.T) {
	tests := []struct {
		name string
		n    int
		size int
		want int
	}{
		{name: "Exact multiple", n: 8, size: 4, want: 2},
		{name: "With remainder", n: 9, size: 4, want: 3},
		{name: "Smaller than one block", n: 3, size: 4, want: 1},
		{name: "Empty", n: 0, size: 4, want: 0},
		{name: "Invalid size", n: 8, size: 0, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Count(tt.n, tt.size))
		})
	}
}
