package validator

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"hashvault/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockDigest 生成合法的测试摘要
func mockDigest(input string) types.Digest {
	sum := sha256.Sum256([]byte(input))
	return types.Digest(hex.EncodeToString(sum[:]))
}

// rowHash 是构造 (kind=row) 指纹的速记
func rowHash(index int, seed string) types.Hash {
	return types.Hash{Value: mockDigest(seed), Kind: types.KindRow, ContentIndex: index}
}

func TestIsValidDigest(t *testing.T) {
	assert.True(t, IsValidDigest(mockDigest("x")))
	assert.False(t, IsValidDigest(types.Digest("not-hex-and-wrong-length")))
	assert.False(t, IsValidDigest(types.Digest("")))
	assert.False(t, IsValidDigest(types.Digest(strings.Repeat("g", 64))))
}

func TestIsValidHash(t *testing.T) {
	valid := rowHash(0, "data")
	assert.True(t, IsValidHash(valid))

	tests := []struct {
		name string
		h    types.Hash
	}{
		{
			name: "Bad digest",
			h:    types.Hash{Value: "not-hex-and-wrong-length", Kind: types.KindRow, ContentIndex: 0},
		},
		{
			name: "Unknown kind",
			h:    types.Hash{Value: mockDigest("x"), Kind: "chunk", ContentIndex: 0},
		},
		{
			name: "Negative index",
			h:    types.Hash{Value: mockDigest("x"), Kind: types.KindRow, ContentIndex: -1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, IsValidHash(tt.h))
		})
	}
}

func TestValidateBatch(t *testing.T) {
	ok := []types.Hash{rowHash(0, "a"), rowHash(1, "b")}
	require.NoError(t, ValidateBatch(ok))

	// 第二个是坏的：报错要指出位置
	bad := []types.Hash{rowHash(0, "a"), {Value: "xyz", Kind: types.KindRow, ContentIndex: 1}}
	err := ValidateBatch(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "position 1")
}

func TestCompare_Classification(t *testing.T) {
	// 经典场景：位置 0 不变、位置 1 改值、位置 2 消失、位置 3 新增
	old := []types.Hash{
		rowHash(0, "h1"),
		rowHash(1, "h2"),
		rowHash(2, "h3"),
	}
	latest := []types.Hash{
		rowHash(0, "h1"),
		rowHash(1, "h2-modified"),
		rowHash(3, "h4"),
	}

	cs := Compare(old, latest)

	require.Len(t, cs.Added, 1)
	assert.Equal(t, 3, cs.Added[0].ContentIndex)

	require.Len(t, cs.Modified, 1)
	assert.Equal(t, 1, cs.Modified[0].ContentIndex)
	assert.Equal(t, mockDigest("h2-modified"), cs.Modified[0].Value, "Modified 里是新摘要")

	require.Len(t, cs.Deleted, 1)
	assert.Equal(t, 2, cs.Deleted[0].ContentIndex)

	assert.Equal(t, 1, cs.UnchangedCount)
	assert.True(t, cs.HasChanges())

	sum := cs.Summarize()
	assert.Equal(t, Summary{Added: 1, Modified: 1, Deleted: 1, Unchanged: 1, TotalChanges: 3}, sum)
}

func TestCompare_IdentityIsKindAndIndex(t *testing.T) {
	// 相同内容挪到了别的位置：旧位置算删除，新位置算新增，不做内容追踪
	old := []types.Hash{rowHash(0, "same")}
	latest := []types.Hash{rowHash(5, "same")}

	cs := Compare(old, latest)
	require.Len(t, cs.Added, 1)
	require.Len(t, cs.Deleted, 1)
	assert.Equal(t, 5, cs.Added[0].ContentIndex)
	assert.Equal(t, 0, cs.Deleted[0].ContentIndex)
	assert.Zero(t, cs.UnchangedCount)

	// 同下标不同粒度是两个独立身份
	blockOld := types.Hash{Value: mockDigest("x"), Kind: types.KindBlock, ContentIndex: 0}
	rowNew := types.Hash{Value: mockDigest("x"), Kind: types.KindRow, ContentIndex: 0}
	cs2 := Compare([]types.Hash{blockOld}, []types.Hash{rowNew})
	assert.Len(t, cs2.Added, 1)
	assert.Len(t, cs2.Deleted, 1)
}

func TestCompare_UnsortedInput(t *testing.T) {
	// 输入顺序打乱不影响分类结果
	old := []types.Hash{rowHash(2, "c"), rowHash(0, "a"), rowHash(1, "b")}
	latest := []types.Hash{rowHash(1, "b"), rowHash(2, "c"), rowHash(0, "a")}

	cs := Compare(old, latest)
	assert.False(t, cs.HasChanges())
	assert.Equal(t, 3, cs.UnchangedCount)
}

func TestCompare_EmptySides(t *testing.T) {
	latest := []types.Hash{rowHash(0, "a"), rowHash(1, "b")}

	// 没有既往记录：全部算新增 (首轮同步)
	cs := Compare(nil, latest)
	assert.Len(t, cs.Added, 2)
	assert.Zero(t, cs.UnchangedCount)

	// 新内容为空：既往全部算删除
	cs2 := Compare(latest, nil)
	assert.Len(t, cs2.Deleted, 2)
	assert.True(t, cs2.HasChanges())

	// 双空：无变更
	cs3 := Compare(nil, nil)
	assert.False(t, cs3.HasChanges())
	assert.Zero(t, cs3.UnchangedCount)
}

func TestSummarize_NoChanges(t *testing.T) {
	cs := Compare([]types.Hash{rowHash(0, "a")}, []types.Hash{rowHash(0, "a")})
	sum := cs.Summarize()

	assert.Zero(t, sum.TotalChanges)
	assert.Equal(t, 1, sum.Unchanged)
	assert.False(t, cs.HasChanges())
}
