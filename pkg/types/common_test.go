package types

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDigest_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		input Digest
		want  bool
	}{
		{
			name:  "Valid Digest (64 hex chars)",
			input: Digest(strings.Repeat("a", 64)),
			want:  true,
		},
		{
			name:  "Uppercase hex accepted",
			input: Digest(strings.Repeat("A", 32) + strings.Repeat("0", 32)),
			want:  true,
		},
		{
			name:  "Too Short",
			input: Digest("abc"),
			want:  false,
		},
		{
			name:  "Empty",
			input: Digest(""),
			want:  false,
		},
		{
			name:  "Too Long",
			input: Digest(strings.Repeat("a", 65)),
			want:  false,
		},
		{
			name:  "Right length, non-hex chars",
			input: Digest(strings.Repeat("z", 64)),
			want:  false,
		},
		{
			name:  "Hyphen sneaks in",
			input: Digest(strings.Repeat("a", 63) + "-"),
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.input.IsValid())
		})
	}
}

func TestDigest_String(t *testing.T) {
	s := "aabbcc"
	d := Digest(s)
	assert.Equal(t, s, d.String())
	assert.False(t, d.IsZero())

	var zero Digest
	assert.True(t, zero.IsZero())
}

func TestKind_Valid(t *testing.T) {
	assert.True(t, KindRow.Valid())
	assert.True(t, KindBlock.Valid())
	assert.True(t, KindBinary.Valid())
	assert.False(t, Kind("chunk").Valid())
	assert.False(t, Kind("").Valid())
}

func TestFileType_Valid(t *testing.T) {
	assert.True(t, FileTypeSheet.Valid())
	assert.True(t, FileTypeDoc.Valid())
	assert.True(t, FileTypePDF.Valid())
	assert.False(t, FileType("image").Valid())
}

func TestHash_Key(t *testing.T) {
	h := Hash{Value: Digest(strings.Repeat("a", 64)), Kind: KindRow, ContentIndex: 7}
	assert.Equal(t, HashKey{Kind: KindRow, Index: 7}, h.Key())

	// 身份只看 (Kind, ContentIndex)：摘要和注记不同不影响 Key
	other := Hash{Value: Digest(strings.Repeat("b", 64)), Kind: KindRow, ContentIndex: 7, Meta: map[string]any{"row_length": 3}}
	assert.Equal(t, h.Key(), other.Key())
}
