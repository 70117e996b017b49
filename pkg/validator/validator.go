// Package validator 负责指纹的完整性校验与集合对比。
// 全部是纯函数：无 I/O，无状态，输入相同输出必相同。
package validator

import (
	"fmt"

	"hashvault/pkg/types"
)

// ChangeSet 是一次对比的瞬时结果，每次比较都重新推导，绝不缓存
type ChangeSet struct {
	Added          []types.Hash
	Modified       []types.Hash
	Deleted        []types.Hash
	UnchangedCount int
}

// Summary 是变更数量汇总，TotalChanges = Added + Modified + Deleted
type Summary struct {
	Added        int `json:"added"`
	Modified     int `json:"modified"`
	Deleted      int `json:"deleted"`
	Unchanged    int `json:"unchanged"`
	TotalChanges int `json:"total_changes"`
}

// IsValidDigest 校验摘要字面格式：长度 64 且全为十六进制字符
func IsValidDigest(d types.Digest) bool {
	return d.IsValid()
}

// IsValidHash 校验完整指纹对象：摘要格式合法、粒度已知、下标非负
func IsValidHash(h types.Hash) bool {
	return h.Value.IsValid() && h.Kind.Valid() && h.ContentIndex >= 0
}

// ValidateBatch 逐个校验一批指纹，撞到第一个非法项立即报错。
// 整批拒绝的决定由调用方执行。
func ValidateBatch(hashes []types.Hash) error {
	for i, h := range hashes {
		if !IsValidHash(h) {
			return fmt.Errorf("invalid hash at position %d: kind=%q index=%d value=%q",
				i, h.Kind, h.ContentIndex, h.Value)
		}
	}
	return nil
}

// Compare 以 (Kind, ContentIndex) 为身份对比两组指纹：
//   - 键只在 new 出现 → Added
//   - 两边都有但摘要不同 → Modified (同一位置换了内容，不拆成删+增)
//   - 两边摘要一致 → 计入 UnchangedCount
//   - 键只在 old 出现 → Deleted (位置消失即删除，即使相同内容挪去了别的位置)
//
// 复杂度 O(len(old)+len(new))，不要求输入有序。
func Compare(old, new []types.Hash) *ChangeSet {
	oldByKey := make(map[types.HashKey]types.Hash, len(old))
	for _, h := range old {
		oldByKey[h.Key()] = h
	}

	cs := &ChangeSet{}
	seen := make(map[types.HashKey]struct{}, len(new))

	for _, h := range new {
		key := h.Key()
		seen[key] = struct{}{}

		prev, ok := oldByKey[key]
		switch {
		case !ok:
			cs.Added = append(cs.Added, h)
		case prev.Value != h.Value:
			cs.Modified = append(cs.Modified, h)
		default:
			cs.UnchangedCount++
		}
	}

	// Deleted 按 old 的输入顺序输出，结果确定
	for _, h := range old {
		if _, ok := seen[h.Key()]; !ok {
			cs.Deleted = append(cs.Deleted, h)
		}
	}

	return cs
}

// HasChanges 判断是否存在任何增/改/删
func (cs *ChangeSet) HasChanges() bool {
	return len(cs.Added)+len(cs.Modified)+len(cs.Deleted) > 0
}

// Summarize 输出数量汇总
func (cs *ChangeSet) Summarize() Summary {
	s := Summary{
		Added:     len(cs.Added),
		Modified:  len(cs.Modified),
		Deleted:   len(cs.Deleted),
		Unchanged: cs.UnchangedCount,
	}
	s.TotalChanges = s.Added + s.Modified + s.Deleted
	return s
}
