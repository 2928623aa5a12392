package worldmodel

import (
	"sort"

	"github.com/samber/lo"
)

// sortedValues 按键升序取出map中的值
func sortedValues[T any](m map[int32]*T) []*T {
	keys := lo.Keys(m)
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return lo.Map(keys, func(k int32, _ int) *T { return m[k] })
}

func deref[T any](ps []*T) []T {
	return lo.Map(ps, func(p *T, _ int) T { return *p })
}
