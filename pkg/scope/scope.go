// Package scope 作用域 owner id 的归一化与等价集解析。
// 写入和查询两侧都必须经过这里，大小写、空白差异才不会把
// 同一个 owner 拆成多份数据。
package scope

import (
	"sort"
	"strings"
	"unicode"

	"github.com/samber/lo"
)

// Normalize owner id 的全函数归一化：去首尾空白、转小写、
// 连续空白折叠为单个下划线。任何输入都有定义，包括空串。
func Normalize(owner string) string {
	owner = strings.TrimSpace(strings.ToLower(owner))
	if owner == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(owner))
	inSpace := false
	for _, r := range owner {
		if unicode.IsSpace(r) {
			inSpace = true
			continue
		}
		if inSpace {
			b.WriteByte('_')
			inSpace = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Resolver 等价集查找。配置里声明的每组 owner 互相可见，
// 组内成员在构建时就做了归一化。
type Resolver struct {
	sets map[string][]string // 归一化 owner → 所在等价集（含自身）
}

// NewResolver 由配置的等价集构建。同一 owner 出现在多组时各组合并。
func NewResolver(groups [][]string) *Resolver {
	r := &Resolver{sets: make(map[string][]string)}
	for _, group := range groups {
		members := lo.Uniq(lo.Map(group, func(owner string, _ int) string {
			return Normalize(owner)
		}))
		members = lo.Filter(members, func(m string, _ int) bool { return m != "" })
		for _, m := range members {
			r.sets[m] = lo.Uniq(append(r.sets[m], members...))
		}
	}
	return r
}

// Resolve 返回查询时应当命中的全部 owner id：归一化后的自身排第一，
// 其余等价成员按字典序跟在后面。没有等价集时只含自身。
func (r *Resolver) Resolve(owner string) []string {
	norm := Normalize(owner)
	if norm == "" {
		return nil
	}

	peers := lo.Filter(r.sets[norm], func(m string, _ int) bool { return m != norm })
	sort.Strings(peers)
	return append([]string{norm}, peers...)
}
