// Package rag 上下文拼装。把检索命中的数据块按作用域优先级打包进
// token 预算内，输出可直接注入提示词的上下文文本。纯函数，不触库。
package rag

import (
	"fmt"
	"strings"

	"github.com/corra-ai/corra-ai/pkg/types"
	"github.com/corra-ai/corra-ai/pkg/utils"
)

// 内容前缀去重的采样长度（rune）
const dedupPrefixLen = 128

// ScopedMatches 单个作用域的检索结果，Matches 已按相关度排好序
type ScopedMatches struct {
	Scope   types.EntryScope
	Matches []types.BlockMatch
}

// Options 打包参数。TokenBudget 是硬上限，PerScopeBudget 可选，
// 缺省时单个作用域最多占总预算的份额由调用方控制。
type Options struct {
	TokenBudget    int
	PerScopeBudget map[types.EntryScope]int
}

// Result 拼装结果
type Result struct {
	Context    string
	TokensUsed int
	BlocksUsed []string // 被采纳的 block_id，按输出顺序
}

// EstimateTokens 统一的 token 估算：字节数 / 4。入库与打包两侧
// 必须用同一把尺子，预算不变式才成立。
func EstimateTokens(text string) int {
	return len(text) / 4
}

// Assemble 按 scopes 给定的优先级顺序打包。同一作用域内沿用传入的
// 排序；放不下的块跳过而不是截断，保证估算 token 数永不超预算。
// 预算为 0 或无候选时返回空结果。
func Assemble(scopes []ScopedMatches, opts Options) Result {
	var (
		result Result
		b      strings.Builder
		seen   = make(map[string]bool)
	)

	if opts.TokenBudget <= 0 {
		return result
	}

	for _, scoped := range scopes {
		scopeBudget := opts.TokenBudget - result.TokensUsed
		if limit, ok := opts.PerScopeBudget[scoped.Scope]; ok && limit < scopeBudget {
			scopeBudget = limit
		}

		scopeUsed := 0
		for _, m := range scoped.Matches {
			key := contentKey(m.Content)
			if seen[key] {
				continue
			}

			section := renderBlock(m)
			cost := EstimateTokens(section)
			if cost > scopeBudget-scopeUsed || cost > opts.TokenBudget-result.TokensUsed {
				continue
			}

			seen[key] = true
			b.WriteString(section)
			scopeUsed += cost
			result.TokensUsed += cost
			result.BlocksUsed = append(result.BlocksUsed, m.BlockID)
		}
	}

	result.Context = strings.TrimRight(b.String(), "\n")
	return result
}

func renderBlock(m types.BlockMatch) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n", m.DisplayName)
	if m.Description != "" {
		b.WriteString(m.Description)
		b.WriteString("\n")
	}
	b.WriteString(m.Content)
	b.WriteString("\n\n")
	return b.String()
}

func contentKey(content string) string {
	runes := []rune(content)
	if len(runes) > dedupPrefixLen {
		runes = runes[:dedupPrefixLen]
	}
	return utils.MD5(string(runes))
}
