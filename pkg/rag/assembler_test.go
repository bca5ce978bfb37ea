package rag_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corra-ai/corra-ai/pkg/rag"
	"github.com/corra-ai/corra-ai/pkg/types"
)

func match(id, name, content string) types.BlockMatch {
	return types.BlockMatch{
		BlockID:     id,
		DisplayName: name,
		Content:     content,
	}
}

func TestAssembleBudgetNeverExceeded(t *testing.T) {
	scopes := []rag.ScopedMatches{
		{
			Scope: types.SCOPE_THREAD,
			Matches: []types.BlockMatch{
				match("b1", "report", strings.Repeat("a", 400)),
				match("b2", "report", strings.Repeat("b", 400)),
				match("b3", "report", strings.Repeat("c", 400)),
			},
		},
	}

	res := rag.Assemble(scopes, rag.Options{TokenBudget: 220})
	assert.LessOrEqual(t, res.TokensUsed, 220)
	assert.Len(t, res.BlocksUsed, 2, "第三个块放不下应被跳过而非截断")
	assert.LessOrEqual(t, rag.EstimateTokens(res.Context), 220)
}

func TestAssembleZeroBudget(t *testing.T) {
	scopes := []rag.ScopedMatches{
		{Scope: types.SCOPE_THREAD, Matches: []types.BlockMatch{match("b1", "x", "content")}},
	}

	res := rag.Assemble(scopes, rag.Options{TokenBudget: 0})
	assert.Empty(t, res.Context)
	assert.Zero(t, res.TokensUsed)
	assert.Empty(t, res.BlocksUsed)
}

func TestAssembleScopePriority(t *testing.T) {
	scopes := []rag.ScopedMatches{
		{Scope: types.SCOPE_THREAD, Matches: []types.BlockMatch{match("t1", "thread doc", strings.Repeat("t", 200))}},
		{Scope: types.SCOPE_AGENT, Matches: []types.BlockMatch{match("a1", "agent doc", strings.Repeat("g", 200))}},
		{Scope: types.SCOPE_GLOBAL, Matches: []types.BlockMatch{match("g1", "global doc", strings.Repeat("o", 200))}},
	}

	res := rag.Assemble(scopes, rag.Options{TokenBudget: 130})
	// 预算只够两个块，全局作用域的应被挤掉
	assert.Equal(t, []string{"t1", "a1"}, res.BlocksUsed)
	assert.True(t, strings.Index(res.Context, "thread doc") < strings.Index(res.Context, "agent doc"))
	assert.NotContains(t, res.Context, "global doc")
}

func TestAssemblePerScopeBudget(t *testing.T) {
	scopes := []rag.ScopedMatches{
		{
			Scope: types.SCOPE_THREAD,
			Matches: []types.BlockMatch{
				match("t1", "doc", strings.Repeat("t", 200)),
				match("t2", "doc", strings.Repeat("u", 200)),
			},
		},
		{Scope: types.SCOPE_GLOBAL, Matches: []types.BlockMatch{match("g1", "ref", strings.Repeat("o", 200))}},
	}

	res := rag.Assemble(scopes, rag.Options{
		TokenBudget:    1000,
		PerScopeBudget: map[types.EntryScope]int{types.SCOPE_THREAD: 60},
	})
	// thread 限额只够一个块，剩下的预算留给 global
	assert.Equal(t, []string{"t1", "g1"}, res.BlocksUsed)
}

func TestAssembleDedup(t *testing.T) {
	same := strings.Repeat("duplicate content ", 20)
	scopes := []rag.ScopedMatches{
		{Scope: types.SCOPE_THREAD, Matches: []types.BlockMatch{match("t1", "a", same)}},
		{Scope: types.SCOPE_GLOBAL, Matches: []types.BlockMatch{match("g1", "b", same)}},
	}

	res := rag.Assemble(scopes, rag.Options{TokenBudget: 10000})
	assert.Equal(t, []string{"t1"}, res.BlocksUsed)
}

func TestAssembleRendersHeaderAndDescription(t *testing.T) {
	m := match("b1", "budget table", "row data here")
	m.Description = "2024 department budgets"
	scopes := []rag.ScopedMatches{{Scope: types.SCOPE_AGENT, Matches: []types.BlockMatch{m}}}

	res := rag.Assemble(scopes, rag.Options{TokenBudget: 10000})
	require.Contains(t, res.Context, "## budget table")
	assert.Contains(t, res.Context, "2024 department budgets")
	assert.Contains(t, res.Context, "row data here")
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, rag.EstimateTokens(""))
	assert.Equal(t, 25, rag.EstimateTokens(strings.Repeat("x", 100)))
}
