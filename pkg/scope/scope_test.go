package scope_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/corra-ai/corra-ai/pkg/scope"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"User-42":        "user-42",
		"  agent 007  ":  "agent_007",
		"Team\tAlpha":    "team_alpha",
		"a  b   c":       "a_b_c",
		"already_normal": "already_normal",
		"":               "",
		"   ":            "",
	}
	for in, want := range cases {
		assert.Equal(t, want, scope.Normalize(in), "input %q", in)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	for _, in := range []string{"User 42", "MIXED  Case\nID", "plain"} {
		once := scope.Normalize(in)
		assert.Equal(t, once, scope.Normalize(once))
	}
}

func TestResolverEquivalenceSet(t *testing.T) {
	r := scope.NewResolver([][]string{
		{"Acct-1", "acct-001", "ACCT  1"},
	})

	got := r.Resolve("acct-1")
	assert.Equal(t, "acct-1", got[0], "自身必须排第一")
	assert.ElementsMatch(t, []string{"acct-1", "acct-001", "acct_1"}, got)

	// 组内任一成员解析出同一个集合
	assert.ElementsMatch(t, got, r.Resolve("ACCT-001"))
}

func TestResolverNoSet(t *testing.T) {
	r := scope.NewResolver(nil)
	assert.Equal(t, []string{"solo"}, r.Resolve("Solo"))
	assert.Nil(t, r.Resolve("  "))
}

func TestResolverMergedGroups(t *testing.T) {
	r := scope.NewResolver([][]string{
		{"a", "b"},
		{"b", "c"},
	})
	assert.ElementsMatch(t, []string{"b", "a", "c"}, r.Resolve("b"))
}
