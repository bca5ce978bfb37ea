package v1

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corra-ai/corra-ai/pkg/blocks"
	"github.com/corra-ai/corra-ai/pkg/types"
)

func TestRankMatchesOrder(t *testing.T) {
	matches := []types.BlockMatch{
		{BlockID: "low", Score: 0.3, Importance: 0.9, BlockIndex: 0},
		{BlockID: "high", Score: 0.8, Importance: 0.2, BlockIndex: 5},
		{BlockID: "tie-b", Score: 0.5, Importance: 0.5, BlockIndex: 2},
		{BlockID: "tie-a", Score: 0.5, Importance: 0.5, BlockIndex: 1},
		{BlockID: "tie-important", Score: 0.5, Importance: 0.8, BlockIndex: 9},
	}

	ranked := rankMatches(matches, 0.2, 0)
	require.Len(t, ranked, 5)
	assert.Equal(t, "high", ranked[0].BlockID)
	assert.Equal(t, "tie-important", ranked[1].BlockID)
	assert.Equal(t, "tie-a", ranked[2].BlockID)
	assert.Equal(t, "tie-b", ranked[3].BlockID)
	assert.Equal(t, "low", ranked[4].BlockID)
}

func TestRankMatchesThresholdAndLimit(t *testing.T) {
	matches := []types.BlockMatch{
		{BlockID: "a", Score: 0.9},
		{BlockID: "b", Score: 0.19},
		{BlockID: "c", Score: 0.5},
		{BlockID: "d", Score: 0.4},
	}

	ranked := rankMatches(matches, 0.2, 2)
	require.Len(t, ranked, 2)
	assert.Equal(t, "a", ranked[0].BlockID)
	assert.Equal(t, "c", ranked[1].BlockID)
}

func TestRankMatchesDeterministic(t *testing.T) {
	matches := []types.BlockMatch{
		{BlockID: "x", Score: 0.5, Importance: 0.5, BlockIndex: 3},
		{BlockID: "y", Score: 0.5, Importance: 0.5, BlockIndex: 1},
		{BlockID: "z", Score: 0.5, Importance: 0.5, BlockIndex: 2},
	}

	first := rankMatches(append([]types.BlockMatch{}, matches...), 0, 0)
	for range 10 {
		again := rankMatches(append([]types.BlockMatch{}, matches...), 0, 0)
		assert.Equal(t, first, again)
	}
}

func TestDraftsToBlocksParentResolution(t *testing.T) {
	drafts := []blocks.Draft{
		{Type: types.BLOCK_TYPE_ROW_GROUP, Index: 0, Content: "parent", ParentIndex: -1},
		{Type: types.BLOCK_TYPE_ROW_GROUP, Index: 1, Content: "child", ParentIndex: 0},
		{Type: types.BLOCK_TYPE_SUMMARY, Index: types.BLOCK_INDEX_SUMMARY, Content: "summary", ParentIndex: -1},
	}

	rows := draftsToBlocks("entry-1", drafts)
	require.Len(t, rows, 3)
	for _, row := range rows {
		assert.Equal(t, "entry-1", row.EntryID)
		assert.NotEmpty(t, row.ID)
	}

	assert.Nil(t, rows[0].ParentBlockID)
	require.NotNil(t, rows[1].ParentBlockID)
	assert.Equal(t, rows[0].ID, *rows[1].ParentBlockID)
	assert.Nil(t, rows[2].ParentBlockID)
}

func TestCombinedArgsAssembleOptions(t *testing.T) {
	args := CombinedArgs{
		TokenBudget: 500,
		PerScopeBudget: map[types.EntryScope]int{
			types.SCOPE_THREAD: 100,
		},
	}

	opts := args.assembleOptions(2000)
	assert.Equal(t, 500, opts.TokenBudget)
	require.NotNil(t, opts.PerScopeBudget)
	assert.Equal(t, 100, opts.PerScopeBudget[types.SCOPE_THREAD])

	// 未设置总预算时回退到配置默认值，子预算仍然生效
	opts = CombinedArgs{PerScopeBudget: args.PerScopeBudget}.assembleOptions(2000)
	assert.Equal(t, 2000, opts.TokenBudget)
	assert.Equal(t, 100, opts.PerScopeBudget[types.SCOPE_THREAD])
}

func TestEstimateDraftTokens(t *testing.T) {
	drafts := []blocks.Draft{
		{Content: strings.Repeat("a", 40)},
		{Content: strings.Repeat("b", 60)},
	}
	assert.Equal(t, 25, estimateDraftTokens(drafts))
	assert.Equal(t, 0, estimateDraftTokens(nil))
}

func TestHashTableStable(t *testing.T) {
	table := &blocks.TableData{
		Columns: []string{"部门", "预算"},
		Rows:    [][]string{{"研发", "1000"}, {"市场", "800"}},
	}

	first := hashTable(table)
	assert.Equal(t, first, hashTable(table))

	changed := &blocks.TableData{
		Columns: table.Columns,
		Rows:    [][]string{{"研发", "1000"}, {"市场", "900"}},
	}
	assert.NotEqual(t, first, hashTable(changed))
}
