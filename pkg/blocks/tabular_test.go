package blocks_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corra-ai/corra-ai/pkg/blocks"
	"github.com/corra-ai/corra-ai/pkg/types"
)

func budgetTable() blocks.TableData {
	return blocks.TableData{
		Columns: []string{"department", "budget", "actual"},
		Rows: [][]string{
			{"Engineering", "1000", "1200"},
			{"Engineering", "500", "450"},
			{"Marketing", "800", "700"},
			{"Marketing", "200", "260"},
		},
	}
}

func TestBuildTabularVariance(t *testing.T) {
	drafts, meta, err := blocks.BuildTabular(budgetTable(), blocks.Options{})
	require.NoError(t, err)
	require.NotNil(t, meta)

	var analyses []blocks.Draft
	for _, d := range drafts {
		if d.Type == types.BLOCK_TYPE_ANALYSIS {
			analyses = append(analyses, d)
		}
	}
	require.Len(t, analyses, 1, "budget/actual 列应产出且仅产出一个差异分析块")

	a := analyses[0]
	assert.Equal(t, types.BLOCK_INDEX_ANALYSIS_BASE, a.Index)
	assert.Equal(t, 0.8, a.Importance)
	assert.Equal(t, float64(2500), a.Metadata["total_budget"])
	assert.Equal(t, float64(2610), a.Metadata["total_actual"])
	assert.Equal(t, float64(110), a.Metadata["total_variance"])
}

func TestBuildTabularRowGroups(t *testing.T) {
	drafts, _, err := blocks.BuildTabular(budgetTable(), blocks.Options{})
	require.NoError(t, err)

	var groups []blocks.Draft
	for _, d := range drafts {
		if d.Type == types.BLOCK_TYPE_ROW_GROUP {
			groups = append(groups, d)
		}
	}
	require.Len(t, groups, 2, "department 有两个取值，应产出两个分组块")

	// 分组键按字典序排列，保证重跑结果一致
	assert.Equal(t, 0, groups[0].Index)
	assert.Contains(t, groups[0].Content, "Engineering")
	assert.Contains(t, groups[1].Content, "Marketing")

	for _, g := range groups {
		agg, ok := g.Metadata["aggregates"].(map[string]map[string]float64)
		require.True(t, ok)
		assert.Contains(t, agg, "budget")
		assert.Contains(t, agg, "actual")
		assert.GreaterOrEqual(t, g.Importance, types.IMPORTANCE_MIN)
		assert.LessOrEqual(t, g.Importance, types.IMPORTANCE_MAX)
	}
}

func TestBuildTabularSummary(t *testing.T) {
	drafts, _, err := blocks.BuildTabular(budgetTable(), blocks.Options{})
	require.NoError(t, err)

	var summary *blocks.Draft
	for i := range drafts {
		if drafts[i].Type == types.BLOCK_TYPE_SUMMARY {
			require.Nil(t, summary, "概要块应当只有一个")
			summary = &drafts[i]
		}
	}
	require.NotNil(t, summary)
	assert.Equal(t, types.BLOCK_INDEX_SUMMARY, summary.Index)
	assert.InDelta(t, types.IMPORTANCE_SUMMARY, summary.Importance, 1e-9)
	assert.Contains(t, summary.Content, "4 rows, 3 columns")
	assert.Contains(t, summary.Content, "budget: sum=2500")

	stats, ok := summary.Metadata["numeric_columns"].(types.BlockMetadata)
	require.True(t, ok)
	budget, ok := stats["budget"].(map[string]float64)
	require.True(t, ok)
	assert.Equal(t, float64(2500), budget["sum"])
	assert.Equal(t, float64(625), budget["avg"])
	assert.Equal(t, float64(200), budget["min"])
	assert.Equal(t, float64(1000), budget["max"])
}

func TestBuildTabularRowRangeFallback(t *testing.T) {
	// id 列基数等于行数，不是合格的分组列，应退回按行区间切块
	table := blocks.TableData{
		Columns: []string{"id", "note"},
		Rows:    make([][]string, 0, 120),
	}
	for i := 0; i < 120; i++ {
		table.Rows = append(table.Rows, []string{fmt.Sprintf("id-%03d", i), "free text"})
	}

	drafts, _, err := blocks.BuildTabular(table, blocks.Options{RowsPerRange: 50})
	require.NoError(t, err)

	var ranges []blocks.Draft
	for _, d := range drafts {
		if d.Type == types.BLOCK_TYPE_ROW_RANGE {
			ranges = append(ranges, d)
		}
	}
	require.Len(t, ranges, 3, "120 行按 50 行切应得 3 个区间块")
	assert.Equal(t, 1, ranges[0].Metadata["row_start"])
	assert.Equal(t, 50, ranges[0].Metadata["row_end"])
	assert.Equal(t, 101, ranges[2].Metadata["row_start"])
	assert.Equal(t, 120, ranges[2].Metadata["row_end"])
}

func TestBuildTabularEmpty(t *testing.T) {
	_, _, err := blocks.BuildTabular(blocks.TableData{}, blocks.Options{})
	assert.Error(t, err)
}

func TestBuildTabularImportanceClamp(t *testing.T) {
	// 纯文本列、单行分组，重要度应被钳制到下界之上
	table := blocks.TableData{
		Columns: []string{"status", "note"},
		Rows: [][]string{
			{"open", "a"}, {"closed", "b"}, {"closed", "c"},
			{"open", "d"}, {"open", "e"}, {"closed", "f"},
		},
	}
	drafts, _, err := blocks.BuildTabular(table, blocks.Options{})
	require.NoError(t, err)

	for _, d := range drafts {
		assert.GreaterOrEqual(t, d.Importance, types.IMPORTANCE_MIN)
		assert.LessOrEqual(t, d.Importance, types.IMPORTANCE_MAX)
	}
}

func TestBuildTabularFileMeta(t *testing.T) {
	table := blocks.TableData{
		Columns: []string{"date", "amount"},
		Rows: [][]string{
			{"2024-01-05", "10"},
			{"2024-03-20", "20"},
			{"2024-02-11", ""},
		},
	}
	_, meta, err := blocks.BuildTabular(table, blocks.Options{})
	require.NoError(t, err)
	require.NotNil(t, meta)

	assert.Equal(t, 3, meta.RowCount)
	assert.Equal(t, 2, meta.ColumnCount)
	assert.Equal(t, "2024-01-05", meta.TimeRangeSt)
	assert.Equal(t, "2024-03-20", meta.TimeRangeEt)
	assert.InDelta(t, 5.0/6.0, meta.QualityScore, 1e-9)

	require.Len(t, meta.Columns, 2)
	assert.Equal(t, types.COLUMN_TYPE_DATETIME, meta.Columns[0].Type)
	assert.Equal(t, types.COLUMN_TYPE_NUMERIC, meta.Columns[1].Type)
	assert.Equal(t, 1, meta.Columns[1].NullCount)
}
