package blocks

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/corra-ai/corra-ai/pkg/errors"
	"github.com/corra-ai/corra-ai/pkg/i18n"
	"github.com/corra-ai/corra-ai/pkg/types"
)

// 单个分组块最多列出的行数，超出部分折叠
const maxRowsListed = 20

// 分组组合数上限，超出时逐个去掉末位分组列
const maxGroupCombos = 50

type columnAnalysis struct {
	Spec     types.ColumnSpec
	Values   []string       // 按行对齐的原始值，空串视为 null
	Distinct map[string]int // 非空值的出现次数
	Numbers  []float64      // numeric 列成功解析的数值
}

// BuildTabular 表格策略：列分析 → 类目推断 → 分组列优选 → 分组块/行区间兜底
// → 概要块 → 触发式分析块。非空输入至少产出一个块。
func BuildTabular(table TableData, opts Options) ([]Draft, *types.FileMeta, error) {
	opts = opts.withDefaults()

	if len(table.Columns) == 0 || len(table.Rows) == 0 {
		return nil, nil, errors.New("blocks.BuildTabular.empty", i18n.ERROR_EMPTY_CONTENT, nil)
	}

	cols := analyzeColumns(table)
	categories := opts.Rules.CategoriesFor(table.Columns)
	entities := datasetEntities(cols)

	var drafts []Draft

	grouping := selectGroupingColumns(cols, opts.Rules)
	if len(grouping) > 0 {
		drafts = append(drafts, buildRowGroups(table, cols, grouping, categories)...)
	} else {
		// 没有合格的分组列时按固定行数切块，保证任何形状的数据集都可检索
		drafts = append(drafts, buildRowRanges(table, cols, categories, entities, opts.RowsPerRange)...)
	}

	drafts = append(drafts, buildAnalysisBlocks(table, cols, grouping, categories)...)
	drafts = append(drafts, buildSummaryBlock(table, cols, categories, entities))

	meta := buildFileMeta(table, cols)
	return drafts, meta, nil
}

func analyzeColumns(table TableData) []columnAnalysis {
	cols := make([]columnAnalysis, len(table.Columns))
	for i, name := range table.Columns {
		ca := columnAnalysis{
			Spec:     types.ColumnSpec{Name: name},
			Distinct: make(map[string]int),
		}

		var (
			numericHits  int
			datetimeHits int
			nonNull      int
		)
		for _, row := range table.Rows {
			v := ""
			if i < len(row) {
				v = strings.TrimSpace(row[i])
			}
			ca.Values = append(ca.Values, v)
			if v == "" {
				ca.Spec.NullCount++
				continue
			}
			nonNull++
			ca.Distinct[v]++
			if _, ok := parseNumber(v); ok {
				numericHits++
			}
			if looksDatetime(v) {
				datetimeHits++
			}
		}

		ca.Spec.Cardinality = len(ca.Distinct)
		switch {
		case nonNull > 0 && numericHits*10 >= nonNull*9:
			ca.Spec.Type = types.COLUMN_TYPE_NUMERIC
			for _, v := range ca.Values {
				if n, ok := parseNumber(v); ok {
					ca.Numbers = append(ca.Numbers, n)
				}
			}
		case nonNull > 0 && datetimeHits*10 >= nonNull*8:
			ca.Spec.Type = types.COLUMN_TYPE_DATETIME
		default:
			ca.Spec.Type = types.COLUMN_TYPE_TEXT
		}

		ca.Spec.Samples = sampleValues(ca.Distinct, 5)
		cols[i] = ca
	}
	return cols
}

// selectGroupingColumns 选出 1-3 个“好”的分组列：text 类型、
// 基数落在 [2,20]，列名命中优选关键词的排前面。
func selectGroupingColumns(cols []columnAnalysis, rules *RuleTable) []int {
	type candidate struct {
		idx  int
		rank int
		card int
	}

	var candidates []candidate
	for i, ca := range cols {
		if ca.Spec.Type != types.COLUMN_TYPE_TEXT {
			continue
		}
		if ca.Spec.Cardinality < 2 || ca.Spec.Cardinality > 20 {
			continue
		}
		candidates = append(candidates, candidate{
			idx:  i,
			rank: rules.PriorityRank(ca.Spec.Name),
			card: ca.Spec.Cardinality,
		})
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		if candidates[a].rank != candidates[b].rank {
			return candidates[a].rank < candidates[b].rank
		}
		if candidates[a].card != candidates[b].card {
			return candidates[a].card < candidates[b].card
		}
		return candidates[a].idx < candidates[b].idx
	})

	if len(candidates) > 3 {
		candidates = candidates[:3]
	}

	selected := lo.Map(candidates, func(c candidate, _ int) int { return c.idx })

	// 组合爆炸保护：组合数超限时从末位开始裁剪
	for len(selected) > 1 {
		combos := 1
		for _, idx := range selected {
			combos *= cols[idx].Spec.Cardinality
		}
		if combos <= maxGroupCombos {
			break
		}
		selected = selected[:len(selected)-1]
	}

	return selected
}

func buildRowGroups(table TableData, cols []columnAnalysis, grouping []int, categories []string) []Draft {
	numericRatio := numericColumnRatio(cols)

	groups := make(map[string][]int) // 分组键 → 行号
	for rowIdx := range table.Rows {
		parts := make([]string, 0, len(grouping))
		for _, colIdx := range grouping {
			parts = append(parts, cols[colIdx].Values[rowIdx])
		}
		key := strings.Join(parts, "\x1f")
		groups[key] = append(groups[key], rowIdx)
	}

	keys := lo.Keys(groups)
	sort.Strings(keys)

	drafts := make([]Draft, 0, len(keys))
	for i, key := range keys {
		rowIdxs := groups[key]
		groupValues := strings.Split(key, "\x1f")

		var header strings.Builder
		groupKey := types.BlockMetadata{}
		for gi, colIdx := range grouping {
			if gi > 0 {
				header.WriteString(", ")
			}
			header.WriteString(fmt.Sprintf("%s: %s", cols[colIdx].Spec.Name, groupValues[gi]))
			groupKey[cols[colIdx].Spec.Name] = groupValues[gi]
		}

		aggregates := groupAggregates(cols, rowIdxs)
		sizeRatio := float64(len(rowIdxs)) / float64(len(table.Rows))

		drafts = append(drafts, Draft{
			Type:    types.BLOCK_TYPE_ROW_GROUP,
			Index:   i,
			Content: fmt.Sprintf("%s (%d rows)\n%s", header.String(), len(rowIdxs), formatRows(table, rowIdxs)),
			Summary: fmt.Sprintf("%s — %d rows%s", header.String(), len(rowIdxs), aggregateSummary(aggregates)),
			Metadata: types.BlockMetadata{
				"group_key":  groupKey,
				"row_count":  len(rowIdxs),
				"aggregates": aggregates,
			},
			Categories:  categories,
			Entities:    groupValues,
			Importance:  clampImportance(0.4*sizeRatio + 0.6*numericRatio),
			ParentIndex: -1,
		})
	}
	return drafts
}

func buildRowRanges(table TableData, cols []columnAnalysis, categories, entities []string, rowsPerRange int) []Draft {
	numericRatio := numericColumnRatio(cols)

	var drafts []Draft
	for start := 0; start < len(table.Rows); start += rowsPerRange {
		end := start + rowsPerRange
		if end > len(table.Rows) {
			end = len(table.Rows)
		}
		rowIdxs := make([]int, 0, end-start)
		for i := start; i < end; i++ {
			rowIdxs = append(rowIdxs, i)
		}

		sizeRatio := float64(len(rowIdxs)) / float64(len(table.Rows))
		drafts = append(drafts, Draft{
			Type:    types.BLOCK_TYPE_ROW_RANGE,
			Index:   len(drafts),
			Content: fmt.Sprintf("Rows %d-%d of %d\n%s", start+1, end, len(table.Rows), formatRows(table, rowIdxs)),
			Summary: fmt.Sprintf("Rows %d-%d of %d", start+1, end, len(table.Rows)),
			Metadata: types.BlockMetadata{
				"row_start": start + 1,
				"row_end":   end,
			},
			Categories:  categories,
			Entities:    entities,
			Importance:  clampImportance(0.4*sizeRatio + 0.6*numericRatio),
			ParentIndex: -1,
		})
	}
	return drafts
}

func buildSummaryBlock(table TableData, cols []columnAnalysis, categories, entities []string) Draft {
	var b strings.Builder
	fmt.Fprintf(&b, "Dataset summary: %d rows, %d columns.\n", len(table.Rows), len(table.Columns))

	b.WriteString("Columns: ")
	for i, ca := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s (%s)", ca.Spec.Name, ca.Spec.Type)
	}
	b.WriteString("\n")

	numericStats := types.BlockMetadata{}
	for _, ca := range cols {
		if ca.Spec.Type != types.COLUMN_TYPE_NUMERIC || len(ca.Numbers) == 0 {
			continue
		}
		sum, minV, maxV := reduceNumbers(ca.Numbers)
		avg := sum / float64(len(ca.Numbers))
		numericStats[ca.Spec.Name] = map[string]float64{
			"sum": sum, "avg": avg, "min": minV, "max": maxV,
		}
		fmt.Fprintf(&b, "%s: sum=%s, avg=%s, min=%s, max=%s\n",
			ca.Spec.Name, formatNum(sum), formatNum(avg), formatNum(minV), formatNum(maxV))
	}

	return Draft{
		Type:    types.BLOCK_TYPE_SUMMARY,
		Index:   types.BLOCK_INDEX_SUMMARY,
		Content: strings.TrimSpace(b.String()),
		Summary: fmt.Sprintf("Dataset summary: %d rows, %d columns", len(table.Rows), len(table.Columns)),
		Metadata: types.BlockMetadata{
			"row_count":       len(table.Rows),
			"column_count":    len(table.Columns),
			"numeric_columns": numericStats,
		},
		Categories:  categories,
		Entities:    entities,
		Importance:  types.IMPORTANCE_SUMMARY,
		ParentIndex: -1,
	}
}

// buildAnalysisBlocks 触发式分析块：只有命中列名模式才会产出，
// 没有命中就是零个块。
func buildAnalysisBlocks(table TableData, cols []columnAnalysis, grouping []int, categories []string) []Draft {
	var drafts []Draft

	if d, ok := buildVarianceBlock(table, cols, grouping, categories); ok {
		d.Index = types.BLOCK_INDEX_ANALYSIS_BASE + len(drafts)
		drafts = append(drafts, d)
	}
	if d, ok := buildTrendBlock(table, cols, categories); ok {
		d.Index = types.BLOCK_INDEX_ANALYSIS_BASE + len(drafts)
		drafts = append(drafts, d)
	}
	return drafts
}

// buildVarianceBlock budget 与 actual 两列同时存在时产出预算差异分析
func buildVarianceBlock(table TableData, cols []columnAnalysis, grouping []int, categories []string) (Draft, bool) {
	budgetIdx := MatchColumn(table.Columns, "budget", "预算")
	actualIdx := MatchColumn(table.Columns, "actual", "实际")
	if budgetIdx < 0 || actualIdx < 0 || budgetIdx == actualIdx {
		return Draft{}, false
	}
	if cols[budgetIdx].Spec.Type != types.COLUMN_TYPE_NUMERIC || cols[actualIdx].Spec.Type != types.COLUMN_TYPE_NUMERIC {
		return Draft{}, false
	}

	var totalBudget, totalActual float64
	for rowIdx := range table.Rows {
		if n, ok := parseNumber(cols[budgetIdx].Values[rowIdx]); ok {
			totalBudget += n
		}
		if n, ok := parseNumber(cols[actualIdx].Values[rowIdx]); ok {
			totalActual += n
		}
	}
	totalVariance := totalActual - totalBudget

	metadata := types.BlockMetadata{
		"total_budget":   totalBudget,
		"total_actual":   totalActual,
		"total_variance": totalVariance,
	}
	if totalBudget != 0 {
		metadata["variance_pct"] = totalVariance / totalBudget * 100
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Budget vs actual analysis.\nTotal budget: %s, total actual: %s, variance: %s\n",
		formatNum(totalBudget), formatNum(totalActual), formatNum(totalVariance))

	// 有分组列时附带按类目的差异拆解
	if len(grouping) > 0 {
		groupIdx := grouping[0]
		byCategory := map[string]map[string]float64{}
		for rowIdx := range table.Rows {
			key := cols[groupIdx].Values[rowIdx]
			if key == "" {
				continue
			}
			if byCategory[key] == nil {
				byCategory[key] = map[string]float64{}
			}
			if n, ok := parseNumber(cols[budgetIdx].Values[rowIdx]); ok {
				byCategory[key]["budget"] += n
			}
			if n, ok := parseNumber(cols[actualIdx].Values[rowIdx]); ok {
				byCategory[key]["actual"] += n
			}
		}

		keys := lo.Keys(byCategory)
		sort.Strings(keys)
		for _, key := range keys {
			entry := byCategory[key]
			entry["variance"] = entry["actual"] - entry["budget"]
			fmt.Fprintf(&b, "%s: budget=%s, actual=%s, variance=%s\n",
				key, formatNum(entry["budget"]), formatNum(entry["actual"]), formatNum(entry["variance"]))
		}
		metadata["by_"+cols[groupIdx].Spec.Name] = byCategory
	}

	return Draft{
		Type:        types.BLOCK_TYPE_ANALYSIS,
		Content:     strings.TrimSpace(b.String()),
		Summary:     fmt.Sprintf("Budget variance: %s vs %s", formatNum(totalBudget), formatNum(totalActual)),
		Metadata:    metadata,
		Categories:  categories,
		Importance:  0.8,
		ParentIndex: -1,
	}, true
}

// buildTrendBlock 存在时间类列时产出按周期的数值聚合
func buildTrendBlock(table TableData, cols []columnAnalysis, categories []string) (Draft, bool) {
	timeIdx := -1
	for i, ca := range cols {
		if ca.Spec.Type == types.COLUMN_TYPE_DATETIME {
			timeIdx = i
			break
		}
	}
	if timeIdx < 0 {
		timeIdx = MatchColumn(table.Columns, "year", "quarter", "month", "date", "年", "季度", "月")
	}
	if timeIdx < 0 {
		return Draft{}, false
	}

	hasNumeric := false
	for i, ca := range cols {
		if i != timeIdx && ca.Spec.Type == types.COLUMN_TYPE_NUMERIC {
			hasNumeric = true
			break
		}
	}
	if !hasNumeric {
		return Draft{}, false
	}

	series := map[string]map[string]float64{} // 数值列 → 周期 → sum
	for i, ca := range cols {
		if i == timeIdx || ca.Spec.Type != types.COLUMN_TYPE_NUMERIC {
			continue
		}
		perPeriod := map[string]float64{}
		for rowIdx := range table.Rows {
			period := cols[timeIdx].Values[rowIdx]
			if period == "" {
				continue
			}
			if n, ok := parseNumber(ca.Values[rowIdx]); ok {
				perPeriod[period] += n
			}
		}
		series[ca.Spec.Name] = perPeriod
	}

	periods := lo.Keys(cols[timeIdx].Distinct)
	sort.Strings(periods)

	var b strings.Builder
	fmt.Fprintf(&b, "Trend analysis by %s.\n", cols[timeIdx].Spec.Name)
	for _, period := range periods {
		fmt.Fprintf(&b, "%s:", period)
		first := true
		for _, ca := range cols {
			if ca.Spec.Type != types.COLUMN_TYPE_NUMERIC {
				continue
			}
			if v, ok := series[ca.Spec.Name][period]; ok {
				if !first {
					b.WriteString(",")
				}
				fmt.Fprintf(&b, " %s=%s", ca.Spec.Name, formatNum(v))
				first = false
			}
		}
		b.WriteString("\n")
	}

	return Draft{
		Type:    types.BLOCK_TYPE_ANALYSIS,
		Content: strings.TrimSpace(b.String()),
		Summary: fmt.Sprintf("Trend analysis by %s over %d periods", cols[timeIdx].Spec.Name, len(periods)),
		Metadata: types.BlockMetadata{
			"time_column": cols[timeIdx].Spec.Name,
			"periods":     len(periods),
			"series":      series,
		},
		Categories:  categories,
		Importance:  0.7,
		ParentIndex: -1,
	}, true
}

func buildFileMeta(table TableData, cols []columnAnalysis) *types.FileMeta {
	meta := &types.FileMeta{
		RowCount:    len(table.Rows),
		ColumnCount: len(table.Columns),
	}

	nonNull := 0
	for _, ca := range cols {
		meta.Columns = append(meta.Columns, ca.Spec)
		nonNull += len(ca.Values) - ca.Spec.NullCount
	}
	if cells := len(table.Rows) * len(table.Columns); cells > 0 {
		meta.QualityScore = float64(nonNull) / float64(cells)
	}

	for _, ca := range cols {
		if ca.Spec.Type != types.COLUMN_TYPE_DATETIME {
			continue
		}
		var minT, maxT time.Time
		for _, v := range ca.Values {
			t, ok := parseDatetime(v)
			if !ok {
				continue
			}
			if minT.IsZero() || t.Before(minT) {
				minT = t
			}
			if maxT.IsZero() || t.After(maxT) {
				maxT = t
			}
		}
		if !minT.IsZero() {
			meta.TimeRangeSt = minT.Format("2006-01-02")
			meta.TimeRangeEt = maxT.Format("2006-01-02")
		}
		break
	}

	return meta
}

func groupAggregates(cols []columnAnalysis, rowIdxs []int) map[string]map[string]float64 {
	aggregates := map[string]map[string]float64{}
	for _, ca := range cols {
		if ca.Spec.Type != types.COLUMN_TYPE_NUMERIC {
			continue
		}
		var (
			sum   float64
			count int
		)
		for _, rowIdx := range rowIdxs {
			if n, ok := parseNumber(ca.Values[rowIdx]); ok {
				sum += n
				count++
			}
		}
		if count == 0 {
			continue
		}
		aggregates[ca.Spec.Name] = map[string]float64{
			"sum":   sum,
			"avg":   sum / float64(count),
			"count": float64(count),
		}
	}
	return aggregates
}

func aggregateSummary(aggregates map[string]map[string]float64) string {
	if len(aggregates) == 0 {
		return ""
	}
	names := lo.Keys(aggregates)
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "; %s sum=%s avg=%s", name, formatNum(aggregates[name]["sum"]), formatNum(aggregates[name]["avg"]))
	}
	return b.String()
}

func formatRows(table TableData, rowIdxs []int) string {
	var b strings.Builder
	for n, rowIdx := range rowIdxs {
		if n >= maxRowsListed {
			fmt.Fprintf(&b, "... (%d more rows)\n", len(rowIdxs)-maxRowsListed)
			break
		}
		row := table.Rows[rowIdx]
		for i, col := range table.Columns {
			if i > 0 {
				b.WriteString(" | ")
			}
			v := ""
			if i < len(row) {
				v = row[i]
			}
			fmt.Fprintf(&b, "%s=%s", col, v)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func numericColumnRatio(cols []columnAnalysis) float64 {
	if len(cols) == 0 {
		return 0
	}
	numeric := 0
	for _, ca := range cols {
		if ca.Spec.Type == types.COLUMN_TYPE_NUMERIC {
			numeric++
		}
	}
	return float64(numeric) / float64(len(cols))
}

func reduceNumbers(nums []float64) (sum, minV, maxV float64) {
	minV, maxV = nums[0], nums[0]
	for _, n := range nums {
		sum += n
		if n < minV {
			minV = n
		}
		if n > maxV {
			maxV = n
		}
	}
	return
}

func sampleValues(distinct map[string]int, limit int) []string {
	values := lo.Keys(distinct)
	sort.Slice(values, func(a, b int) bool {
		if distinct[values[a]] != distinct[values[b]] {
			return distinct[values[a]] > distinct[values[b]]
		}
		return values[a] < values[b]
	})
	if len(values) > limit {
		values = values[:limit]
	}
	return values
}

// formatNum 数值展示：最多两位小数，去掉多余的尾零
func formatNum(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}

var numberCleaner = strings.NewReplacer(",", "", "$", "", "€", "", "¥", "", "%", "", " ", "")

func parseNumber(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	cleaned := numberCleaner.Replace(s)
	if cleaned == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

var datetimeLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"2006-01",
	"Jan 2, 2006",
	"January 2006",
}

func looksDatetime(s string) bool {
	_, ok := parseDatetime(s)
	return ok
}

func parseDatetime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// datasetEntities 从基数适中（<50）的 text 列中取高频值作为实体，
// 便宜、可解释，不依赖外部 NLP。
func datasetEntities(cols []columnAnalysis) []string {
	var entities []string
	for _, ca := range cols {
		if ca.Spec.Type != types.COLUMN_TYPE_TEXT {
			continue
		}
		if ca.Spec.Cardinality == 0 || ca.Spec.Cardinality >= 50 {
			continue
		}
		top := sampleValues(ca.Distinct, 10)
		entities = append(entities, top...)
		if len(entities) >= 20 {
			entities = entities[:20]
			break
		}
	}
	return entities
}
