package blocks

import (
	"sort"
	"strings"
)

// RuleTable 列名关键词规则表。类目识别与分组列优选都走这里，
// 新增领域只需扩充关键词，不用动切块算法。
type RuleTable struct {
	Categories       map[string][]string // 类目 → 列名关键词
	GroupingPriority []string            // 分组列优选关键词，靠前优先级越高
}

func DefaultRules() *RuleTable {
	return &RuleTable{
		Categories: map[string][]string{
			"financial":      {"budget", "actual", "cost", "revenue", "amount", "price", "salary", "expense", "profit", "预算", "实际", "金额", "成本", "收入"},
			"temporal":       {"year", "quarter", "month", "week", "date", "time", "period", "年", "季度", "月份", "日期"},
			"organizational": {"department", "team", "division", "region", "office", "company", "部门", "团队", "区域"},
			"operational":    {"status", "stage", "priority", "type", "category", "state", "状态", "阶段", "类型", "分类"},
		},
		GroupingPriority: []string{"department", "category", "status", "year", "quarter", "部门", "分类", "状态"},
	}
}

// CategoriesFor 根据列名推断数据集类目，结果有序且去重
func (r *RuleTable) CategoriesFor(columns []string) []string {
	matched := make(map[string]bool)
	for _, col := range columns {
		name := strings.ToLower(col)
		for category, keywords := range r.Categories {
			if matched[category] {
				continue
			}
			for _, kw := range keywords {
				if strings.Contains(name, kw) {
					matched[category] = true
					break
				}
			}
		}
	}

	result := make([]string, 0, len(matched))
	for category := range matched {
		result = append(result, category)
	}
	sort.Strings(result)
	return result
}

// PriorityRank 返回列名命中的最高优选关键词位次，未命中返回 len(GroupingPriority)
func (r *RuleTable) PriorityRank(column string) int {
	name := strings.ToLower(column)
	for i, kw := range r.GroupingPriority {
		if strings.Contains(name, kw) {
			return i
		}
	}
	return len(r.GroupingPriority)
}

// MatchColumn 在列集中找出名字包含任一关键词的第一列，没有返回 -1。
// 匹配顺序以列顺序为准，保证确定性。
func MatchColumn(columns []string, keywords ...string) int {
	for i, col := range columns {
		name := strings.ToLower(col)
		for _, kw := range keywords {
			if strings.Contains(name, kw) {
				return i
			}
		}
	}
	return -1
}
