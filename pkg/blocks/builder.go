// Package blocks 将归一化后的文档内容构造成可检索的数据块草稿。
// 表格与自由文本两种策略共享同一种输出形态，草稿在此阶段尚未向量化、未入库。
package blocks

import (
	"github.com/corra-ai/corra-ai/pkg/types"
)

// Draft 构造器输出的块草稿
type Draft struct {
	Type        types.BlockType
	Index       int
	Content     string
	Summary     string
	Metadata    types.BlockMetadata
	Categories  []string
	Entities    []string
	Importance  float64
	ParentIndex int // 层级父块的 Index，无父块为 -1
}

// TableData 调用方抽取好的表格数据，行内单元格与表头一一对应
type TableData struct {
	Columns []string
	Rows    [][]string
}

type Options struct {
	ChunkSize    int      // 文本切片目标长度，默认 1000 字符
	ChunkOverlap int      // 相邻切片重叠长度，默认 200 字符
	RowsPerRange int      // 行区间兜底块的行数，默认 50
	FileTags     []string // 调用方提供的文件级标签，作为文本块的类目
	Rules        *RuleTable
}

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
	DefaultRowsPerRange = 50
)

func (o Options) withDefaults() Options {
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		o.ChunkOverlap = DefaultChunkOverlap
		if o.ChunkOverlap >= o.ChunkSize {
			o.ChunkOverlap = o.ChunkSize / 5
		}
	}
	if o.RowsPerRange <= 0 {
		o.RowsPerRange = DefaultRowsPerRange
	}
	if o.Rules == nil {
		o.Rules = DefaultRules()
	}
	return o
}

// clampImportance 将重要度收敛到 [0.1, 1.0]
func clampImportance(v float64) float64 {
	if v < types.IMPORTANCE_MIN {
		return types.IMPORTANCE_MIN
	}
	if v > types.IMPORTANCE_MAX {
		return types.IMPORTANCE_MAX
	}
	return v
}
