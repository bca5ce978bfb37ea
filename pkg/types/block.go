package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// BlockType 数据块类型
type BlockType string

const (
	BLOCK_TYPE_ROW_GROUP      BlockType = "row_group"      // 按分组列聚合的表格块
	BLOCK_TYPE_ROW_RANGE      BlockType = "row_range"      // 行区间块 / 文本切片块
	BLOCK_TYPE_SUMMARY        BlockType = "summary"        // 数据集概要块
	BLOCK_TYPE_ANALYSIS       BlockType = "analysis"       // 触发式分析块（差异、趋势）
	BLOCK_TYPE_LEGACY_CONTENT BlockType = "legacy_content" // legacy 模式合成的伪块
)

func (t BlockType) String() string {
	return string(t)
}

// summary/analysis 块使用保留高位索引，保证在按索引遍历时排在最后
const (
	BLOCK_INDEX_ANALYSIS_BASE = 900000
	BLOCK_INDEX_SUMMARY       = 1000000
)

// 重要度评分的取值边界
const (
	IMPORTANCE_MIN            = 0.1
	IMPORTANCE_MAX            = 1.0
	IMPORTANCE_SUMMARY        = 0.9
	IMPORTANCE_LEGACY_CONTENT = 0.5
)

// BlockMetadata 开放的键值元信息：聚合值、分组键、行区间等
type BlockMetadata map[string]any

func (m BlockMetadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *BlockMetadata) Scan(src interface{}) error {
	switch src := src.(type) {
	case []byte:
		return json.Unmarshal(src, m)
	case string:
		return json.Unmarshal([]byte(src), m)
	case nil:
		*m = nil
		return nil
	}
	return fmt.Errorf("cannot convert %T to BlockMetadata", src)
}

// DataBlock 知识条目下的一个可检索单元
type DataBlock struct {
	ID             string           `json:"id" db:"id"`                           // 主键
	EntryID        string           `json:"entry_id" db:"entry_id"`               // 所属 entry，entry 删除时级联删除
	BlockType      BlockType        `json:"block_type" db:"block_type"`           // 块类型
	BlockIndex     int              `json:"block_index" db:"block_index"`         // entry 内稳定排序键
	Content        string           `json:"content" db:"content"`                 // 块正文
	ContentSummary string           `json:"content_summary" db:"content_summary"` // 块摘要
	Metadata       BlockMetadata    `json:"metadata" db:"metadata"`               // 开放元信息
	Categories     pq.StringArray   `json:"categories" db:"categories"`           // 类目标签
	Entities       pq.StringArray   `json:"entities" db:"entities"`               // 实体标签
	Importance     float64          `json:"importance_score" db:"importance_score"`
	Embedding      *pgvector.Vector `json:"-" db:"embedding"`                     // 向量，embedding 失败时为 NULL
	ParentBlockID  *string          `json:"parent_block_id" db:"parent_block_id"` // 层级父块，构造顺序保证无环
	CreatedAt      int64            `json:"created_at" db:"created_at"`
	UpdatedAt      int64            `json:"updated_at" db:"updated_at"`
}

type GetBlockOptions struct {
	EntryID      string
	EntryIDs     []string
	BlockType    BlockType
	OnlyEmbedded bool // 只返回 embedding 非空的块
	OnlyPending  bool // 只返回 embedding 为空的块
}

func (opts GetBlockOptions) Apply(query *sq.SelectBuilder) {
	if opts.EntryID != "" {
		*query = query.Where(sq.Eq{"entry_id": opts.EntryID})
	} else if len(opts.EntryIDs) > 0 {
		*query = query.Where(sq.Eq{"entry_id": opts.EntryIDs})
	}
	if opts.BlockType != "" {
		*query = query.Where(sq.Eq{"block_type": opts.BlockType})
	}
	if opts.OnlyEmbedded {
		*query = query.Where(sq.NotEq{"embedding": nil})
	}
	if opts.OnlyPending {
		*query = query.Where(sq.Eq{"embedding": nil})
	}
}

// BlockMatch 检索引擎的候选结果，向量检索与 lexical 兜底共用同一形态
type BlockMatch struct {
	BlockID        string    `json:"block_id" db:"block_id"`
	EntryID        string    `json:"entry_id" db:"entry_id"`
	BlockType      BlockType `json:"block_type" db:"block_type"`
	BlockIndex     int       `json:"block_index" db:"block_index"`
	Importance     float64   `json:"importance_score" db:"importance_score"`
	Content        string    `json:"content" db:"content"`
	ContentSummary string    `json:"content_summary" db:"content_summary"`
	DisplayName    string    `json:"display_name" db:"display_name"`
	Description    string    `json:"description" db:"description"`
	Score          float32   `json:"score" db:"score"` // 余弦相似度或 lexical 固定分
}

// EmbeddingTarget 待向量化的文本单元，extended/legacy 两种存储模式的统一输入
type EmbeddingTarget struct {
	ID      string // extended 模式为 block_id，legacy 模式等于 entry_id
	EntryID string
	Text    string
}
