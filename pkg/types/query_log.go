package types

import (
	"github.com/pgvector/pgvector-go"
)

// QueryLogRecord 检索分析日志，只追加不回读
type QueryLogRecord struct {
	ID            string           `json:"id" db:"id"`
	Query         string           `json:"query" db:"query"`
	Scope         EntryScope       `json:"scope" db:"scope"`
	ScopeOwnerID  string           `json:"scope_owner_id" db:"scope_owner_id"`
	MatchedBlocks int              `json:"matched_blocks" db:"matched_blocks"` // 通过阈值的候选数
	Used          bool             `json:"used" db:"used"`                     // 结果是否被采用（relevant）
	Lexical       bool             `json:"lexical" db:"lexical"`               // 是否走了 lexical 兜底
	Embedding     *pgvector.Vector `json:"-" db:"embedding"`                   // 查询向量，lexical 兜底时为 NULL
	CreatedAt     int64            `json:"created_at" db:"created_at"`
}
