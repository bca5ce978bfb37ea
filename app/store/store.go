package store

import (
	"context"

	"github.com/pgvector/pgvector-go"

	"github.com/corra-ai/corra-ai/pkg/sqlstore"
	"github.com/corra-ai/corra-ai/pkg/types"
)

// EntryStore 知识条目表的操作集合
type EntryStore interface {
	sqlstore.SqlCommons
	Create(ctx context.Context, data types.Entry) error
	GetEntry(ctx context.Context, id string) (*types.Entry, error)
	// GetByHash 按 (scope, owner, display_name, content_hash) 查最近一条，幂等去重用
	GetByHash(ctx context.Context, scope types.EntryScope, owner, displayName, contentHash string) (*types.Entry, error)
	Update(ctx context.Context, id string, args types.UpdateEntryArgs) error
	SetActive(ctx context.Context, id string, active bool) error
	// StoreEmbedding legacy 模式下整篇文档的向量落在 entry 行上
	StoreEmbedding(ctx context.Context, id string, vector pgvector.Vector) error
	Delete(ctx context.Context, id string) error
	ListEntries(ctx context.Context, opts types.GetEntryOptions, page, pageSize uint64) ([]*types.Entry, error)
	Total(ctx context.Context, opts types.GetEntryOptions) (int64, error)
}

// BlockStore 数据块表的操作集合，仅 extended 模式可用
type BlockStore interface {
	sqlstore.SqlCommons
	BatchCreate(ctx context.Context, datas []*types.DataBlock) error
	GetBlock(ctx context.Context, entryID, id string) (*types.DataBlock, error)
	ListBlocks(ctx context.Context, opts types.GetBlockOptions, page, pageSize uint64) ([]types.DataBlock, error)
	StoreEmbedding(ctx context.Context, id string, vector pgvector.Vector) error
	UpdateImportance(ctx context.Context, entryID, id string, importance float64) error
	DeleteByEntry(ctx context.Context, entryID string) error
	// Query 向量相似检索，结果按余弦相似度降序
	Query(ctx context.Context, owners []string, scope types.EntryScope, vector pgvector.Vector, limit uint64) ([]types.BlockMatch, error)
	// QueryLexical embedding 不可用时的子串匹配兜底
	QueryLexical(ctx context.Context, owners []string, scope types.EntryScope, keyword string, limit uint64) ([]types.BlockMatch, error)
}

type FileMetaStore interface {
	sqlstore.SqlCommons
	Create(ctx context.Context, data types.FileMeta) error
	GetByEntry(ctx context.Context, entryID string) (*types.FileMeta, error)
	Delete(ctx context.Context, entryID string) error
}

type IngestTaskStore interface {
	sqlstore.SqlCommons
	Create(ctx context.Context, data types.IngestTask) error
	GetTask(ctx context.Context, taskID string) (*types.IngestTask, error)
	UpdateStatus(ctx context.Context, taskID string, status types.TaskStatus, failReason string) error
	SetRetryTimes(ctx context.Context, taskID string, retryTimes int) error
	ListTasks(ctx context.Context, opts types.GetIngestTaskOptions, page, pageSize uint64) ([]types.IngestTask, error)
}

type QueryLogStore interface {
	sqlstore.SqlCommons
	Create(ctx context.Context, data types.QueryLogRecord) error
}

// DocumentAdapter 存储适配层。extended/legacy 两种 schema 各有一个实现，
// 启动时探测一次选定，调用方只看到统一的 Entry/Block 契约。
type DocumentAdapter interface {
	// SaveDocument 原子写入 entry 与它的全部块。legacy 模式把块合并成
	// 单篇文档落在 entry.raw_text 上。
	SaveDocument(ctx context.Context, entry *types.Entry, blocks []*types.DataBlock, meta *types.FileMeta) error
	// ListEmbeddingTargets 返回该 entry 下还未向量化的文本单元
	ListEmbeddingTargets(ctx context.Context, entryID string) ([]types.EmbeddingTarget, error)
	StoreEmbedding(ctx context.Context, target types.EmbeddingTarget, vector pgvector.Vector) error
	// SearchByVector legacy 模式下会把 entry 合成为 legacy_content 伪块返回
	SearchByVector(ctx context.Context, owners []string, scope types.EntryScope, vector pgvector.Vector, limit uint64) ([]types.BlockMatch, error)
	SearchLexical(ctx context.Context, owners []string, scope types.EntryScope, keyword string, limit uint64) ([]types.BlockMatch, error)
	DeleteDocument(ctx context.Context, entryID string) error
}

// Store 业务逻辑层依赖的存储总览
type Store interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
	EntryStore() EntryStore
	BlockStore() BlockStore
	FileMetaStore() FileMetaStore
	IngestTaskStore() IngestTaskStore
	QueryLogStore() QueryLogStore
	DocumentAdapter() DocumentAdapter
}
