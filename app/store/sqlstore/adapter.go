package sqlstore

import (
	"context"
	"fmt"
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/pgvector/pgvector-go"

	"github.com/corra-ai/corra-ai/app/store"
	"github.com/corra-ai/corra-ai/pkg/types"
)

// ExtendedAdapter 扩展 schema 下的文档读写：entry 与块分表存储，
// 每个块独立向量化。
type ExtendedAdapter struct {
	provider *Provider
}

func NewExtendedAdapter(provider *Provider) *ExtendedAdapter {
	return &ExtendedAdapter{provider: provider}
}

// SaveDocument entry、块、文件元信息在同一事务内落库
func (a *ExtendedAdapter) SaveDocument(ctx context.Context, entry *types.Entry, blocks []*types.DataBlock, meta *types.FileMeta) error {
	return a.provider.Transaction(ctx, func(ctx context.Context) error {
		if err := a.provider.EntryStore().Create(ctx, *entry); err != nil {
			return err
		}
		if err := a.provider.BlockStore().BatchCreate(ctx, blocks); err != nil {
			return err
		}
		if meta != nil {
			meta.EntryID = entry.ID
			if err := a.provider.FileMetaStore().Create(ctx, *meta); err != nil {
				return err
			}
		}
		return nil
	})
}

func (a *ExtendedAdapter) ListEmbeddingTargets(ctx context.Context, entryID string) ([]types.EmbeddingTarget, error) {
	blocks, err := a.provider.BlockStore().ListBlocks(ctx, types.GetBlockOptions{
		EntryID:     entryID,
		OnlyPending: true,
	}, 0, 0)
	if err != nil {
		return nil, err
	}

	targets := make([]types.EmbeddingTarget, 0, len(blocks))
	for _, block := range blocks {
		targets = append(targets, types.EmbeddingTarget{
			ID:      block.ID,
			EntryID: block.EntryID,
			Text:    block.Content,
		})
	}
	return targets, nil
}

func (a *ExtendedAdapter) StoreEmbedding(ctx context.Context, target types.EmbeddingTarget, vector pgvector.Vector) error {
	return a.provider.BlockStore().StoreEmbedding(ctx, target.ID, vector)
}

func (a *ExtendedAdapter) SearchByVector(ctx context.Context, owners []string, scope types.EntryScope, vector pgvector.Vector, limit uint64) ([]types.BlockMatch, error) {
	return a.provider.BlockStore().Query(ctx, owners, scope, vector, limit)
}

func (a *ExtendedAdapter) SearchLexical(ctx context.Context, owners []string, scope types.EntryScope, keyword string, limit uint64) ([]types.BlockMatch, error) {
	return a.provider.BlockStore().QueryLexical(ctx, owners, scope, keyword, limit)
}

func (a *ExtendedAdapter) DeleteDocument(ctx context.Context, entryID string) error {
	return a.provider.Transaction(ctx, func(ctx context.Context) error {
		if err := a.provider.BlockStore().DeleteByEntry(ctx, entryID); err != nil {
			return err
		}
		if err := a.provider.FileMetaStore().Delete(ctx, entryID); err != nil {
			return err
		}
		return a.provider.EntryStore().Delete(ctx, entryID)
	})
}

// LegacyAdapter 旧版 schema 兜底：没有块表时把所有块合并成一篇文档
// 落在 entry 行上，整篇只有一个向量。对调用方的成功/失败契约与
// 扩展模式完全一致。
type LegacyAdapter struct {
	CommonFields
	provider *Provider
}

func NewLegacyAdapter(provider *Provider) *LegacyAdapter {
	a := &LegacyAdapter{provider: provider}
	a.SetProvider(provider)
	a.SetTable(types.TABLE_ENTRY)
	return a
}

func (a *LegacyAdapter) SaveDocument(ctx context.Context, entry *types.Entry, blocks []*types.DataBlock, meta *types.FileMeta) error {
	entry.RawText = CombineBlocksToDocument(blocks)
	return a.provider.EntryStore().Create(ctx, *entry)
}

// ListEmbeddingTargets legacy 模式整篇文档就是一个向量化单元
func (a *LegacyAdapter) ListEmbeddingTargets(ctx context.Context, entryID string) ([]types.EmbeddingTarget, error) {
	entry, err := a.provider.EntryStore().GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.RawText == "" {
		return nil, nil
	}
	return []types.EmbeddingTarget{
		{ID: entry.ID, EntryID: entry.ID, Text: entry.RawText},
	}, nil
}

func (a *LegacyAdapter) StoreEmbedding(ctx context.Context, target types.EmbeddingTarget, vector pgvector.Vector) error {
	return a.provider.EntryStore().StoreEmbedding(ctx, target.EntryID, vector)
}

// SearchByVector 每条 legacy entry 合成一个 legacy_content 伪块，
// 让检索引擎拿到与扩展模式同构的输入
func (a *LegacyAdapter) SearchByVector(ctx context.Context, owners []string, scope types.EntryScope, vector pgvector.Vector, limit uint64) ([]types.BlockMatch, error) {
	scoreColumn, vectorArgs, _ := sq.Expr("1 - (embedding <=> ?) as score", vector).ToSql()

	query := sq.Select("id as block_id", "id as entry_id", "raw_text as content",
		"display_name", "description", scoreColumn).
		From(a.GetTable()).
		Where(sq.Eq{"scope": scope, "is_active": true}).
		Where(sq.NotEq{"embedding": nil}).
		OrderBy("score DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if len(owners) > 0 {
		query = query.Where(sq.Eq{"scope_owner_id": owners})
	}

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	args = append(vectorArgs, args...)

	var res []types.BlockMatch
	if err = a.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return synthesizeLegacyMatches(res), nil
}

func (a *LegacyAdapter) SearchLexical(ctx context.Context, owners []string, scope types.EntryScope, keyword string, limit uint64) ([]types.BlockMatch, error) {
	pattern := fmt.Sprintf("%%%s%%", keyword)
	scoreColumn, scoreArgs, _ := sq.Expr(
		"(CASE WHEN raw_text ILIKE ? THEN 0.5 ELSE 0 END)"+
			" + (CASE WHEN display_name ILIKE ? OR description ILIKE ? THEN 0.3 ELSE 0 END) as score",
		pattern, pattern, pattern).ToSql()

	query := sq.Select("id as block_id", "id as entry_id", "raw_text as content",
		"display_name", "description", scoreColumn).
		From(a.GetTable()).
		Where(sq.Eq{"scope": scope, "is_active": true}).
		Where(sq.Or{
			sq.ILike{"raw_text": pattern},
			sq.ILike{"display_name": pattern},
			sq.ILike{"description": pattern},
		}).
		OrderBy("score DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if len(owners) > 0 {
		query = query.Where(sq.Eq{"scope_owner_id": owners})
	}

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	args = append(scoreArgs, args...)

	var res []types.BlockMatch
	if err = a.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return synthesizeLegacyMatches(res), nil
}

func (a *LegacyAdapter) DeleteDocument(ctx context.Context, entryID string) error {
	return a.provider.EntryStore().Delete(ctx, entryID)
}

func synthesizeLegacyMatches(matches []types.BlockMatch) []types.BlockMatch {
	for i := range matches {
		matches[i].BlockType = types.BLOCK_TYPE_LEGACY_CONTENT
		matches[i].BlockIndex = 0
		matches[i].Importance = types.IMPORTANCE_LEGACY_CONTENT
	}
	return matches
}

// CombineBlocksToDocument 按 block_index 升序把块合并成单篇文档，
// 块头、摘要、正文依次拼接。legacy 写入路径与向量化共用同一份文本。
func CombineBlocksToDocument(blocks []*types.DataBlock) string {
	ordered := make([]*types.DataBlock, len(blocks))
	copy(ordered, blocks)
	sort.SliceStable(ordered, func(a, b int) bool {
		return ordered[a].BlockIndex < ordered[b].BlockIndex
	})

	var b strings.Builder
	for _, block := range ordered {
		fmt.Fprintf(&b, "### %s %d\n", block.BlockType, block.BlockIndex)
		if block.ContentSummary != "" {
			b.WriteString(block.ContentSummary)
			b.WriteString("\n")
		}
		b.WriteString(block.Content)
		b.WriteString("\n\n")
	}
	return strings.TrimSpace(b.String())
}

var _ store.DocumentAdapter = (*ExtendedAdapter)(nil)
var _ store.DocumentAdapter = (*LegacyAdapter)(nil)
