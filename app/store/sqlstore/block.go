package sqlstore

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/corra-ai/corra-ai/pkg/register"
	"github.com/corra-ai/corra-ai/pkg/types"
)

func init() {
	register.RegisterFunc[*Provider](RegisterKey{}, func(provider *Provider) {
		provider.stores.BlockStore = NewBlockStore(provider)
	})
}

// BlockStore 处理数据块表的操作
type BlockStore struct {
	CommonFields
}

func NewBlockStore(provider SqlProviderAchieve) *BlockStore {
	store := &BlockStore{}
	store.SetProvider(provider)
	store.SetTable(types.TABLE_DATA_BLOCK)
	store.SetAllColumns("id", "entry_id", "block_type", "block_index", "content", "content_summary",
		"metadata", "categories", "entities", "importance_score", "embedding", "parent_block_id",
		"created_at", "updated_at")
	return store
}

func (s *BlockStore) BatchCreate(ctx context.Context, datas []*types.DataBlock) error {
	if len(datas) == 0 {
		return nil
	}

	query := sq.Insert(s.GetTable()).
		Columns("id", "entry_id", "block_type", "block_index", "content", "content_summary",
			"metadata", "categories", "entities", "importance_score", "embedding", "parent_block_id",
			"created_at", "updated_at")
	for _, data := range datas {
		if data.CreatedAt == 0 {
			data.CreatedAt = types.GetCurrentTimestamp()
		}
		if data.UpdatedAt == 0 {
			data.UpdatedAt = data.CreatedAt
		}

		query = query.Values(data.ID, data.EntryID, data.BlockType, data.BlockIndex, data.Content,
			data.ContentSummary, data.Metadata, pq.Array(data.Categories), pq.Array(data.Entities),
			data.Importance, data.Embedding, data.ParentBlockID, data.CreatedAt, data.UpdatedAt)
	}

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	if _, err = s.GetMaster(ctx).Exec(queryString, args...); err != nil {
		return err
	}
	return nil
}

func (s *BlockStore) GetBlock(ctx context.Context, entryID, id string) (*types.DataBlock, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).Where(sq.Eq{"entry_id": entryID, "id": id})

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res types.DataBlock
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		return nil, err
	}
	return &res, nil
}

// ListBlocks 按 block_index 升序，summary/analysis 的保留高位索引天然排在最后
func (s *BlockStore) ListBlocks(ctx context.Context, opts types.GetBlockOptions, page, pageSize uint64) ([]types.DataBlock, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).OrderBy("block_index ASC")
	opts.Apply(&query)

	if page != 0 || pageSize != 0 {
		offset := (page - 1) * pageSize
		query = query.Offset(offset).Limit(pageSize)
	}

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res []types.DataBlock
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *BlockStore) StoreEmbedding(ctx context.Context, id string, vector pgvector.Vector) error {
	query := sq.Update(s.GetTable()).
		Set("embedding", vector).
		Set("updated_at", types.GetCurrentTimestamp()).
		Where(sq.Eq{"id": id})

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	if _, err = s.GetMaster(ctx).Exec(queryString, args...); err != nil {
		return err
	}
	return nil
}

// UpdateImportance 反馈调权，块内容本身从不单独修改
func (s *BlockStore) UpdateImportance(ctx context.Context, entryID, id string, importance float64) error {
	if importance < types.IMPORTANCE_MIN {
		importance = types.IMPORTANCE_MIN
	}
	if importance > types.IMPORTANCE_MAX {
		importance = types.IMPORTANCE_MAX
	}

	query := sq.Update(s.GetTable()).
		Set("importance_score", importance).
		Set("updated_at", types.GetCurrentTimestamp()).
		Where(sq.Eq{"entry_id": entryID, "id": id})

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	if _, err = s.GetMaster(ctx).Exec(queryString, args...); err != nil {
		return err
	}
	return nil
}

func (s *BlockStore) DeleteByEntry(ctx context.Context, entryID string) error {
	query := sq.Delete(s.GetTable()).Where(sq.Eq{"entry_id": entryID})

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	if _, err = s.GetMaster(ctx).Exec(queryString, args...); err != nil {
		return err
	}
	return nil
}

// Query 向量相似检索。
// pgvector supported distance functions are:
// <-> - L2 distance
// <#> - (negative) inner product
// <=> - cosine distance
// <+> - L1 distance (added in 0.7.0)
func (s *BlockStore) Query(ctx context.Context, owners []string, scope types.EntryScope, vector pgvector.Vector, limit uint64) ([]types.BlockMatch, error) {
	scoreColumn, vectorArgs, _ := sq.Expr("1 - (b.embedding <=> ?) as score", vector).ToSql()

	entryTable := types.TABLE_ENTRY.Name()
	query := sq.Select("b.id as block_id", "b.entry_id", "b.block_type", "b.block_index",
		"b.importance_score", "b.content", "b.content_summary", "e.display_name", "e.description", scoreColumn).
		From(s.GetTable()+" b").
		Join(entryTable+" e ON e.id = b.entry_id").
		Where(sq.Eq{"e.scope": scope, "e.is_active": true}).
		Where(sq.NotEq{"b.embedding": nil}).
		OrderBy("score DESC").
		Limit(limit)
	if len(owners) > 0 {
		query = query.Where(sq.Eq{"e.scope_owner_id": owners})
	}

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	args = append(vectorArgs, args...)

	var res []types.BlockMatch
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}

// QueryLexical 子串匹配兜底：正文/摘要命中得 0.5，条目名称/描述命中得 0.3
func (s *BlockStore) QueryLexical(ctx context.Context, owners []string, scope types.EntryScope, keyword string, limit uint64) ([]types.BlockMatch, error) {
	pattern := fmt.Sprintf("%%%s%%", keyword)
	scoreColumn, scoreArgs, _ := sq.Expr(
		"(CASE WHEN b.content ILIKE ? OR b.content_summary ILIKE ? THEN 0.5 ELSE 0 END)"+
			" + (CASE WHEN e.display_name ILIKE ? OR e.description ILIKE ? THEN 0.3 ELSE 0 END) as score",
		pattern, pattern, pattern, pattern).ToSql()

	entryTable := types.TABLE_ENTRY.Name()
	query := sq.Select("b.id as block_id", "b.entry_id", "b.block_type", "b.block_index",
		"b.importance_score", "b.content", "b.content_summary", "e.display_name", "e.description", scoreColumn).
		From(s.GetTable()+" b").
		Join(entryTable+" e ON e.id = b.entry_id").
		Where(sq.Eq{"e.scope": scope, "e.is_active": true}).
		Where(sq.Or{
			sq.ILike{"b.content": pattern},
			sq.ILike{"b.content_summary": pattern},
			sq.ILike{"e.display_name": pattern},
			sq.ILike{"e.description": pattern},
		}).
		OrderBy("score DESC", "b.importance_score DESC", "b.block_index ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if len(owners) > 0 {
		query = query.Where(sq.Eq{"e.scope_owner_id": owners})
	}

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	args = append(scoreArgs, args...)

	var res []types.BlockMatch
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}
