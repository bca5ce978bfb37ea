package sqlstore

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/pgvector/pgvector-go"

	"github.com/corra-ai/corra-ai/pkg/register"
	"github.com/corra-ai/corra-ai/pkg/types"
)

func init() {
	register.RegisterFunc[*Provider](RegisterKey{}, func(provider *Provider) {
		provider.stores.EntryStore = NewEntryStore(provider)
	})
}

// EntryStore 处理知识条目表的操作
type EntryStore struct {
	CommonFields
}

func NewEntryStore(provider SqlProviderAchieve) *EntryStore {
	store := &EntryStore{}
	store.SetProvider(provider)
	store.SetTable(types.TABLE_ENTRY)
	store.SetAllColumns("id", "scope", "scope_owner_id", "display_name", "description",
		"raw_text", "content_tokens", "content_hash", "is_active", "created_at", "updated_at")
	return store
}

// Create 创建条目。去重唯一索引冲突时不报错，调用方通过 GetByHash 拿回已有记录
func (s *EntryStore) Create(ctx context.Context, data types.Entry) error {
	if data.CreatedAt == 0 {
		data.CreatedAt = types.GetCurrentTimestamp()
	}
	if data.UpdatedAt == 0 {
		data.UpdatedAt = data.CreatedAt
	}

	query := sq.Insert(s.GetTable()).
		Columns("id", "scope", "scope_owner_id", "display_name", "description",
			"raw_text", "content_tokens", "content_hash", "is_active", "created_at", "updated_at").
		Values(data.ID, data.Scope, data.ScopeOwnerID, data.DisplayName, data.Description,
			data.RawText, data.ContentTokens, data.ContentHash, data.IsActive, data.CreatedAt, data.UpdatedAt).
		Suffix("ON CONFLICT (scope, scope_owner_id, display_name, content_hash) DO NOTHING")

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	if _, err = s.GetMaster(ctx).Exec(queryString, args...); err != nil {
		return err
	}
	return nil
}

func (s *EntryStore) GetEntry(ctx context.Context, id string) (*types.Entry, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).Where(sq.Eq{"id": id})

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res types.Entry
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetByHash 按去重键取最近一条，幂等摄取的回查路径
func (s *EntryStore) GetByHash(ctx context.Context, scope types.EntryScope, owner, displayName, contentHash string) (*types.Entry, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"scope": scope, "scope_owner_id": owner, "display_name": displayName, "content_hash": contentHash}).
		OrderBy("created_at DESC").Limit(1)

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res types.Entry
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *EntryStore) Update(ctx context.Context, id string, args types.UpdateEntryArgs) error {
	query := sq.Update(s.GetTable()).Set("updated_at", types.GetCurrentTimestamp()).Where(sq.Eq{"id": id})
	if args.DisplayName != "" {
		query = query.Set("display_name", args.DisplayName)
	}
	if args.Description != "" {
		query = query.Set("description", args.Description)
	}
	if args.IsActive != nil {
		query = query.Set("is_active", *args.IsActive)
	}

	queryString, sqlArgs, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	if _, err = s.GetMaster(ctx).Exec(queryString, sqlArgs...); err != nil {
		return err
	}
	return nil
}

// SetActive 软删除与恢复，数据保留，检索排除
func (s *EntryStore) SetActive(ctx context.Context, id string, active bool) error {
	query := sq.Update(s.GetTable()).
		Set("is_active", active).
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

func (s *EntryStore) StoreEmbedding(ctx context.Context, id string, vector pgvector.Vector) error {
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

func (s *EntryStore) Delete(ctx context.Context, id string) error {
	query := sq.Delete(s.GetTable()).Where(sq.Eq{"id": id})

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	if _, err = s.GetMaster(ctx).Exec(queryString, args...); err != nil {
		return err
	}
	return nil
}

// ListEntries 分页获取条目列表
func (s *EntryStore) ListEntries(ctx context.Context, opts types.GetEntryOptions, page, pageSize uint64) ([]*types.Entry, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).OrderBy("created_at DESC")
	opts.Apply(&query)

	if page != 0 || pageSize != 0 {
		offset := (page - 1) * pageSize
		query = query.Offset(offset).Limit(pageSize)
	}

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res []*types.Entry
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *EntryStore) Total(ctx context.Context, opts types.GetEntryOptions) (int64, error) {
	query := sq.Select("COUNT(*)").From(s.GetTable())
	opts.Apply(&query)

	queryString, args, err := query.ToSql()
	if err != nil {
		return 0, ErrorSqlBuild(err)
	}

	var res int64
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		return 0, err
	}
	return res, nil
}
