package sqlstore

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/corra-ai/corra-ai/pkg/register"
	"github.com/corra-ai/corra-ai/pkg/types"
)

func init() {
	register.RegisterFunc[*Provider](RegisterKey{}, func(provider *Provider) {
		provider.stores.QueryLogStore = NewQueryLogStore(provider)
	})
}

// QueryLogStore 检索分析日志，只写不读
type QueryLogStore struct {
	CommonFields
}

func NewQueryLogStore(provider SqlProviderAchieve) *QueryLogStore {
	store := &QueryLogStore{}
	store.SetProvider(provider)
	store.SetTable(types.TABLE_QUERY_LOG)
	store.SetAllColumns("id", "query", "scope", "scope_owner_id", "matched_blocks", "used", "lexical", "embedding", "created_at")
	return store
}

func (s *QueryLogStore) Create(ctx context.Context, data types.QueryLogRecord) error {
	if data.CreatedAt == 0 {
		data.CreatedAt = types.GetCurrentTimestamp()
	}

	query := sq.Insert(s.GetTable()).
		Columns("id", "query", "scope", "scope_owner_id", "matched_blocks", "used", "lexical", "embedding", "created_at").
		Values(data.ID, data.Query, data.Scope, data.ScopeOwnerID, data.MatchedBlocks, data.Used, data.Lexical, data.Embedding, data.CreatedAt)

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	if _, err = s.GetMaster(ctx).Exec(queryString, args...); err != nil {
		return err
	}
	return nil
}
