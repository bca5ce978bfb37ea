package sqlstore

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/corra-ai/corra-ai/pkg/register"
	"github.com/corra-ai/corra-ai/pkg/types"
)

func init() {
	register.RegisterFunc[*Provider](RegisterKey{}, func(provider *Provider) {
		provider.stores.FileMetaStore = NewFileMetaStore(provider)
	})
}

// FileMetaStore 处理文件结构元信息表的操作
type FileMetaStore struct {
	CommonFields
}

func NewFileMetaStore(provider SqlProviderAchieve) *FileMetaStore {
	store := &FileMetaStore{}
	store.SetProvider(provider)
	store.SetTable(types.TABLE_FILE_META)
	store.SetAllColumns("entry_id", "row_count", "column_count", "columns",
		"time_range_st", "time_range_et", "quality_score", "created_at")
	return store
}

func (s *FileMetaStore) Create(ctx context.Context, data types.FileMeta) error {
	if data.CreatedAt == 0 {
		data.CreatedAt = types.GetCurrentTimestamp()
	}

	query := sq.Insert(s.GetTable()).
		Columns("entry_id", "row_count", "column_count", "columns",
			"time_range_st", "time_range_et", "quality_score", "created_at").
		Values(data.EntryID, data.RowCount, data.ColumnCount, data.Columns,
			data.TimeRangeSt, data.TimeRangeEt, data.QualityScore, data.CreatedAt).
		Suffix("ON CONFLICT (entry_id) DO NOTHING")

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	if _, err = s.GetMaster(ctx).Exec(queryString, args...); err != nil {
		return err
	}
	return nil
}

func (s *FileMetaStore) GetByEntry(ctx context.Context, entryID string) (*types.FileMeta, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).Where(sq.Eq{"entry_id": entryID})

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res types.FileMeta
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *FileMetaStore) Delete(ctx context.Context, entryID string) error {
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
