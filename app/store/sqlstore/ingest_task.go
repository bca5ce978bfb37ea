package sqlstore

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/corra-ai/corra-ai/pkg/register"
	"github.com/corra-ai/corra-ai/pkg/types"
)

func init() {
	register.RegisterFunc[*Provider](RegisterKey{}, func(provider *Provider) {
		provider.stores.IngestTaskStore = NewIngestTaskStore(provider)
	})
}

// IngestTaskStore 处理摄取任务表的操作
type IngestTaskStore struct {
	CommonFields
}

func NewIngestTaskStore(provider SqlProviderAchieve) *IngestTaskStore {
	store := &IngestTaskStore{}
	store.SetProvider(provider)
	store.SetTable(types.TABLE_INGEST_TASK)
	store.SetAllColumns("task_id", "entry_id", "scope", "scope_owner_id", "file_name",
		"status", "fail_reason", "retry_times", "created_at", "updated_at")
	return store
}

func (s *IngestTaskStore) Create(ctx context.Context, data types.IngestTask) error {
	if data.CreatedAt == 0 {
		data.CreatedAt = types.GetCurrentTimestamp()
	}
	if data.UpdatedAt == 0 {
		data.UpdatedAt = data.CreatedAt
	}
	if data.Status == "" {
		data.Status = types.TASK_STATUS_PENDING
	}

	query := sq.Insert(s.GetTable()).
		Columns("task_id", "entry_id", "scope", "scope_owner_id", "file_name",
			"status", "fail_reason", "retry_times", "created_at", "updated_at").
		Values(data.TaskID, data.EntryID, data.Scope, data.ScopeOwnerID, data.FileName,
			data.Status, data.FailReason, data.RetryTimes, data.CreatedAt, data.UpdatedAt)

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	if _, err = s.GetMaster(ctx).Exec(queryString, args...); err != nil {
		return err
	}
	return nil
}

func (s *IngestTaskStore) GetTask(ctx context.Context, taskID string) (*types.IngestTask, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).Where(sq.Eq{"task_id": taskID})

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res types.IngestTask
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *IngestTaskStore) UpdateStatus(ctx context.Context, taskID string, status types.TaskStatus, failReason string) error {
	query := sq.Update(s.GetTable()).
		Set("status", status).
		Set("fail_reason", failReason).
		Set("updated_at", types.GetCurrentTimestamp()).
		Where(sq.Eq{"task_id": taskID})

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	if _, err = s.GetMaster(ctx).Exec(queryString, args...); err != nil {
		return err
	}
	return nil
}

func (s *IngestTaskStore) SetRetryTimes(ctx context.Context, taskID string, retryTimes int) error {
	query := sq.Update(s.GetTable()).
		Set("retry_times", retryTimes).
		Set("updated_at", types.GetCurrentTimestamp()).
		Where(sq.Eq{"task_id": taskID})

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	if _, err = s.GetMaster(ctx).Exec(queryString, args...); err != nil {
		return err
	}
	return nil
}

// ListTasks Flush 用它捞未完成任务重新投递
func (s *IngestTaskStore) ListTasks(ctx context.Context, opts types.GetIngestTaskOptions, page, pageSize uint64) ([]types.IngestTask, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).OrderBy("created_at ASC")
	opts.Apply(&query)

	if page != 0 || pageSize != 0 {
		offset := (page - 1) * pageSize
		query = query.Offset(offset).Limit(pageSize)
	}

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res []types.IngestTask
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}
