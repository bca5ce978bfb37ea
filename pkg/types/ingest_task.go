package types

import (
	sq "github.com/Masterminds/squirrel"
)

// TaskStatus 处理任务状态机：pending → processing → completed|failed
type TaskStatus string

const (
	TASK_STATUS_PENDING    TaskStatus = "pending"
	TASK_STATUS_PROCESSING TaskStatus = "processing"
	TASK_STATUS_COMPLETED  TaskStatus = "completed"
	TASK_STATUS_FAILED     TaskStatus = "failed"
)

func (s TaskStatus) String() string {
	return string(s)
}

// Terminal 终态任务不再被 Flush 重新投递
func (s TaskStatus) Terminal() bool {
	return s == TASK_STATUS_COMPLETED || s == TASK_STATUS_FAILED
}

// IngestTask 单份文档的后台处理任务，调用方通过轮询该记录获取进度
type IngestTask struct {
	TaskID       string     `json:"task_id" db:"task_id"`             // 任务ID
	EntryID      string     `json:"entry_id" db:"entry_id"`           // 关联 entry
	Scope        EntryScope `json:"scope" db:"scope"`                 // 归属范围
	ScopeOwnerID string     `json:"scope_owner_id" db:"scope_owner_id"`
	FileName     string     `json:"file_name" db:"file_name"`         // 源文件名
	Status       TaskStatus `json:"status" db:"status"`               // 当前状态
	FailReason   string     `json:"fail_reason" db:"fail_reason"`     // 失败原因，成功为空
	RetryTimes   int        `json:"retry_times" db:"retry_times"`     // 重试次数
	CreatedAt    int64      `json:"created_at" db:"created_at"`
	UpdatedAt    int64      `json:"updated_at" db:"updated_at"`
}

const TASK_MAX_RETRY_TIMES = 3

type GetIngestTaskOptions struct {
	TaskID     string
	EntryID    string
	Status     TaskStatus
	Unfinished bool // 非终态任务，Flush 用
	RetryBelow int
}

func (opts GetIngestTaskOptions) Apply(query *sq.SelectBuilder) {
	if opts.TaskID != "" {
		*query = query.Where(sq.Eq{"task_id": opts.TaskID})
	}
	if opts.EntryID != "" {
		*query = query.Where(sq.Eq{"entry_id": opts.EntryID})
	}
	if opts.Status != "" {
		*query = query.Where(sq.Eq{"status": opts.Status})
	}
	if opts.Unfinished {
		*query = query.Where(sq.NotEq{"status": []TaskStatus{TASK_STATUS_COMPLETED, TASK_STATUS_FAILED}})
	}
	if opts.RetryBelow > 0 {
		*query = query.Where(sq.Lt{"retry_times": opts.RetryBelow})
	}
}
