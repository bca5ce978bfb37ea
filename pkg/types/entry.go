package types

import (
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// EntryScope 知识条目的归属范围
type EntryScope string

const (
	SCOPE_THREAD EntryScope = "thread" // 会话级知识
	SCOPE_AGENT  EntryScope = "agent"  // 助手级知识
	SCOPE_GLOBAL EntryScope = "global" // 账户级（全局）知识
)

func ScopeFromString(s string) EntryScope {
	switch strings.ToLower(s) {
	case string(SCOPE_THREAD):
		return SCOPE_THREAD
	case string(SCOPE_AGENT):
		return SCOPE_AGENT
	case string(SCOPE_GLOBAL):
		return SCOPE_GLOBAL
	default:
		return ""
	}
}

func (s EntryScope) String() string {
	return string(s)
}

func (s EntryScope) Valid() bool {
	return s == SCOPE_THREAD || s == SCOPE_AGENT || s == SCOPE_GLOBAL
}

// ScopeRef 定位一个唯一的知识范围：scope + 归一化后的 owner id
type ScopeRef struct {
	Scope   EntryScope `json:"scope"`
	OwnerID string     `json:"owner_id"`
}

func (r ScopeRef) Key() string {
	return fmt.Sprintf("%s:%s", r.Scope, r.OwnerID)
}

// Entry 一份已入库的源文档
type Entry struct {
	ID            string     `json:"id" db:"id"`                         // 主键
	Scope         EntryScope `json:"scope" db:"scope"`                   // 归属范围 thread/agent/global
	ScopeOwnerID  string     `json:"scope_owner_id" db:"scope_owner_id"` // 范围所有者ID，写入前已归一化
	DisplayName   string     `json:"display_name" db:"display_name"`     // 展示名称，通常为文件名
	Description   string     `json:"description" db:"description"`       // 描述
	RawText       string     `json:"raw_text" db:"raw_text"`             // 仅 legacy 模式使用的合并正文
	ContentTokens int        `json:"content_tokens" db:"content_tokens"` // token 估算值（字符数/4）
	ContentHash   string     `json:"content_hash" db:"content_hash"`     // 归一化内容的 MD5，用于去重
	IsActive      bool       `json:"is_active" db:"is_active"`           // 软删除标记，false 时不参与检索
	CreatedAt     int64      `json:"created_at" db:"created_at"`         // 创建时间，UNIX时间戳
	UpdatedAt     int64      `json:"updated_at" db:"updated_at"`         // 更新时间，UNIX时间戳
}

type GetEntryOptions struct {
	ID           string
	IDs          []string
	Scope        EntryScope
	ScopeOwners  []string // 归一化后的 owner 等价集合
	DisplayName  string
	ContentHash  string
	ActiveOnly   bool
	Keywords     string
}

func (opts GetEntryOptions) Apply(query *sq.SelectBuilder) {
	if opts.ID != "" {
		*query = query.Where(sq.Eq{"id": opts.ID})
	} else if len(opts.IDs) > 0 {
		*query = query.Where(sq.Eq{"id": opts.IDs})
	}
	if opts.Scope != "" {
		*query = query.Where(sq.Eq{"scope": opts.Scope})
	}
	if len(opts.ScopeOwners) > 0 {
		*query = query.Where(sq.Eq{"scope_owner_id": opts.ScopeOwners})
	}
	if opts.DisplayName != "" {
		*query = query.Where(sq.Eq{"display_name": opts.DisplayName})
	}
	if opts.ContentHash != "" {
		*query = query.Where(sq.Eq{"content_hash": opts.ContentHash})
	}
	if opts.ActiveOnly {
		*query = query.Where(sq.Eq{"is_active": true})
	}
	if opts.Keywords != "" {
		*query = query.Where(sq.Or{
			sq.ILike{"display_name": fmt.Sprintf("%%%s%%", opts.Keywords)},
			sq.ILike{"description": fmt.Sprintf("%%%s%%", opts.Keywords)},
		})
	}
}

type UpdateEntryArgs struct {
	DisplayName string
	Description string
	IsActive    *bool
}

// GetCurrentTimestamp 获取当前时间戳（便于测试时mock）
var GetCurrentTimestamp = func() int64 {
	return time.Now().Unix()
}
