package v1

import (
	"context"
	"database/sql"
	"net/http"
	"strings"

	"github.com/lib/pq"

	"github.com/corra-ai/corra-ai/app/core"
	"github.com/corra-ai/corra-ai/app/logic/v1/process"
	"github.com/corra-ai/corra-ai/pkg/blocks"
	"github.com/corra-ai/corra-ai/pkg/errors"
	"github.com/corra-ai/corra-ai/pkg/i18n"
	"github.com/corra-ai/corra-ai/pkg/normalizer"
	"github.com/corra-ai/corra-ai/pkg/rag"
	"github.com/corra-ai/corra-ai/pkg/scope"
	"github.com/corra-ai/corra-ai/pkg/types"
	"github.com/corra-ai/corra-ai/pkg/utils"
)

const (
	EXTRACTION_METHOD_TABULAR  = "tabular"
	EXTRACTION_METHOD_FREEFORM = "freeform"
)

type IngestLogic struct {
	ctx  context.Context
	core *core.Core
}

func NewIngestLogic(ctx context.Context, core *core.Core) *IngestLogic {
	return &IngestLogic{
		ctx:  ctx,
		core: core,
	}
}

// IngestArgs 一次摄取请求。压缩包由调用方先展开，每个文件一次调用。
// Table 非空走表格策略，否则对 RawText 走自由文本策略。
type IngestArgs struct {
	RawText      string
	Table        *blocks.TableData
	FileName     string
	MimeType     string
	Scope        types.EntryScope
	ScopeOwnerID string
	DisplayName  string
	Description  string
	FileTags     []string
}

// 调用方负责字节到文本的抽取，这里只接受文本类产物
var supportedMimeTypes = map[string]bool{
	"":                         true,
	"text/plain":               true,
	"text/markdown":            true,
	"text/csv":                 true,
	"application/json":         true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
}

type IngestResult struct {
	EntryID          string `json:"entry_id"`
	TaskID           string `json:"task_id"`
	BlocksCreated    int    `json:"blocks_created"`
	ExtractionMethod string `json:"extraction_method"`
	Deduplicated     bool   `json:"deduplicated"`
}

// Ingest 同步完成归一化、切块与落库，向量化投递给后台任务，
// 调用方用返回的 task_id 轮询进度。
func (l *IngestLogic) Ingest(args IngestArgs) (IngestResult, error) {
	timer := l.core.Metrics().IngestTimer("ingest")
	defer timer.ObserveDuration()

	if !args.Scope.Valid() {
		return IngestResult{}, errors.New("IngestLogic.Ingest.InvalidScope", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest)
	}
	owner := scope.Normalize(args.ScopeOwnerID)
	if owner == "" {
		return IngestResult{}, errors.New("IngestLogic.Ingest.EmptyOwner", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest)
	}
	if !supportedMimeTypes[strings.ToLower(args.MimeType)] {
		return IngestResult{}, errors.New("IngestLogic.Ingest.MimeType", i18n.ERROR_UNSUPPORTED_FILE_TYPE, nil).Code(http.StatusBadRequest)
	}

	knowledgeCfg := l.core.Cfg().Knowledge
	// 十倍于 L_max 的内容直接拒绝，小幅超限由 normalizer 截断
	if len([]rune(args.RawText)) > knowledgeCfg.MaxContentLength*10 {
		return IngestResult{}, errors.New("IngestLogic.Ingest.TooLarge", i18n.ERROR_FILE_TOO_LARGE, nil).Code(http.StatusBadRequest)
	}
	displayName := args.DisplayName
	if displayName == "" {
		displayName = args.FileName
	}

	method := EXTRACTION_METHOD_FREEFORM
	normalized := normalizer.Normalize(args.RawText, knowledgeCfg.MaxContentLength)
	contentHash := utils.MD5(normalized)
	if args.Table != nil {
		method = EXTRACTION_METHOD_TABULAR
		contentHash = hashTable(args.Table)
	} else if normalized == "" {
		return IngestResult{}, errors.New("IngestLogic.Ingest.EmptyContent", i18n.ERROR_EMPTY_CONTENT, nil).Code(http.StatusBadRequest)
	}

	// 同名同内容的重复上传直接返回已有 entry
	if existing, err := l.core.Store().EntryStore().GetByHash(l.ctx, args.Scope, owner, displayName, contentHash); err != nil && err != sql.ErrNoRows {
		return IngestResult{}, errors.New("IngestLogic.Ingest.EntryStore.GetByHash", i18n.ERROR_INTERNAL, err)
	} else if existing != nil {
		return IngestResult{
			EntryID:          existing.ID,
			ExtractionMethod: method,
			Deduplicated:     true,
		}, nil
	}

	opts := blocks.Options{
		ChunkSize:    knowledgeCfg.ChunkSize,
		ChunkOverlap: knowledgeCfg.ChunkOverlap,
		RowsPerRange: knowledgeCfg.RowsPerRange,
		FileTags:     args.FileTags,
	}

	var (
		drafts []blocks.Draft
		meta   *types.FileMeta
		err    error
	)
	if args.Table != nil {
		drafts, meta, err = blocks.BuildTabular(*args.Table, opts)
	} else {
		drafts, err = blocks.BuildText(normalized, opts)
	}
	if err != nil {
		l.core.Metrics().IngestErrorInc("build")
		return IngestResult{}, errors.Trace("IngestLogic.Ingest.Build", err)
	}

	// 表格路径没有归一化正文，token 量按块正文合计
	contentTokens := rag.EstimateTokens(normalized)
	if args.Table != nil {
		contentTokens = estimateDraftTokens(drafts)
	}

	entry := &types.Entry{
		ID:            utils.GenUniqIDStr(),
		Scope:         args.Scope,
		ScopeOwnerID:  owner,
		DisplayName:   displayName,
		Description:   args.Description,
		ContentTokens: contentTokens,
		ContentHash:   contentHash,
		IsActive:      true,
	}
	blockRows := draftsToBlocks(entry.ID, drafts)

	if err = l.core.Store().DocumentAdapter().SaveDocument(l.ctx, entry, blockRows, meta); err != nil {
		l.core.Metrics().IngestErrorInc("save")
		return IngestResult{}, errors.New("IngestLogic.Ingest.SaveDocument", i18n.ERROR_INTERNAL, err)
	}

	// 并发写同一份文件时唯一索引会吞掉我们的插入，回查确认赢家，
	// 输了就清掉自己的块
	saved, err := l.core.Store().EntryStore().GetByHash(l.ctx, args.Scope, owner, displayName, contentHash)
	if err != nil {
		return IngestResult{}, errors.New("IngestLogic.Ingest.Recheck", i18n.ERROR_INTERNAL, err)
	}
	if saved.ID != entry.ID {
		if err = l.core.Store().DocumentAdapter().DeleteDocument(l.ctx, entry.ID); err != nil {
			return IngestResult{}, errors.New("IngestLogic.Ingest.CleanupLoser", i18n.ERROR_INTERNAL, err)
		}
		return IngestResult{
			EntryID:          saved.ID,
			ExtractionMethod: method,
			Deduplicated:     true,
		}, nil
	}

	task := types.IngestTask{
		TaskID:       utils.GenUniqIDStr(),
		EntryID:      entry.ID,
		Scope:        args.Scope,
		ScopeOwnerID: owner,
		FileName:     args.FileName,
		Status:       types.TASK_STATUS_PENDING,
	}
	if err = l.core.Store().IngestTaskStore().Create(l.ctx, task); err != nil {
		return IngestResult{}, errors.New("IngestLogic.Ingest.IngestTaskStore.Create", i18n.ERROR_INTERNAL, err)
	}

	process.NewEmbeddingRequest(task)

	return IngestResult{
		EntryID:          entry.ID,
		TaskID:           task.TaskID,
		BlocksCreated:    len(blockRows),
		ExtractionMethod: method,
	}, nil
}

// GetStatus 轮询任务状态
func (l *IngestLogic) GetStatus(taskID string) (*types.IngestTask, error) {
	task, err := l.core.Store().IngestTaskStore().GetTask(l.ctx, taskID)
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.New("IngestLogic.GetStatus.IngestTaskStore.GetTask", i18n.ERROR_INTERNAL, err)
	}
	if task == nil || err == sql.ErrNoRows {
		return nil, errors.New("IngestLogic.GetStatus.nil", i18n.ERROR_NOT_FOUND, err).Code(http.StatusNotFound)
	}
	return task, nil
}

// Deactivate 软删除：entry 和它的块立刻退出检索，数据保留
func (l *IngestLogic) Deactivate(entryID string) error {
	entry, err := l.core.Store().EntryStore().GetEntry(l.ctx, entryID)
	if err != nil && err != sql.ErrNoRows {
		return errors.New("IngestLogic.Deactivate.GetEntry", i18n.ERROR_INTERNAL, err)
	}
	if entry == nil || err == sql.ErrNoRows {
		return errors.New("IngestLogic.Deactivate.nil", i18n.ERROR_NOT_FOUND, err).Code(http.StatusNotFound)
	}

	if err = l.core.Store().EntryStore().SetActive(l.ctx, entryID, false); err != nil {
		return errors.New("IngestLogic.Deactivate.SetActive", i18n.ERROR_INTERNAL, err)
	}

	if err = l.core.BlockCache().Invalidate(l.ctx, entry.Scope, entry.ScopeOwnerID); err != nil {
		return errors.New("IngestLogic.Deactivate.CacheInvalidate", i18n.ERROR_INTERNAL, err)
	}
	return nil
}

// DeleteEntry 硬删除，entry、块与文件元信息一并清除
func (l *IngestLogic) DeleteEntry(entryID string) error {
	entry, err := l.core.Store().EntryStore().GetEntry(l.ctx, entryID)
	if err != nil && err != sql.ErrNoRows {
		return errors.New("IngestLogic.DeleteEntry.GetEntry", i18n.ERROR_INTERNAL, err)
	}
	if entry == nil || err == sql.ErrNoRows {
		return errors.New("IngestLogic.DeleteEntry.nil", i18n.ERROR_NOT_FOUND, err).Code(http.StatusNotFound)
	}

	if err = l.core.Store().DocumentAdapter().DeleteDocument(l.ctx, entryID); err != nil {
		return errors.New("IngestLogic.DeleteEntry.DeleteDocument", i18n.ERROR_INTERNAL, err)
	}

	if err = l.core.BlockCache().Invalidate(l.ctx, entry.Scope, entry.ScopeOwnerID); err != nil {
		return errors.New("IngestLogic.DeleteEntry.CacheInvalidate", i18n.ERROR_INTERNAL, err)
	}
	return nil
}

// PurgeScope 清空一个范围下的全部条目
func (l *IngestLogic) PurgeScope(scopeType types.EntryScope, ownerID string) error {
	if !scopeType.Valid() {
		return errors.New("IngestLogic.PurgeScope.InvalidScope", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest)
	}
	owner := scope.Normalize(ownerID)
	if owner == "" {
		return errors.New("IngestLogic.PurgeScope.EmptyOwner", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest)
	}

	entries, err := l.core.Store().EntryStore().ListEntries(l.ctx, types.GetEntryOptions{
		Scope:       scopeType,
		ScopeOwners: []string{owner},
	}, 0, 0)
	if err != nil && err != sql.ErrNoRows {
		return errors.New("IngestLogic.PurgeScope.ListEntries", i18n.ERROR_INTERNAL, err)
	}

	for _, entry := range entries {
		if err = l.core.Store().DocumentAdapter().DeleteDocument(l.ctx, entry.ID); err != nil {
			return errors.New("IngestLogic.PurgeScope.DeleteDocument", i18n.ERROR_INTERNAL, err)
		}
	}

	if err = l.core.BlockCache().Invalidate(l.ctx, scopeType, owner); err != nil {
		return errors.New("IngestLogic.PurgeScope.CacheInvalidate", i18n.ERROR_INTERNAL, err)
	}
	return nil
}

// AdjustImportance 反馈调权，importance 之外的块属性从不单独修改
func (l *IngestLogic) AdjustImportance(entryID, blockID string, importance float64) error {
	if importance < types.IMPORTANCE_MIN || importance > types.IMPORTANCE_MAX {
		return errors.New("IngestLogic.AdjustImportance.OutOfRange", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest)
	}
	if err := l.core.Store().BlockStore().UpdateImportance(l.ctx, entryID, blockID, importance); err != nil {
		return errors.New("IngestLogic.AdjustImportance.UpdateImportance", i18n.ERROR_INTERNAL, err)
	}
	return nil
}

// draftsToBlocks 草稿转存储行，ParentIndex 在这里解析成 parent_block_id
func draftsToBlocks(entryID string, drafts []blocks.Draft) []*types.DataBlock {
	idByIndex := make(map[int]string, len(drafts))
	rows := make([]*types.DataBlock, 0, len(drafts))

	for _, draft := range drafts {
		id := utils.GenUniqIDStr()
		idByIndex[draft.Index] = id
		rows = append(rows, &types.DataBlock{
			ID:             id,
			EntryID:        entryID,
			BlockType:      draft.Type,
			BlockIndex:     draft.Index,
			Content:        draft.Content,
			ContentSummary: draft.Summary,
			Metadata:       draft.Metadata,
			Categories:     pq.StringArray(draft.Categories),
			Entities:       pq.StringArray(draft.Entities),
			Importance:     draft.Importance,
		})
	}

	for i, draft := range drafts {
		if draft.ParentIndex < 0 {
			continue
		}
		if parentID, ok := idByIndex[draft.ParentIndex]; ok {
			rows[i].ParentBlockID = &parentID
		}
	}
	return rows
}

func estimateDraftTokens(drafts []blocks.Draft) int {
	total := 0
	for _, draft := range drafts {
		total += rag.EstimateTokens(draft.Content)
	}
	return total
}

func hashTable(table *blocks.TableData) string {
	var b strings.Builder
	b.WriteString(strings.Join(table.Columns, "\x1f"))
	b.WriteString("\x1e")
	for _, row := range table.Rows {
		b.WriteString(strings.Join(row, "\x1f"))
		b.WriteString("\x1e")
	}
	return utils.MD5(b.String())
}
