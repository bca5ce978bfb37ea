package v1

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/corra-ai/corra-ai/app/core"
	"github.com/corra-ai/corra-ai/pkg/errors"
	"github.com/corra-ai/corra-ai/pkg/i18n"
	"github.com/corra-ai/corra-ai/pkg/rag"
	"github.com/corra-ai/corra-ai/pkg/safe"
	"github.com/corra-ai/corra-ai/pkg/scope"
	"github.com/corra-ai/corra-ai/pkg/types"
	"github.com/corra-ai/corra-ai/pkg/utils"
	"github.com/pgvector/pgvector-go"
)

type RetrieveLogic struct {
	ctx  context.Context
	core *core.Core
}

func NewRetrieveLogic(ctx context.Context, core *core.Core) *RetrieveLogic {
	return &RetrieveLogic{
		ctx:  ctx,
		core: core,
	}
}

type RetrieveArgs struct {
	Query        string
	Scope        types.EntryScope
	ScopeOwnerID string
	Limit        int
	Threshold    float32 // 0 时使用配置默认值
}

type RetrieveResult struct {
	Matches []types.BlockMatch `json:"matches"`
	Lexical bool               `json:"lexical"` // embedding 不可用时走了关键词兜底
}

// Retrieve 单范围检索。向量检索失败时自动降级为 lexical 关键词检索，
// 两条路径返回同一形态的结果。
func (l *RetrieveLogic) Retrieve(args RetrieveArgs) (RetrieveResult, error) {
	if !args.Scope.Valid() {
		return RetrieveResult{}, errors.New("RetrieveLogic.Retrieve.InvalidScope", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest)
	}
	owner := scope.Normalize(args.ScopeOwnerID)
	if owner == "" || strings.TrimSpace(args.Query) == "" {
		return RetrieveResult{}, errors.New("RetrieveLogic.Retrieve.EmptyArgs", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest)
	}

	cfg := l.core.Cfg().Knowledge
	limit := args.Limit
	if limit <= 0 {
		limit = cfg.MaxResults
	}
	threshold := args.Threshold
	if threshold <= 0 {
		threshold = float32(cfg.SimilarityThresh)
	}
	owners := l.core.ScopeResolver().Resolve(owner)

	matches, vector, lexical, err := l.search(args.Query, args.Scope, owners, uint64(limit))
	if err != nil {
		return RetrieveResult{}, err
	}

	matches = rankMatches(matches, threshold, limit)

	l.logQuery(types.QueryLogRecord{
		Query:         args.Query,
		Scope:         args.Scope,
		ScopeOwnerID:  owner,
		MatchedBlocks: len(matches),
		Used:          len(matches) > 0,
		Lexical:       lexical,
		Embedding:     vector,
	})

	return RetrieveResult{
		Matches: matches,
		Lexical: lexical,
	}, nil
}

// IsRelevant 轻量前置判断：该范围内是否存在通过阈值的块
func (l *RetrieveLogic) IsRelevant(args RetrieveArgs) (bool, error) {
	args.Limit = 1
	result, err := l.Retrieve(args)
	if err != nil {
		return false, err
	}
	return len(result.Matches) > 0, nil
}

type ContextResult struct {
	Relevant   bool   `json:"relevant"`
	Context    string `json:"context"`
	BlocksUsed int    `json:"blocks_used"`
	TokensUsed int    `json:"tokens_used"`
	Lexical    bool   `json:"lexical"`
}

// RetrieveContext 单范围检索并直接组装上下文。没有块过阈值时
// relevant=false 且 context 为空。
func (l *RetrieveLogic) RetrieveContext(args RetrieveArgs, maxTokens int) (ContextResult, error) {
	timer := l.core.Metrics().GenContextTimer("single")
	defer timer.ObserveDuration()

	result, err := l.Retrieve(args)
	if err != nil {
		return ContextResult{}, errors.Trace("RetrieveLogic.RetrieveContext", err)
	}
	if len(result.Matches) == 0 {
		return ContextResult{Lexical: result.Lexical}, nil
	}

	budget := maxTokens
	if budget <= 0 {
		budget = l.core.Cfg().Knowledge.TokenBudget
	}
	assembled := rag.Assemble([]rag.ScopedMatches{
		{Scope: args.Scope, Matches: result.Matches},
	}, rag.Options{TokenBudget: budget})

	return ContextResult{
		Relevant:   true,
		Context:    assembled.Context,
		BlocksUsed: len(assembled.BlocksUsed),
		TokensUsed: assembled.TokensUsed,
		Lexical:    result.Lexical,
	}, nil
}

type CombinedArgs struct {
	Query       string
	ThreadID    string
	AgentID     string
	AccountID   string
	TokenBudget int
	// PerScopeBudget 可选的单范围子预算，缺省范围只受总预算约束
	PerScopeBudget map[types.EntryScope]int
}

// assembleOptions 总预算为 0 时回退到配置默认值，子预算原样透传
func (args CombinedArgs) assembleOptions(defaultBudget int) rag.Options {
	budget := args.TokenBudget
	if budget <= 0 {
		budget = defaultBudget
	}
	return rag.Options{
		TokenBudget:    budget,
		PerScopeBudget: args.PerScopeBudget,
	}
}

// RetrieveCombined 按 thread > agent > global 的优先级跨范围检索，
// 汇总为可直接注入 prompt 的上下文段落。
func (l *RetrieveLogic) RetrieveCombined(args CombinedArgs) (rag.Result, error) {
	timer := l.core.Metrics().GenContextTimer("combined")
	defer timer.ObserveDuration()

	cfg := l.core.Cfg().Knowledge

	scoped := []struct {
		scope types.EntryScope
		owner string
	}{
		{types.SCOPE_THREAD, args.ThreadID},
		{types.SCOPE_AGENT, args.AgentID},
		{types.SCOPE_GLOBAL, args.AccountID},
	}

	var sections []rag.ScopedMatches
	for _, s := range scoped {
		if scope.Normalize(s.owner) == "" {
			continue
		}
		result, err := l.Retrieve(RetrieveArgs{
			Query:        args.Query,
			Scope:        s.scope,
			ScopeOwnerID: s.owner,
			Limit:        cfg.MaxResults,
		})
		if err != nil {
			return rag.Result{}, errors.Trace("RetrieveLogic.RetrieveCombined", err)
		}
		sections = append(sections, rag.ScopedMatches{
			Scope:   s.scope,
			Matches: result.Matches,
		})
	}

	return rag.Assemble(sections, args.assembleOptions(cfg.TokenBudget)), nil
}

// ListScopeBlocks 范围内全部可检索块的列表，带缓存。
// 与查询无关，摄取完成或下线 entry 时缓存会被作废。
func (l *RetrieveLogic) ListScopeBlocks(scopeType types.EntryScope, ownerID string) ([]types.BlockMatch, error) {
	if !scopeType.Valid() {
		return nil, errors.New("RetrieveLogic.ListScopeBlocks.InvalidScope", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest)
	}
	owner := scope.Normalize(ownerID)
	if owner == "" {
		return nil, errors.New("RetrieveLogic.ListScopeBlocks.EmptyOwner", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest)
	}

	if cached, ok := l.core.BlockCache().Get(l.ctx, scopeType, owner); ok {
		return cached, nil
	}

	owners := l.core.ScopeResolver().Resolve(owner)
	matches, err := l.core.Store().DocumentAdapter().SearchLexical(l.ctx, owners, scopeType, "", 0)
	if err != nil {
		return nil, errors.New("RetrieveLogic.ListScopeBlocks.SearchLexical", i18n.ERROR_INTERNAL, err)
	}

	l.core.BlockCache().Set(l.ctx, scopeType, owner, matches)
	return matches, nil
}

// search 先尝试向量检索，embedding 服务异常时降级到 lexical。
// 返回的向量供查询日志落库，lexical 路径下为 nil。
func (l *RetrieveLogic) search(query string, scopeType types.EntryScope, owners []string, limit uint64) ([]types.BlockMatch, *pgvector.Vector, bool, error) {
	timer := l.core.Metrics().RetrievalTimer("vector")
	vector, err := l.embedQuery(query)
	if err == nil {
		matches, serr := l.core.Store().DocumentAdapter().SearchByVector(l.ctx, owners, scopeType, vector, limit)
		timer.ObserveDuration()
		if serr != nil {
			return nil, nil, false, errors.New("RetrieveLogic.search.SearchByVector", i18n.ERROR_INTERNAL, serr)
		}
		return matches, &vector, false, nil
	}
	timer.ObserveDuration()

	l.core.Metrics().EmbeddingErrorInc("query")

	lexTimer := l.core.Metrics().RetrievalTimer("lexical")
	defer lexTimer.ObserveDuration()
	matches, serr := l.core.Store().DocumentAdapter().SearchLexical(l.ctx, owners, scopeType, query, limit)
	if serr != nil {
		return nil, nil, false, errors.New("RetrieveLogic.search.SearchLexical", i18n.ERROR_EMBEDDING_DEGRADED, serr)
	}
	return matches, nil, true, nil
}

func (l *RetrieveLogic) embedQuery(query string) (pgvector.Vector, error) {
	result, err := l.core.Srv().AI().EmbeddingForQuery(l.ctx, []string{query})
	if err != nil {
		return pgvector.Vector{}, err
	}
	if len(result.Data) == 0 {
		return pgvector.Vector{}, errors.New("RetrieveLogic.embedQuery.EmptyResult", i18n.ERROR_EMBEDDING_DEGRADED, nil)
	}
	return pgvector.NewVector(result.Data[0]), nil
}

// logQuery 分析日志写入不阻塞请求，失败只影响统计
func (l *RetrieveLogic) logQuery(record types.QueryLogRecord) {
	record.ID = utils.GenUniqIDStr()
	go safe.RunWithComponent(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()
		if err := l.core.Store().QueryLogStore().Create(ctx, record); err != nil {
			slog.Error("Failed to write query log", slog.String("error", err.Error()))
		}
	}, "RetrieveLogic.logQuery")
}

// rankMatches 过滤阈值并排序：相似度降序，同分按重要度降序，再按块索引升序。
// 排序全链路确定，同一输入永远给出同一顺序。
func rankMatches(matches []types.BlockMatch, threshold float32, limit int) []types.BlockMatch {
	filtered := make([]types.BlockMatch, 0, len(matches))
	for _, m := range matches {
		if m.Score >= threshold {
			filtered = append(filtered, m)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].Score != filtered[j].Score {
			return filtered[i].Score > filtered[j].Score
		}
		if filtered[i].Importance != filtered[j].Importance {
			return filtered[i].Importance > filtered[j].Importance
		}
		return filtered[i].BlockIndex < filtered[j].BlockIndex
	})

	if limit > 0 && len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered
}
