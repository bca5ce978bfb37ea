package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/corra-ai/corra-ai/pkg/types"
)

// 作用域块列表缓存的有界 TTL，过期后强制回源
const DefaultBlockListTTL = 5 * time.Minute

// BlockListService 按作用域缓存可检索块列表，词法兜底检索用它省掉
// 重复的全量扫描。失效触发点是该作用域的一次摄取完成。
type BlockListService struct {
	cache types.Cache
	ttl   time.Duration
}

func NewBlockListService(cache types.Cache, ttl time.Duration) *BlockListService {
	if ttl <= 0 {
		ttl = DefaultBlockListTTL
	}
	return &BlockListService{cache: cache, ttl: ttl}
}

func blockListKey(scope types.EntryScope, owner string) string {
	return fmt.Sprintf("corra:blocks:%s:%s", scope, owner)
}

// Get miss 或反序列化失败都按 miss 处理，调用方回源
func (s *BlockListService) Get(ctx context.Context, scope types.EntryScope, owner string) ([]types.BlockMatch, bool) {
	raw, err := s.cache.Get(ctx, blockListKey(scope, owner))
	if err != nil || raw == "" {
		return nil, false
	}

	var matches []types.BlockMatch
	if err = json.Unmarshal([]byte(raw), &matches); err != nil {
		return nil, false
	}
	return matches, true
}

// Set 写入失败只意味着下次回源，不向上冒泡
func (s *BlockListService) Set(ctx context.Context, scope types.EntryScope, owner string, matches []types.BlockMatch) {
	raw, err := json.Marshal(matches)
	if err != nil {
		return
	}
	_ = s.cache.SetEx(ctx, blockListKey(scope, owner), string(raw), s.ttl)
}

// Invalidate 摄取完成后调用，清掉该作用域的缓存列表
func (s *BlockListService) Invalidate(ctx context.Context, scope types.EntryScope, owner string) error {
	return s.cache.Del(ctx, blockListKey(scope, owner))
}
