package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/corra-ai/corra-ai/pkg/types"
	"github.com/corra-ai/corra-ai/pkg/utils"
)

type testPGConfig struct {
	DSN string
}

func (m testPGConfig) FormatDSN() string {
	return m.DSN
}

func testProvider(t *testing.T) *Provider {
	dsn := os.Getenv("CORRA_API_POSTGRESQL_DSN")
	if dsn == "" {
		t.Skip("CORRA_API_POSTGRESQL_DSN not set")
	}
	return MustSetup(testPGConfig{DSN: dsn})()
}

func TestBlockQuery(t *testing.T) {
	provider := testProvider(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*20)
	defer cancel()

	vector := make([]float32, 384)
	vector[0] = 1

	res, err := provider.stores.BlockStore.Query(ctx, []string{"test"}, types.SCOPE_GLOBAL, pgvector.NewVector(vector), 5)
	if err != nil {
		t.Fatal(err)
	}

	t.Log(res)
}

func TestBlockQueryLexical(t *testing.T) {
	provider := testProvider(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*20)
	defer cancel()

	res, err := provider.stores.BlockStore.QueryLexical(ctx, []string{"test"}, types.SCOPE_GLOBAL, "预算", 5)
	if err != nil {
		t.Fatal(err)
	}

	t.Log(res)
}

// 同一去重键重复写入不报错也不产生第二行，回查拿到首次写入的记录
func TestEntryCreateDedup(t *testing.T) {
	provider := testProvider(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*20)
	defer cancel()

	owner := "dedup-" + utils.GenUniqIDStr()
	hash := utils.MD5("部门预算 2025")
	first := types.Entry{
		ID:           utils.GenUniqIDStr(),
		Scope:        types.SCOPE_GLOBAL,
		ScopeOwnerID: owner,
		DisplayName:  "budget.csv",
		ContentHash:  hash,
		IsActive:     true,
	}
	if err := provider.stores.EntryStore.Create(ctx, first); err != nil {
		t.Fatal(err)
	}
	defer provider.stores.EntryStore.Delete(ctx, first.ID)

	second := first
	second.ID = utils.GenUniqIDStr()
	if err := provider.stores.EntryStore.Create(ctx, second); err != nil {
		t.Fatal(err)
	}

	got, err := provider.stores.EntryStore.GetByHash(ctx, types.SCOPE_GLOBAL, owner, "budget.csv", hash)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != first.ID {
		t.Fatalf("expected first entry %s, got %s", first.ID, got.ID)
	}

	if _, err = provider.stores.EntryStore.GetEntry(ctx, second.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("conflicting insert should not persist, got %v", err)
	}
}

// embedding 为 NULL 的块不参与向量检索，但 lexical 检索仍可命中
func TestBlockQuerySkipsNullEmbedding(t *testing.T) {
	provider := testProvider(t)
	adapter := NewExtendedAdapter(provider)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*20)
	defer cancel()

	owner := "embed-" + utils.GenUniqIDStr()
	keyword := "季度营收快照" + utils.GenUniqIDStr()
	entry := &types.Entry{
		ID:           utils.GenUniqIDStr(),
		Scope:        types.SCOPE_GLOBAL,
		ScopeOwnerID: owner,
		DisplayName:  "revenue.md",
		ContentHash:  utils.MD5(keyword),
		IsActive:     true,
	}

	vec := make([]float32, 384)
	vec[0] = 1
	embedded := pgvector.NewVector(vec)
	blocks := []*types.DataBlock{
		{ID: utils.GenUniqIDStr(), EntryID: entry.ID, BlockType: types.BLOCK_TYPE_ROW_RANGE,
			BlockIndex: 0, Content: keyword + " 第一段", Importance: 0.6, Embedding: &embedded},
		{ID: utils.GenUniqIDStr(), EntryID: entry.ID, BlockType: types.BLOCK_TYPE_ROW_RANGE,
			BlockIndex: 1, Content: keyword + " 第二段", Importance: 0.6},
	}
	if err := adapter.SaveDocument(ctx, entry, blocks, nil); err != nil {
		t.Fatal(err)
	}
	defer adapter.DeleteDocument(ctx, entry.ID)

	byVector, err := adapter.SearchByVector(ctx, []string{owner}, types.SCOPE_GLOBAL, embedded, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(byVector) != 1 {
		t.Fatalf("expected only the embedded block, got %d matches", len(byVector))
	}
	if byVector[0].BlockID != blocks[0].ID {
		t.Fatalf("unexpected match %s", byVector[0].BlockID)
	}

	byKeyword, err := adapter.SearchLexical(ctx, []string{owner}, types.SCOPE_GLOBAL, keyword, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(byKeyword) != 2 {
		t.Fatalf("lexical search should see both blocks, got %d", len(byKeyword))
	}
}

// legacy 模式写入合并文档后，lexical 检索返回 legacy_content 伪块
func TestLegacyAdapterSaveAndSearch(t *testing.T) {
	provider := testProvider(t)
	adapter := NewLegacyAdapter(provider)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*20)
	defer cancel()

	owner := "legacy-" + utils.GenUniqIDStr()
	keyword := "年度复盘纪要" + utils.GenUniqIDStr()
	entry := &types.Entry{
		ID:           utils.GenUniqIDStr(),
		Scope:        types.SCOPE_AGENT,
		ScopeOwnerID: owner,
		DisplayName:  "review.txt",
		ContentHash:  utils.MD5(keyword),
		IsActive:     true,
	}
	blocks := []*types.DataBlock{
		{BlockType: types.BLOCK_TYPE_ROW_RANGE, BlockIndex: 0, Content: keyword + " 开场"},
		{BlockType: types.BLOCK_TYPE_ROW_RANGE, BlockIndex: 1, Content: "后续讨论"},
	}
	if err := adapter.SaveDocument(ctx, entry, blocks, nil); err != nil {
		t.Fatal(err)
	}
	defer adapter.DeleteDocument(ctx, entry.ID)

	res, err := adapter.SearchLexical(ctx, []string{owner}, types.SCOPE_AGENT, keyword, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 1 {
		t.Fatalf("expected one synthesized match, got %d", len(res))
	}

	match := res[0]
	if match.BlockType != types.BLOCK_TYPE_LEGACY_CONTENT {
		t.Fatalf("unexpected block type %s", match.BlockType)
	}
	if match.BlockIndex != 0 || match.Importance != types.IMPORTANCE_LEGACY_CONTENT {
		t.Fatalf("synthesized block fields wrong: index=%d importance=%f", match.BlockIndex, match.Importance)
	}
	if match.EntryID != entry.ID {
		t.Fatalf("unexpected entry %s", match.EntryID)
	}
	if !strings.Contains(match.Content, keyword+" 开场") || !strings.Contains(match.Content, "后续讨论") {
		t.Fatalf("combined document missing block text: %s", match.Content)
	}
}
