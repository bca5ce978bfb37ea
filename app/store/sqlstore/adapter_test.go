package sqlstore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/corra-ai/corra-ai/pkg/types"
)

func TestCombineBlocksToDocument(t *testing.T) {
	blocks := []*types.DataBlock{
		{BlockType: types.BLOCK_TYPE_SUMMARY, BlockIndex: types.BLOCK_INDEX_SUMMARY, Content: "overall summary"},
		{BlockType: types.BLOCK_TYPE_ROW_GROUP, BlockIndex: 1, Content: "group two", ContentSummary: "second group"},
		{BlockType: types.BLOCK_TYPE_ROW_GROUP, BlockIndex: 0, Content: "group one"},
	}

	doc := CombineBlocksToDocument(blocks)

	// 合并顺序跟 block_index 走，summary 的保留高位索引让它排在最后
	first := strings.Index(doc, "group one")
	second := strings.Index(doc, "group two")
	last := strings.Index(doc, "overall summary")
	assert.True(t, first < second && second < last)
	assert.Contains(t, doc, "second group")
	assert.Contains(t, doc, "### row_group 0")
}

func TestCombineBlocksToDocumentEmpty(t *testing.T) {
	assert.Empty(t, CombineBlocksToDocument(nil))
}

func TestSynthesizeLegacyMatches(t *testing.T) {
	in := []types.BlockMatch{
		{BlockID: "e1", EntryID: "e1", Score: 0.7, Importance: 0},
	}

	out := synthesizeLegacyMatches(in)
	assert.Equal(t, types.BLOCK_TYPE_LEGACY_CONTENT, out[0].BlockType)
	assert.Equal(t, types.IMPORTANCE_LEGACY_CONTENT, out[0].Importance)
	assert.Equal(t, 0, out[0].BlockIndex)
	assert.Equal(t, float32(0.7), out[0].Score)
}
