package blocks_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corra-ai/corra-ai/pkg/blocks"
	"github.com/corra-ai/corra-ai/pkg/types"
)

// 约 2500 字符、句子完整的测试文本
func longText() string {
	var b strings.Builder
	for i := 0; b.Len() < 2500; i++ {
		b.WriteString("The quarterly review covers spending, hiring and vendor contracts in detail. ")
	}
	return b.String()
}

func TestChunkTextOverlap(t *testing.T) {
	text := longText()
	chunks := blocks.ChunkText(text, 1000, 200)

	require.GreaterOrEqual(t, len(chunks), 3)
	require.LessOrEqual(t, len(chunks), 4)

	for i, c := range chunks {
		assert.NotEmpty(t, c.Text)
		assert.LessOrEqual(t, len([]rune(c.Text)), 1000)
		if i == 0 {
			continue
		}
		// 相邻切片有重叠：后一片的开头应出现在前一片的尾部
		prev := chunks[i-1]
		assert.Less(t, c.Start, prev.End)
		head := []rune(c.Text)
		if len(head) > 40 {
			head = head[:40]
		}
		assert.Contains(t, prev.Text, string(head))
	}
}

func TestChunkTextSentenceBoundary(t *testing.T) {
	text := longText()
	chunks := blocks.ChunkText(text, 1000, 200)

	for i, c := range chunks {
		if i == len(chunks)-1 {
			continue
		}
		assert.True(t, strings.HasSuffix(c.Text, "."),
			"非末尾切片应断在句子边界: %q", c.Text[len(c.Text)-20:])
	}
}

func TestChunkTextShortInput(t *testing.T) {
	chunks := blocks.ChunkText("short note", 1000, 200)
	require.Len(t, chunks, 1)
	assert.Equal(t, "short note", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Start)
}

func TestChunkTextCJK(t *testing.T) {
	text := strings.Repeat("季度预算评审覆盖了支出、招聘与供应商合同。", 60)
	chunks := blocks.ChunkText(text, 300, 50)

	require.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		if i == len(chunks)-1 {
			continue
		}
		assert.True(t, strings.HasSuffix(c.Text, "。"))
	}
}

func TestBuildText(t *testing.T) {
	drafts, err := blocks.BuildText(longText(), blocks.Options{FileTags: []string{"finance"}})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(drafts), 3)

	for i, d := range drafts {
		assert.Equal(t, types.BLOCK_TYPE_ROW_RANGE, d.Type)
		assert.Equal(t, i, d.Index)
		assert.Equal(t, []string{"finance"}, d.Categories)
		assert.Contains(t, d.Metadata, "char_start")
		assert.Contains(t, d.Metadata, "char_end")
	}
}

func TestBuildTextEmpty(t *testing.T) {
	_, err := blocks.BuildText("   \n  ", blocks.Options{})
	assert.Error(t, err)
}
