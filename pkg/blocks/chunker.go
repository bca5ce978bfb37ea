package blocks

import (
	"strings"

	"github.com/corra-ai/corra-ai/pkg/errors"
	"github.com/corra-ai/corra-ai/pkg/i18n"
	"github.com/corra-ai/corra-ai/pkg/types"
)

// 切点回看窗口，在目标长度前这段范围内找句子边界
const boundaryLookback = 200

var sentenceBoundaries = []rune{'.', '!', '?', '。', '！', '？', '\n'}

// BuildText 自由文本策略：按目标长度切片，相邻切片保留重叠，
// 切点尽量落在句子边界上。类目来自调用方的文件标签。
func BuildText(text string, opts Options) ([]Draft, error) {
	opts = opts.withDefaults()

	if strings.TrimSpace(text) == "" {
		return nil, errors.New("blocks.BuildText.empty", i18n.ERROR_EMPTY_CONTENT, nil)
	}

	chunks := ChunkText(text, opts.ChunkSize, opts.ChunkOverlap)
	drafts := make([]Draft, 0, len(chunks))
	for i, chunk := range chunks {
		drafts = append(drafts, Draft{
			Type:    types.BLOCK_TYPE_ROW_RANGE,
			Index:   i,
			Content: chunk.Text,
			Summary: firstLine(chunk.Text, 120),
			Metadata: types.BlockMetadata{
				"char_start": chunk.Start,
				"char_end":   chunk.End,
			},
			Categories:  opts.FileTags,
			Entities:    ProperNouns(chunk.Text, 10),
			Importance:  types.IMPORTANCE_LEGACY_CONTENT,
			ParentIndex: -1,
		})
	}
	return drafts, nil
}

// Chunk 一个文本切片及其在原文中的 rune 偏移
type Chunk struct {
	Text  string
	Start int
	End   int
}

// ChunkText 按 rune 切片。size 是目标长度，overlap 是相邻切片的重叠长度，
// 下一片从上一片切点回退 overlap 处开始。末尾不足 size 的残片单独成块。
func ChunkText(text string, size, overlap int) []Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	var chunks []Chunk
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = cutAt(runes, start, end)
		}

		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			chunks = append(chunks, Chunk{Text: piece, Start: start, End: end})
		}
		if end >= len(runes) {
			break
		}

		next := end - overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return chunks
}

// cutAt 在 [end-boundaryLookback, end) 范围内从后往前找句子边界，
// 找到就在边界后断开，找不到退回硬切。
func cutAt(runes []rune, start, end int) int {
	low := end - boundaryLookback
	if low < start+1 {
		low = start + 1
	}
	for i := end - 1; i >= low; i-- {
		for _, b := range sentenceBoundaries {
			if runes[i] == b {
				return i + 1
			}
		}
	}
	return end
}

func firstLine(text string, limit int) string {
	line := text
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	runes := []rune(strings.TrimSpace(line))
	if len(runes) > limit {
		runes = runes[:limit]
	}
	return string(runes)
}
