package blocks

import (
	"sort"
	"strings"
	"unicode"

	"github.com/abadojack/whatlanggo"
)

// ProperNouns 从自由文本中提取候选实体：拉丁文字的文本取非句首的
// 大写开头词，按出现频次排序。非拉丁文字（中日韩等）没有大小写
// 线索，返回空集而不是瞎猜。
func ProperNouns(text string, limit int) []string {
	info := whatlanggo.Detect(text)
	if info.Script != unicode.Latin {
		return nil
	}

	counts := make(map[string]int)
	sentenceStart := true
	for _, word := range strings.Fields(text) {
		word = strings.Trim(word, ".,;:!?\"'()[]{}")
		if word == "" {
			continue
		}

		atStart := sentenceStart
		sentenceStart = strings.ContainsAny(word, ".!?")

		runes := []rune(word)
		if atStart || len(runes) < 3 {
			continue
		}
		if !unicode.IsUpper(runes[0]) {
			continue
		}
		// 全大写的缩写词保留，其余要求后续是小写字母
		rest := string(runes[1:])
		if rest != strings.ToLower(rest) && rest != strings.ToUpper(rest) {
			continue
		}
		counts[word]++
	}

	nouns := make([]string, 0, len(counts))
	for w := range counts {
		nouns = append(nouns, w)
	}
	sort.Slice(nouns, func(a, b int) bool {
		if counts[nouns[a]] != counts[nouns[b]] {
			return counts[nouns[a]] > counts[nouns[b]]
		}
		return nouns[a] < nouns[b]
	})
	if len(nouns) > limit {
		nouns = nouns[:limit]
	}
	return nouns
}
