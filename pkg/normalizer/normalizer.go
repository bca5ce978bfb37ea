// Package normalizer 对上游抽取出的纯文本做入库前的清洗。
// 清洗是纯函数：同样的输入永远得到同样的输出，且满足幂等。
package normalizer

import (
	"strings"
)

// DefaultMaxLength 默认的正文长度上限（字符数）
const DefaultMaxLength = 100000

// Normalize 清洗抽取文本：
// 去除除 \t \n 外的控制字符与 BOM/NUL，CRLF 归一为 LF，
// 连续4个以上换行压缩为3个，按 maxLength 截断，去除首尾空白。
func Normalize(raw string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}

	var b strings.Builder
	b.Grow(len(raw))

	runes := []rune(raw)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\uFEFF' || r == 0: // BOM / NUL
			continue
		case r == '\r':
			// CRLF → LF，孤立的 CR 同样归一为 LF
			if i+1 < len(runes) && runes[i+1] == '\n' {
				continue
			}
			b.WriteRune('\n')
		case r == '\t' || r == '\n':
			b.WriteRune(r)
		case r < 0x20 || r == 0x7f:
			continue
		default:
			b.WriteRune(r)
		}
	}

	text := collapseNewlines(b.String())

	if r := []rune(text); len(r) > maxLength {
		text = string(r[:maxLength])
	}

	return strings.TrimSpace(text)
}

// collapseNewlines 将连续4个及以上的换行压缩为3个
func collapseNewlines(s string) string {
	var (
		b   strings.Builder
		run int
	)
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' {
			run++
			if run > 3 {
				continue
			}
		} else {
			run = 0
		}
		b.WriteRune(r)
	}
	return b.String()
}
