package ai_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/corra-ai/corra-ai/pkg/ai"
)

func TestNumTokensFallback(t *testing.T) {
	// 未知模型走字节数/4 估算
	text := strings.Repeat("a", 400)
	assert.Equal(t, 100, ai.NumTokens(text, "no-such-model"))
	assert.Equal(t, 0, ai.NumTokens("", "no-such-model"))
}

func TestTruncateInput(t *testing.T) {
	short := "部门预算表"
	assert.Equal(t, short, ai.TruncateInput(short, "no-such-model"))

	long := strings.Repeat("abcd", 20000)
	truncated := ai.TruncateInput(long, "no-such-model")
	assert.Less(t, len(truncated), len(long))
	assert.LessOrEqual(t, ai.NumTokens(truncated, "no-such-model"), ai.EmbeddingInputLimit)
}
