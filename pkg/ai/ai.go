// Package ai 嵌入网关的公共契约。驱动实现负责与具体 provider 通信，
// 上层只依赖这里的类型。
package ai

import (
	"github.com/pkoukk/tiktoken-go"
	openai "github.com/sashabaranov/go-openai"
)

type ModelName struct {
	EmbeddingModel string
}

// EmbeddingResult Data 与输入一一对应且顺序一致，这是网关契约的
// 硬性要求，调用方靠下标回填块向量。
type EmbeddingResult struct {
	Model string
	Usage *openai.Usage
	Data  [][]float32
}

// 单条输入送入 embedding 前的 token 上限，超出部分截断
const EmbeddingInputLimit = 8000

// TruncateInput 嵌入模型有输入长度上限，超长文本按 token 计数截断。
// 块构造阶段已经控制了块大小，这里只是最后一道闸。
func TruncateInput(text, model string) string {
	if NumTokens(text, model) <= EmbeddingInputLimit {
		return text
	}

	runes := []rune(text)
	for len(runes) > 0 && NumTokens(string(runes), model) > EmbeddingInputLimit {
		runes = runes[:len(runes)*9/10]
	}
	return string(runes)
}

// NumTokens 精确 token 计数，编码器拿不到时退回字节数/4 估算
func NumTokens(text, model string) int {
	tkm, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return len(text) / 4
	}
	return len(tkm.Encode(text, nil, nil))
}
