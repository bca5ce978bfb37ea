package srv

import (
	"context"
	"os"

	"github.com/corra-ai/corra-ai/pkg/ai"
	"github.com/corra-ai/corra-ai/pkg/ai/openai"
)

// EmbeddingAI 嵌入网关契约。实现可以内部分批，但必须保持输出与
// 输入 1:1 且顺序一致。
type EmbeddingAI interface {
	EmbeddingForQuery(ctx context.Context, content []string) (ai.EmbeddingResult, error)
	EmbeddingForDocument(ctx context.Context, title string, content []string) (ai.EmbeddingResult, error)
}

type AIConfig struct {
	Token          string `toml:"token"`
	Endpoint       string `toml:"endpoint"`
	EmbeddingModel string `toml:"embedding_model"`
	Dimension      int    `toml:"dimension"`
}

func (c *AIConfig) FromENV() {
	c.Token = os.Getenv("CORRA_AI_TOKEN")
	c.Endpoint = os.Getenv("CORRA_AI_ENDPOINT")
	c.EmbeddingModel = os.Getenv("CORRA_AI_EMBEDDING_MODEL")
}

func SetupAI(cfg AIConfig) EmbeddingAI {
	return openai.New(cfg.Token, cfg.Endpoint, ai.ModelName{
		EmbeddingModel: cfg.EmbeddingModel,
	}, cfg.Dimension)
}

func ApplyAI(cfg AIConfig) ApplyFunc {
	return func(s *Srv) {
		s.ai = SetupAI(cfg)
	}
}
