package openai

import (
	"context"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/corra-ai/corra-ai/pkg/ai"
)

const (
	NAME = "openai"

	// 部署维度固定，所有向量同一维度才能做相似度比较
	DefaultDimension = 384

	batchMax = 6
)

type Driver struct {
	client    *openai.Client
	model     ai.ModelName
	dimension int
}

func NewClient(token, proxy string) *openai.Client {
	cfg := openai.DefaultConfig(token)
	if proxy != "" {
		cfg.BaseURL = proxy
	}

	return openai.NewClientWithConfig(cfg)
}

func New(token, proxy string, model ai.ModelName, dimension int) *Driver {
	if model.EmbeddingModel == "" {
		model.EmbeddingModel = string(openai.SmallEmbedding3)
	}
	if dimension <= 0 {
		dimension = DefaultDimension
	}

	return &Driver{
		client:    NewClient(token, proxy),
		model:     model,
		dimension: dimension,
	}
}

func (s *Driver) Dimension() int {
	return s.dimension
}

func (s *Driver) embedding(ctx context.Context, content []string) (ai.EmbeddingResult, error) {
	slog.Debug("Embedding", slog.String("driver", NAME), slog.Int("inputs", len(content)))

	queryReq := openai.EmbeddingRequest{
		Model:      openai.EmbeddingModel(s.model.EmbeddingModel),
		Dimensions: s.dimension,
	}

	var groups [][]string
	for i, v := range content {
		if i%batchMax == 0 {
			groups = append(groups, []string{})
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], ai.TruncateInput(v, s.model.EmbeddingModel))
	}

	r := ai.EmbeddingResult{
		Usage: &openai.Usage{},
	}
	for _, group := range groups {
		queryReq.Input = group
		resp, err := s.client.CreateEmbeddings(ctx, queryReq)
		if err != nil {
			return r, fmt.Errorf("Error creating embedding: %w", err)
		}
		for _, d := range resp.Data {
			r.Data = append(r.Data, d.Embedding)
		}

		r.Usage.CompletionTokens += resp.Usage.CompletionTokens
		r.Usage.PromptTokens += resp.Usage.PromptTokens
		r.Usage.TotalTokens += resp.Usage.TotalTokens
		r.Model = string(resp.Model)
	}

	return r, nil
}

func (s *Driver) EmbeddingForQuery(ctx context.Context, content []string) (ai.EmbeddingResult, error) {
	return s.embedding(ctx, content)
}

func (s *Driver) EmbeddingForDocument(ctx context.Context, title string, content []string) (ai.EmbeddingResult, error) {
	return s.embedding(ctx, content)
}
