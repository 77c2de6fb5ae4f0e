package embedding

import (
	"context"
	"fmt"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultBaseURL is the OpenAI-compatible gateway the service talks to unless
// configured otherwise.
const DefaultBaseURL = "https://api.aimlapi.com/v1"

type OpenAIEmbedder struct {
	client    openai.Client
	model     string
	dimension int
	maxBatch  int
}

func NewOpenAIEmbedder(apiKeyEnv, model string, opts ...option.RequestOption) (*OpenAIEmbedder, error) {
	return NewOpenAICompatibleEmbedder(apiKeyEnv, model, "https://api.openai.com/v1", opts...)
}

// NewOpenAICompatibleEmbedder creates an embedder for any service exposing the
// OpenAI embeddings endpoint. The API key is read from apiKeyEnv.
func NewOpenAICompatibleEmbedder(apiKeyEnv, model, baseURL string, opts ...option.RequestOption) (*OpenAIEmbedder, error) {
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", apiKeyEnv)
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	dimension := 1536
	switch model {
	case "text-embedding-3-small":
		dimension = 1536
	case "text-embedding-3-large":
		dimension = 3072
	case "text-embedding-ada-002":
		dimension = 1536
	}

	clientOpts := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
	}, opts...)

	return &OpenAIEmbedder{
		client:    openai.NewClient(clientOpts...),
		model:     model,
		dimension: dimension,
		maxBatch:  100,
	}, nil
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var allEmbeddings [][]float32

	for i := 0; i < len(texts); i += e.maxBatch {
		end := i + e.maxBatch
		if end > len(texts) {
			end = len(texts)
		}

		embeddings, err := e.embedBatch(ctx, texts[i:end])
		if err != nil {
			return nil, err
		}
		allEmbeddings = append(allEmbeddings, embeddings...)
	}

	return allEmbeddings, nil
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}

	embeddings := make([][]float32, len(texts))
	for _, data := range resp.Data {
		idx := int(data.Index)
		if idx < 0 || idx >= len(embeddings) {
			continue
		}
		vec := make([]float32, len(data.Embedding))
		for j, v := range data.Embedding {
			vec[j] = float32(v)
		}
		embeddings[idx] = vec
	}

	for i, vec := range embeddings {
		if len(vec) == 0 {
			return nil, fmt.Errorf("no embedding returned for input %d", i)
		}
	}

	return embeddings, nil
}

func (e *OpenAIEmbedder) Dimension() int {
	return e.dimension
}

func (e *OpenAIEmbedder) ModelName() string {
	return e.model
}
