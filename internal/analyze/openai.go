package analyze

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// chunkSize bounds how much page text goes into one extraction prompt.
const chunkSize = 10000

const keywordPrompt = `You are an intelligent web crawler bot which can extract the essential keywords from a given text and return them as a comma separated list.
For example,
input: Broadcom agreed to acquire cloud computing company VMware in a $61 billion cash-and-stock deal.
output: cloud computing, broadcom, vmware

The output format is always keyword1, keyword2, ...

INPUT TEXT: `

const summaryPrompt = `Summarize the following web page content in a short paragraph. Reply with the summary only.

CONTENT: `

// OpenAIConfig selects the models used for analysis.
type OpenAIConfig struct {
	ChatModel      string
	EmbeddingModel string
}

// OpenAIAnalyzer implements Analyzer against an OpenAI-compatible API.
type OpenAIAnalyzer struct {
	client *openai.Client
	cfg    OpenAIConfig
	logger *zap.Logger
}

// NewOpenAIAnalyzer wraps an existing client.
func NewOpenAIAnalyzer(client *openai.Client, cfg OpenAIConfig, logger *zap.Logger) *OpenAIAnalyzer {
	if cfg.ChatModel == "" {
		cfg.ChatModel = openai.GPT4oMini
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = string(openai.SmallEmbedding3)
	}
	return &OpenAIAnalyzer{client: client, cfg: cfg, logger: logger}
}

// Analyze runs keyword extraction over the text's chunks, summarizes the
// whole, and embeds the summary. Keyword failures on individual chunks are
// skipped; summary and embedding failures fail the call.
func (a *OpenAIAnalyzer) Analyze(ctx context.Context, text string) (Analysis, error) {
	var keywords []string
	if len(text) > 0 {
		seen := make(map[string]struct{})
		for _, chunk := range splitChunks(text, chunkSize) {
			kws, err := a.Keywords(ctx, chunk)
			if err != nil {
				a.logger.Warn("keyword extraction failed for chunk", zap.Error(err))
				continue
			}
			for _, kw := range kws {
				if _, dup := seen[kw]; dup {
					continue
				}
				seen[kw] = struct{}{}
				keywords = append(keywords, kw)
			}
		}
	}

	summary, err := a.complete(ctx, summaryPrompt+text)
	if err != nil {
		return Analysis{}, fmt.Errorf("summarize: %w", err)
	}

	embedding, err := a.Embed(ctx, summary)
	if err != nil {
		return Analysis{}, fmt.Errorf("embed summary: %w", err)
	}

	return Analysis{Keywords: keywords, Summary: summary, Embedding: embedding}, nil
}

// Keywords implements Analyzer. Results are lowercased and deduplicated.
func (a *OpenAIAnalyzer) Keywords(ctx context.Context, text string) ([]string, error) {
	out, err := a.complete(ctx, keywordPrompt+text)
	if err != nil {
		return nil, fmt.Errorf("extract keywords: %w", err)
	}
	return ParseKeywordList(out), nil
}

// Embed implements Analyzer.
func (a *OpenAIAnalyzer) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(a.cfg.EmbeddingModel),
		Input: []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding response is empty")
	}
	return resp.Data[0].Embedding, nil
}

func (a *OpenAIAnalyzer) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.cfg.ChatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("completion response has no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// ParseKeywordList turns a model's comma-separated reply into normalized,
// deduplicated keywords.
func ParseKeywordList(reply string) []string {
	seen := make(map[string]struct{})
	var keywords []string
	for _, part := range strings.Split(reply, ",") {
		kw := strings.ToLower(strings.TrimSpace(part))
		if kw == "" {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		keywords = append(keywords, kw)
	}
	return keywords
}

// splitChunks slices text into pieces of at most size bytes.
func splitChunks(text string, size int) []string {
	if len(text) <= size {
		return []string{text}
	}
	var chunks []string
	for len(text) > size {
		chunks = append(chunks, text[:size])
		text = text[size:]
	}
	if len(text) > 0 {
		chunks = append(chunks, text)
	}
	return chunks
}
