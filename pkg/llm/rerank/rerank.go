// Package rerank provides LLM-scored reranking of retrieval results.
package rerank

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/databridge/pkg/llm"
)

const rerankSystemPrompt = "You are a relevance judge. Rate how relevant the document is to the query on a scale of 0-10. Respond with only the number."

const rerankPromptTemplate = `Query: %s

Document: %s

Relevance score (0-10):`

var scorePattern = regexp.MustCompile(`\d+(\.\d+)?`)

// LLMReranker scores each candidate chunk with a chat model.
type LLMReranker struct {
	chat llm.ChatProvider
}

var _ llm.Reranker = (*LLMReranker)(nil)

// NewLLMReranker creates a reranker backed by the given chat provider.
func NewLLMReranker(chat llm.ChatProvider) *LLMReranker {
	return &LLMReranker{chat: chat}
}

// Name returns the reranker name.
func (r *LLMReranker) Name() string {
	return "llm-reranker"
}

// Rerank scores each chunk against the query. Scores are normalized
// to 0-1. A chunk whose score cannot be parsed gets 0 and a warning,
// the whole batch does not fail.
func (r *LLMReranker) Rerank(ctx context.Context, query string, chunks []string) ([]float64, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	scores := make([]float64, len(chunks))
	for i, chunk := range chunks {
		prompt := fmt.Sprintf(rerankPromptTemplate, query, chunk)

		resp, err := r.chat.Generate(ctx, prompt, rerankSystemPrompt)
		if err != nil {
			return nil, fmt.Errorf("rerank scoring failed for chunk %d: %w", i, err)
		}

		score, ok := parseScore(resp.Content)
		if !ok {
			logger.Warnw("unparseable rerank score, defaulting to 0",
				"chunk_index", i,
				"response", resp.Content,
			)
			continue
		}
		scores[i] = score
	}

	return scores, nil
}

// parseScore extracts the first number from the model output and
// normalizes it from 0-10 to 0-1.
func parseScore(content string) (float64, bool) {
	match := scorePattern.FindString(strings.TrimSpace(content))
	if match == "" {
		return 0, false
	}
	raw, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	if raw < 0 {
		raw = 0
	}
	if raw > 10 {
		raw = 10
	}
	return raw / 10, true
}
