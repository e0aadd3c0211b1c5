package usecase

import (
	"context"
	"strings"

	"agentic-rag/internal/domain"
)

// Rewriter reformulates a search query after a retrieval attempt came
// back empty or ungraded, up to a bounded number of retries.
type Rewriter struct {
	llm     domain.LLMClient
	prompts *PromptFactory
}

func NewRewriter(llm domain.LLMClient, prompts *PromptFactory) *Rewriter {
	return &Rewriter{llm: llm, prompts: prompts}
}

// ShouldRetry implements the bounded-retry control: generate once
// documents are present or once the retry bound is reached, otherwise
// rewrite and retry.
func ShouldRetry(documents []domain.CandidateDocument, retries, maxRetries int) bool {
	if len(documents) > 0 {
		return false
	}
	if retries >= maxRetries {
		return false
	}
	return true
}

func (r *Rewriter) Rewrite(ctx context.Context, query string, lang domain.Language, retries int) (string, error) {
	system := r.prompts.RewriteSystemPrompt(lang)
	user := r.prompts.RewriteUserPrompt(query, retries)

	resp, err := r.llm.Chat(ctx, []domain.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}, 200)
	if err != nil {
		return "", err
	}

	rewritten := strings.TrimSpace(resp.Text)
	if rewritten == "" {
		return query, nil
	}
	return rewritten, nil
}
