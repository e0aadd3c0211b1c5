package usecase

import (
	"fmt"
	"strings"

	"agentic-rag/internal/domain"
)

// PromptFactory assembles the system and user prompts handed to the
// Generator and Rewriter, varying register and instructions by the
// caller's RuntimeContext and the query's detected language.
type PromptFactory struct{}

func NewPromptFactory() *PromptFactory {
	return &PromptFactory{}
}

const generationSystemTemplate = `You are an HR policy assistant answering questions about company policy documents.
Answer only from the provided context. If the context does not contain the answer, set "fallback" to true and explain why in "reason".
Respond in %s. Cite the context entries you used by their bracketed index, e.g. [1].
Respond with a JSON object: {"answer": string, "citations": [{"chunk_id": string, "reason": string}], "fallback": bool, "reason": string}.`

const rewriteSystemTemplate = `You rewrite a search query so it retrieves better matches from an HR policy document index.
Keep the rewritten query in %s. Preserve the original intent; make it more specific or use synonyms likely to appear in policy text.
Respond with only the rewritten query, nothing else.`

const queryPreparationSystemTemplate = `You prepare a search query for retrieval against an HR policy document index spanning English, Russian and Uzbek policy documents.
Given the user's question, produce a primary optimized search query, %d alternate phrasings (decompose a multi-topic question into sub-questions), and one broader "step back" query asking about the general topic the question sits under.
Infer any of language, file_type, or section_header you are confident the answer lives under; omit a field you're not confident about.
Respond with only a JSON object, no other prose: {"search_query": string, "search_queries": [string, ...], "step_back_query": string, "filters": {"language": string, "file_type": string, "section_header": string} | null}`

func languageName(lang domain.Language) string {
	switch lang {
	case domain.LanguageRussian:
		return "Russian"
	case domain.LanguageUzbek:
		return "Uzbek"
	default:
		return "English"
	}
}

// GenerationSystemPrompt builds the Generator's system prompt, adjusting
// register for RuntimeContext.ExpertiseLevel and ResponseStyle.
func (f *PromptFactory) GenerationSystemPrompt(lang domain.Language, rc domain.RuntimeContext) string {
	prompt := fmt.Sprintf(generationSystemTemplate, languageName(lang))

	switch rc.ExpertiseLevel {
	case "novice":
		prompt += "\nAvoid jargon; explain policy terms in plain language."
	case "expert":
		prompt += "\nYou may use precise policy terminology without explanation."
	}

	if rc.ResponseStyle == "concise" {
		prompt += "\nKeep the answer to 2-3 sentences."
	}

	return prompt
}

// GenerationUserPrompt builds the user turn combining the packed context
// and the query.
func (f *PromptFactory) GenerationUserPrompt(query, context string) string {
	var b strings.Builder
	b.WriteString("Context:\n")
	b.WriteString(context)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(query)
	return b.String()
}

// RewriteSystemPrompt builds the Rewriter's system prompt.
func (f *PromptFactory) RewriteSystemPrompt(lang domain.Language) string {
	return fmt.Sprintf(rewriteSystemTemplate, languageName(lang))
}

// RewriteUserPrompt builds the Rewriter's user turn.
func (f *PromptFactory) RewriteUserPrompt(query string, retries int) string {
	return fmt.Sprintf("Original query: %s\nAttempt: %d\nRewrite this query for better retrieval.", query, retries+1)
}

// QueryPreparationSystemPrompt builds the Query Preparer's system
// prompt, instructing the model to produce alternateCount alternate
// phrasings (clamped to the 2-3 range spec.md calls for).
func (f *PromptFactory) QueryPreparationSystemPrompt(alternateCount int) string {
	if alternateCount < 2 {
		alternateCount = 2
	}
	if alternateCount > 3 {
		alternateCount = 3
	}
	return fmt.Sprintf(queryPreparationSystemTemplate, alternateCount)
}

// QueryPreparationUserPrompt builds the Query Preparer's user turn.
func (f *PromptFactory) QueryPreparationUserPrompt(query string) string {
	return fmt.Sprintf("User question: %s", query)
}
