package usecase

import (
	"fmt"
	"strings"

	"agentic-rag/internal/domain"

	"github.com/google/uuid"
)

// contextWindows is the per-model token budget table. Unknown models
// fall back to defaultContextWindow.
var contextWindows = map[string]int{
	"llama3.1":   131072,
	"qwen3":      32768,
	"gemma3":     8192,
	"gpt-oss":    131072,
	"nomic-embed": 8192,
}

const defaultContextWindow = 32768

// charsPerToken is the heuristic token-counting ratio used when no
// model-specific tokenizer is wired in: roughly 4 characters per token
// for English/Cyrillic/Uzbek Latin text alike.
const charsPerToken = 4

func countTokens(s string) int {
	return (len([]rune(s)) + charsPerToken - 1) / charsPerToken
}

func contextWindowFor(modelName string) int {
	for prefix, window := range contextWindows {
		if strings.HasPrefix(strings.ToLower(modelName), prefix) {
			return window
		}
	}
	return defaultContextWindow
}

// ContextPacker greedily fills a token budget with the highest-scoring
// graded documents, formatting each as a numbered, page-annotated
// block, and falls back to truncating the single best document when it
// alone exceeds the available budget.
type ContextPacker struct {
	reserveOutputTokens int
}

func NewContextPacker(reserveOutputTokens int) *ContextPacker {
	if reserveOutputTokens <= 0 {
		reserveOutputTokens = 4000
	}
	return &ContextPacker{reserveOutputTokens: reserveOutputTokens}
}

// Pack returns the assembled context string, the ContextItems that made
// it in (for citation mapping), and packing telemetry.
func (p *ContextPacker) Pack(
	documents []domain.CandidateDocument,
	query string,
	history []domain.Message,
	modelName string,
	systemPrompt string,
) (string, []ContextItem, domain.ContextMetadata) {
	window := contextWindowFor(modelName)

	reserved := p.reserveOutputTokens + countTokens(systemPrompt) + countTokens(query)
	for _, m := range history {
		reserved += countTokens(m.Content)
	}

	available := window - reserved
	if available < 0 {
		available = 0
	}

	metadata := domain.ContextMetadata{
		TotalDocs:       len(documents),
		TokensReserved:  reserved,
		TokensAvailable: available,
	}

	if len(documents) == 0 || available == 0 {
		return "", nil, metadata
	}

	var blocks []string
	var items []ContextItem
	used := 0

	for i, d := range documents {
		text := d.Text
		if d.Metadata.ParentText != "" {
			text = d.Metadata.ParentText
		}

		block := formatContextBlock(i+1, d, text)
		tokens := countTokens(block)

		if used+tokens > available {
			if i == 0 {
				// First document alone exceeds the budget: truncate it by
				// characters rather than dropping it outright.
				runes := []rune(text)
				maxChars := available * charsPerToken
				if maxChars > len(runes) {
					maxChars = len(runes)
				}
				truncated := text
				if maxChars > 0 && maxChars < len(runes) {
					truncated = string(runes[:maxChars])
				}
				block = formatContextBlock(i+1, d, truncated)
				blocks = append(blocks, block)
				items = append(items, toContextItem(d))
				used += countTokens(block)
			}
			break
		}

		blocks = append(blocks, block)
		items = append(items, toContextItem(d))
		used += tokens
	}

	metadata.IncludedDocs = len(items)
	metadata.TokensUsed = used
	if available > 0 {
		metadata.UtilizationPct = float64(used) / float64(available) * 100
	}

	return strings.Join(blocks, "\n\n"), items, metadata
}

func formatContextBlock(index int, d domain.CandidateDocument, text string) string {
	if d.Metadata.PageNumber > 0 {
		return fmt.Sprintf("[%d] (page %d): %s", index, d.Metadata.PageNumber, text)
	}
	return fmt.Sprintf("[%d]: %s", index, text)
}

func toContextItem(d domain.CandidateDocument) ContextItem {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		id = uuid.Nil
	}
	return ContextItem{
		ChunkID:     id,
		ChunkText:   d.Text,
		Title:       d.Metadata.Source,
		Score:       d.CombinedScore,
		URL:         d.Metadata.DocumentID,
		PublishedAt: "",
	}
}
