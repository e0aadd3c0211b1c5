package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"agentic-rag/internal/domain"

	"github.com/bytedance/sonic"
)

// QueryPreparer runs local, cheap classification (intent, language) and
// then, for HR queries, the single generator call spec.md 4.3 calls
// for: one chat completion that returns a rewritten query, 2-3
// alternate phrasings, a broader step-back query, and any metadata
// filters the model can infer, all as one strict JSON object. llm may
// be nil, in which case preparation falls back to the masked query
// verbatim with no expansion — used by tests and by greeting/thanks
// turns that never reach this branch anyway.
type QueryPreparer struct {
	maxQueryLength int
	llm            domain.LLMClient
	prompts        *PromptFactory
	alternateCount int
	logger         *slog.Logger
}

func NewQueryPreparer(maxQueryLength int, llm domain.LLMClient, prompts *PromptFactory, alternateCount int, logger *slog.Logger) *QueryPreparer {
	if maxQueryLength <= 0 {
		maxQueryLength = domain.DefaultMaxQueryLength
	}
	if alternateCount <= 0 {
		alternateCount = 2
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryPreparer{
		maxQueryLength: maxQueryLength,
		llm:            llm,
		prompts:        prompts,
		alternateCount: alternateCount,
		logger:         logger,
	}
}

// queryPreparationFilters is the optional "filters" object in the
// generator's JSON contract; a nil Filters on the parsed contract means
// the model inferred nothing.
type queryPreparationFilters struct {
	Language      string `json:"language"`
	FileType      string `json:"file_type"`
	SectionHeader string `json:"section_header"`
}

type queryPreparationContract struct {
	SearchQuery   string                   `json:"search_query"`
	SearchQueries []string                 `json:"search_queries"`
	StepBackQuery string                   `json:"step_back_query"`
	Filters       *queryPreparationFilters `json:"filters"`
}

// Prepare validates the raw query, detects language and intent, and
// (for HR queries, when an LLM is configured) runs the structured
// query-preparation generator call. It returns a
// *domain.GuardrailViolation when the query fails input validation.
func (p *QueryPreparer) Prepare(ctx context.Context, rawQuery string, userFilters domain.Filters) (domain.TurnState, []string, error) {
	validation, err := domain.ValidateInput(rawQuery, p.maxQueryLength)
	if err != nil {
		return domain.TurnState{}, nil, err
	}

	intent := domain.ClassifyIntent(validation.MaskedQuery)
	language := domain.DetectLanguage(validation.MaskedQuery)

	state := domain.TurnState{
		OriginalQuery: rawQuery,
		Query:         validation.MaskedQuery,
		SearchQuery:   validation.MaskedQuery,
		SearchQueries: []string{validation.MaskedQuery},
		Intent:        intent,
		QueryLanguage: language,
		UserFilters:   userFilters,
		InferredFilters: domain.Filters{
			Language: string(language),
		},
	}

	if intent != domain.IntentHRQuery || p.llm == nil {
		return state, validation.Warnings, nil
	}

	contract, err := p.prepareQuery(ctx, validation.MaskedQuery)
	if err != nil {
		p.logger.Warn("query preparation generator call failed, falling back to original query", "error", err)
		return state, validation.Warnings, nil
	}

	state.SearchQuery = firstNonEmpty(contract.SearchQuery, validation.MaskedQuery)
	state.SearchQueries = unionSearchQueries(state.SearchQuery, contract.SearchQueries, contract.StepBackQuery)

	if contract.Filters != nil {
		if contract.Filters.Language != "" {
			state.InferredFilters.Language = contract.Filters.Language
		}
		state.InferredFilters.FileType = contract.Filters.FileType
		state.InferredFilters.SectionHeader = contract.Filters.SectionHeader
	}

	return state, validation.Warnings, nil
}

func (p *QueryPreparer) prepareQuery(ctx context.Context, query string) (*queryPreparationContract, error) {
	system := p.prompts.QueryPreparationSystemPrompt(p.alternateCount)
	user := p.prompts.QueryPreparationUserPrompt(query)

	resp, err := p.llm.Chat(ctx, []domain.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}, 300)
	if err != nil {
		return nil, err
	}

	return parseQueryPreparationContract(resp.Text)
}

// parseQueryPreparationContract tolerates a generation model wrapping
// its JSON in a fenced code block or surrounding it with prose, by
// extracting the first balanced {...} object before unmarshaling. On
// any failure the caller falls back to the identity query per
// spec.md 4.3.
func parseQueryPreparationContract(raw string) (*queryPreparationContract, error) {
	obj, ok := firstJSONObject(raw)
	if !ok {
		return nil, fmt.Errorf("no JSON object found in query preparation response")
	}

	var contract queryPreparationContract
	if err := sonic.UnmarshalString(obj, &contract); err != nil {
		return nil, err
	}
	return &contract, nil
}

// firstJSONObject scans s for the first top-level {...} object,
// tracking brace depth while skipping over quoted string contents so a
// literal "{" inside a string value doesn't throw off the count.
func firstJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
			// brace characters inside a string don't affect depth
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// unionSearchQueries builds the family of search queries spec.md 4.3
// describes: the primary query, up to 3 deduplicated alternates, and
// the step-back query if present and distinct. Retriever.Retrieve caps
// the family at 3 before fanning out, per spec.md 4.4.
func unionSearchQueries(primary string, alternates []string, stepBack string) []string {
	seen := map[string]struct{}{primary: {}}
	out := []string{primary}

	kept := 0
	for _, alt := range alternates {
		alt = strings.TrimSpace(alt)
		if alt == "" || kept >= 3 {
			continue
		}
		if _, dup := seen[alt]; dup {
			continue
		}
		seen[alt] = struct{}{}
		out = append(out, alt)
		kept++
	}

	if stepBack = strings.TrimSpace(stepBack); stepBack != "" {
		if _, dup := seen[stepBack]; !dup {
			out = append(out, stepBack)
		}
	}

	return out
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}
