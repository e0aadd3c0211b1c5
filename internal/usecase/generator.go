package usecase

import (
	"context"
	"fmt"

	"agentic-rag/internal/domain"
)

// GenerationResult is the Generator's full output: the validated
// answer, the context items it was grounded in, and both validation
// layers' findings.
type GenerationResult struct {
	Answer     ValidatedOutput
	Contexts   []ContextItem
	Validation ResponseValidation
	Guardrail  OutputValidationGuardrailResult
}

type OutputValidationGuardrailResult struct {
	Warnings []string
}

// Generator assembles the prompt from packed context, calls the chat
// model, and runs both the structural (JSON) and semantic (confidence/
// groundedness) validation passes before returning.
type Generator struct {
	llm       domain.LLMClient
	prompts   *PromptFactory
	packer    *ContextPacker
	outputs   *OutputValidator
	responses *ResponseValidator
	maxTokens int
}

func NewGenerator(llm domain.LLMClient, prompts *PromptFactory, packer *ContextPacker, maxTokens int) *Generator {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Generator{
		llm:       llm,
		prompts:   prompts,
		packer:    packer,
		outputs:   NewOutputValidator(),
		responses: NewResponseValidator(),
		maxTokens: maxTokens,
	}
}

func (g *Generator) Generate(
	ctx context.Context,
	query string,
	lang domain.Language,
	rc domain.RuntimeContext,
	documents []domain.CandidateDocument,
	history []domain.Message,
	modelName string,
) (*GenerationResult, domain.ContextMetadata, error) {
	systemPrompt := g.prompts.GenerationSystemPrompt(lang, rc)
	contextStr, items, metadata := g.packer.Pack(documents, query, history, modelName, systemPrompt)

	if len(items) == 0 {
		return nil, metadata, fmt.Errorf("no documents available to ground a generation")
	}

	userPrompt := g.prompts.GenerationUserPrompt(query, contextStr)

	messages := append([]domain.Message{{Role: "system", Content: systemPrompt}}, history...)
	messages = append(messages, domain.Message{Role: "user", Content: userPrompt})

	resp, err := g.llm.Chat(ctx, messages, g.maxTokens)
	if err != nil {
		return nil, metadata, err
	}

	parsed, err := g.outputs.Validate(resp.Text, items)
	if err != nil {
		return nil, metadata, err
	}

	validation := g.responses.Validate(parsed.Answer, documents)
	metadata.ValidationConfidence = validation.Confidence
	metadata.ValidationIsGeneric = validation.IsGeneric
	metadata.ValidationHasCitations = validation.HasCitations
	metadata.ValidationWarnings = validation.Warnings

	strict := rc.EnableCitations
	guardrailOut, err := domain.ValidateOutput(parsed.Answer, validation.Confidence, strict)
	if err != nil {
		return nil, metadata, err
	}
	parsed.Answer = guardrailOut.Response

	return &GenerationResult{
		Answer:     *parsed,
		Contexts:   items,
		Validation: validation,
		Guardrail:  OutputValidationGuardrailResult{Warnings: guardrailOut.Warnings},
	}, metadata, nil
}
