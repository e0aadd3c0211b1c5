package usecase

import (
	"strings"

	"agentic-rag/internal/domain"
)

// genericPhrases flags answers that dodge the question rather than
// drawing on the packed context.
var genericPhrases = []string{
	"i don't have enough information",
	"i don't have access to",
	"as an ai",
	"i cannot provide",
	"please consult",
	"у меня недостаточно информации",
	"men bu haqda ma'lumotga ega emasman",
}

var negationWords = []string{
	"not", "no", "never", "cannot", "doesn't", "don't", "isn't", "wasn't",
	"не", "нет", "никогда", "нельзя",
	"emas", "yo'q", "mumkin emas",
}

// ResponseValidation is the result of validating a generated answer
// against the documents it was supposed to be grounded in.
type ResponseValidation struct {
	Confidence     float64
	IsGeneric      bool
	HasCitations   bool
	Contradicts    bool
	Warnings       []string
}

// ResponseValidator scores a generated answer's groundedness in its
// source documents via lexical word overlap, flags generic
// non-answers, and flags a crude negation-vs-overlap contradiction
// heuristic.
type ResponseValidator struct{}

func NewResponseValidator() *ResponseValidator {
	return &ResponseValidator{}
}

func (v *ResponseValidator) Validate(answer string, documents []domain.CandidateDocument) ResponseValidation {
	overlap := v.documentOverlap(answer, documents)
	confidence := overlap / 0.3
	if confidence > 1 {
		confidence = 1
	}

	result := ResponseValidation{
		Confidence:   confidence,
		IsGeneric:    v.isGeneric(answer),
		HasCitations: v.hasCitations(answer),
	}

	if v.hasStrongNegation(answer) && overlap < 0.1 {
		result.Contradicts = true
	}

	result.Warnings = v.addConfidenceWarnings(result)

	return result
}

func (v *ResponseValidator) documentOverlap(answer string, documents []domain.CandidateDocument) float64 {
	answerWords := wordSet(answer)
	if len(answerWords) == 0 || len(documents) == 0 {
		return 0
	}

	docWords := make(map[string]struct{})
	for _, d := range documents {
		for w := range wordSet(d.Text) {
			docWords[w] = struct{}{}
		}
	}
	if len(docWords) == 0 {
		return 0
	}

	matched := 0
	for w := range answerWords {
		if _, ok := docWords[w]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(answerWords))
}

func wordSet(text string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(text))
	out := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:\"'()")
		if len(f) > 2 {
			out[f] = struct{}{}
		}
	}
	return out
}

func (v *ResponseValidator) isGeneric(answer string) bool {
	lower := strings.ToLower(answer)
	for _, p := range genericPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func (v *ResponseValidator) hasCitations(answer string) bool {
	return strings.Contains(answer, "[") && strings.Contains(answer, "]")
}

func (v *ResponseValidator) hasStrongNegation(answer string) bool {
	lower := strings.ToLower(answer)
	for _, w := range negationWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// addConfidenceWarnings returns warning strings for low/moderate
// confidence, generic and self-contradicting answers, mirroring the
// fused corpus's own confidence-note convention. The answer text itself
// is not changed.
func (v *ResponseValidator) addConfidenceWarnings(r ResponseValidation) []string {
	var warnings []string
	switch {
	case r.Confidence < 0.3:
		warnings = append(warnings, "low confidence: answer may not be fully grounded in retrieved documents")
	case r.Confidence < 0.6:
		warnings = append(warnings, "moderate confidence: please verify against the cited source")
	}
	if r.IsGeneric {
		warnings = append(warnings, "generic response: the model may not have found a specific answer")
	}
	if r.Contradicts {
		warnings = append(warnings, "possible contradiction: answer negates its own sources")
	}
	return warnings
}
