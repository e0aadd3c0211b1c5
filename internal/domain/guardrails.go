package domain

import (
	"regexp"
	"strconv"
	"strings"
)

// injectionPatterns ports guardrails.py's detect_prompt_injection pattern
// list. Go's RE2 engine (regexp) does not support negative lookahead, so
// the "act as (a)? (?!assistant)" rule is split: the regex matches the
// broader "act as" phrasing and actAsAssistantExceptionRe excludes the
// one case (explicitly asking the assistant to act as itself) the
// original carved out via lookahead.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`ignore\s+(all\s+)?(previous|above|prior)\s+(instructions|prompts|commands)`),
	regexp.MustCompile(`disregard\s+(all\s+)?(previous|above|prior)`),
	regexp.MustCompile(`forget\s+(all\s+)?(previous|above|prior)`),
	regexp.MustCompile(`new\s+instructions?:`),
	regexp.MustCompile(`system\s*:`),
	regexp.MustCompile(`assistant\s*:`),
	regexp.MustCompile(`###\s*instruction`),
	regexp.MustCompile(`you\s+are\s+now`),
	regexp.MustCompile(`pretend\s+to\s+be`),
	regexp.MustCompile(`roleplay\s+as`),
	regexp.MustCompile(`jailbreak`),
	regexp.MustCompile(`dan\s+mode`),
	regexp.MustCompile(`developer\s+mode`),
	regexp.MustCompile(`what\s+(are|is)\s+your\s+(system\s+)?(prompt|instructions)`),
	regexp.MustCompile(`show\s+me\s+your\s+(system\s+)?(prompt|instructions)`),
	regexp.MustCompile(`repeat\s+(your\s+)?(system\s+)?(prompt|instructions)`),
}

var actAsPattern = regexp.MustCompile(`act\s+as\s+(a\s+)?(\w+)?`)

// nonWordChar mirrors Python's `[^\w\s.,!?'"-]`; Go's \w in regexp is
// ASCII-only, so letters outside ASCII (Cyrillic, Uzbek) must be
// excluded from the "special character" count explicitly rather than
// matched by \w.
var nonWordChar = regexp.MustCompile(`[^\p{L}\p{N}\s.,!?'"-]`)

// DetectPromptInjection ports guardrails.py's detect_prompt_injection.
func DetectPromptInjection(text string) bool {
	lower := strings.ToLower(text)

	for _, p := range injectionPatterns {
		if p.MatchString(lower) {
			return true
		}
	}

	if m := actAsPattern.FindStringSubmatch(lower); m != nil {
		if strings.TrimSpace(m[2]) != "assistant" {
			return true
		}
	}

	runeCount := len([]rune(text))
	if runeCount == 0 {
		return false
	}
	specialCount := len(nonWordChar.FindAllString(text, -1))
	if float64(specialCount)/float64(runeCount) > 0.4 {
		return true
	}

	return false
}

var (
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phonePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`),
		regexp.MustCompile(`\(\d{3}\)\s?\d{3}[-.]?\d{4}`),
		regexp.MustCompile(`\+\d{1,3}\s?\d{9,}`),
	}
	creditCardPattern = regexp.MustCompile(`\b\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`)
	ssnPattern        = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	ipPattern         = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)
)

// MaskPII ports guardrails.py's mask_pii: detects and replaces emails,
// phone numbers, credit cards, SSN-style numbers, and validated IPv4
// addresses with labeled placeholders.
func MaskPII(text string) (bool, string) {
	found := false
	masked := text

	if emailPattern.MatchString(masked) {
		masked = emailPattern.ReplaceAllString(masked, "[EMAIL]")
		found = true
	}

	for _, p := range phonePatterns {
		if p.MatchString(masked) {
			masked = p.ReplaceAllString(masked, "[PHONE]")
			found = true
		}
	}

	if creditCardPattern.MatchString(masked) {
		masked = creditCardPattern.ReplaceAllString(masked, "[CREDIT_CARD]")
		found = true
	}

	if ssnPattern.MatchString(masked) {
		masked = ssnPattern.ReplaceAllString(masked, "[SSN]")
		found = true
	}

	for _, ip := range ipPattern.FindAllString(masked, -1) {
		if isValidIPv4(ip) {
			masked = strings.ReplaceAll(masked, ip, "[IP_ADDRESS]")
			found = true
		}
	}

	return found, masked
}

func isValidIPv4(ip string) bool {
	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return false
	}
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 255 {
			return false
		}
	}
	return true
}

var (
	sqlPatterns = []*regexp.Regexp{
		regexp.MustCompile(`;\s*drop\s+table`),
		regexp.MustCompile(`;\s*delete\s+from`),
		regexp.MustCompile(`union\s+select`),
		regexp.MustCompile(`1\s*=\s*1`),
		regexp.MustCompile(`'\s*or\s*'1'\s*=\s*'1`),
	}
	commandPatterns = []*regexp.Regexp{
		regexp.MustCompile(`;\s*rm\s+-rf`),
		regexp.MustCompile(`&&\s*rm\s+`),
		regexp.MustCompile(`\|\s*bash`),
		regexp.MustCompile("`.*`"),
		regexp.MustCompile(`\$\(.*\)`),
	}
)

// DetectMaliciousPatterns ports guardrails.py's detect_malicious_patterns.
func DetectMaliciousPatterns(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range sqlPatterns {
		if p.MatchString(lower) {
			return true
		}
	}
	for _, p := range commandPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

var leakagePatterns = []*regexp.Regexp{
	regexp.MustCompile(`system\s+prompt`),
	regexp.MustCompile(`my\s+instructions\s+(are|were)`),
	regexp.MustCompile(`i\s+was\s+told\s+to`),
	regexp.MustCompile(`langchain`),
	regexp.MustCompile(`langgraph`),
	regexp.MustCompile(`anthropic`),
	regexp.MustCompile(`openai`),
	regexp.MustCompile(`api\s+key`),
	regexp.MustCompile(`secret\s+key`),
	regexp.MustCompile(`password`),
}

// DetectDataLeakage ports guardrails.py's detect_data_leakage.
func DetectDataLeakage(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range leakagePatterns {
		if p.MatchString(lower) {
			return true
		}
	}
	return false
}

const DefaultMaxQueryLength = 2000

// InputValidation is the result of ValidateInput.
type InputValidation struct {
	OriginalQuery string
	MaskedQuery   string
	Warnings      []string
}

// ValidateInput ports guardrails.py's validate_input. It returns a
// *GuardrailViolation (via domain.NewGuardrailViolation /
// WrapGuardrailViolation) for the non-retryable failure modes: empty
// query, over-length query, detected injection, and detected malicious
// pattern. PII masking is recorded as a warning, not a failure.
func ValidateInput(query string, maxLen int) (InputValidation, error) {
	if maxLen <= 0 {
		maxLen = DefaultMaxQueryLength
	}

	if strings.TrimSpace(query) == "" {
		return InputValidation{}, WrapGuardrailViolation("query cannot be empty", ErrEmptyQuery)
	}

	if len([]rune(query)) > maxLen {
		return InputValidation{}, WrapGuardrailViolation("query too long", ErrQueryTooLong)
	}

	if DetectPromptInjection(query) {
		return InputValidation{}, NewGuardrailViolation("potential prompt injection detected; please rephrase your question")
	}

	var warnings []string
	piiFound, masked := MaskPII(query)
	if piiFound {
		warnings = append(warnings, "PII detected and masked in query")
	}

	if DetectMaliciousPatterns(query) {
		return InputValidation{}, NewGuardrailViolation("query contains potentially harmful content; please rephrase your question")
	}

	return InputValidation{
		OriginalQuery: query,
		MaskedQuery:   masked,
		Warnings:      warnings,
	}, nil
}

// OutputValidationGuardrail is the result of ValidateOutput.
type OutputValidationGuardrail struct {
	Response string
	Warnings []string
}

// ValidateOutput ports guardrails.py's validate_output: masks PII in the
// answer and fails closed (GuardrailViolation) on data-leakage tokens.
// strict additionally rejects low-confidence answers.
func ValidateOutput(response string, confidence float64, strict bool) (OutputValidationGuardrail, error) {
	if strict && confidence < 0.3 {
		return OutputValidationGuardrail{}, NewGuardrailViolation(
			"response confidence too low; unable to generate a reliable answer from available sources")
	}

	var warnings []string
	piiFound, masked := MaskPII(response)
	if piiFound {
		warnings = append(warnings, "PII detected and masked in response")
		response = masked
	}

	if DetectDataLeakage(response) {
		return OutputValidationGuardrail{}, NewGuardrailViolation("response contains potentially sensitive system information")
	}

	return OutputValidationGuardrail{Response: response, Warnings: warnings}, nil
}
