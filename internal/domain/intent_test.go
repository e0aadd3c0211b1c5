package domain_test

import (
	"testing"

	"agentic-rag/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestClassifyIntent_Greeting(t *testing.T) {
	assert.Equal(t, domain.IntentGreeting, domain.ClassifyIntent("hello"))
	assert.Equal(t, domain.IntentGreeting, domain.ClassifyIntent("salom"))
	assert.Equal(t, domain.IntentGreeting, domain.ClassifyIntent("Привет"))
}

func TestClassifyIntent_Thanks(t *testing.T) {
	assert.Equal(t, domain.IntentThanks, domain.ClassifyIntent("thanks"))
	assert.Equal(t, domain.IntentThanks, domain.ClassifyIntent("rahmat"))
}

func TestClassifyIntent_HRQuery(t *testing.T) {
	assert.Equal(t, domain.IntentHRQuery, domain.ClassifyIntent("What is the annual leave policy?"))
}

// TestDetectLanguage_GreetingTokenResolvesExactLanguage is spec.md §8
// scenario 1: "salom" is only 5 runes, so without consulting the
// curated greeting tokens first, the char-class heuristic falls
// through to English since "salom" contains none of the Uzbek-specific
// letters. The exact-set lookup must win so language matches intent.
func TestDetectLanguage_GreetingTokenResolvesExactLanguage(t *testing.T) {
	assert.Equal(t, domain.LanguageUzbek, domain.DetectLanguage("salom"))
	assert.Equal(t, domain.LanguageRussian, domain.DetectLanguage("привет"))
	assert.Equal(t, domain.LanguageEnglish, domain.DetectLanguage("hello"))
}

func TestDetectLanguage_ThanksTokenResolvesExactLanguage(t *testing.T) {
	assert.Equal(t, domain.LanguageUzbek, domain.DetectLanguage("rahmat"))
	assert.Equal(t, domain.LanguageRussian, domain.DetectLanguage("спасибо"))
}

func TestDetectLanguage_CharClassHeuristicForShortNonTokenText(t *testing.T) {
	assert.Equal(t, domain.LanguageUzbek, domain.DetectLanguage("bo'lim"))
	assert.Equal(t, domain.LanguageEnglish, domain.DetectLanguage("leave"))
}

func TestDetectLanguage_StatisticalDetectorForLongerText(t *testing.T) {
	assert.Equal(t, domain.LanguageEnglish, domain.DetectLanguage("What is the annual leave policy for employees?"))
	assert.Equal(t, domain.LanguageRussian, domain.DetectLanguage("Какая политика отпуска для сотрудников на этом предприятии?"))
}

func TestGreetingReply_UsesDetectedLanguage(t *testing.T) {
	assert.Contains(t, domain.GreetingReply(domain.LanguageUzbek), "Assalomu")
	assert.Contains(t, domain.GreetingReply(domain.LanguageEnglish), "Hello")
}
