package domain

import (
	"regexp"
	"strings"
	"unicode"
)

// greetingTokensByLang and thanksTokensByLang are curated per-language
// token sets for the three supported languages. Lookup is exact-match
// against the normalized (trimmed, lowercased, punctuation-stripped)
// text. Keeping these keyed by language (rather than one flat set)
// lets DetectLanguage consult the same curated tokens ClassifyIntent
// uses, per spec.md 4.1's exact-set-lookup tier.
var greetingTokensByLang = map[Language][]string{
	LanguageEnglish: {"hi", "hello", "hey", "good morning", "good afternoon", "good evening"},
	LanguageRussian: {"привет", "здравствуйте", "доброе утро", "добрый день", "добрый вечер"},
	LanguageUzbek:   {"salom", "assalomu alaykum", "xayrli tong", "xayrli kun", "xayrli kech"},
}

var thanksTokensByLang = map[Language][]string{
	LanguageEnglish: {"thanks", "thank you", "ty", "thx"},
	LanguageRussian: {"спасибо", "благодарю"},
	LanguageUzbek:   {"rahmat", "tashakkur"},
}

// greetingTokens and thanksTokens are the flat union of the per-language
// sets above, used by ClassifyIntent where the matched language isn't
// relevant, only whether the text is a greeting/thanks.
var greetingTokens = flatten(greetingTokensByLang)
var thanksTokens = flatten(thanksTokensByLang)

// tokenLanguage maps every curated greeting/thanks token back to its
// language, so DetectLanguage can resolve a language from an exact
// token match before falling back to the statistical/char-class tiers.
var tokenLanguage = tokenLanguageMap(greetingTokensByLang, thanksTokensByLang)

func flatten(byLang map[Language][]string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tokens := range byLang {
		for _, t := range tokens {
			out[t] = struct{}{}
		}
	}
	return out
}

func tokenLanguageMap(sets ...map[Language][]string) map[string]Language {
	out := make(map[string]Language)
	for _, byLang := range sets {
		for lang, tokens := range byLang {
			for _, t := range tokens {
				out[t] = lang
			}
		}
	}
	return out
}

var trailingPunct = regexp.MustCompile(`[\s.,!?;:]+$`)

// greetingReplies is the canned multilingual greeting response used for
// the greeting short-circuit, keyed by detected language. The retry
// exhaustion fallback uses NotFoundReplies instead.
var greetingReplies = map[Language]string{
	LanguageUzbek:   "Assalomu alaykum! HR siyosatlari bo'yicha qanday yordam bera olaman?",
	LanguageRussian: "Здравствуйте! Чем я могу помочь вам по вопросам кадровой политики?",
	LanguageEnglish: "Hello! How can I help you with HR policy questions?",
}

// thanksReplies mirrors greetingReplies for the "thanks" intent.
var thanksReplies = map[Language]string{
	LanguageUzbek:   "Arzimaydi! Yana savollaringiz bo'lsa, bemalol so'rang.",
	LanguageRussian: "Пожалуйста! Обращайтесь, если будут ещё вопросы.",
	LanguageEnglish: "You're welcome! Feel free to ask if you have more questions.",
}

// NotFoundReplies is the canned response used when retries are
// exhausted and no documents were retrieved.
var NotFoundReplies = map[Language]string{
	LanguageUzbek:   "Kechirasiz, so'ralgan ma'lumotni topa olmadim. Iltimos, savolingizni boshqacha shaklda qayta bering.",
	LanguageRussian: "К сожалению, я не нашёл информацию по вашему запросу. Попробуйте переформулировать вопрос.",
	LanguageEnglish: "I'm sorry, I couldn't find information about that. Please try rephrasing your question.",
}

// GreetingReply returns the canned greeting response for a language,
// falling back to English.
func GreetingReply(lang Language) string {
	if r, ok := greetingReplies[lang]; ok {
		return r
	}
	return greetingReplies[LanguageEnglish]
}

// ThanksReply returns the canned acknowledgement response for a language.
func ThanksReply(lang Language) string {
	if r, ok := thanksReplies[lang]; ok {
		return r
	}
	return thanksReplies[LanguageEnglish]
}

// NotFoundReply returns the canned "not found" response for a language.
func NotFoundReply(lang Language) string {
	if r, ok := NotFoundReplies[lang]; ok {
		return r
	}
	return NotFoundReplies[LanguageEnglish]
}

// normalize trims, lowercases and strips trailing punctuation, per
// spec.md 4.1.
func normalize(text string) string {
	t := strings.TrimSpace(text)
	t = trailingPunct.ReplaceAllString(t, "")
	return strings.ToLower(strings.TrimSpace(t))
}

func isEmojiOnly(text string) bool {
	hasRune := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		hasRune = true
		if !isEmojiRune(r) {
			return false
		}
	}
	return hasRune
}

func isEmojiRune(r rune) bool {
	switch {
	case r >= 0x1F300 && r <= 0x1FAFF:
		return true
	case r >= 0x2600 && r <= 0x27BF:
		return true
	case r >= 0x1F000 && r <= 0x1F0FF:
		return true
	default:
		return false
	}
}

// ClassifyIntent implements spec.md 4.1's classify(text) operation.
func ClassifyIntent(text string) Intent {
	normalized := normalize(text)

	if normalized == "" || isEmojiOnly(text) {
		return IntentGreeting
	}

	if _, ok := greetingTokens[normalized]; ok {
		return IntentGreeting
	}
	if _, ok := thanksTokens[normalized]; ok {
		return IntentThanks
	}

	words := strings.Fields(normalized)
	if len(words) <= 3 && !strings.ContainsAny(text, ",?") {
		first := words[0]
		if _, ok := greetingTokens[first]; ok {
			return IntentGreeting
		}
		if _, ok := thanksTokens[first]; ok {
			return IntentThanks
		}
	}

	return IntentHRQuery
}

// statisticalWords is a tiny per-language stopword/function-word sample
// used as the "statistical detector" tier for texts of at least 10
// characters, before falling back to the character-class heuristic.
var statisticalWords = map[Language][]string{
	LanguageEnglish: {"the", "and", "is", "are", "what", "how", "policy", "leave", "employee", "annual"},
	LanguageRussian: {"и", "что", "как", "на", "для", "политика", "сотрудник", "отпуск"},
	LanguageUzbek:   {"va", "bilan", "uchun", "qanday", "siyosat", "xodim", "ta'til"},
}

func statisticalDetect(text string) Language {
	lower := strings.ToLower(text)
	best := LanguageUnknown
	bestCount := 0
	for lang, words := range statisticalWords {
		count := 0
		for _, w := range words {
			if strings.Contains(lower, w) {
				count++
			}
		}
		if count > bestCount {
			bestCount = count
			best = lang
		}
	}
	if bestCount == 0 {
		return LanguageUnknown
	}
	return best
}

// charClassHeuristic classifies by counting Cyrillic, Latin and
// Uzbek-specific characters (both the Cyrillic ў/қ/ғ/ҳ and the Latin
// apostrophe letters oʻ/gʻ), per spec.md 4.1.
func charClassHeuristic(text string) Language {
	lower := strings.ToLower(text)
	var cyrillic, latin, uzbekSpecific int
	for _, r := range lower {
		switch {
		case strings.ContainsRune("ўқғҳ", r):
			uzbekSpecific++
		case r >= 'а' && r <= 'я' || r == 'ё':
			cyrillic++
		case r >= 'a' && r <= 'z':
			latin++
		}
	}
	if strings.Contains(lower, "o'") || strings.Contains(lower, "g'") ||
		strings.Contains(lower, "oʻ") || strings.Contains(lower, "gʻ") {
		uzbekSpecific++
	}

	total := cyrillic + latin + uzbekSpecific
	if total == 0 {
		return LanguageEnglish
	}
	if uzbekSpecific > 0 {
		return LanguageUzbek
	}
	if cyrillic > latin {
		return LanguageRussian
	}
	return LanguageEnglish
}

// DetectLanguage implements spec.md 4.1's language detection: exact-set
// lookup against the curated greeting/thanks tokens first, then a
// statistical detector, then — for texts shorter than 10 characters, or
// when the statistical detector is indeterminate — a character-class
// heuristic.
func DetectLanguage(text string) Language {
	trimmed := strings.TrimSpace(text)
	normalized := normalize(trimmed)

	if lang, ok := tokenLanguage[normalized]; ok {
		return lang
	}
	if words := strings.Fields(normalized); len(words) > 0 {
		if lang, ok := tokenLanguage[words[0]]; ok {
			return lang
		}
	}

	if len([]rune(trimmed)) < 10 {
		return charClassHeuristic(trimmed)
	}
	if lang := statisticalDetect(trimmed); lang != LanguageUnknown {
		return lang
	}
	return charClassHeuristic(trimmed)
}
