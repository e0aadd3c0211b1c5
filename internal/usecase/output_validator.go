package usecase

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bytedance/sonic"
)

// Citation is one source reference the model claims to have used.
type Citation struct {
	ChunkID string `json:"chunk_id"`
	Reason  string `json:"reason"`
}

// ValidatedOutput is the Generator's structured response, parsed out of
// the model's constrained-JSON completion.
type ValidatedOutput struct {
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
	Fallback  bool       `json:"fallback"`
	Reason    string     `json:"reason"`
}

// OutputValidator parses the generation model's structured JSON
// response, tolerating the two failure modes a local model reliably
// produces: a response truncated mid-stream by a token-budget cutoff,
// and literal backslash-n sequences left over from the model
// double-escaping a newline inside its own JSON string.
type OutputValidator struct{}

func NewOutputValidator() *OutputValidator {
	return &OutputValidator{}
}

var answerFieldRe = regexp.MustCompile(`"answer"\s*:\s*"((?:[^"\\]|\\.)*)"`)

// Validate parses raw into a ValidatedOutput. contexts, when non-nil,
// restricts Citations to chunk IDs present in the packed context —
// citations naming a chunk the model was never shown are dropped rather
// than trusted.
func (v *OutputValidator) Validate(raw string, contexts []ContextItem) (*ValidatedOutput, error) {
	out, err := v.parse(raw)
	if err != nil {
		return nil, err
	}

	out.Answer = convertLiteralEscapes(out.Answer)

	if strings.TrimSpace(out.Answer) == "" && !out.Fallback {
		return nil, fmt.Errorf("empty answer without fallback")
	}

	if contexts != nil {
		allowed := make(map[string]struct{}, len(contexts))
		for _, c := range contexts {
			allowed[c.ChunkID.String()] = struct{}{}
		}
		filtered := out.Citations[:0]
		for _, c := range out.Citations {
			if _, ok := allowed[c.ChunkID]; ok {
				filtered = append(filtered, c)
			}
		}
		out.Citations = filtered
	}

	return out, nil
}

func (v *OutputValidator) parse(raw string) (*ValidatedOutput, error) {
	var out ValidatedOutput
	if err := sonic.UnmarshalString(raw, &out); err == nil {
		return &out, nil
	}
	return v.extractAnswerOnly(raw)
}

// extractAnswerOnly recovers the answer field from JSON truncated
// mid-stream, when the top-level object never closed.
func (v *OutputValidator) extractAnswerOnly(raw string) (*ValidatedOutput, error) {
	m := answerFieldRe.FindStringSubmatch(raw)
	if m == nil {
		return nil, fmt.Errorf("unable to parse generation response: no answer field found")
	}
	return &ValidatedOutput{Answer: jsonUnescape(m[1])}, nil
}

// jsonUnescape applies JSON string-escape rules to a raw substring
// captured outside of a full json.Unmarshal call.
func jsonUnescape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i == len(s)-1 {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '"':
			b.WriteByte('"')
		case '\\':
			b.WriteByte('\\')
		case '/':
			b.WriteByte('/')
		default:
			b.WriteByte('\\')
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// convertLiteralEscapes converts a literal two-character backslash-n
// sequence (left behind when the model double-escapes a newline inside
// its own JSON string) into an actual newline. It deliberately leaves
// \t and \r alone so that genuine paths like "C:\temp" survive intact.
func convertLiteralEscapes(s string) string {
	return strings.ReplaceAll(s, `\n`, "\n")
}
