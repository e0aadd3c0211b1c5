package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SourceHashPolicy computes the content hash IndexArticleUsecase uses to
// decide whether an incoming document is unchanged from its current
// version. Title and body are normalized independently before being
// combined so that whitespace-only edits don't trigger a spurious
// re-index, and joined with a separator byte no normalized field can
// contain, so that a boundary shift between title and body (e.g. "AB"+"C"
// vs "A"+"BC") still produces a different hash.
type SourceHashPolicy struct{}

func NewSourceHashPolicy() *SourceHashPolicy {
	return &SourceHashPolicy{}
}

func (p *SourceHashPolicy) Compute(title, body string) string {
	h := sha256.New()
	h.Write([]byte(normalizeForHash(title)))
	h.Write([]byte{0})
	h.Write([]byte(normalizeForHash(body)))
	return hex.EncodeToString(h.Sum(nil))
}

func normalizeForHash(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
