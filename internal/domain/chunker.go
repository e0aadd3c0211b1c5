package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// MinChunkLength is the minimum rune length a paragraph must reach
	// to stand alone as a chunk; shorter paragraphs are merged into a
	// neighboring chunk.
	MinChunkLength = 80
	// MaxChunkLength is the maximum rune length of a single chunk before
	// it is split at sentence boundaries.
	MaxChunkLength = 2000

	// ChunkerVersionV7 is stamped onto ingestion telemetry so that a
	// re-chunk triggered by an algorithm change can be told apart from
	// a content change.
	ChunkerVersionV7 = "v7"
)

var paragraphSplitRe = regexp.MustCompile(`\n\s*\n+`)

// sentenceBoundaryRe splits on a run of sentence terminators (Latin
// '.', '!', '?' used by English, Russian and Uzbek text alike, plus the
// Japanese ideographic full stop '。' for documents that carry it)
// followed by whitespace.
var sentenceBoundaryRe = regexp.MustCompile(`([.!?。]+)\s+`)

// ChunkDraft is the Chunker's output: a candidate chunk not yet assigned
// an identity or persisted. DiffChunks and IndexArticleUsecase operate
// on ChunkDraft before turning surviving drafts into persisted Chunks.
type ChunkDraft struct {
	Ordinal int
	Content string
	Hash    string
}

// Chunker splits a policy document's plain-text body into chunks:
// paragraph-aligned where paragraphs are long enough to stand alone,
// merged with a neighbor when too short, and split at sentence
// boundaries when a merged chunk grows past MaxChunkLength.
type Chunker struct{}

func NewChunker() *Chunker {
	return &Chunker{}
}

func (c *Chunker) Version() string {
	return ChunkerVersionV7
}

func (c *Chunker) Chunk(body string) ([]ChunkDraft, error) {
	paragraphs := splitParagraphs(body)
	groups := groupParagraphs(paragraphs)

	var drafts []ChunkDraft
	ordinal := 0
	for _, g := range groups {
		content := strings.Join(g, "\n\n")
		for _, piece := range splitOversized(content) {
			drafts = append(drafts, ChunkDraft{
				Ordinal: ordinal,
				Content: piece,
				Hash:    hashContent(piece),
			})
			ordinal++
		}
	}

	return drafts, nil
}

func splitParagraphs(body string) []string {
	raw := paragraphSplitRe.Split(body, -1)
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func isLongParagraph(p string) bool {
	return utf8.RuneCountInString(p) >= MinChunkLength
}

// groupParagraphs merges short paragraphs into the preceding long
// paragraph's group. A new group starts only when a long paragraph
// arrives while the current group already contains one — i.e. short
// paragraphs always attach to the long paragraph they trail, and short
// paragraphs with no preceding long paragraph attach forward to the
// first long paragraph that follows them.
func groupParagraphs(paragraphs []string) [][]string {
	if len(paragraphs) == 0 {
		return nil
	}

	var groups [][]string
	var current []string
	currentHasLong := false

	for _, p := range paragraphs {
		long := isLongParagraph(p)
		if long && currentHasLong {
			groups = append(groups, current)
			current = nil
			currentHasLong = false
		}
		current = append(current, p)
		if long {
			currentHasLong = true
		}
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}

// splitOversized splits content at sentence boundaries into pieces no
// longer than MaxChunkLength runes. Content already within budget is
// returned unchanged as a single-element slice.
func splitOversized(content string) []string {
	if utf8.RuneCountInString(content) <= MaxChunkLength {
		return []string{content}
	}

	sentences := splitSentences(content)
	var pieces []string
	var current strings.Builder
	currentLen := 0

	for _, s := range sentences {
		sLen := utf8.RuneCountInString(s)
		if currentLen > 0 && currentLen+sLen > MaxChunkLength {
			pieces = append(pieces, strings.TrimSpace(current.String()))
			current.Reset()
			currentLen = 0
		}
		current.WriteString(s)
		currentLen += sLen
	}
	if currentLen > 0 {
		pieces = append(pieces, strings.TrimSpace(current.String()))
	}
	if len(pieces) == 0 {
		pieces = []string{content}
	}
	return pieces
}

func splitSentences(content string) []string {
	var sentences []string
	last := 0
	matches := sentenceBoundaryRe.FindAllStringIndex(content, -1)
	for _, m := range matches {
		sentences = append(sentences, content[last:m[1]])
		last = m[1]
	}
	if last < len(content) {
		sentences = append(sentences, content[last:])
	}
	if len(sentences) == 0 {
		return []string{content}
	}
	return sentences
}

func hashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
