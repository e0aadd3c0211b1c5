package retrieval_test

import (
	"testing"

	"agentic-rag/internal/usecase/retrieval"

	"github.com/stretchr/testify/assert"
)

func TestFuseRRF_SingleList(t *testing.T) {
	lists := []retrieval.RankedList{{"a", "b", "c"}}

	scores := retrieval.FuseRRF(lists)

	assert.InDelta(t, 1.0/41, scores["a"], 0.0001)
	assert.InDelta(t, 1.0/42, scores["b"], 0.0001)
	assert.InDelta(t, 1.0/43, scores["c"], 0.0001)
}

func TestFuseRRF_CombinesAcrossLists(t *testing.T) {
	lists := []retrieval.RankedList{
		{"a", "b"},
		{"b", "a"},
	}

	scores := retrieval.FuseRRF(lists)

	expectedA := 1.0/41 + 1.0/42
	expectedB := 1.0/42 + 1.0/41

	assert.InDelta(t, expectedA, scores["a"], 0.0001)
	assert.InDelta(t, expectedB, scores["b"], 0.0001)
	assert.InDelta(t, scores["a"], scores["b"], 0.0001)
}

func TestFuseRRF_DocumentOnlyInOneList(t *testing.T) {
	lists := []retrieval.RankedList{
		{"a"},
		{"b"},
	}

	scores := retrieval.FuseRRF(lists)

	assert.Len(t, scores, 2)
	assert.InDelta(t, 1.0/41, scores["a"], 0.0001)
	assert.InDelta(t, 1.0/41, scores["b"], 0.0001)
}

func TestFuseRRF_EmptyInput(t *testing.T) {
	scores := retrieval.FuseRRF(nil)
	assert.Empty(t, scores)
}

func TestFuseRRF_HigherRankWinsWithinList(t *testing.T) {
	lists := []retrieval.RankedList{{"first", "second", "third"}}

	scores := retrieval.FuseRRF(lists)

	assert.Greater(t, scores["first"], scores["second"])
	assert.Greater(t, scores["second"], scores["third"])
}
